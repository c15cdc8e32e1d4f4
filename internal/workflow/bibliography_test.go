// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/paper-engine/pkg/types"
)

func TestAppendSearchReferencesDualWrite(t *testing.T) {
	e := newTestEngine(t)
	sess := newTestSession(t, e)
	ctx := context.Background()

	added, err := e.AppendSearchReferences(ctx, sess.ID, []types.BibliographyCandidate{
		{Title: "Banjir Rob", URL: "https://example.org/rob"},
		{Title: "Kenaikan Muka Laut", URL: "https://example.org/laut"},
	})
	if err != nil {
		t.Fatalf("AppendSearchReferences: %v", err)
	}
	// Each reference lands in webSearchReferences and, on gagasan, in
	// referensi too.
	if added != 4 {
		t.Errorf("added = %d, want 4", added)
	}

	got, err := e.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	rec := got.StageData[types.StageGagasan]
	web, _ := rec["webSearchReferences"].([]any)
	native, _ := rec["referensi"].([]any)
	if len(web) != 2 || len(native) != 2 {
		t.Errorf("webSearchReferences=%d referensi=%d, want 2 and 2", len(web), len(native))
	}
}

func TestAppendSearchReferencesDeduplicates(t *testing.T) {
	e := newTestEngine(t)
	sess := newTestSession(t, e)
	ctx := context.Background()

	refs := []types.BibliographyCandidate{
		{Title: "Banjir Rob", URL: "https://example.org/rob"},
	}
	if _, err := e.AppendSearchReferences(ctx, sess.ID, refs); err != nil {
		t.Fatalf("AppendSearchReferences: %v", err)
	}

	// Same source with tracking noise must not append again.
	added, err := e.AppendSearchReferences(ctx, sess.ID, []types.BibliographyCandidate{
		{Title: "Banjir Rob", URL: "https://example.org/rob?utm_source=mail"},
	})
	if err != nil {
		t.Fatalf("AppendSearchReferences (repeat): %v", err)
	}
	if added != 0 {
		t.Errorf("added = %d, want 0 for a duplicate URL", added)
	}
}

func TestCompileDaftarPustakaWrongStage(t *testing.T) {
	e := newTestEngine(t)
	sess := newTestSession(t, e)

	_, _, err := e.CompileDaftarPustaka(context.Background(), sess.ID, true, false)
	if !errors.Is(err, ErrWrongStage) {
		t.Errorf("err = %v, want ErrWrongStage", err)
	}
}

// bibliographySession positions a session on daftar_pustaka with reference
// data spread over earlier stages.
func bibliographySession(t *testing.T, e *Engine) *types.PaperSession {
	t.Helper()
	sess := newTestSession(t, e)
	ctx := context.Background()

	validated := time.Now().UTC().Format(time.RFC3339)
	sess.StageData[types.StageGagasan] = types.StageRecord{
		"ringkasan":   "ide",
		"validatedAt": validated,
		"referensi": []any{
			map[string]any{"title": "Banjir Rob", "url": "https://example.org/rob"},
		},
	}
	sess.StageData[types.StageTinjauanPustaka] = types.StageRecord{
		"ringkasan":   "tinjauan",
		"validatedAt": validated,
		"referensi": []any{
			map[string]any{
				"title":   "Banjir Rob",
				"url":     "https://example.org/rob?utm_source=scholar",
				"authors": "Rahmat, A.",
				"year":    "2021",
			},
		},
	}
	// A stage knocked out by a rewind contributes nothing.
	sess.StageData[types.StageMetodologi] = types.StageRecord{
		"ringkasan":           "metode",
		"validatedAt":         validated,
		"invalidatedByRewind": true,
		"referensi": []any{
			map[string]any{"title": "Metode Survei", "url": "https://example.org/survei"},
		},
	}
	sess.CurrentStage = types.StageDaftarPustaka
	if err := e.store.PutSession(ctx, sess); err != nil {
		t.Fatalf("PutSession: %v", err)
	}
	return sess
}

func TestCompileDaftarPustaka(t *testing.T) {
	e := newTestEngine(t)
	sess := bibliographySession(t, e)
	ctx := context.Background()

	result, warnings, err := e.CompileDaftarPustaka(ctx, sess.ID, true, true)
	if err != nil {
		t.Fatalf("CompileDaftarPustaka: %v", err)
	}

	if result.TotalCount != 1 {
		t.Fatalf("TotalCount = %d, want 1 (duplicate merged, invalid stage skipped)", result.TotalCount)
	}
	if result.DuplicatesMerged != 1 {
		t.Errorf("DuplicatesMerged = %d, want 1", result.DuplicatesMerged)
	}
	entry := result.Entries[0]
	if entry.Authors != "Rahmat, A." || entry.Year != "2021" {
		t.Errorf("entry not enriched across stages: %+v", entry)
	}
	if result.Stats.SkippedStageCount != 1 {
		t.Errorf("SkippedStageCount = %d, want 1", result.Stats.SkippedStageCount)
	}

	found := false
	for _, w := range warnings {
		if strings.Contains(w, "skipped") {
			found = true
		}
	}
	if !found {
		t.Errorf("no warning about the skipped stage, got %v", warnings)
	}

	// write=true persists the compiled list.
	got, err := e.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	entries, _ := got.StageData[types.StageDaftarPustaka]["daftarPustaka"].([]any)
	if len(entries) != 1 {
		t.Fatalf("persisted %d entries, want 1", len(entries))
	}
	m, _ := entries[0].(map[string]any)
	if m["title"] != "Banjir Rob" {
		t.Errorf("persisted title = %v", m["title"])
	}
}

func TestCompileDaftarPustakaEmpty(t *testing.T) {
	e := newTestEngine(t)
	sess := newTestSession(t, e)
	ctx := context.Background()

	sess.CurrentStage = types.StageDaftarPustaka
	if err := e.store.PutSession(ctx, sess); err != nil {
		t.Fatalf("PutSession: %v", err)
	}

	_, _, err := e.CompileDaftarPustaka(ctx, sess.ID, true, false)
	if !errors.Is(err, ErrEmptyBibliography) {
		t.Errorf("err = %v, want ErrEmptyBibliography", err)
	}
}

func TestCompileDaftarPustakaExcludesWebReferences(t *testing.T) {
	e := newTestEngine(t)
	sess := newTestSession(t, e)
	ctx := context.Background()

	validated := time.Now().UTC().Format(time.RFC3339)
	sess.StageData[types.StageTopik] = types.StageRecord{
		"ringkasan":   "topik",
		"validatedAt": validated,
		"webSearchReferences": []any{
			map[string]any{"title": "Hasil Pencarian", "url": "https://example.org/cari"},
		},
	}
	sess.CurrentStage = types.StageDaftarPustaka
	if err := e.store.PutSession(ctx, sess); err != nil {
		t.Fatalf("PutSession: %v", err)
	}

	_, _, err := e.CompileDaftarPustaka(ctx, sess.ID, false, false)
	if !errors.Is(err, ErrEmptyBibliography) {
		t.Errorf("err = %v, want ErrEmptyBibliography when web references are excluded", err)
	}

	result, _, err := e.CompileDaftarPustaka(ctx, sess.ID, true, false)
	if err != nil {
		t.Fatalf("CompileDaftarPustaka: %v", err)
	}
	if result.TotalCount != 1 {
		t.Errorf("TotalCount = %d, want 1 with web references included", result.TotalCount)
	}
}
