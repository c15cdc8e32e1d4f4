// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/pdiddy/paper-engine/pkg/types"
)

func TestRewindDistanceBounds(t *testing.T) {
	e := newTestEngine(t)
	sess := newTestSession(t, e)
	ctx := context.Background()

	for i := 0; i < 3; i++ { // gagasan, topik, judul -> now on outline
		approveCurrent(t, e, sess.ID)
	}

	// Three stages back is past the limit.
	if _, err := e.RewindToStage(ctx, sess.ID, types.StageGagasan); !errors.Is(err, ErrRewindTooFar) {
		t.Errorf("rewind to gagasan err = %v, want ErrRewindTooFar", err)
	}
	// Zero distance is not a rewind.
	if _, err := e.RewindToStage(ctx, sess.ID, types.StageOutline); !errors.Is(err, ErrRewindTooFar) {
		t.Errorf("rewind to current stage err = %v, want ErrRewindTooFar", err)
	}
	// Forward is not a rewind either.
	if _, err := e.RewindToStage(ctx, sess.ID, types.StageHasil); !errors.Is(err, ErrRewindTooFar) {
		t.Errorf("rewind forward err = %v, want ErrRewindTooFar", err)
	}
	if _, err := e.RewindToStage(ctx, sess.ID, "bab_hantu"); !errors.Is(err, ErrUnknownStage) {
		t.Errorf("rewind to unknown stage err = %v, want ErrUnknownStage", err)
	}

	// Two back is allowed.
	rec, err := e.RewindToStage(ctx, sess.ID, types.StageTopik)
	if err != nil {
		t.Fatalf("rewind to topik: %v", err)
	}
	if rec.FromStage != types.StageOutline || rec.ToStage != types.StageTopik {
		t.Errorf("rewind record %s -> %s, want outline -> topik", rec.FromStage, rec.ToStage)
	}
}

func TestRewindRequiresValidatedTarget(t *testing.T) {
	e := newTestEngine(t)
	sess := newTestSession(t, e)
	ctx := context.Background()

	approveCurrent(t, e, sess.ID) // now on topik

	got, err := e.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	delete(got.StageData[types.StageGagasan], "validatedAt")
	if err := e.store.PutSession(ctx, got); err != nil {
		t.Fatalf("PutSession: %v", err)
	}

	if _, err := e.RewindToStage(ctx, sess.ID, types.StageGagasan); !errors.Is(err, ErrRewindNotValidated) {
		t.Errorf("err = %v, want ErrRewindNotValidated", err)
	}
}

func TestRewindCascadesInvalidation(t *testing.T) {
	e := newTestEngine(t)
	sess := newTestSession(t, e)
	ctx := context.Background()

	approveCurrent(t, e, sess.ID) // gagasan
	approveCurrent(t, e, sess.ID) // topik -> now on judul

	rec, err := e.RewindToStage(ctx, sess.ID, types.StageGagasan)
	if err != nil {
		t.Fatalf("RewindToStage: %v", err)
	}
	if len(rec.InvalidatedStages) != 2 {
		t.Errorf("InvalidatedStages = %v, want gagasan and topik", rec.InvalidatedStages)
	}

	got, err := e.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.CurrentStage != types.StageGagasan || got.StageStatus != types.StatusDrafting {
		t.Errorf("session at %s/%s, want gagasan/drafting", got.CurrentStage, got.StageStatus)
	}

	// The target keeps its proof of validation but is flagged; later
	// stages lose validatedAt outright.
	gagasan := got.StageData[types.StageGagasan]
	if validatedAtOf(gagasan) == "" {
		t.Error("rewind target lost its validatedAt")
	}
	if flagged, _ := gagasan["invalidatedByRewind"].(bool); !flagged {
		t.Error("rewind target not flagged as invalidated")
	}
	topik := got.StageData[types.StageTopik]
	if validatedAtOf(topik) != "" {
		t.Error("intermediate stage kept validatedAt")
	}
	if flagged, _ := topik["invalidatedByRewind"].(bool); !flagged {
		t.Error("intermediate stage not flagged as invalidated")
	}
	// Stage data itself survives the rewind.
	if topik["ringkasan"] == "" {
		t.Error("rewind dropped stage data")
	}

	for _, entry := range got.PaperMemoryDigest {
		if !entry.Superseded {
			t.Errorf("digest entry for %s not superseded", entry.Stage)
		}
	}
}

func TestRewindReapprovalClearsFlag(t *testing.T) {
	e := newTestEngine(t)
	sess := newTestSession(t, e)
	ctx := context.Background()

	approveCurrent(t, e, sess.ID)
	approveCurrent(t, e, sess.ID)
	if _, err := e.RewindToStage(ctx, sess.ID, types.StageGagasan); err != nil {
		t.Fatalf("RewindToStage: %v", err)
	}

	approveCurrent(t, e, sess.ID) // re-approve gagasan

	got, err := e.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	rec := got.StageData[types.StageGagasan]
	if _, ok := rec["invalidatedByRewind"]; ok {
		t.Error("re-approval left the invalidation flag in place")
	}
	if validatedAtOf(rec) == "" {
		t.Error("re-approval did not stamp validatedAt")
	}
	// Live digest entry appended after the superseded one.
	last := got.PaperMemoryDigest[len(got.PaperMemoryDigest)-1]
	if last.Stage != types.StageGagasan || last.Superseded {
		t.Errorf("last digest entry = %+v, want a live gagasan entry", last)
	}
}

func TestRewindResetsOutlineAndRecordsHistory(t *testing.T) {
	e := newTestEngine(t)
	sess := newTestSession(t, e)
	ctx := context.Background()

	for i := 0; i < 3; i++ { // through judul
		approveCurrent(t, e, sess.ID)
	}

	if _, err := e.UpdateStageData(ctx, sess.ID, types.StageOutline, map[string]any{
		"ringkasan": "kerangka",
		"kerangka": []any{
			map[string]any{"bab": "pendahuluan", "judul": "Pendahuluan", "subbab": []any{"Latar Belakang"}},
		},
	}); err != nil {
		t.Fatalf("UpdateStageData: %v", err)
	}
	if err := e.SubmitForValidation(ctx, sess.ID); err != nil {
		t.Fatalf("SubmitForValidation: %v", err)
	}
	if err := e.ApproveStage(ctx, sess.ID); err != nil {
		t.Fatalf("ApproveStage: %v", err)
	}
	approveCurrent(t, e, sess.ID) // pendahuluan -> marks its outline subtree

	sections, err := e.OutlineSections(ctx, sess.ID)
	if err != nil {
		t.Fatalf("OutlineSections: %v", err)
	}
	for _, sec := range sections {
		if sec.Status != types.SectionComplete {
			t.Fatalf("precondition: section %s not complete", sec.ID)
		}
	}

	// Now on tinjauan_pustaka; rewind past pendahuluan.
	if _, err := e.RewindToStage(ctx, sess.ID, types.StagePendahuluan); err != nil {
		t.Fatalf("RewindToStage: %v", err)
	}

	sections, err = e.OutlineSections(ctx, sess.ID)
	if err != nil {
		t.Fatalf("OutlineSections: %v", err)
	}
	for _, sec := range sections {
		if sec.Status != "" || sec.CheckedBy != "" {
			t.Errorf("section %s not reset: status=%q checkedBy=%q", sec.ID, sec.Status, sec.CheckedBy)
		}
	}

	history, err := e.RewindHistory(ctx, sess.ID)
	if err != nil {
		t.Fatalf("RewindHistory: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history has %d records, want 1", len(history))
	}
	if history[0].ID == "" {
		t.Error("rewind record has no assigned id")
	}
	if history[0].ToStage != types.StagePendahuluan {
		t.Errorf("history ToStage = %s, want pendahuluan", history[0].ToStage)
	}
}

func TestCheckOutlineSectionSurvivesRewind(t *testing.T) {
	e := newTestEngine(t)
	sess := newTestSession(t, e)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		approveCurrent(t, e, sess.ID)
	}
	if _, err := e.UpdateStageData(ctx, sess.ID, types.StageOutline, map[string]any{
		"ringkasan": "kerangka",
		"kerangka": []any{
			map[string]any{"bab": "pendahuluan", "judul": "Pendahuluan", "subbab": []any{"Latar Belakang"}},
		},
	}); err != nil {
		t.Fatalf("UpdateStageData: %v", err)
	}
	if err := e.SubmitForValidation(ctx, sess.ID); err != nil {
		t.Fatalf("SubmitForValidation: %v", err)
	}
	if err := e.ApproveStage(ctx, sess.ID); err != nil {
		t.Fatalf("ApproveStage: %v", err)
	}
	approveCurrent(t, e, sess.ID) // pendahuluan -> now on tinjauan_pustaka

	if err := e.CheckOutlineSection(ctx, sess.ID, "pendahuluan-1", types.SectionPartial); err != nil {
		t.Fatalf("CheckOutlineSection: %v", err)
	}
	if _, err := e.RewindToStage(ctx, sess.ID, types.StagePendahuluan); err != nil {
		t.Fatalf("RewindToStage: %v", err)
	}

	sections, err := e.OutlineSections(ctx, sess.ID)
	if err != nil {
		t.Fatalf("OutlineSections: %v", err)
	}
	for _, sec := range sections {
		if sec.ID != "pendahuluan-1" {
			continue
		}
		if sec.Status != types.SectionPartial || sec.CheckedBy != types.CheckedUser {
			t.Errorf("user-checked section reset by rewind: %+v", sec)
		}
		return
	}
	t.Fatal("pendahuluan-1 not found")
}
