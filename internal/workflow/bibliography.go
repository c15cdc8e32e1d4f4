// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"context"
	"fmt"

	"github.com/pdiddy/paper-engine/internal/bibliography"
	"github.com/pdiddy/paper-engine/internal/stage"
	"github.com/pdiddy/paper-engine/pkg/types"
)

// AppendSearchReferences merges web-search results into the current
// stage's webSearchReferences list, deduplicating by normalized URL. For
// the two earliest stages the references are additionally dual-written
// into the stage's native referensi field under the same rule. The call
// is a no-op when nothing new arrives.
func (e *Engine) AppendSearchReferences(ctx context.Context, sessionID string, refs []types.BibliographyCandidate) (int, error) {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	cur := sess.CurrentStage
	if err := e.editable(sess, cur); err != nil {
		return 0, err
	}

	rec := sess.StageData[cur]
	if rec == nil {
		rec = types.StageRecord{}
	}

	added := appendDeduped(rec, "webSearchReferences", refs)

	// gagasan and topik keep their own native reference list in sync so
	// early-stage drafting cites what the search surfaced.
	if cur == types.StageGagasan || cur == types.StageTopik {
		added += appendDeduped(rec, "referensi", refs)
	}

	if added == 0 {
		return 0, nil
	}

	sess.StageData[cur] = rec
	sess.UpdatedAt = e.now()
	return added, e.store.PutSession(ctx, sess)
}

// appendDeduped appends candidates whose normalized URL is not already in
// the record's list. Candidates without a URL cannot be deduplicated here
// and are appended as-is; the compiler collapses them later by the
// title|authors|year cascade.
func appendDeduped(rec types.StageRecord, key string, refs []types.BibliographyCandidate) int {
	existing, _ := rec[key].([]any)

	seen := make(map[string]bool, len(existing))
	for _, item := range existing {
		cand := stage.CandidateFromRecord(item)
		if u := bibliography.NormalizeURL(cand.URL); u != "" {
			seen[u] = true
		}
	}

	added := 0
	for _, ref := range refs {
		u := bibliography.NormalizeURL(ref.URL)
		if u != "" && seen[u] {
			continue
		}
		if u != "" {
			seen[u] = true
		}
		existing = append(existing, stage.CandidateToRecord(ref))
		added++
	}
	if added > 0 {
		rec[key] = existing
	}
	return added
}

// CompileDaftarPustaka runs the bibliography compiler over every stage
// carrying reference data. Callable only while the session is on the
// daftar_pustaka stage and not pending validation. With write set, the
// compiled entries are persisted into the stage's daftarPustaka field.
func (e *Engine) CompileDaftarPustaka(ctx context.Context, sessionID string, includeWebSearchReferences, write bool) (types.CompileResult, []string, error) {
	var result types.CompileResult

	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return result, nil, err
	}
	if sess.CurrentStage != types.StageDaftarPustaka {
		return result, nil, fmt.Errorf("%w: bibliography compiles on %s, session is on %s",
			ErrWrongStage, types.StageDaftarPustaka, sess.CurrentStage)
	}
	if sess.StageStatus == types.StatusPendingValidation {
		return result, nil, ErrPendingValidation
	}

	var inputs []bibliography.StageInput
	for _, s := range stage.Catalog {
		rec := sess.StageData[s]
		if rec == nil {
			continue
		}
		in := bibliography.StageInput{
			Stage: s,
			Valid: stageValid(rec),
		}
		for _, key := range stage.ReferenceKeys(s) {
			if key == "webSearchReferences" && !includeWebSearchReferences {
				continue
			}
			items, _ := rec[key].([]any)
			for _, item := range items {
				in.Candidates = append(in.Candidates, stage.CandidateFromRecord(item))
			}
		}
		inputs = append(inputs, in)
	}

	result = bibliography.Compile(inputs)
	if result.TotalCount == 0 {
		return result, nil, fmt.Errorf("%w: %d raw candidate(s) across %d stage(s), %d stage(s) skipped",
			ErrEmptyBibliography, result.Stats.RawCount,
			result.Stats.ApprovedStageCount, result.Stats.SkippedStageCount)
	}

	var warnings []string
	if result.IncompleteCount > 0 {
		warnings = append(warnings,
			fmt.Sprintf("%d of %d entries are incomplete (missing authors/year and locator)",
				result.IncompleteCount, result.TotalCount))
	}
	if result.Stats.SkippedStageCount > 0 {
		warnings = append(warnings,
			fmt.Sprintf("%d stage(s) skipped: not validated or invalidated by rewind",
				result.Stats.SkippedStageCount))
	}

	if write {
		entries := make([]any, len(result.Entries))
		for i, entry := range result.Entries {
			entries[i] = entryToRecord(entry)
		}
		rec := sess.StageData[types.StageDaftarPustaka]
		if rec == nil {
			rec = types.StageRecord{}
		}
		rec["daftarPustaka"] = entries
		sess.StageData[types.StageDaftarPustaka] = rec
		sess.UpdatedAt = e.now()
		if err := e.store.PutSession(ctx, sess); err != nil {
			return result, warnings, err
		}
	}
	return result, warnings, nil
}

// stageValid is the bibliography validity flag: validated and not since
// invalidated by a rewind.
func stageValid(rec types.StageRecord) bool {
	if validatedAtOf(rec) == "" {
		return false
	}
	invalidated, _ := rec["invalidatedByRewind"].(bool)
	return !invalidated
}

// entryToRecord renders a compiled entry as a stage-data map.
func entryToRecord(e types.CompiledEntry) map[string]any {
	rec := map[string]any{
		"title":          e.Title,
		"inTextCitation": e.InTextCitation,
		"fullReference":  e.FullReference,
		"isComplete":     e.IsComplete,
	}
	set := func(k, v string) {
		if v != "" {
			rec[k] = v
		}
	}
	set("authors", e.Authors)
	set("year", e.Year)
	set("url", e.URL)
	set("doi", e.DOI)
	set("publishedAt", e.PublishedAt)

	stages := make([]any, len(e.SourceStages))
	for i, s := range e.SourceStages {
		stages[i] = string(s)
	}
	rec["sourceStages"] = stages
	return rec
}
