// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package outline tracks completion status over a session's two-level
// outline tree. Sections are a flat list with parent-id linkage; root
// ancestry is resolved by iterative lookup so the structure stays
// serializable and cycle-safe.
package outline

import (
	"math"
	"time"

	"github.com/pdiddy/paper-engine/internal/stage"
	"github.com/pdiddy/paper-engine/pkg/types"
)

// Result is the outcome of a propagate or reset pass.
type Result struct {
	// Sections is the full updated section list.
	Sections []types.OutlineSection

	// Changed is the number of sections the pass modified.
	Changed int

	// Percent is the recomputed completeness percentage over all
	// sections, rounded.
	Percent int
}

// rootOf follows ParentID links to the top-level ancestor id. Lookup is
// bounded by the list length so a malformed cycle cannot hang it.
func rootOf(byID map[string]types.OutlineSection, sec types.OutlineSection) string {
	id := sec.ID
	for i := 0; i < len(byID); i++ {
		node, ok := byID[id]
		if !ok || node.ParentID == "" {
			return id
		}
		id = node.ParentID
	}
	return id
}

// Propagate marks every child section belonging to the approved stage as
// complete with auto provenance, skipping sections the user checked
// explicitly. When all of the stage's children end up complete, the
// stage's own top-level node is marked as well. The three pre-outline
// stages have no outline subtree and are a no-op.
func Propagate(sections []types.OutlineSection, s types.StageID, ts time.Time) Result {
	res := Result{Sections: copySections(sections)}
	if stage.PreOutline(s) {
		res.Percent = Completeness(sections)
		return res
	}

	byID := indexSections(sections)
	stageID := string(s)

	childTotal, childComplete := 0, 0
	for i := range res.Sections {
		sec := &res.Sections[i]
		if sec.ID == stageID || rootOf(byID, *sec) != stageID {
			continue
		}
		childTotal++

		if sec.CheckedBy == types.CheckedUser {
			if sec.Status == types.SectionComplete {
				childComplete++
			}
			continue
		}
		if sec.Status != types.SectionComplete || sec.CheckedBy != types.CheckedAuto {
			res.Changed++
		}
		t := ts
		sec.Status = types.SectionComplete
		sec.CheckedBy = types.CheckedAuto
		sec.CheckedAt = &t
		childComplete++
	}

	// The stage's top-level node follows its children.
	if childTotal > 0 && childComplete == childTotal {
		for i := range res.Sections {
			sec := &res.Sections[i]
			if sec.ID != stageID || sec.CheckedBy == types.CheckedUser {
				continue
			}
			if sec.Status != types.SectionComplete {
				res.Changed++
			}
			t := ts
			sec.Status = types.SectionComplete
			sec.CheckedBy = types.CheckedAuto
			sec.CheckedAt = &t
		}
	}

	res.Percent = Completeness(res.Sections)
	return res
}

// Reset strips auto-checked status from every section whose root
// ancestor (or the section itself, when top-level) is in the invalidated
// set. User-checked sections are untouched.
func Reset(sections []types.OutlineSection, invalidated []types.StageID) Result {
	res := Result{Sections: copySections(sections)}

	targets := make(map[string]bool, len(invalidated))
	for _, s := range invalidated {
		targets[string(s)] = true
	}

	byID := indexSections(sections)
	for i := range res.Sections {
		sec := &res.Sections[i]
		if !targets[rootOf(byID, *sec)] {
			continue
		}
		if sec.CheckedBy != types.CheckedAuto {
			continue
		}
		sec.Status = ""
		sec.CheckedBy = ""
		sec.CheckedAt = nil
		res.Changed++
	}

	res.Percent = Completeness(res.Sections)
	return res
}

// Completeness returns round(100 * complete / total) over all sections.
func Completeness(sections []types.OutlineSection) int {
	if len(sections) == 0 {
		return 0
	}
	complete := 0
	for _, sec := range sections {
		if sec.Status == types.SectionComplete {
			complete++
		}
	}
	return int(math.Round(100 * float64(complete) / float64(len(sections))))
}

// copySections clones the input so callers keep their original list.
func copySections(sections []types.OutlineSection) []types.OutlineSection {
	return append([]types.OutlineSection(nil), sections...)
}

func indexSections(sections []types.OutlineSection) map[string]types.OutlineSection {
	byID := make(map[string]types.OutlineSection, len(sections))
	for _, sec := range sections {
		byID[sec.ID] = sec
	}
	return byID
}
