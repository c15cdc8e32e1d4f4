// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bibliography

import (
	"sort"
	"strings"

	"github.com/pdiddy/paper-engine/pkg/types"
)

// StageInput is one source stage's contribution to a compilation run.
type StageInput struct {
	// Stage identifies the source stage for provenance.
	Stage types.StageID

	// Valid is true when the stage has a validatedAt that no rewind has
	// cleared. Invalid stages are counted but contribute no candidates.
	Valid bool

	// Candidates are the raw references harvested from the stage's
	// reference-bearing fields.
	Candidates []types.BibliographyCandidate
}

// Compile deduplicates, merges, and enriches candidates from every valid
// stage. The merge key cascade is: normalized URL, else normalized DOI,
// else title|authors|year case-folded with punctuation stripped. The
// result is a pure function of its input and safe to recompute on demand.
func Compile(inputs []StageInput) types.CompileResult {
	var result types.CompileResult

	byKey := make(map[string]*types.CompiledEntry)
	var order []string

	for _, in := range inputs {
		if !in.Valid {
			result.Stats.SkippedStageCount++
			continue
		}
		result.Stats.ApprovedStageCount++

		for _, cand := range in.Candidates {
			entry := normalizeCandidate(cand, in.Stage)
			if entry == nil {
				continue
			}
			result.Stats.RawCount++

			key := mergeKey(*entry)
			if existing, ok := byKey[key]; ok {
				mergeEntry(existing, entry)
			} else {
				byKey[key] = entry
				order = append(order, key)
			}
		}
	}

	for _, key := range order {
		entry := byKey[key]
		if entry.InTextCitation == "" {
			entry.InTextCitation = synthesizeInText(*entry)
		}
		if entry.FullReference == "" {
			entry.FullReference = synthesizeFullReference(*entry)
		}
		entry.IsComplete = isComplete(*entry)
		result.Entries = append(result.Entries, *entry)
	}

	sort.SliceStable(result.Entries, func(i, j int) bool {
		return strings.ToLower(sortText(result.Entries[i])) < strings.ToLower(sortText(result.Entries[j]))
	})

	result.TotalCount = len(result.Entries)
	result.DuplicatesMerged = result.Stats.RawCount - result.TotalCount
	for _, e := range result.Entries {
		if !e.IsComplete {
			result.IncompleteCount++
		}
	}
	return result
}

// normalizeCandidate cleans one raw candidate into a compiled entry with
// derived title, year, and canonical locators. Returns nil for
// candidates that carry nothing usable.
func normalizeCandidate(c types.BibliographyCandidate, src types.StageID) *types.CompiledEntry {
	e := &types.CompiledEntry{
		Title:          deriveTitle(c),
		Authors:        cleanSpace(c.Authors),
		Year:           deriveYear(c),
		URL:            NormalizeURL(c.URL),
		DOI:            NormalizeDOI(c.DOI),
		InTextCitation: cleanSpace(c.InTextCitation),
		FullReference:  cleanSpace(c.FullReference),
		PublishedAt:    strings.TrimSpace(c.PublishedAt),
		SourceStages:   []types.StageID{src},
	}
	if e.Title == "" && e.URL == "" && e.DOI == "" && e.FullReference == "" {
		return nil
	}
	return e
}

// mergeKey picks the deduplication key by the URL/DOI/text cascade.
func mergeKey(e types.CompiledEntry) string {
	if e.URL != "" {
		return "url\x00" + e.URL
	}
	if e.DOI != "" {
		return "doi\x00" + e.DOI
	}
	return "txt\x00" + foldKey(e.Title, e.Authors, e.Year)
}

// mergeEntry folds src into dst. Textual fields prefer the longer
// non-empty value; year prefers the first known value; citation strings
// prefer whichever side is not a placeholder, falling back to the longer
// string. Source provenance is unioned in arrival order.
func mergeEntry(dst, src *types.CompiledEntry) {
	dst.Title = longer(dst.Title, src.Title)
	dst.Authors = longer(dst.Authors, src.Authors)
	dst.PublishedAt = longer(dst.PublishedAt, src.PublishedAt)
	if dst.Year == "" {
		dst.Year = src.Year
	}
	if dst.URL == "" {
		dst.URL = src.URL
	}
	if dst.DOI == "" {
		dst.DOI = src.DOI
	}
	dst.InTextCitation = preferStrong(dst.InTextCitation, src.InTextCitation)
	dst.FullReference = preferStrong(dst.FullReference, src.FullReference)

	for _, s := range src.SourceStages {
		if !containsStage(dst.SourceStages, s) {
			dst.SourceStages = append(dst.SourceStages, s)
		}
	}
}

// longer returns the longer non-empty of two strings, preferring a when
// lengths tie.
func longer(a, b string) string {
	if len(b) > len(a) {
		return b
	}
	return a
}

// preferStrong picks between two citation strings: a strong value beats a
// weak one; equally strong or equally weak values fall back to length.
func preferStrong(a, b string) string {
	aw, bw := isWeak(a), isWeak(b)
	switch {
	case aw && !bw:
		return b
	case bw && !aw:
		return a
	default:
		return longer(a, b)
	}
}

// isComplete reports whether an entry has authors and year, or a
// resolvable locator.
func isComplete(e types.CompiledEntry) bool {
	if e.Authors != "" && e.Year != "" {
		return true
	}
	return e.URL != "" || e.DOI != ""
}

// sortText is the alphabetical sort key: full reference, falling back to
// title.
func sortText(e types.CompiledEntry) string {
	if e.FullReference != "" {
		return e.FullReference
	}
	return e.Title
}

func containsStage(stages []types.StageID, s types.StageID) bool {
	for _, x := range stages {
		if x == s {
			return true
		}
	}
	return false
}
