// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// BibliographyCandidate is a raw citation harvested from a stage's
// reference-bearing fields. Every field is optional; the compiler fills
// gaps by derivation and merging.
type BibliographyCandidate struct {
	// Title is the cited work's title.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Authors is the author span as a single string, source formatting
	// preserved (e.g. "Rahmat, A. & Sari, D.").
	Authors string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Year is the 4-digit publication year.
	Year string `json:"year,omitempty" yaml:"year,omitempty"`

	// URL is the source link, possibly carrying tracking parameters.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// DOI is the document identifier, possibly prefixed with a resolver.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// InTextCitation is a prebuilt in-text form like "(Rahmat, 2021)".
	InTextCitation string `json:"in_text_citation,omitempty" yaml:"in_text_citation,omitempty"`

	// FullReference is a prebuilt reference-list entry.
	FullReference string `json:"full_reference,omitempty" yaml:"full_reference,omitempty"`

	// PublishedAt is a free-form publication date, kept for display.
	PublishedAt string `json:"published_at,omitempty" yaml:"published_at,omitempty"`
}

// CompiledEntry is a deduplicated, merged, enriched bibliography record.
// Entries are derived data, recomputed on demand.
type CompiledEntry struct {
	Title          string `json:"title" yaml:"title"`
	Authors        string `json:"authors,omitempty" yaml:"authors,omitempty"`
	Year           string `json:"year,omitempty" yaml:"year,omitempty"`
	URL            string `json:"url,omitempty" yaml:"url,omitempty"`
	DOI            string `json:"doi,omitempty" yaml:"doi,omitempty"`
	InTextCitation string `json:"in_text_citation" yaml:"in_text_citation"`
	FullReference  string `json:"full_reference" yaml:"full_reference"`
	PublishedAt    string `json:"published_at,omitempty" yaml:"published_at,omitempty"`

	// IsComplete is true when the entry has both authors and year, or a
	// resolvable URL/DOI locator.
	IsComplete bool `json:"is_complete" yaml:"is_complete"`

	// SourceStages lists every stage that contributed a candidate to this
	// entry, in catalog order.
	SourceStages []StageID `json:"source_stages" yaml:"source_stages"`
}

// CompileStats summarizes a bibliography compilation run.
type CompileStats struct {
	// RawCount is the number of candidates harvested before dedup.
	RawCount int `json:"raw_count" yaml:"raw_count"`

	// ApprovedStageCount is the number of stages whose candidates were
	// included.
	ApprovedStageCount int `json:"approved_stage_count" yaml:"approved_stage_count"`

	// SkippedStageCount is the number of stages excluded for failing the
	// validity flag.
	SkippedStageCount int `json:"skipped_stage_count" yaml:"skipped_stage_count"`
}

// CompileResult is the output of the bibliography compiler.
type CompileResult struct {
	Entries []CompiledEntry `json:"entries" yaml:"entries"`

	// TotalCount is the number of compiled entries.
	TotalCount int `json:"total_count" yaml:"total_count"`

	// IncompleteCount is the number of entries flagged incomplete.
	IncompleteCount int `json:"incomplete_count" yaml:"incomplete_count"`

	// DuplicatesMerged is the raw candidate count minus the final count.
	DuplicatesMerged int `json:"duplicates_merged" yaml:"duplicates_merged"`

	Stats CompileStats `json:"stats" yaml:"stats"`
}
