// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// guard.go sanitizes incoming stage edits: whitelist enforcement, type
// coercion, citation-string normalization, and field truncation. The
// guard never rejects a write; everything it changes is reported as a
// warning so the caller can surface it.
package stage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pdiddy/paper-engine/internal/bibliography"
	"github.com/pdiddy/paper-engine/pkg/types"
)

// noTruncateKeys are exempt from the general field-length cap. ringkasan
// and ringkasanDetail carry their own caps.
var noTruncateKeys = map[string]bool{
	"artifactId":    true,
	"validatedAt":   true,
	"revisionCount": true,
}

// GuardResult is the outcome of sanitizing one raw stage record.
type GuardResult struct {
	// Data is the sanitized record, safe to merge into stage data.
	Data types.StageRecord

	// Warnings describes every soft violation: stripped keys, truncated
	// fields, references without URLs.
	Warnings []string

	// StrippedKeys lists keys removed by the whitelist, for the schema
	// alert trail.
	StrippedKeys []string
}

// Sanitize applies the stage's key whitelist, drops nulls, coerces
// non-array values to strings where possible, normalizes bare citation
// strings in reference fields into objects, and truncates oversized
// string fields. Unknown stages get an empty whitelist, so every key is
// stripped.
func Sanitize(s types.StageID, raw map[string]any, cfg types.GuardConfig) GuardResult {
	cfg = cfg.WithDefaults()
	res := GuardResult{Data: types.StageRecord{}}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := raw[k]

		if !Allowed(s, k) {
			res.StrippedKeys = append(res.StrippedKeys, k)
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("unknown key %q for stage %s: dropped", k, s))
			continue
		}

		// Absence, not null, is the unset representation.
		if v == nil {
			continue
		}

		if IsArrayKey(k) {
			if IsReferenceKey(k) {
				v = normalizeReferenceList(v)
				if n := countMissingURLs(v); n > 0 {
					res.Warnings = append(res.Warnings,
						fmt.Sprintf("%d reference(s) in %q lack a source URL", n, k))
				}
			}
			res.Data[k] = v
			continue
		}

		v = coerceScalar(v)

		if str, ok := v.(string); ok {
			truncated, cut := truncateField(k, str, cfg)
			if cut {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("field %q truncated to %d characters", k, len([]rune(truncated))))
			}
			v = truncated
		}

		res.Data[k] = v
	}

	return res
}

// coerceScalar converts non-array values the caller sent in a structured
// form: a string array joins with newlines; a flat all-string object
// flattens into a markdown-like block. Anything else passes through for
// downstream validation to reject.
func coerceScalar(v any) any {
	switch val := v.(type) {
	case []string:
		return strings.Join(val, "\n")

	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return v
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, "\n")

	case map[string]any:
		subkeys := make([]string, 0, len(val))
		for sk, sv := range val {
			if _, ok := sv.(string); !ok {
				return v
			}
			subkeys = append(subkeys, sk)
		}
		sort.Strings(subkeys)
		sections := make([]string, 0, len(subkeys))
		for _, sk := range subkeys {
			sections = append(sections, fmt.Sprintf("## %s\n\n%s", sk, val[sk]))
		}
		return strings.Join(sections, "\n\n")

	default:
		return v
	}
}

// normalizeReferenceList parses bare string elements of a reference list
// into citation objects. Elements that already are objects pass through.
func normalizeReferenceList(v any) any {
	var items []any
	switch val := v.(type) {
	case []any:
		items = val
	case []string:
		items = make([]any, len(val))
		for i, s := range val {
			items[i] = s
		}
	default:
		return v
	}

	out := make([]any, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, CandidateToRecord(bibliography.ParseCitationString(s)))
			continue
		}
		out = append(out, item)
	}
	return out
}

// CandidateToRecord renders a candidate as a plain map so the
// stage record stays JSON-serializable without type registration. Empty
// fields are omitted.
func CandidateToRecord(c types.BibliographyCandidate) map[string]any {
	rec := map[string]any{}
	set := func(k, v string) {
		if v != "" {
			rec[k] = v
		}
	}
	set("title", c.Title)
	set("authors", c.Authors)
	set("year", c.Year)
	set("url", c.URL)
	set("doi", c.DOI)
	set("inTextCitation", c.InTextCitation)
	set("fullReference", c.FullReference)
	set("publishedAt", c.PublishedAt)
	return rec
}

// CandidateFromRecord reads a stored reference element back into a
// candidate. Bare strings are re-parsed; unknown shapes yield an empty
// candidate.
func CandidateFromRecord(v any) types.BibliographyCandidate {
	switch val := v.(type) {
	case string:
		return bibliography.ParseCitationString(val)
	case map[string]any:
		str := func(k string) string {
			s, _ := val[k].(string)
			return s
		}
		return types.BibliographyCandidate{
			Title:          str("title"),
			Authors:        str("authors"),
			Year:           str("year"),
			URL:            str("url"),
			DOI:            str("doi"),
			InTextCitation: str("inTextCitation"),
			FullReference:  str("fullReference"),
			PublishedAt:    str("publishedAt"),
		}
	default:
		return types.BibliographyCandidate{}
	}
}

// countMissingURLs counts reference elements without a non-empty url.
// Informational only: fabricated references tend to lack a locator.
func countMissingURLs(v any) int {
	items, ok := v.([]any)
	if !ok {
		return 0
	}
	missing := 0
	for _, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			missing++
			continue
		}
		if url, _ := rec["url"].(string); strings.TrimSpace(url) == "" {
			missing++
		}
	}
	return missing
}

// truncateField applies the per-key length cap: ringkasan and
// ringkasanDetail carry their own caps, the exempt keys none, everything
// else the general cap. Truncation is rune-based.
func truncateField(key, s string, cfg types.GuardConfig) (string, bool) {
	var limit int
	switch {
	case key == "ringkasan":
		limit = cfg.RingkasanMax
	case key == "ringkasanDetail":
		limit = cfg.RingkasanDetailMax
	case noTruncateKeys[key]:
		return s, false
	default:
		limit = cfg.MaxFieldLength
	}

	runes := []rune(s)
	if len(runes) <= limit {
		return s, false
	}
	return string(runes[:limit]), true
}
