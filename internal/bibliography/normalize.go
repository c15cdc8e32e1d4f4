// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bibliography compiles raw citation candidates harvested across
// stages into a deduplicated, merged, enriched reference list.
// normalize.go handles canonicalization and best-effort citation parsing.
package bibliography

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/pdiddy/paper-engine/pkg/types"
)

// trackingParams are query parameters stripped during URL normalization.
// utm_* is matched by prefix.
var trackingParams = map[string]bool{
	"fbclid":   true,
	"gclid":    true,
	"msclkid":  true,
	"mc_cid":   true,
	"mc_eid":   true,
	"ref":      true,
	"ref_src":  true,
	"igshid":   true,
	"spm":      true,
	"_ga":      true,
}

var (
	// yearRe matches a plausible publication year, parenthesized or bare.
	yearRe = regexp.MustCompile(`\(?((?:19|20)\d{2})\)?`)

	// urlRe matches the first http(s) token in free text.
	urlRe = regexp.MustCompile(`https?://[^\s<>"']+`)

	// authorSpanRe matches an author block preceding "(Year)." at the
	// start of a citation string, e.g. "Rahmat, A. & Sari, D. (2021).".
	authorSpanRe = regexp.MustCompile(`^(.+?)\s*\(((?:19|20)\d{2})\)\s*\.`)

	// doiPrefixRe strips resolver prefixes from a DOI.
	doiPrefixRe = regexp.MustCompile(`(?i)^(?:https?://(?:dx\.)?doi\.org/|doi:\s*)`)

	// punctRe strips punctuation when building fallback dedup keys.
	punctRe = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

	// spaceRe collapses runs of whitespace.
	spaceRe = regexp.MustCompile(`\s+`)
)

// NormalizeURL canonicalizes a URL for deduplication: lowercases the
// scheme and host, strips tracking query parameters, the fragment, and
// any trailing slash. Unparseable input is returned trimmed.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(raw, "/")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for param := range q {
		if trackingParams[param] || strings.HasPrefix(strings.ToLower(param), "utm_") {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()

	u.Path = strings.TrimSuffix(u.Path, "/")
	return strings.TrimSuffix(u.String(), "/")
}

// NormalizeDOI strips resolver prefixes (https://doi.org/, doi:) and
// lowercases the identifier.
func NormalizeDOI(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	return strings.ToLower(doiPrefixRe.ReplaceAllString(raw, ""))
}

// ParseCitationString parses a bare reference string into a candidate
// using best-effort heuristics: a 4-digit year (1900-2099), the first
// http(s) URL with trailing punctuation stripped, an author span
// preceding "(Year)." and the remaining text as title. Any field that
// fails to parse is left empty; title falls back to the raw string.
func ParseCitationString(raw string) types.BibliographyCandidate {
	raw = cleanSpace(raw)
	cand := types.BibliographyCandidate{Title: raw}
	if raw == "" {
		return types.BibliographyCandidate{}
	}

	rest := raw

	if m := urlRe.FindString(rest); m != "" {
		cand.URL = strings.TrimRight(m, ".,;:)]}'\"")
		// Title is taken from the text before any embedded URL.
		if i := strings.Index(rest, m); i >= 0 {
			rest = cleanSpace(rest[:i])
		}
	}

	if m := authorSpanRe.FindStringSubmatch(rest); m != nil {
		cand.Authors = cleanSpace(m[1])
		cand.Year = m[2]
		rest = cleanSpace(rest[len(m[0]):])
	} else if m := yearRe.FindStringSubmatch(rest); m != nil {
		cand.Year = m[1]
	}

	rest = strings.Trim(rest, " .")
	if rest != "" {
		cand.Title = rest
	}
	return cand
}

// deriveTitle resolves an entry title: the explicit field, else the text
// of the full reference, else the last URL path segment title-cased with
// hyphens turned into spaces.
func deriveTitle(c types.BibliographyCandidate) string {
	if t := cleanSpace(c.Title); t != "" {
		return t
	}
	if fr := cleanSpace(c.FullReference); fr != "" {
		parsed := ParseCitationString(fr)
		if parsed.Title != "" {
			return parsed.Title
		}
		return fr
	}
	if c.URL != "" {
		return titleFromURL(c.URL)
	}
	return ""
}

// titleFromURL builds a display title from the last URL path segment.
func titleFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return u.Host
	}
	seg := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		seg = path[i+1:]
	}
	// Drop a file extension if present.
	if i := strings.LastIndex(seg, "."); i > 0 {
		seg = seg[:i]
	}
	seg = strings.ReplaceAll(seg, "-", " ")
	seg = strings.ReplaceAll(seg, "_", " ")

	words := strings.Fields(seg)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// deriveYear resolves an entry year: the explicit field, else the first
// 4-digit year found in the full reference.
func deriveYear(c types.BibliographyCandidate) string {
	if y := strings.TrimSpace(c.Year); y != "" {
		return y
	}
	if m := yearRe.FindStringSubmatch(c.FullReference); m != nil {
		return m[1]
	}
	return ""
}

// cleanSpace trims and collapses internal whitespace.
func cleanSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// foldKey case-folds and strips punctuation for the title|authors|year
// fallback dedup key.
func foldKey(parts ...string) string {
	folded := make([]string, len(parts))
	for i, p := range parts {
		p = strings.ToLower(p)
		p = punctRe.ReplaceAllString(p, "")
		folded[i] = cleanSpace(p)
	}
	return strings.Join(folded, "|")
}
