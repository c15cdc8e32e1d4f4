// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bibliography

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/paper-engine/pkg/types"
)

// weakCitationRe matches placeholder citation text produced by upstream
// drafting when the author or year was unknown.
var weakCitationRe = regexp.MustCompile(`(?i)unknown\s+author|anonymous|\bn\.d\.`)

// isWeak reports whether a citation string is missing or a placeholder.
// Merge prefers strong values over weak ones.
func isWeak(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || weakCitationRe.MatchString(s)
}

// firstAuthorSurname extracts the leading author's surname from an author
// span. "Rahmat, A. & Sari, D." yields "Rahmat"; "Andi Rahmat" yields
// "Rahmat". Returns empty when nothing resolvable remains.
func firstAuthorSurname(authors string) string {
	a := cleanSpace(authors)
	if a == "" || weakCitationRe.MatchString(a) {
		return ""
	}

	// Cut to the first author.
	for _, sep := range []string{" & ", " dan ", " and ", ";"} {
		if i := strings.Index(a, sep); i >= 0 {
			a = a[:i]
		}
	}
	if i := strings.Index(a, " et al"); i >= 0 {
		a = a[:i]
	}
	a = strings.TrimSpace(a)

	// "Surname, Initials" form.
	if i := strings.Index(a, ","); i >= 0 {
		return strings.TrimSpace(a[:i])
	}
	// "Given Surname" form: last token.
	fields := strings.Fields(a)
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[len(fields)-1], ".")
}

// synthesizeInText builds an in-text citation for an entry that lacks one:
// (Surname, Year), or ("Title", n.d./Year) when no author is resolvable.
func synthesizeInText(e types.CompiledEntry) string {
	year := e.Year
	if year == "" {
		year = "n.d."
	}
	if surname := firstAuthorSurname(e.Authors); surname != "" {
		return fmt.Sprintf("(%s, %s)", surname, year)
	}
	return fmt.Sprintf("(%q, %s)", e.Title, year)
}

// synthesizeFullReference builds a reference-list entry for an entry that
// lacks one: Authors (Year). Title. Locator — the DOI when known, else
// the URL.
func synthesizeFullReference(e types.CompiledEntry) string {
	var b strings.Builder

	if a := cleanSpace(e.Authors); a != "" {
		b.WriteString(a)
		b.WriteString(" ")
	}
	if e.Year != "" {
		fmt.Fprintf(&b, "(%s). ", e.Year)
	} else {
		b.WriteString("(n.d.). ")
	}
	if e.Title != "" {
		b.WriteString(strings.TrimRight(e.Title, ".") + ". ")
	}
	switch {
	case e.DOI != "":
		b.WriteString("https://doi.org/" + e.DOI)
	case e.URL != "":
		b.WriteString(e.URL)
	}
	return strings.TrimSpace(b.String())
}
