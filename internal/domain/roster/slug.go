// Package roster builds team and judge records: slug ids, sign-in codes,
// seed plans and anonymized display names.
package roster

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxSlugLen  = 40
	defaultSlug = "team"
)

// Slugify derives a stable id from a team name: accents folded, lower case,
// runs of anything outside [a-z0-9] collapsed to one dash, dashes trimmed
// and the result capped at 40 characters.
func Slugify(name string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	dash := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		return defaultSlug
	}
	return slug
}

// UniqueSlug returns base, or base-2, base-3 ... whichever is not yet taken,
// and records it in taken.
func UniqueSlug(base string, taken Registry) string {
	candidate := base
	for n := 2; taken.SeenAndRecord(candidate); n++ {
		candidate = base + "-" + strconv.Itoa(n)
	}
	return candidate
}

// AnonymizedName masks a team as "Team " plus the first four characters of
// its id in upper case.
func AnonymizedName(teamID string) string {
	prefix := teamID
	if r := []rune(teamID); len(r) > 4 {
		prefix = string(r[:4])
	}
	return "Team " + strings.ToUpper(prefix)
}
