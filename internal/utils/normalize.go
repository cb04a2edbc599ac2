package utils

import "strings"

// NormalizeName reduces a person name to its canonical lowercase alphanumeric
// form: "Robert De Niro" -> "robertdeniro". The same reduction is applied to
// stored names at sync time (people.search_name), so spacing, casing and
// punctuation differences never cause a missed match. Characters outside
// [a-z0-9] are dropped entirely, mirroring the SQL
// regexp_replace(lower(x), '[^a-z0-9]', '', 'g') used by the synchronizer.
func NormalizeName(raw string) string {
	lower := strings.ToLower(raw)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePatterns normalizes, de-duplicates and drops empty actor-name
// patterns, preserving input order.
func NormalizePatterns(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		p := NormalizeName(r)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
