// Package analysis reduces AS paths, finds border crossings, and
// classifies border ASNs into the six-category license-aware model.
package analysis

import "strings"

// CleanPath normalizes one raw AS path: non-numeric tokens are dropped and
// consecutive duplicates are collapsed to one, so AS-path prepending
// neither inflates path length nor looks like extra hops. Non-adjacent
// repeats (loops) are preserved.
func CleanPath(raw []string) []string {
	path := make([]string, 0, len(raw))
	for _, tok := range raw {
		s := strings.TrimSpace(tok)
		if !isDigits(s) {
			continue
		}
		if len(path) > 0 && path[len(path)-1] == s {
			continue
		}
		path = append(path, s)
	}
	return path
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
