// Package match implements the wildcard patterns used by search and shell
// completion. Two metacharacters are recognised: '*' matches any run of
// characters (including none) and '?' matches exactly one character.
// Matching is anchored: the whole candidate must be consumed.
package match

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Separator splits a compound "vault/secret" pattern.
const Separator = "/"

// ErrInvalidPattern is returned by Split for patterns with more than one separator.
var ErrInvalidPattern = errors.New("pattern may contain at most one '/' separator")

// Match reports whether candidate matches pattern.
func Match(pattern, candidate string) bool {
	// Greedy scan with a single backtrack point at the last '*'.
	p, c := 0, 0
	starP, starC := -1, 0
	for c < len(candidate) {
		if p < len(pattern) {
			pr, pw := utf8.DecodeRuneInString(pattern[p:])
			_, cw := utf8.DecodeRuneInString(candidate[c:])
			switch {
			case pr == '*':
				starP, starC = p, c
				p += pw
				continue
			case pr == '?' || pattern[p:p+pw] == candidate[c:c+cw]:
				p += pw
				c += cw
				continue
			}
		}
		if starP < 0 {
			return false
		}
		// Let the last '*' swallow one more rune and retry.
		_, w := utf8.DecodeRuneInString(candidate[starC:])
		starC += w
		c = starC
		p = starP + 1
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}

// HasWildcard reports whether pattern contains a metacharacter.
func HasWildcard(pattern string) bool {
	return strings.ContainsAny(pattern, "*?")
}

// Split breaks a pattern into its vault and secret components. compound is
// false when pattern has no separator, in which case vaultPattern is the
// whole pattern. An empty side of a compound pattern means "anything".
func Split(pattern string) (vaultPattern, secretPattern string, compound bool, err error) {
	switch strings.Count(pattern, Separator) {
	case 0:
		return pattern, "", false, nil
	case 1:
		vaultPattern, secretPattern, _ = strings.Cut(pattern, Separator)
		if vaultPattern == "" {
			vaultPattern = "*"
		}
		if secretPattern == "" {
			secretPattern = "*"
		}
		return vaultPattern, secretPattern, true, nil
	default:
		return "", "", false, ErrInvalidPattern
	}
}
