package cache

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Key Vault treats vault names case-insensitively; secret names are kept
// exactly as reported. Everything that compares names goes through these
// helpers so the store, the synchronizer and the query engine agree.

// VaultKey returns the comparison key for a vault name.
func VaultKey(name string) string {
	return strings.ToLower(name)
}

// SecretKey returns the comparison key for a secret name.
func SecretKey(name string) string {
	return name
}

// ValidName reports whether name can be stored. Names must be non-empty and
// valid UTF-8 free of path separators, whitespace and control characters so
// that every cached name is a single token in completion output.
func ValidName(name string) bool {
	if name == "" || !utf8.ValidString(name) {
		return false
	}
	for _, r := range name {
		if r == '/' || unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// SortVaultNames orders vault names by comparison key, falling back to the
// exact spelling so the order is total.
func SortVaultNames(names []string) {
	sort.Slice(names, func(i, j int) bool {
		ki, kj := VaultKey(names[i]), VaultKey(names[j])
		if ki != kj {
			return ki < kj
		}
		return names[i] < names[j]
	})
}
