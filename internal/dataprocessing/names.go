package dataprocessing

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CanonicalName applies NFKC normalization, trims the name and collapses
// internal whitespace runs to a single space.
func CanonicalName(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

// aliasKey is the lookup form of a name: canonical and case-folded
func aliasKey(s string) string {
	return strings.ToLower(CanonicalName(s))
}

// aliasTable maps lookup keys to canonical display names
type aliasTable map[string]string

func newAliasTable(aliases map[string]string) aliasTable {
	table := make(aliasTable, len(aliases))
	for raw, canonical := range aliases {
		table[aliasKey(raw)] = CanonicalName(canonical)
	}
	return table
}

// resolve returns the canonical name for s. Unknown names pass through in
// their canonical form.
func (a aliasTable) resolve(s string) string {
	name := CanonicalName(s)
	if name == "" {
		return ""
	}
	if canonical, ok := a[strings.ToLower(name)]; ok {
		return canonical
	}
	return name
}

// keySet is a set of aliasKey values
type keySet map[string]struct{}

func newKeySet(values []string) keySet {
	set := make(keySet, len(values))
	for _, v := range values {
		set[aliasKey(v)] = struct{}{}
	}
	return set
}

func (s keySet) has(v string) bool {
	_, ok := s[aliasKey(v)]
	return ok
}
