// Package relmap builds relationship maps: for each predicate, the concepts
// related to each subject concept, derived from the OMOP concept_relationship
// table.
package relmap

import (
	"sort"
	"strings"

	vocab "github.com/c360studio/omop2owl/vocabulary/omop"
)

// Predicate is a CURIE identifying a relationship type in the output
// ontology, e.g. "rdfs:subClassOf" or "omoprel:Maps_to".
type Predicate string

// All is the relationship request meaning every label present in the table.
const All = vocab.RelAll

// Replacement substitutes every occurrence of Old with New.
type Replacement struct {
	Old string `yaml:"old"`
	New string `yaml:"new"`
}

// Config controls how relationship labels become predicates. A Config is a
// value; Build never mutates it.
type Config struct {
	// Namespace is the CURIE prefix of sanitized predicates.
	Namespace string

	// Replacements is applied in order by Sanitize.
	Replacements []Replacement

	// Fallback replaces any character still outside the allowed set after
	// Replacements are applied.
	Fallback string

	// Canonical maps labels onto predicates, keeping direction.
	Canonical map[string]Predicate

	// Inverse maps labels onto predicates with subject and object swapped.
	// Takes precedence over Canonical for the same label.
	Inverse map[string]Predicate

	// Order compares raw labels and fixes the processing order. Nil means
	// strings.Compare.
	Order func(a, b string) int
}

// DefaultReplacements returns the character substitution table for CURIE
// local names. Allowed characters are letters, digits and ":_-.".
func DefaultReplacements() []Replacement {
	reps := []Replacement{
		{" ", "_"}, {"\t", "_"}, {"\n", "_"}, {",", "_"}, {"|", "_"}, {";", "_"},
		{"/", "."}, {"\\", "."},
	}
	for _, c := range []string{"~", "`", "!", "@", "#", "$", "%", "^", "*", "+", "=", "?", "'", `"`, "(", ")", "[", "]", "{", "}", "<", ">"} {
		reps = append(reps, Replacement{Old: c, New: "-"})
	}
	return reps
}

// DefaultConfig returns the standard OMOP predicate configuration.
func DefaultConfig() Config {
	canonical := make(map[string]Predicate)
	for label, p := range vocab.DefaultCanonicalPredicates() {
		canonical[label] = Predicate(p)
	}
	inverse := make(map[string]Predicate)
	for label, p := range vocab.DefaultInversePredicates() {
		inverse[label] = Predicate(p)
	}
	return Config{
		Namespace:    vocab.PrefixRelation,
		Replacements: DefaultReplacements(),
		Fallback:     "-",
		Canonical:    canonical,
		Inverse:      inverse,
	}
}

// Conflicts returns the labels present in both Canonical and Inverse, sorted.
// For these labels the inverse mapping wins.
func (c Config) Conflicts() []string {
	var out []string
	for label := range c.Canonical {
		if _, ok := c.Inverse[label]; ok {
			out = append(out, label)
		}
	}
	sort.Strings(out)
	return out
}

// Sanitize converts a raw relationship label into a CURIE local name.
// The result only contains letters, digits and ":_-."; applying Sanitize
// to its own output returns it unchanged.
func (c Config) Sanitize(label string) string {
	s := label
	for _, r := range c.Replacements {
		if r.Old == "" {
			continue
		}
		s = strings.ReplaceAll(s, r.Old, r.New)
	}
	fallback := c.Fallback
	if fallback == "" || strings.IndexFunc(fallback, func(r rune) bool { return !allowed(r) }) >= 0 {
		fallback = "-"
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if allowed(r) {
			sb.WriteRune(r)
		} else {
			sb.WriteString(fallback)
		}
	}
	return sb.String()
}

func allowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == ':', r == '_', r == '-', r == '.':
		return true
	}
	return false
}

// Resolve returns the predicate for a raw label and whether edges of that
// label are inverted.
func (c Config) Resolve(label string) (Predicate, bool) {
	if p, ok := c.Inverse[label]; ok {
		return p, true
	}
	if p, ok := c.Canonical[label]; ok {
		return p, false
	}
	ns := c.Namespace
	if ns == "" {
		ns = vocab.PrefixRelation
	}
	return Predicate(ns + ":" + c.Sanitize(label)), false
}

func (c Config) compare(a, b string) int {
	if c.Order != nil {
		return c.Order(a, b)
	}
	return strings.Compare(a, b)
}
