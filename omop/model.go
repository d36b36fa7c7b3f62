// Package omop provides the OMOP vocabulary table model, CSV readers and the
// concept filter that selects which concepts become ontology classes.
package omop

import (
	"fmt"

	"github.com/c360studio/omop2owl/errs"
)

// Concept is one row of the OMOP concept table. All fields are kept as
// opaque text; identifiers and dates are never parsed.
type Concept struct {
	ID              string `json:"concept_id"`
	Name            string `json:"concept_name"`
	DomainID        string `json:"domain_id"`
	VocabularyID    string `json:"vocabulary_id"`
	ConceptClassID  string `json:"concept_class_id"`
	StandardConcept string `json:"standard_concept"`
	ConceptCode     string `json:"concept_code"`
	ValidStartDate  string `json:"valid_start_date"`
	ValidEndDate    string `json:"valid_end_date"`
	InvalidReason   string `json:"invalid_reason"`
}

// Relationship is one row of the OMOP concept_relationship table.
type Relationship struct {
	ConceptID1     string `json:"concept_id_1"`
	ConceptID2     string `json:"concept_id_2"`
	RelationshipID string `json:"relationship_id"`
	ValidStartDate string `json:"valid_start_date"`
	ValidEndDate   string `json:"valid_end_date"`
	InvalidReason  string `json:"invalid_reason"`
}

// Active reports whether the relationship has not been invalidated.
func (r Relationship) Active() bool {
	return r.InvalidReason == ""
}

// IDSet is a set of concept identifiers.
type IDSet map[string]struct{}

// Has reports whether id is in the set.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id into the set.
func (s IDSet) Add(id string) {
	s[id] = struct{}{}
}

// ConceptTable holds concepts in input order with an identifier index.
type ConceptTable struct {
	rows  []Concept
	index map[string]int
}

// NewConceptTable builds a table from rows, rejecting duplicate identifiers.
func NewConceptTable(rows []Concept) (*ConceptTable, error) {
	t := &ConceptTable{
		rows:  make([]Concept, 0, len(rows)),
		index: make(map[string]int, len(rows)),
	}
	for i, c := range rows {
		if _, dup := t.index[c.ID]; dup {
			return nil, errs.WrapData(fmt.Errorf("%w: %s (row %d)", errs.ErrDuplicateConcept, c.ID, i+1), "omop", "NewConceptTable")
		}
		t.index[c.ID] = len(t.rows)
		t.rows = append(t.rows, c)
	}
	return t, nil
}

// Len returns the number of concepts.
func (t *ConceptTable) Len() int {
	return len(t.rows)
}

// Rows returns the concepts in input order. The slice must not be modified.
func (t *ConceptTable) Rows() []Concept {
	return t.rows
}

// Get returns the concept with the given identifier.
func (t *ConceptTable) Get(id string) (Concept, bool) {
	i, ok := t.index[id]
	if !ok {
		return Concept{}, false
	}
	return t.rows[i], true
}

// IDs returns the set of identifiers in the table.
func (t *ConceptTable) IDs() IDSet {
	ids := make(IDSet, len(t.rows))
	for _, c := range t.rows {
		ids.Add(c.ID)
	}
	return ids
}

// Select returns a new table with the rows for which keep returns true,
// preserving order.
func (t *ConceptTable) Select(keep func(Concept) bool) *ConceptTable {
	out := &ConceptTable{index: make(map[string]int)}
	for _, c := range t.rows {
		if keep(c) {
			out.index[c.ID] = len(out.rows)
			out.rows = append(out.rows, c)
		}
	}
	return out
}
