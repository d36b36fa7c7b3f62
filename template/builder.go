// Package template assembles ROBOT template batches: one row per concept with
// its attributes and the related concepts of every predicate.
package template

import (
	"strings"

	"github.com/c360studio/omop2owl/omop"
	"github.com/c360studio/omop2owl/relmap"
	vocab "github.com/c360studio/omop2owl/vocabulary/omop"
)

// Fixed column names.
const (
	ColumnID    = "ID"
	ColumnLabel = "Label"
	ColumnType  = "Type"
)

// Column is a template column with its ROBOT directive.
type Column struct {
	Name      string
	Directive string
	predicate relmap.Predicate
}

// Record is one template row; values are aligned with Batch.Columns.
type Record []string

// Batch is a set of records sharing one column set.
type Batch struct {
	Columns []Column
	Records []Record
}

// Columns returns the column set for a relationship map: the concept
// attributes, rdfs:subClassOf (always present), then every other predicate
// of the map in map order.
func Columns(m *relmap.Map) []Column {
	cols := []Column{
		{Name: ColumnID, Directive: vocab.DirectiveID},
		{Name: ColumnLabel, Directive: vocab.AnnotationDirective(vocab.Label)},
		{Name: ColumnType, Directive: vocab.DirectiveType},
	}
	for _, attr := range vocab.Attributes {
		cols = append(cols, Column{
			Name:      attr,
			Directive: vocab.AnnotationDirective(vocab.PrefixConcept + ":" + attr),
		})
	}
	cols = append(cols, Column{
		Name:      vocab.SubClassOf,
		Directive: vocab.DirectiveSubClassSplit,
		predicate: relmap.Predicate(vocab.SubClassOf),
	})
	for _, p := range m.Predicates() {
		if string(p) == vocab.SubClassOf {
			continue
		}
		cols = append(cols, Column{
			Name:      string(p),
			Directive: vocab.SplitAnnotationDirective(string(p)),
			predicate: p,
		})
	}
	return cols
}

// Build produces one record per concept, in concept table order. The column
// set is derived from the whole map before any record is emitted, so every
// record of the batch carries the same columns. Concepts sharing one map can
// be built in separate batches with identical columns.
func Build(concepts *omop.ConceptTable, m *relmap.Map) Batch {
	cols := Columns(m)
	batch := Batch{Columns: cols, Records: make([]Record, 0, concepts.Len())}
	for _, c := range concepts.Rows() {
		batch.Records = append(batch.Records, record(cols, c, m))
	}
	return batch
}

func record(cols []Column, c omop.Concept, m *relmap.Map) Record {
	rec := make(Record, len(cols))
	for i, col := range cols {
		switch col.Name {
		case ColumnID:
			rec[i] = vocab.ConceptCURIE(c.ID)
		case ColumnLabel:
			rec[i] = c.Name
		case ColumnType:
			rec[i] = vocab.EntityTypeClass
		case vocab.AttrDomainID:
			rec[i] = c.DomainID
		case vocab.AttrVocabularyID:
			rec[i] = c.VocabularyID
		case vocab.AttrConceptClassID:
			rec[i] = c.ConceptClassID
		case vocab.AttrStandardConcept:
			rec[i] = c.StandardConcept
		case vocab.AttrConceptCode:
			rec[i] = c.ConceptCode
		case vocab.AttrValidStartDate:
			rec[i] = c.ValidStartDate
		case vocab.AttrValidEndDate:
			rec[i] = c.ValidEndDate
		case vocab.AttrInvalidReason:
			rec[i] = c.InvalidReason
		default:
			rec[i] = joinCURIEs(m.Related(col.predicate, c.ID))
		}
	}
	return rec
}

func joinCURIEs(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	curies := make([]string, len(ids))
	for i, id := range ids {
		curies[i] = vocab.ConceptCURIE(id)
	}
	return strings.Join(curies, vocab.ValueSeparator)
}

// Value returns the value of the named column in rec.
func (b Batch) Value(rec Record, column string) (string, bool) {
	for i, col := range b.Columns {
		if col.Name == column {
			return rec[i], true
		}
	}
	return "", false
}
