// Package export renders template batches directly as RDF, without ROBOT.
// The output is a preview of the classes and annotations ROBOT would produce
// from the same batch.
package export

import (
	"fmt"
	"os"
	"strings"

	"github.com/c360studio/omop2owl/template"
	vocab "github.com/c360studio/omop2owl/vocabulary/omop"
)

// Format specifies the output serialization format.
type Format string

const (
	// FormatTurtle produces Turtle (.ttl) output.
	FormatTurtle Format = "turtle"

	// FormatNTriples produces N-Triples (.nt) output.
	FormatNTriples Format = "ntriples"
)

// statement is a predicate/object pair of one class.
type statement struct {
	predicate string
	object    string
	literal   bool
}

// Exporter exports template batches as RDF.
type Exporter struct {
	ontologyIRI string
	prefixes    map[string]string
}

// NewExporter creates an exporter. prefixes are used to expand CURIEs found
// in the batch; rdf, rdfs and owl are always known.
func NewExporter(ontologyIRI string, prefixes map[string]string) *Exporter {
	all := map[string]string{
		"rdf":  vocab.RDF,
		"rdfs": vocab.RDFS,
		"owl":  vocab.OWL,
	}
	for k, v := range prefixes {
		all[k] = v
	}
	return &Exporter{ontologyIRI: ontologyIRI, prefixes: all}
}

// Export serializes the batch to the specified format.
func (e *Exporter) Export(b template.Batch, format Format) (string, error) {
	switch format {
	case FormatTurtle:
		return e.toTurtle(b), nil
	case FormatNTriples:
		return e.toNTriples(b), nil
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// ExportFile writes the batch to path in the given format.
func (e *Exporter) ExportFile(b template.Batch, format Format, path string) error {
	out, err := e.Export(b, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		return fmt.Errorf("write %s export: %w", format, err)
	}
	return nil
}

func (e *Exporter) toTurtle(b template.Batch) string {
	w := NewTurtleWriter(e.prefixes)
	w.WritePrefixes()

	w.WriteSubject(e.ontologyIRI)
	w.WriteType(vocab.OWLOntology, true)
	w.WriteBlank()

	for _, rec := range b.Records {
		subject, stmts := e.statements(b, rec)
		w.WriteSubject(subject)
		w.WriteType(vocab.OWLClass, len(stmts) == 0)
		for i, st := range stmts {
			last := i == len(stmts)-1
			if st.literal {
				w.WriteLiteral(st.predicate, st.object, last)
			} else {
				w.WriteIRI(st.predicate, st.object, last)
			}
		}
		w.WriteBlank()
	}
	return w.String()
}

func (e *Exporter) toNTriples(b template.Batch) string {
	w := NewNTriplesWriter()
	w.WriteIRI(e.ontologyIRI, vocab.RDFType, vocab.OWLOntology)
	for _, rec := range b.Records {
		subject, stmts := e.statements(b, rec)
		w.WriteIRI(subject, vocab.RDFType, vocab.OWLClass)
		for _, st := range stmts {
			if st.literal {
				w.WriteLiteral(subject, st.predicate, st.object)
			} else {
				w.WriteIRI(subject, st.predicate, st.object)
			}
		}
	}
	return w.String()
}

// statements converts one record into its subject IRI and statements,
// following the column directives: subclass cells become one IRI statement
// per parent, annotation cells become literals (one per value when split).
// Empty cells are skipped.
func (e *Exporter) statements(b template.Batch, rec template.Record) (string, []statement) {
	var subject string
	var stmts []statement
	for i, col := range b.Columns {
		value := rec[i]
		switch {
		case col.Directive == vocab.DirectiveID:
			subject = e.expand(value)
		case col.Directive == vocab.DirectiveType, value == "":
		case col.Directive == vocab.DirectiveSubClassSplit:
			for _, v := range strings.Split(value, vocab.ValueSeparator) {
				stmts = append(stmts, statement{predicate: vocab.RDFSSubClassOf, object: e.expand(v)})
			}
		case strings.HasSuffix(col.Directive, " SPLIT="+vocab.ValueSeparator):
			// A directives annotate with literals; the CURIE text is kept as is.
			pred := e.expand(strings.TrimSuffix(strings.TrimPrefix(col.Directive, "A "), " SPLIT="+vocab.ValueSeparator))
			for _, v := range strings.Split(value, vocab.ValueSeparator) {
				stmts = append(stmts, statement{predicate: pred, object: v, literal: true})
			}
		case strings.HasPrefix(col.Directive, "A "):
			stmts = append(stmts, statement{
				predicate: e.expand(strings.TrimPrefix(col.Directive, "A ")),
				object:    value,
				literal:   true,
			})
		}
	}
	return subject, stmts
}

// expand turns a CURIE into an IRI using the known prefixes. Unknown
// prefixes are returned unchanged.
func (e *Exporter) expand(curie string) string {
	prefix, local, ok := strings.Cut(curie, ":")
	if !ok {
		return curie
	}
	ns, known := e.prefixes[prefix]
	if !known {
		return curie
	}
	return ns + local
}
