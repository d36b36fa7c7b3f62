// Package inspect summarizes produced artifacts: OWL (RDF/XML) files and
// SemanticSQL databases.
package inspect

import (
	"fmt"
	"io"
	"os"

	"github.com/knakk/rdf"

	vocab "github.com/c360studio/omop2owl/vocabulary/omop"
)

// OWLSummary describes an RDF/XML ontology file.
type OWLSummary struct {
	Path       string         `json:"path,omitempty"`
	Ontology   string         `json:"ontology,omitempty"`
	Triples    int            `json:"triples"`
	Classes    int            `json:"classes"`
	SubClassOf int            `json:"subclass_of"`
	Predicates map[string]int `json:"predicates"`
}

// SummarizeOWLFile summarizes the RDF/XML document at path.
func SummarizeOWLFile(path string) (OWLSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return OWLSummary{}, fmt.Errorf("open owl: %w", err)
	}
	defer f.Close()

	s, err := SummarizeOWL(f)
	if err != nil {
		return OWLSummary{}, fmt.Errorf("%s: %w", path, err)
	}
	s.Path = path
	return s, nil
}

// SummarizeOWL decodes an RDF/XML document and counts its triples, classes
// and subclass axioms, and the triples per predicate IRI.
func SummarizeOWL(r io.Reader) (OWLSummary, error) {
	s := OWLSummary{Predicates: make(map[string]int)}
	classes := make(map[string]struct{})

	dec := rdf.NewTripleDecoder(r, rdf.RDFXML)
	for {
		tr, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return OWLSummary{}, fmt.Errorf("decode rdf/xml: %w", err)
		}

		s.Triples++
		pred := tr.Pred.String()
		s.Predicates[pred]++

		switch {
		case pred == vocab.RDFType && tr.Obj.Type() == rdf.TermIRI && tr.Obj.String() == vocab.OWLClass:
			classes[tr.Subj.String()] = struct{}{}
		case pred == vocab.RDFType && tr.Obj.Type() == rdf.TermIRI && tr.Obj.String() == vocab.OWLOntology:
			s.Ontology = tr.Subj.String()
		case pred == vocab.RDFSSubClassOf:
			s.SubClassOf++
		}
	}
	s.Classes = len(classes)
	return s, nil
}
