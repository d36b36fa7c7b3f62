package omop

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/c360studio/omop2owl/errs"
)

// Required columns of the concept table.
var conceptColumns = []string{
	"concept_id",
	"concept_name",
	"domain_id",
	"vocabulary_id",
	"concept_class_id",
	"standard_concept",
	"concept_code",
	"valid_start_date",
	"valid_end_date",
	"invalid_reason",
}

// Required columns of the concept_relationship table.
var relationshipColumns = []string{
	"concept_id_1",
	"concept_id_2",
	"relationship_id",
	"valid_start_date",
	"valid_end_date",
	"invalid_reason",
}

// ReadConceptsFile reads a concept table from path.
func ReadConceptsFile(path string) (*ConceptTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open concept table: %w", err)
	}
	defer f.Close()

	t, err := ReadConcepts(f)
	if err != nil {
		return nil, fmt.Errorf("read concept table %s: %w", path, err)
	}
	return t, nil
}

// ReadConcepts reads a delimited concept table. The delimiter (comma or tab)
// is detected from the header line. Missing trailing values read as empty.
func ReadConcepts(r io.Reader) (*ConceptTable, error) {
	var rows []Concept
	err := readTable(r, conceptColumns, func(v []string) {
		rows = append(rows, Concept{
			ID:              v[0],
			Name:            v[1],
			DomainID:        v[2],
			VocabularyID:    v[3],
			ConceptClassID:  v[4],
			StandardConcept: v[5],
			ConceptCode:     v[6],
			ValidStartDate:  v[7],
			ValidEndDate:    v[8],
			InvalidReason:   v[9],
		})
	})
	if err != nil {
		return nil, err
	}
	return NewConceptTable(rows)
}

// ReadRelationshipsFile reads a concept_relationship table from path.
func ReadRelationshipsFile(path string) ([]Relationship, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open concept_relationship table: %w", err)
	}
	defer f.Close()

	rels, err := ReadRelationships(f)
	if err != nil {
		return nil, fmt.Errorf("read concept_relationship table %s: %w", path, err)
	}
	return rels, nil
}

// ReadRelationships reads a delimited concept_relationship table, including
// inactive rows. Callers filter with Relationship.Active.
func ReadRelationships(r io.Reader) ([]Relationship, error) {
	var rels []Relationship
	err := readTable(r, relationshipColumns, func(v []string) {
		rels = append(rels, Relationship{
			ConceptID1:     v[0],
			ConceptID2:     v[1],
			RelationshipID: v[2],
			ValidStartDate: v[3],
			ValidEndDate:   v[4],
			InvalidReason:  v[5],
		})
	})
	return rels, err
}

// readTable maps the named columns of each record onto a fixed-order slice
// and hands it to emit.
func readTable(r io.Reader, columns []string, emit func([]string)) error {
	br := bufio.NewReader(r)
	comma, err := sniffDelimiter(br)
	if err != nil {
		return err
	}

	cr := csv.NewReader(br)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return errs.WrapData(fmt.Errorf("%w: empty table", errs.ErrMissingColumn), "omop", "readTable")
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	positions := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		positions[name] = i
	}
	idx := make([]int, len(columns))
	for i, col := range columns {
		p, ok := positions[col]
		if !ok {
			return errs.WrapData(fmt.Errorf("%w: %s", errs.ErrMissingColumn, col), "omop", "readTable")
		}
		idx[i] = p
	}

	values := make([]string, len(columns))
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read record: %w", err)
		}
		for i, p := range idx {
			if p < len(record) {
				values[i] = record[p]
			} else {
				values[i] = ""
			}
		}
		emit(values)
	}
}

// sniffDelimiter peeks at the header line and picks tab when it contains
// tabs but no commas. Athena exports are tab separated despite the .csv name.
func sniffDelimiter(br *bufio.Reader) (rune, error) {
	line, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return 0, fmt.Errorf("peek header: %w", err)
	}
	head := string(line)
	if i := strings.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	if strings.Contains(head, "\t") && !strings.Contains(head, ",") {
		return '\t', nil
	}
	return ',', nil
}
