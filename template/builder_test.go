package template

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/omop2owl/omop"
	"github.com/c360studio/omop2owl/relmap"
)

func fixture(t *testing.T) (*omop.ConceptTable, *relmap.Map) {
	t.Helper()
	concepts, err := omop.NewConceptTable([]omop.Concept{
		{ID: "1", Name: "A", DomainID: "Condition", VocabularyID: "V1", ConceptClassID: "Clinical Finding", StandardConcept: "S", ConceptCode: "c1", ValidStartDate: "1970-01-01", ValidEndDate: "2099-12-31"},
		{ID: "2", Name: "B", DomainID: "Condition", VocabularyID: "V1", ConceptClassID: "Clinical Finding", StandardConcept: "S", ConceptCode: "c2", ValidStartDate: "1970-01-01", ValidEndDate: "2099-12-31"},
		{ID: "3", Name: "C", DomainID: "Drug", VocabularyID: "V2", ConceptClassID: "Ingredient", ConceptCode: "c3", ValidStartDate: "1970-01-01", ValidEndDate: "2099-12-31", InvalidReason: "U"},
	})
	require.NoError(t, err)

	rels := []omop.Relationship{
		{ConceptID1: "1", ConceptID2: "2", RelationshipID: "Is a"},
		{ConceptID1: "3", ConceptID2: "1", RelationshipID: "Maps to"},
		{ConceptID1: "3", ConceptID2: "2", RelationshipID: "Maps to"},
		{ConceptID1: "3", ConceptID2: "999", RelationshipID: "Has brand name"},
	}
	m, err := relmap.Build(rels, []string{relmap.All}, concepts.IDs(), relmap.DefaultConfig())
	require.NoError(t, err)
	return concepts, m
}

func TestColumns(t *testing.T) {
	_, m := fixture(t)

	cols := Columns(m)
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	assert.Equal(t, []string{
		"ID", "Label", "Type",
		"domain_id", "vocabulary_id", "concept_class_id", "standard_concept", "concept_code",
		"valid_start_date", "valid_end_date", "invalid_reason",
		"rdfs:subClassOf", "omoprel:Has_brand_name", "omoprel:Maps_to",
	}, names)

	assert.Equal(t, "ID", cols[0].Directive)
	assert.Equal(t, "A rdfs:label", cols[1].Directive)
	assert.Equal(t, "TYPE", cols[2].Directive)
	assert.Equal(t, "A OMOP:domain_id", cols[3].Directive)
	assert.Equal(t, "SC % SPLIT=|", cols[11].Directive)
	assert.Equal(t, "A omoprel:Maps_to SPLIT=|", cols[13].Directive)
}

func TestColumnsAlwaysIncludeSubClassOf(t *testing.T) {
	m, err := relmap.Build(nil, []string{"Maps to"}, omop.IDSet{}, relmap.DefaultConfig())
	require.NoError(t, err)

	cols := Columns(m)
	assert.Equal(t, "rdfs:subClassOf", cols[11].Name)
	assert.Equal(t, "omoprel:Maps_to", cols[12].Name)
	assert.Len(t, cols, 13)
}

func TestBuildRecords(t *testing.T) {
	concepts, m := fixture(t)

	batch := Build(concepts, m)
	require.Len(t, batch.Records, 3)

	first := batch.Records[0]
	v, _ := batch.Value(first, "ID")
	assert.Equal(t, "OMOP:1", v)
	v, _ = batch.Value(first, "Type")
	assert.Equal(t, "class", v)
	v, _ = batch.Value(first, "rdfs:subClassOf")
	assert.Equal(t, "OMOP:2", v)
	v, _ = batch.Value(first, "omoprel:Maps_to")
	assert.Equal(t, "", v)

	third := batch.Records[2]
	v, _ = batch.Value(third, "omoprel:Maps_to")
	assert.Equal(t, "OMOP:1|OMOP:2", v)
	v, _ = batch.Value(third, "omoprel:Has_brand_name")
	assert.Equal(t, "OMOP:999", v, "dangling references are encoded as is")
	v, _ = batch.Value(third, "invalid_reason")
	assert.Equal(t, "U", v)
	v, _ = batch.Value(third, "rdfs:subClassOf")
	assert.Equal(t, "", v)

	for _, rec := range batch.Records {
		assert.Len(t, rec, len(batch.Columns))
	}
}

func TestBuildOnlySurvivingConcepts(t *testing.T) {
	concepts, m := fixture(t)
	subset := concepts.Select(func(c omop.Concept) bool { return c.VocabularyID == "V2" })

	batch := Build(subset, m)

	require.Len(t, batch.Records, 1)
	v, _ := batch.Value(batch.Records[0], "ID")
	assert.Equal(t, "OMOP:3", v)
	assert.Equal(t, Columns(m), batch.Columns, "partitions share the column set of the global map")
}

func TestWriteTSVIsDeterministic(t *testing.T) {
	concepts, m := fixture(t)

	var a, b bytes.Buffer
	require.NoError(t, WriteTSV(&a, Build(concepts, m)))
	require.NoError(t, WriteTSV(&b, Build(concepts, m)))

	assert.Equal(t, a.Bytes(), b.Bytes())

	lines := strings.Split(strings.TrimSuffix(a.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "ID\tLabel\tType\tdomain_id"))
	assert.True(t, strings.HasPrefix(lines[1], "ID\tA rdfs:label\tTYPE\tA OMOP:domain_id"))
	assert.Equal(t,
		"OMOP:1\tA\tclass\tCondition\tV1\tClinical Finding\tS\tc1\t1970-01-01\t2099-12-31\t\tOMOP:2\t\t",
		lines[2])
}
