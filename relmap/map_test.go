package relmap

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/omop2owl/errs"
	"github.com/c360studio/omop2owl/omop"
)

func scope(ids ...string) omop.IDSet {
	s := make(omop.IDSet)
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func rel(subj, obj, label string) omop.Relationship {
	return omop.Relationship{ConceptID1: subj, ConceptID2: obj, RelationshipID: label}
}

func TestBuildIsADirect(t *testing.T) {
	rels := []omop.Relationship{rel("1", "2", "Is a")}

	m, err := Build(rels, []string{"Is a"}, scope("1", "2"), DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, []Predicate{"rdfs:subClassOf"}, m.Predicates())
	assert.Equal(t, []string{"2"}, m.Related("rdfs:subClassOf", "1"))
	assert.Empty(t, m.Related("rdfs:subClassOf", "2"))
}

func TestBuildInversion(t *testing.T) {
	rels := []omop.Relationship{rel("A", "B", "RxNorm inverse is a")}

	m, err := Build(rels, []string{"RxNorm inverse is a"}, scope("A", "B"), DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, m.Related("rdfs:subClassOf", "B"))
	assert.Empty(t, m.Related("rdfs:subClassOf", "A"))
}

func TestBuildExcludesInactiveRows(t *testing.T) {
	rels := []omop.Relationship{
		rel("1", "2", "Maps to"),
		{ConceptID1: "1", ConceptID2: "3", RelationshipID: "Maps to", InvalidReason: "D"},
		{ConceptID1: "1", ConceptID2: "4", RelationshipID: "Maps to", InvalidReason: "U"},
	}

	m, err := Build(rels, []string{"Maps to"}, scope("1", "2", "3", "4"), DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{"2"}, m.Related("omoprel:Maps_to", "1"))
}

func TestBuildScopeFiltersSubjectOnly(t *testing.T) {
	rels := []omop.Relationship{
		rel("1", "99", "Maps to"),
		rel("99", "1", "Maps to"),
	}

	m, err := Build(rels, []string{"Maps to"}, scope("1"), DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{"99"}, m.Related("omoprel:Maps_to", "1"), "dangling objects are kept")
	assert.Empty(t, m.Related("omoprel:Maps_to", "99"))
	assert.Equal(t, 1, m.Subjects("omoprel:Maps_to"))
}

func TestBuildPreservesOrderAndDuplicates(t *testing.T) {
	rels := []omop.Relationship{
		rel("1", "3", "Maps to"),
		rel("1", "2", "Maps to"),
		rel("1", "3", "Maps to"),
	}

	m, err := Build(rels, []string{"Maps to"}, scope("1"), DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{"3", "2", "3"}, m.Related("omoprel:Maps_to", "1"))
	assert.Equal(t, 3, m.Edges("omoprel:Maps_to"))
}

func TestBuildWildcardSortedByLabel(t *testing.T) {
	rels := []omop.Relationship{
		rel("1", "2", "Maps to"),
		rel("1", "2", "Has ingredient"),
		rel("1", "2", "Is a"),
		{ConceptID1: "1", ConceptID2: "2", RelationshipID: "Only inactive", InvalidReason: "D"},
	}

	m, err := Build(rels, []string{All}, scope("1", "2"), DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, []Predicate{"omoprel:Has_ingredient", "rdfs:subClassOf", "omoprel:Maps_to"}, m.Predicates())
}

func TestBuildInjectableOrder(t *testing.T) {
	rels := []omop.Relationship{rel("1", "2", "a"), rel("1", "2", "b")}
	cfg := DefaultConfig()
	cfg.Order = func(a, b string) int { return strings.Compare(b, a) }

	m, err := Build(rels, []string{"a", "b"}, scope("1"), cfg)
	require.NoError(t, err)

	assert.Equal(t, []Predicate{"omoprel:b", "omoprel:a"}, m.Predicates())
}

func TestBuildEmptyTypeIsPresent(t *testing.T) {
	m, err := Build(nil, []string{"Maps to"}, scope("1"), DefaultConfig())
	require.NoError(t, err)

	assert.True(t, m.Has("omoprel:Maps_to"))
	assert.Equal(t, 0, m.Subjects("omoprel:Maps_to"))
}

func TestBuildDeduplicatesRequest(t *testing.T) {
	rels := []omop.Relationship{rel("1", "2", "Maps to")}

	m, err := Build(rels, []string{"Maps to", "Maps to"}, scope("1"), DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{"2"}, m.Related("omoprel:Maps_to", "1"))
}

func TestBuildCanonicalMergeIsIntentional(t *testing.T) {
	rels := []omop.Relationship{
		rel("1", "2", "Is a"),
		rel("3", "1", "RxNorm inverse is a"),
	}

	m, err := Build(rels, []string{"Is a", "Maps to", "RxNorm inverse is a"}, scope("1", "2", "3"), DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, []Predicate{"rdfs:subClassOf", "omoprel:Maps_to"}, m.Predicates())
	assert.Equal(t, []string{"2", "3"}, m.Related("rdfs:subClassOf", "1"))
}

func TestBuildSanitizationCollision(t *testing.T) {
	rels := []omop.Relationship{
		rel("1", "2", "Maps to"),
		rel("1", "2", "Maps,to"),
	}

	_, err := Build(rels, []string{All}, scope("1"), DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrPredicateCollision))
	assert.True(t, errs.IsData(err))
	assert.Contains(t, err.Error(), `"Maps to"`)
	assert.Contains(t, err.Error(), `"Maps,to"`)
}

func TestBuildEmptyLabel(t *testing.T) {
	_, err := Build(nil, []string{""}, scope("1"), DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrEmptyPredicate))
}

func TestSnapshotRoundTrip(t *testing.T) {
	rels := []omop.Relationship{rel("1", "2", "Maps to"), rel("1", "3", "Is a")}
	m, err := Build(rels, []string{All}, scope("1"), DefaultConfig())
	require.NoError(t, err)

	back := FromSnapshot(m.Snapshot())
	assert.Equal(t, m.Predicates(), back.Predicates())
	assert.Equal(t, m.Related("omoprel:Maps_to", "1"), back.Related("omoprel:Maps_to", "1"))
	assert.Equal(t, m.Related("rdfs:subClassOf", "1"), back.Related("rdfs:subClassOf", "1"))
}
