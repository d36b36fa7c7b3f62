package pipeline

import (
	"fmt"
	"slices"
	"strings"

	"github.com/c360studio/omop2owl/errs"
	"github.com/c360studio/omop2owl/omop"
)

// MetadataPartition names the partition of concepts without a vocabulary ID.
const MetadataPartition = "Metadata"

// Partition is the set of concepts of one vocabulary.
type Partition struct {
	// Name is the file-safe partition name.
	Name string

	// VocabularyID is the raw vocabulary ID, empty for MetadataPartition.
	VocabularyID string

	Concepts *omop.ConceptTable
}

// PartitionConcepts groups concepts by vocabulary ID. Partitions are ordered
// by order over the raw vocabulary IDs (nil sorts them); concepts keep their
// input order within a partition. Two vocabulary IDs that map to the same
// file-safe name are rejected, since their outputs would overwrite each other.
func PartitionConcepts(concepts *omop.ConceptTable, order func(a, b string) int) ([]Partition, error) {
	if order == nil {
		order = strings.Compare
	}

	var ids []string
	seen := make(map[string]struct{})
	for _, c := range concepts.Rows() {
		if _, ok := seen[c.VocabularyID]; !ok {
			seen[c.VocabularyID] = struct{}{}
			ids = append(ids, c.VocabularyID)
		}
	}
	slices.SortStableFunc(ids, order)

	parts := make([]Partition, 0, len(ids))
	owners := make(map[string]string, len(ids))
	for _, id := range ids {
		name := id
		if name == "" {
			name = MetadataPartition
		}
		name = FileSafe(name)
		if prev, ok := owners[name]; ok {
			return nil, errs.WrapData(
				fmt.Errorf("%w: vocabularies %q and %q both map to %q", errs.ErrPartitionCollision, prev, id, name),
				"pipeline", "PartitionConcepts")
		}
		owners[name] = id
		parts = append(parts, Partition{
			Name:         name,
			VocabularyID: id,
			Concepts: concepts.Select(func(c omop.Concept) bool {
				return c.VocabularyID == id
			}),
		})
	}
	return parts, nil
}
