package omop

// Canonical predicates that OMOP relationship labels may map onto.
const (
	// SubClassOf is the CURIE of rdfs:subClassOf, the target of "Is a".
	SubClassOf = "rdfs:subClassOf"

	// Label is the CURIE of rdfs:label.
	Label = "rdfs:label"
)

// Relationship labels with special handling.
const (
	// RelIsA is the OMOP label for direct subsumption.
	RelIsA = "Is a"

	// RelRxNormInverseIsA is the RxNorm label whose direction is inverted
	// relative to "Is a".
	RelRxNormInverseIsA = "RxNorm inverse is a"

	// RelMapsTo is the OMOP label mapping a non-standard concept to a standard one.
	RelMapsTo = "Maps to"

	// RelAll is the wildcard requesting every relationship label present.
	RelAll = "ALL"
)

// Concept attribute columns, in template order. Each is emitted as an
// annotation property under the OMOP prefix.
const (
	AttrDomainID        = "domain_id"
	AttrVocabularyID    = "vocabulary_id"
	AttrConceptClassID  = "concept_class_id"
	AttrStandardConcept = "standard_concept"
	AttrConceptCode     = "concept_code"
	AttrValidStartDate  = "valid_start_date"
	AttrValidEndDate    = "valid_end_date"
	AttrInvalidReason   = "invalid_reason"
)

// Attributes lists the concept attribute columns in template order.
var Attributes = []string{
	AttrDomainID,
	AttrVocabularyID,
	AttrConceptClassID,
	AttrStandardConcept,
	AttrConceptCode,
	AttrValidStartDate,
	AttrValidEndDate,
	AttrInvalidReason,
}

// ROBOT template directives.
const (
	// DirectiveID marks the entity identifier column.
	DirectiveID = "ID"

	// DirectiveType marks the entity type column.
	DirectiveType = "TYPE"

	// DirectiveSubClassSplit marks a pipe-split list of parent classes.
	DirectiveSubClassSplit = "SC % SPLIT=|"

	// EntityTypeClass is the only entity type emitted.
	EntityTypeClass = "class"

	// ValueSeparator joins multiple values within one template cell.
	ValueSeparator = "|"
)

// AnnotationDirective returns the directive for an annotation column.
func AnnotationDirective(property string) string {
	return "A " + property
}

// SplitAnnotationDirective returns the directive for a pipe-split annotation column.
func SplitAnnotationDirective(property string) string {
	return "A " + property + " SPLIT=" + ValueSeparator
}
