package omop

// DefaultCanonicalPredicates maps OMOP relationship labels directly onto
// standard predicates, keeping subject and object order.
func DefaultCanonicalPredicates() map[string]string {
	return map[string]string{
		RelIsA: SubClassOf,
	}
}

// DefaultInversePredicates maps OMOP relationship labels onto standard
// predicates with subject and object swapped.
func DefaultInversePredicates() map[string]string {
	return map[string]string{
		RelRxNormInverseIsA: SubClassOf,
	}
}

// DefaultPrefixRepairs maps the prefixes ROBOT derives from namespace IRIs
// (the last path segment) back onto the intended prefixes. ROBOT ignores
// --prefix for RDF/XML element names.
func DefaultPrefixRepairs() map[string]string {
	return map[string]string{
		"relations": PrefixRelation,
		"terms":     PrefixConcept,
	}
}
