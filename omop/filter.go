package omop

// FilterOptions selects which concepts survive the concept filter.
type FilterOptions struct {
	// Vocabularies restricts concepts to these vocabulary_id values (exact,
	// case-sensitive). Empty keeps every vocabulary.
	Vocabularies []string

	// ExcludeSingletons removes every concept that participates in an active
	// relationship of the vocabulary-filtered relationship set. Only
	// concepts without any relationship survive.
	ExcludeSingletons bool
}

// FilterResult is the output of Filter.
type FilterResult struct {
	// Concepts are the surviving concepts, in input order.
	Concepts *ConceptTable

	// ScopeIDs is the vocabulary-filtered identifier set. Relationship maps
	// are built against it; it is computed before singleton removal.
	ScopeIDs IDSet

	// Relationships are the active rows touching the vocabulary-filtered
	// concepts (all active rows when no vocabulary filter is set).
	Relationships []Relationship
}

// ActiveRelationships returns the rows with an empty invalid_reason, in order.
func ActiveRelationships(rels []Relationship) []Relationship {
	out := make([]Relationship, 0, len(rels))
	for _, r := range rels {
		if r.Active() {
			out = append(out, r)
		}
	}
	return out
}

// Filter applies the vocabulary and singleton filters.
func Filter(concepts *ConceptTable, rels []Relationship, opts FilterOptions) FilterResult {
	active := ActiveRelationships(rels)

	filtered := concepts
	if len(opts.Vocabularies) > 0 {
		vocabs := make(map[string]struct{}, len(opts.Vocabularies))
		for _, v := range opts.Vocabularies {
			vocabs[v] = struct{}{}
		}
		filtered = concepts.Select(func(c Concept) bool {
			_, ok := vocabs[c.VocabularyID]
			return ok
		})
	}
	scope := filtered.IDs()

	if len(opts.Vocabularies) > 0 {
		touching := make([]Relationship, 0, len(active))
		for _, r := range active {
			if scope.Has(r.ConceptID1) || scope.Has(r.ConceptID2) {
				touching = append(touching, r)
			}
		}
		active = touching
	}

	if opts.ExcludeSingletons {
		connected := make(IDSet)
		for _, r := range active {
			connected.Add(r.ConceptID1)
			connected.Add(r.ConceptID2)
		}
		filtered = filtered.Select(func(c Concept) bool {
			return !connected.Has(c.ID)
		})
	}

	return FilterResult{
		Concepts:      filtered,
		ScopeIDs:      scope,
		Relationships: active,
	}
}
