package relmap

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/c360studio/omop2owl/errs"
	"github.com/c360studio/omop2owl/omop"
)

// Map holds, per predicate, the related concept identifiers of each concept.
// Lists keep the order of the relationship rows and keep duplicates.
type Map struct {
	predicates []Predicate
	edges      map[Predicate]map[string][]string
}

// Predicates returns the predicates in processing order.
func (m *Map) Predicates() []Predicate {
	return slices.Clone(m.predicates)
}

// Has reports whether p is present, possibly with no edges.
func (m *Map) Has(p Predicate) bool {
	_, ok := m.edges[p]
	return ok
}

// Related returns the identifiers related to conceptID under p.
func (m *Map) Related(p Predicate, conceptID string) []string {
	return slices.Clone(m.edges[p][conceptID])
}

// Subjects returns the number of concepts with at least one edge under p.
func (m *Map) Subjects(p Predicate) int {
	return len(m.edges[p])
}

// Edges returns the total number of edges under p.
func (m *Map) Edges(p Predicate) int {
	n := 0
	for _, objs := range m.edges[p] {
		n += len(objs)
	}
	return n
}

// Snapshot is the serializable form of a Map.
type Snapshot struct {
	Predicates []Predicate                       `json:"predicates"`
	Edges      map[Predicate]map[string][]string `json:"edges"`
}

// Snapshot returns a deep copy of the map for serialization.
func (m *Map) Snapshot() Snapshot {
	edges := make(map[Predicate]map[string][]string, len(m.edges))
	for p, subjects := range m.edges {
		cp := make(map[string][]string, len(subjects))
		for s, objs := range subjects {
			cp[s] = slices.Clone(objs)
		}
		edges[p] = cp
	}
	return Snapshot{Predicates: slices.Clone(m.predicates), Edges: edges}
}

// FromSnapshot rebuilds a Map from its serialized form.
func FromSnapshot(s Snapshot) *Map {
	m := &Map{edges: make(map[Predicate]map[string][]string, len(s.Predicates))}
	for _, p := range s.Predicates {
		m.predicates = append(m.predicates, p)
		subjects := make(map[string][]string, len(s.Edges[p]))
		for subj, objs := range s.Edges[p] {
			subjects[subj] = slices.Clone(objs)
		}
		m.edges[p] = subjects
	}
	return m
}

// Builder builds relationship maps.
type Builder struct {
	cfg    Config
	logger *slog.Logger
}

// NewBuilder creates a builder for cfg.
func NewBuilder(cfg Config, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{cfg: cfg, logger: logger}
}

// Build groups active relationships by label and maps each label onto its
// predicate. Only rows whose subject (concept_id_1) is in scope are used; the
// object may be outside scope. requested lists the labels to include, or is
// [All] for every label present among the active rows.
func (b *Builder) Build(rels []omop.Relationship, requested []string, scope omop.IDSet) (*Map, error) {
	for _, label := range b.cfg.Conflicts() {
		b.logger.Warn("Relationship label has both canonical and inverse mappings; using inverse",
			"label", label, "predicate", b.cfg.Inverse[label])
	}

	byLabel := make(map[string][]omop.Relationship)
	var present []string
	for _, r := range rels {
		if !r.Active() {
			continue
		}
		if _, seen := byLabel[r.RelationshipID]; !seen {
			present = append(present, r.RelationshipID)
		}
		byLabel[r.RelationshipID] = append(byLabel[r.RelationshipID], r)
	}

	labels := workingLabels(requested, present)
	slices.SortStableFunc(labels, b.cfg.compare)

	m := &Map{edges: make(map[Predicate]map[string][]string)}
	sanitizedFrom := make(map[Predicate]string)

	for i, label := range labels {
		pred, inverted := b.cfg.Resolve(label)
		_, mappedInverse := b.cfg.Inverse[label]
		_, mappedCanonical := b.cfg.Canonical[label]
		if !mappedInverse && !mappedCanonical {
			if b.cfg.Sanitize(label) == "" {
				return nil, errs.WrapData(fmt.Errorf("%w: %q", errs.ErrEmptyPredicate, label), "relmap", "Build")
			}
			if other, dup := sanitizedFrom[pred]; dup {
				return nil, errs.WrapData(
					fmt.Errorf("%w: %q and %q both become %s", errs.ErrPredicateCollision, other, label, pred),
					"relmap", "Build")
			}
			sanitizedFrom[pred] = label
		}

		b.logger.Debug("Mapping relationship",
			"index", i+1, "total", len(labels), "label", label, "predicate", pred, "inverted", inverted)

		subjects, ok := m.edges[pred]
		if !ok {
			subjects = make(map[string][]string)
			m.edges[pred] = subjects
			m.predicates = append(m.predicates, pred)
		}
		for _, r := range byLabel[label] {
			if !scope.Has(r.ConceptID1) {
				continue
			}
			if inverted {
				subjects[r.ConceptID2] = append(subjects[r.ConceptID2], r.ConceptID1)
			} else {
				subjects[r.ConceptID1] = append(subjects[r.ConceptID1], r.ConceptID2)
			}
		}
	}

	// Canonical predicates reached through both tables and a sanitized label
	// would silently merge; report it like any other collision.
	for pred, label := range sanitizedFrom {
		for other := range byTarget(b.cfg, pred) {
			if slices.Contains(labels, other) {
				return nil, errs.WrapData(
					fmt.Errorf("%w: %q and %q both become %s", errs.ErrPredicateCollision, other, label, pred),
					"relmap", "Build")
			}
		}
	}

	return m, nil
}

// byTarget returns the labels whose canonical or inverse mapping targets p.
func byTarget(cfg Config, p Predicate) map[string]struct{} {
	out := make(map[string]struct{})
	for label, target := range cfg.Canonical {
		if target == p {
			out[label] = struct{}{}
		}
	}
	for label, target := range cfg.Inverse {
		if target == p {
			out[label] = struct{}{}
		}
	}
	return out
}

// workingLabels resolves the requested labels, expanding the wildcard and
// dropping repeats.
func workingLabels(requested, present []string) []string {
	if len(requested) == 1 && requested[0] == All {
		return slices.Clone(present)
	}
	seen := make(map[string]struct{}, len(requested))
	out := make([]string, 0, len(requested))
	for _, label := range requested {
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}

// Build is a convenience wrapper around NewBuilder(cfg, nil).Build.
func Build(rels []omop.Relationship, requested []string, scope omop.IDSet, cfg Config) (*Map, error) {
	return NewBuilder(cfg, nil).Build(rels, requested, scope)
}
