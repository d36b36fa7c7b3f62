package omop

// Prefixes used in generated templates and ontologies.
const (
	// PrefixConcept is the CURIE prefix for OMOP concepts.
	PrefixConcept = "OMOP"

	// PrefixRelation is the CURIE prefix for OMOP relationship predicates.
	PrefixRelation = "omoprel"
)

// Namespace IRIs.
const (
	// ConceptNamespace is the base IRI for OMOP concepts.
	ConceptNamespace = "https://athena.ohdsi.org/search-terms/terms/"

	// RelationNamespace is the base IRI for OMOP relationship predicates.
	RelationNamespace = "https://w3id.org/cpont/omop/relations/"

	// RDFS is the RDF Schema namespace.
	RDFS = "http://www.w3.org/2000/01/rdf-schema#"

	// RDF is the RDF syntax namespace.
	RDF = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"

	// OWL is the OWL namespace.
	OWL = "http://www.w3.org/2002/07/owl#"

	// OBOPurl is the base for ontology IRIs.
	OBOPurl = "http://purl.obolibrary.org/obo/"
)

// Well-known IRIs.
const (
	// OWLClass is the IRI of owl:Class.
	OWLClass = OWL + "Class"

	// OWLOntology is the IRI of owl:Ontology.
	OWLOntology = OWL + "Ontology"

	// RDFType is the IRI of rdf:type.
	RDFType = RDF + "type"

	// RDFSSubClassOf is the IRI of rdfs:subClassOf.
	RDFSSubClassOf = RDFS + "subClassOf"

	// RDFSLabel is the IRI of rdfs:label.
	RDFSLabel = RDFS + "label"
)

// OntologyIRI returns the PURL-style ontology IRI for an ontology identifier.
func OntologyIRI(ontologyID string) string {
	return OBOPurl + ontologyID + "/ontology"
}

// ConceptCURIE returns the OMOP CURIE for a raw concept identifier.
func ConceptCURIE(conceptID string) string {
	return PrefixConcept + ":" + conceptID
}

// DefaultPrefixes returns the prefix map passed to ROBOT and SemanticSQL.
func DefaultPrefixes() map[string]string {
	return map[string]string{
		PrefixRelation: RelationNamespace,
		PrefixConcept:  ConceptNamespace,
	}
}
