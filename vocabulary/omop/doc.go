// Package omop provides the vocabulary used when rendering OMOP concepts as OWL.
//
// # Namespaces
//
// Concepts are identified by the OMOP prefix (Athena term pages), relationship
// types that have no canonical OWL/RDFS counterpart live under omoprel:
//
//	OMOP:    https://athena.ohdsi.org/search-terms/terms/
//	omoprel: https://w3id.org/cpont/omop/relations/
//
// # Predicates
//
// A small set of OMOP relationship labels map onto standard predicates. "Is a"
// becomes rdfs:subClassOf directly; "RxNorm inverse is a" becomes rdfs:subClassOf
// with subject and object swapped. Every other label is sanitized into an
// omoprel: local name.
//
// # ROBOT directives
//
// The template columns carry ROBOT template directives (see
// http://robot.obolibrary.org/template) in the row directly below the header.
package omop
