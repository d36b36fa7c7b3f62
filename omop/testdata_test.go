package omop

import "strings"

const conceptCSV = `concept_id,concept_name,domain_id,vocabulary_id,concept_class_id,standard_concept,concept_code,valid_start_date,valid_end_date,invalid_reason
1,A,Condition,V1,Clinical Finding,S,c1,1970-01-01,2099-12-31,
2,B,Condition,V1,Clinical Finding,S,c2,1970-01-01,2099-12-31,
3,C,Drug,V2,Ingredient,S,c3,1970-01-01,2099-12-31,
4,D,Drug,V2,Ingredient,,c4,1970-01-01,2099-12-31,D
`

const relationshipCSV = `concept_id_1,concept_id_2,relationship_id,valid_start_date,valid_end_date,invalid_reason
1,2,Is a,1970-01-01,2099-12-31,
2,1,Subsumes,1970-01-01,2099-12-31,
3,1,Maps to,1970-01-01,2099-12-31,D
`

func mustConcepts(csv string) *ConceptTable {
	t, err := ReadConcepts(strings.NewReader(csv))
	if err != nil {
		panic(err)
	}
	return t
}

func mustRelationships(csv string) []Relationship {
	r, err := ReadRelationships(strings.NewReader(csv))
	if err != nil {
		panic(err)
	}
	return r
}
