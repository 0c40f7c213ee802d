package model

// AliasType classifies how an alias relates to its concept's preferred term.
type AliasType string

const (
	AliasSynonym AliasType = "synonym"
	AliasAbbrev  AliasType = "abbrev"
	AliasPhrase  AliasType = "phrase"
	AliasAlt     AliasType = "alt"
)

// RelationType classifies how two ontology concepts relate.
type RelationType string

const (
	RelationBroader  RelationType = "broader"
	RelationNarrower RelationType = "narrower"
	RelationRelated  RelationType = "related"
)

// ConceptAlias is one alias of an ontology concept.
type ConceptAlias struct {
	Alias  string
	Type   AliasType
	Weight float64
}

// ConceptRelation is a directed edge to another ontology concept.
type ConceptRelation struct {
	TargetID string
	Type     RelationType
	Weight   float64
}

// Concept is a canonical term in the ontology graph, stored as an
// id-keyed table with adjacency lookups rather than a pointer graph.
type Concept struct {
	ID             string
	PreferredTerm  string
	Synonyms       []string
	ParentID       string
	Aliases        []ConceptAlias
	Relations      []ConceptRelation
	Taxonomies     []string
}

// DictionaryEntry supplements the ontology with plain synonym/acronym
// expansion that is not worth modeling as a full concept.
type DictionaryEntry struct {
	Term        string
	Synonyms    []string
	AcronymFor  string
	BoostWeight float64
}
