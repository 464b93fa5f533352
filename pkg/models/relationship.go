package models

import "fmt"

// RelationshipType is the direction of an entity relationship relative to
// the referenced (parent) side.
type RelationshipType string

const (
	RelationshipOneToMany RelationshipType = "OneToMany"
	RelationshipManyToOne RelationshipType = "ManyToOne"
)

// EntityRelationship describes one structural relationship between two
// entities: the referencing entity holds a lookup attribute pointing at the
// referenced entity. Relationships are produced by discovery and live only
// as long as the discovery cache keeps them.
type EntityRelationship struct {
	SchemaName           string
	ReferencedEntity     string
	ReferencingEntity    string
	ReferencingAttribute string

	// LookupFieldName is the field under which the remote API exposes the
	// lookup's referenced id on a record, so callers can filter on it
	// without re-deriving the convention.
	LookupFieldName string

	RelationshipType RelationshipType
}

// LookupFieldName derives the record-field name the remote API uses to expose
// a lookup attribute's raw id value.
func LookupFieldName(attribute string) string {
	return fmt.Sprintf("_%s_value", attribute)
}
