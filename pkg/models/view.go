package models

// ViewDefinition is a named, persisted query bound to one entity. Views come
// from two namespaces: system saved queries and user-owned personal queries.
// A ViewDefinition is immutable once fetched; callers re-fetch rather than
// mutate.
type ViewDefinition struct {
	ID          string
	Name        string
	EntityName  string
	FetchXML    string
	LayoutXML   string
	IsDefault   bool
	IsPersonal  bool
	IsPrivate   bool
	Description string
}

// EntityInfo carries the subset of entity metadata the engine needs to build
// record URLs and filter expressions.
type EntityInfo struct {
	LogicalName          string
	DisplayName          string
	PrimaryIDAttribute   string
	PrimaryNameAttribute string
	CollectionName       string
}

// LookupAttribute is a lookup-typed (foreign key) attribute definition and
// the entities its values may reference.
type LookupAttribute struct {
	LogicalName string
	DisplayName string
	Targets     []string
}
