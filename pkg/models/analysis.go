package models

// ComplexityLevel buckets a query's complexity score.
type ComplexityLevel string

const (
	ComplexitySimple      ComplexityLevel = "Simple"
	ComplexityModerate    ComplexityLevel = "Moderate"
	ComplexityComplex     ComplexityLevel = "Complex"
	ComplexityVeryComplex ComplexityLevel = "VeryComplex"
)

// FilterCondition is one condition inside a query's filter block.
type FilterCondition struct {
	Attribute string
	Operator  string
	Value     string
}

// JoinedEntity is one link-entity element of a query document.
type JoinedEntity struct {
	Name     string
	Alias    string
	JoinType string // defaults to "inner" when the document omits it
	From     string
	To       string
}

// OrderClause is one ordering directive.
type OrderClause struct {
	Attribute  string
	Descending bool
}

// AggregateExpr is one aggregate projection (attribute + function + alias).
type AggregateExpr struct {
	Attribute string
	Function  string
	Alias     string
}

// PagingHint is a page/size pair embedded in the query document itself.
type PagingHint struct {
	Page     int
	PageSize int
}

// QueryAnalysis is the derived, read-only result of statically analyzing one
// query document. It is a pure function of the query text: the same text
// always produces the same analysis.
type QueryAnalysis struct {
	IsValid    bool
	Errors     []string
	EntityName string

	Attributes []string
	Filters    []FilterCondition
	Joins      []JoinedEntity
	Orders     []OrderClause
	GroupBy    []string
	Aggregates []AggregateExpr
	Paging     *PagingHint

	ComplexityScore int
	ComplexityLevel ComplexityLevel
	Factors         []string

	Warnings    []string
	Suggestions []string
}
