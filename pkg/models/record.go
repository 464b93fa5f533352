package models

import "strings"

// Annotation key suffixes used by the remote API to attach display metadata
// to record fields.
const (
	FormattedValueSuffix    = "@OData.Community.Display.V1.FormattedValue"
	LookupLogicalNameSuffix = "@Microsoft.Dynamics.CRM.lookuplogicalname"
)

// RawRecord is one record exactly as the remote API returned it: attribute
// names mapped to raw JSON values, with annotation siblings (formatted
// values, lookup logical names) alongside the base keys.
type RawRecord map[string]any

// FormattedValue returns the formatted-value annotation for field, if the
// API supplied one.
func (r RawRecord) FormattedValue(field string) (string, bool) {
	v, ok := r[field+FormattedValueSuffix]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// IsAnnotation reports whether key is an annotation sibling rather than an
// attribute value.
func IsAnnotation(key string) bool {
	return strings.Contains(key, "@")
}

// RecordPage is one page of records produced by a query execution, plus the
// paging bookkeeping needed to fetch the next page. Pages are never cached:
// record data freshness matters more than speed.
type RecordPage struct {
	Entities   []RawRecord
	TotalCount *int64

	// NextLink is the opaque continuation token for the following page, or
	// empty when this is the last page.
	NextLink string

	// Page is the 1-based page number when offset-style paging was used,
	// zero for cursor-style paging.
	Page int

	Success bool
	Error   string

	// Provenance: the view or raw query text this page came from.
	View     *ViewDefinition
	FetchXML string
}
