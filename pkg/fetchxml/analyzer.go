// Package fetchxml statically analyzes query documents expressed in the
// FetchXML dialect: target entity, projections, filters, joins, ordering,
// grouping, aggregates, and embedded paging. Analysis is advisory by
// design — it classifies and warns, it never blocks execution.
package fetchxml

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/craftui/dataset-engine/pkg/models"
)

// Raw document shapes. Filters and link-entities nest arbitrarily.
type fetchDoc struct {
	XMLName xml.Name   `xml:"fetch"`
	Page    string     `xml:"page,attr"`
	Count   string     `xml:"count,attr"`
	Entity  *entityDoc `xml:"entity"`
}

type entityDoc struct {
	Name       string      `xml:"name,attr"`
	Attributes []attrDoc   `xml:"attribute"`
	Orders     []orderDoc  `xml:"order"`
	Filters    []filterDoc `xml:"filter"`
	Links      []linkDoc   `xml:"link-entity"`
}

type attrDoc struct {
	Name      string `xml:"name,attr"`
	Alias     string `xml:"alias,attr"`
	Aggregate string `xml:"aggregate,attr"`
	GroupBy   string `xml:"groupby,attr"`
}

type orderDoc struct {
	Attribute  string `xml:"attribute,attr"`
	Descending string `xml:"descending,attr"`
}

type filterDoc struct {
	Type       string         `xml:"type,attr"`
	Conditions []conditionDoc `xml:"condition"`
	Filters    []filterDoc    `xml:"filter"`
}

type conditionDoc struct {
	Attribute string `xml:"attribute,attr"`
	Operator  string `xml:"operator,attr"`
	Value     string `xml:"value,attr"`
}

type linkDoc struct {
	Name       string      `xml:"name,attr"`
	Alias      string      `xml:"alias,attr"`
	LinkType   string      `xml:"link-type,attr"`
	From       string      `xml:"from,attr"`
	To         string      `xml:"to,attr"`
	Attributes []attrDoc   `xml:"attribute"`
	Orders     []orderDoc  `xml:"order"`
	Filters    []filterDoc `xml:"filter"`
	Links      []linkDoc   `xml:"link-entity"`
}

// substring-match operators that force scans on most backends
var scanOperators = map[string]bool{
	"like":           true,
	"not-like":       true,
	"contains":       true,
	"not-contain":    true,
	"begins-with":    true,
	"not-begin-with": true,
	"ends-with":      true,
	"not-end-with":   true,
	"contain-values": true,
}

// Analyze parses and statically analyzes one query document. It never
// returns an error: malformed input yields an analysis with IsValid=false
// and a non-empty Errors list.
func Analyze(queryText string) *models.QueryAnalysis {
	analysis := &models.QueryAnalysis{IsValid: true}

	doc, err := parse(queryText)
	if err != nil {
		analysis.IsValid = false
		analysis.Errors = append(analysis.Errors, err.Error())
		return analysis
	}
	if doc.Entity == nil {
		analysis.IsValid = false
		analysis.Errors = append(analysis.Errors, "query document has no entity element")
		return analysis
	}
	if doc.Entity.Name == "" {
		analysis.IsValid = false
		analysis.Errors = append(analysis.Errors, "entity element has no name attribute")
		return analysis
	}

	analysis.EntityName = doc.Entity.Name
	collectEntity(analysis, doc.Entity)
	analysis.Paging = pagingHint(doc)

	score(analysis)
	advise(analysis)

	return analysis
}

// Validate performs structural checks only: required elements present, every
// condition has attribute and operator, every projected attribute has a
// name. It does not compute complexity.
func Validate(queryText string) (bool, []string) {
	doc, err := parse(queryText)
	if err != nil {
		return false, []string{err.Error()}
	}

	var errs []string
	if doc.Entity == nil {
		return false, []string{"query document has no entity element"}
	}
	if doc.Entity.Name == "" {
		errs = append(errs, "entity element has no name attribute")
	}
	checkAttrs(doc.Entity.Attributes, &errs)
	checkFilters(doc.Entity.Filters, &errs)
	var walkLinks func(links []linkDoc)
	walkLinks = func(links []linkDoc) {
		for _, l := range links {
			if l.Name == "" {
				errs = append(errs, "link-entity element has no name attribute")
			}
			checkAttrs(l.Attributes, &errs)
			checkFilters(l.Filters, &errs)
			walkLinks(l.Links)
		}
	}
	walkLinks(doc.Entity.Links)

	return len(errs) == 0, errs
}

func parse(queryText string) (*fetchDoc, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, fmt.Errorf("query text is empty")
	}
	var doc fetchDoc
	if err := xml.Unmarshal([]byte(queryText), &doc); err != nil {
		return nil, fmt.Errorf("parse query document: %v", err)
	}
	return &doc, nil
}

func checkAttrs(attrs []attrDoc, errs *[]string) {
	for _, a := range attrs {
		if a.Name == "" {
			*errs = append(*errs, "attribute element has no name attribute")
		}
	}
}

func checkFilters(filters []filterDoc, errs *[]string) {
	for _, f := range filters {
		for _, c := range f.Conditions {
			if c.Attribute == "" {
				*errs = append(*errs, "condition element has no attribute")
			}
			if c.Operator == "" {
				*errs = append(*errs, fmt.Sprintf("condition on %q has no operator", c.Attribute))
			}
		}
		checkFilters(f.Filters, errs)
	}
}

// collectEntity walks the root entity and every nested link-entity,
// accumulating projections, conditions, orders, grouping and aggregates.
func collectEntity(analysis *models.QueryAnalysis, ent *entityDoc) {
	collectAttrs(analysis, ent.Attributes)
	collectOrders(analysis, ent.Orders)
	for _, f := range ent.Filters {
		collectFilter(analysis, f)
	}
	collectLinks(analysis, ent.Links)
}

func collectAttrs(analysis *models.QueryAnalysis, attrs []attrDoc) {
	for _, a := range attrs {
		if a.Name == "" {
			continue
		}
		analysis.Attributes = append(analysis.Attributes, a.Name)
		if strings.EqualFold(a.GroupBy, "true") {
			analysis.GroupBy = append(analysis.GroupBy, a.Name)
		}
		if a.Aggregate != "" {
			analysis.Aggregates = append(analysis.Aggregates, models.AggregateExpr{
				Attribute: a.Name,
				Function:  a.Aggregate,
				Alias:     a.Alias,
			})
		}
	}
}

func collectOrders(analysis *models.QueryAnalysis, orders []orderDoc) {
	for _, o := range orders {
		if o.Attribute == "" {
			continue
		}
		analysis.Orders = append(analysis.Orders, models.OrderClause{
			Attribute:  o.Attribute,
			Descending: strings.EqualFold(o.Descending, "true"),
		})
	}
}

func collectFilter(analysis *models.QueryAnalysis, f filterDoc) {
	for _, c := range f.Conditions {
		analysis.Filters = append(analysis.Filters, models.FilterCondition{
			Attribute: c.Attribute,
			Operator:  c.Operator,
			Value:     c.Value,
		})
	}
	for _, nested := range f.Filters {
		collectFilter(analysis, nested)
	}
}

func collectLinks(analysis *models.QueryAnalysis, links []linkDoc) {
	for _, l := range links {
		joinType := l.LinkType
		if joinType == "" {
			joinType = "inner"
		}
		analysis.Joins = append(analysis.Joins, models.JoinedEntity{
			Name:     l.Name,
			Alias:    l.Alias,
			JoinType: joinType,
			From:     l.From,
			To:       l.To,
		})
		collectAttrs(analysis, l.Attributes)
		collectOrders(analysis, l.Orders)
		for _, f := range l.Filters {
			collectFilter(analysis, f)
		}
		collectLinks(analysis, l.Links)
	}
}

func pagingHint(doc *fetchDoc) *models.PagingHint {
	if doc.Page == "" && doc.Count == "" {
		return nil
	}
	hint := &models.PagingHint{}
	if n, err := strconv.Atoi(doc.Page); err == nil {
		hint.Page = n
	}
	if n, err := strconv.Atoi(doc.Count); err == nil {
		hint.PageSize = n
	}
	return hint
}

// score computes the additive complexity score and its level. The weights
// are a fixed internal policy; tests pin them.
func score(a *models.QueryAnalysis) {
	if len(a.Attributes) > 10 {
		a.ComplexityScore += 2
		a.Factors = append(a.Factors, fmt.Sprintf("selects %d attributes", len(a.Attributes)))
	}
	if len(a.Filters) > 5 {
		a.ComplexityScore += 2
		a.Factors = append(a.Factors, fmt.Sprintf("has %d filter conditions", len(a.Filters)))
	}
	if n := len(a.Joins); n > 0 {
		a.ComplexityScore += 2 * n
		a.Factors = append(a.Factors, fmt.Sprintf("joins %d linked entities", n))
	}
	if n := len(a.Aggregates); n > 0 {
		a.ComplexityScore += n
		a.Factors = append(a.Factors, fmt.Sprintf("computes %d aggregates", n))
	}
	if len(a.GroupBy) > 0 {
		a.ComplexityScore += 2
		a.Factors = append(a.Factors, fmt.Sprintf("groups by %d attributes", len(a.GroupBy)))
	}

	switch {
	case a.ComplexityScore <= 2:
		a.ComplexityLevel = models.ComplexitySimple
	case a.ComplexityScore <= 5:
		a.ComplexityLevel = models.ComplexityModerate
	case a.ComplexityScore <= 10:
		a.ComplexityLevel = models.ComplexityComplex
	default:
		a.ComplexityLevel = models.ComplexityVeryComplex
	}
}

// advise appends non-fatal performance warnings and suggestions. None of
// these block execution.
func advise(a *models.QueryAnalysis) {
	if len(a.Attributes) > 20 {
		a.Warnings = append(a.Warnings,
			fmt.Sprintf("query selects %d attributes; narrow the projection to what the caller renders", len(a.Attributes)))
	}
	if len(a.Joins) > 3 {
		a.Warnings = append(a.Warnings,
			fmt.Sprintf("query joins %d linked entities; each join multiplies remote query cost", len(a.Joins)))
	}
	if len(a.Filters) == 0 && len(a.Joins) == 0 {
		a.Warnings = append(a.Warnings,
			"query has no filters or joins and may return an unbounded result set")
	}
	if a.Paging == nil && len(a.Joins) >= 1 {
		a.Suggestions = append(a.Suggestions,
			"add page/count attributes to bound joined result sets")
	}
	for _, f := range a.Filters {
		if scanOperators[strings.ToLower(f.Operator)] {
			a.Warnings = append(a.Warnings,
				fmt.Sprintf("condition on %q uses substring operator %q, which cannot use an index", f.Attribute, f.Operator))
			break
		}
	}
}
