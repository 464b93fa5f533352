package fetchxml

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftui/dataset-engine/pkg/models"
)

const simpleQuery = `<fetch><entity name="account"><attribute name="name"/><attribute name="accountnumber"/></entity></fetch>`

func TestAnalyze_SimpleQuery(t *testing.T) {
	analysis := Analyze(simpleQuery)

	require.True(t, analysis.IsValid)
	assert.Empty(t, analysis.Errors)
	assert.Equal(t, "account", analysis.EntityName)
	assert.Equal(t, []string{"name", "accountnumber"}, analysis.Attributes)
	assert.Equal(t, 0, analysis.ComplexityScore)
	assert.Equal(t, models.ComplexitySimple, analysis.ComplexityLevel)
}

func TestAnalyze_NeverThrowsOnMalformedInput(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty string", ""},
		{"whitespace only", "   \n\t"},
		{"unclosed tag", `<fetch><entity name="account">`},
		{"wrong root element", `<query><entity name="account"/></query>`},
		{"not xml at all", `SELECT * FROM account`},
		{"no entity element", `<fetch></fetch>`},
		{"entity without name", `<fetch><entity/></fetch>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := Analyze(tt.text)
			assert.False(t, analysis.IsValid)
			assert.NotEmpty(t, analysis.Errors)
		})
	}
}

func TestAnalyze_ExtractsStructure(t *testing.T) {
	text := `<fetch page="2" count="25">
		<entity name="opportunity">
			<attribute name="name"/>
			<attribute name="estimatedvalue" aggregate="sum" alias="total"/>
			<attribute name="statuscode" groupby="true"/>
			<order attribute="name" descending="true"/>
			<filter type="and">
				<condition attribute="statecode" operator="eq" value="0"/>
				<filter type="or">
					<condition attribute="estimatedvalue" operator="gt" value="1000"/>
				</filter>
			</filter>
			<link-entity name="account" from="accountid" to="customerid" alias="acct">
				<attribute name="accountnumber"/>
				<filter><condition attribute="statecode" operator="eq" value="0"/></filter>
				<link-entity name="contact" from="contactid" to="primarycontactid" link-type="outer"/>
			</link-entity>
		</entity>
	</fetch>`

	analysis := Analyze(text)
	require.True(t, analysis.IsValid)

	assert.Equal(t, "opportunity", analysis.EntityName)
	assert.Contains(t, analysis.Attributes, "accountnumber") // from the link-entity
	assert.Len(t, analysis.Filters, 3)                       // nested filters flattened

	require.Len(t, analysis.Joins, 2)
	assert.Equal(t, "inner", analysis.Joins[0].JoinType) // default when omitted
	assert.Equal(t, "outer", analysis.Joins[1].JoinType)
	assert.Equal(t, "acct", analysis.Joins[0].Alias)
	assert.Equal(t, "accountid", analysis.Joins[0].From)

	require.Len(t, analysis.Orders, 1)
	assert.True(t, analysis.Orders[0].Descending)

	assert.Equal(t, []string{"statuscode"}, analysis.GroupBy)
	require.Len(t, analysis.Aggregates, 1)
	assert.Equal(t, "sum", analysis.Aggregates[0].Function)
	assert.Equal(t, "total", analysis.Aggregates[0].Alias)

	require.NotNil(t, analysis.Paging)
	assert.Equal(t, 2, analysis.Paging.Page)
	assert.Equal(t, 25, analysis.Paging.PageSize)
}

func queryWith(attrs, filters, joins, aggregates int, groupBy bool) string {
	var b strings.Builder
	b.WriteString(`<fetch><entity name="account">`)
	for i := 0; i < attrs; i++ {
		fmt.Fprintf(&b, `<attribute name="attr%d"/>`, i)
	}
	for i := 0; i < aggregates; i++ {
		fmt.Fprintf(&b, `<attribute name="agg%d" aggregate="count" alias="a%d"/>`, i, i)
	}
	if groupBy {
		b.WriteString(`<attribute name="grouped" groupby="true"/>`)
	}
	if filters > 0 {
		b.WriteString(`<filter>`)
		for i := 0; i < filters; i++ {
			fmt.Fprintf(&b, `<condition attribute="f%d" operator="eq" value="1"/>`, i)
		}
		b.WriteString(`</filter>`)
	}
	for i := 0; i < joins; i++ {
		fmt.Fprintf(&b, `<link-entity name="link%d" from="id" to="id"/>`, i)
	}
	b.WriteString(`</entity></fetch>`)
	return b.String()
}

func TestAnalyze_ComplexityScoring(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantScore int
		wantLevel models.ComplexityLevel
	}{
		{"bare query", queryWith(2, 0, 0, 0, false), 0, models.ComplexitySimple},
		{"eleven attributes", queryWith(11, 0, 0, 0, false), 2, models.ComplexitySimple},
		{"six filters", queryWith(2, 6, 0, 0, false), 2, models.ComplexitySimple},
		{"one join", queryWith(2, 0, 1, 0, false), 2, models.ComplexitySimple},
		{"two joins", queryWith(2, 0, 2, 0, false), 4, models.ComplexityModerate},
		{"group by", queryWith(2, 0, 0, 0, true), 2, models.ComplexitySimple},
		{"aggregates", queryWith(2, 0, 0, 3, false), 3, models.ComplexityModerate},
		{"joins and filters", queryWith(11, 6, 2, 0, false), 8, models.ComplexityComplex},
		{"everything", queryWith(11, 6, 3, 2, true), 14, models.ComplexityVeryComplex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := Analyze(tt.text)
			require.True(t, analysis.IsValid)
			assert.Equal(t, tt.wantScore, analysis.ComplexityScore)
			assert.Equal(t, tt.wantLevel, analysis.ComplexityLevel)
		})
	}
}

// Adding structural elements while holding everything else equal must never
// lower the score.
func TestAnalyze_ScoreIsMonotonic(t *testing.T) {
	base := Analyze(queryWith(5, 2, 1, 0, false)).ComplexityScore

	assert.GreaterOrEqual(t, Analyze(queryWith(15, 2, 1, 0, false)).ComplexityScore, base)
	assert.GreaterOrEqual(t, Analyze(queryWith(5, 8, 1, 0, false)).ComplexityScore, base)
	assert.GreaterOrEqual(t, Analyze(queryWith(5, 2, 3, 0, false)).ComplexityScore, base)
	assert.GreaterOrEqual(t, Analyze(queryWith(5, 2, 1, 2, false)).ComplexityScore, base)
	assert.GreaterOrEqual(t, Analyze(queryWith(5, 2, 1, 0, true)).ComplexityScore, base)
}

func TestAnalyze_Advisories(t *testing.T) {
	t.Run("over-selection", func(t *testing.T) {
		analysis := Analyze(queryWith(21, 1, 0, 0, false))
		require.True(t, analysis.IsValid)
		assert.NotEmpty(t, analysis.Warnings)
	})

	t.Run("unbounded result set", func(t *testing.T) {
		analysis := Analyze(queryWith(2, 0, 0, 0, false))
		require.True(t, analysis.IsValid)
		require.Len(t, analysis.Warnings, 1)
		assert.Contains(t, analysis.Warnings[0], "unbounded")
	})

	t.Run("join without paging suggests paging", func(t *testing.T) {
		analysis := Analyze(queryWith(2, 1, 2, 0, false))
		assert.NotEmpty(t, analysis.Suggestions)
	})

	t.Run("paged join has no paging suggestion", func(t *testing.T) {
		text := `<fetch page="1" count="50"><entity name="account"><attribute name="name"/><link-entity name="contact" from="a" to="b"/></entity></fetch>`
		analysis := Analyze(text)
		assert.Empty(t, analysis.Suggestions)
	})

	t.Run("substring operator warns about scans", func(t *testing.T) {
		text := `<fetch><entity name="account"><attribute name="name"/><filter><condition attribute="name" operator="like" value="%acme%"/></filter></entity></fetch>`
		analysis := Analyze(text)
		require.True(t, analysis.IsValid)
		found := false
		for _, w := range analysis.Warnings {
			if strings.Contains(w, "substring") {
				found = true
			}
		}
		assert.True(t, found, "expected a substring-scan warning, got %v", analysis.Warnings)
	})

	t.Run("advisories never invalidate", func(t *testing.T) {
		analysis := Analyze(queryWith(25, 0, 5, 0, false))
		assert.True(t, analysis.IsValid)
		assert.Empty(t, analysis.Errors)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantOK  bool
		wantErr string
	}{
		{"valid query", simpleQuery, true, ""},
		{"missing entity", `<fetch/>`, false, "no entity element"},
		{"condition without operator", `<fetch><entity name="a"><filter><condition attribute="x"/></filter></entity></fetch>`, false, "no operator"},
		{"condition without attribute", `<fetch><entity name="a"><filter><condition operator="eq"/></filter></entity></fetch>`, false, "no attribute"},
		{"attribute without name", `<fetch><entity name="a"><attribute/></entity></fetch>`, false, "no name"},
		{"nameless link entity", `<fetch><entity name="a"><link-entity from="x" to="y"/></entity></fetch>`, false, "link-entity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, errs := Validate(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantErr != "" {
				require.NotEmpty(t, errs)
				assert.Contains(t, strings.Join(errs, "; "), tt.wantErr)
			}
		})
	}
}
