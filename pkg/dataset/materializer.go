// Package dataset shapes raw record pages into the UI-consumable dataset
// contract: ordered columns, typed records, paging state.
package dataset

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/craftui/dataset-engine/pkg/models"
)

// layout is the view's column layout descriptor.
type layout struct {
	XMLName xml.Name `xml:"grid"`
	Row     struct {
		ID    string `xml:"id,attr"`
		Cells []struct {
			Name  string `xml:"name,attr"`
			Width string `xml:"width,attr"`
		} `xml:"cell"`
	} `xml:"row"`
}

// Materializer converts record pages into datasets.
type Materializer struct {
	logger *zap.Logger
}

// NewMaterializer creates a Materializer.
func NewMaterializer(logger *zap.Logger) *Materializer {
	return &Materializer{logger: logger.Named("dataset")}
}

// Materialize shapes one record page. Column precedence: the view's layout
// descriptor, then the analysis' attribute list, then the union of record
// fields as a last resort (expensive and order-unstable). A zero-record
// page still yields the declared columns and an empty record map.
func (m *Materializer) Materialize(page *models.RecordPage, view *models.ViewDefinition, analysis *models.QueryAnalysis) *models.Dataset {
	ds := &models.Dataset{
		Records: make(map[string]models.DatasetRecord),
	}
	if page == nil {
		return ds
	}

	idAttr := ""
	if view != nil && view.EntityName != "" {
		idAttr = view.EntityName + "id"
	}

	// Each source may come up empty (malformed layout XML, attribute-less
	// analysis), so every level falls through to the next.
	if view != nil && view.LayoutXML != "" {
		ds.Columns, idAttr = columnsFromLayout(view.LayoutXML, idAttr, page.Entities)
	}
	if len(ds.Columns) == 0 && analysis != nil && len(analysis.Attributes) > 0 {
		ds.Columns = columnsFromAnalysis(analysis, page.Entities)
	}
	if len(ds.Columns) == 0 {
		ds.Columns = columnsFromRecords(page.Entities)
	}

	declared := make(map[string]bool, len(ds.Columns))
	for _, col := range ds.Columns {
		declared[col.Name] = true
	}

	for i, raw := range page.Entities {
		rec := models.DatasetRecord{
			ID:     recordID(raw, idAttr, i),
			Fields: make(map[string]models.FieldValue),
		}
		// Only declared columns make it into the record; fields the source
		// record lacks stay absent rather than null-padded.
		for _, col := range ds.Columns {
			if _, ok := raw[col.Name]; !ok {
				continue
			}
			rec.Fields[col.Name] = models.FieldValueFrom(raw, col.Name)
		}
		ds.RecordIDs = append(ds.RecordIDs, rec.ID)
		ds.Records[rec.ID] = rec
	}

	ds.Paging = models.PagingState{
		HasNextPage:     page.NextLink != "",
		HasPreviousPage: page.Page > 1,
		TotalCount:      page.TotalCount,
	}

	m.logger.Debug("materialized dataset",
		zap.Int("columns", len(ds.Columns)),
		zap.Int("records", len(ds.RecordIDs)))

	return ds
}

func columnsFromLayout(layoutXML, idAttr string, records []models.RawRecord) ([]models.DatasetColumn, string) {
	var grid layout
	if err := xml.Unmarshal([]byte(layoutXML), &grid); err != nil {
		return nil, idAttr
	}
	if grid.Row.ID != "" {
		idAttr = grid.Row.ID
	}

	var cols []models.DatasetColumn
	for _, cell := range grid.Row.Cells {
		if cell.Name == "" {
			continue
		}
		cols = append(cols, models.DatasetColumn{
			Name:        cell.Name,
			DisplayName: displayName(cell.Name),
			DataType:    inferDataType(cell.Name, records),
		})
	}
	return cols, idAttr
}

func columnsFromAnalysis(analysis *models.QueryAnalysis, records []models.RawRecord) []models.DatasetColumn {
	aliased := make(map[string]string, len(analysis.Aggregates))
	for _, agg := range analysis.Aggregates {
		if agg.Alias != "" {
			aliased[agg.Attribute] = agg.Alias
		}
	}

	var cols []models.DatasetColumn
	for _, attr := range analysis.Attributes {
		col := models.DatasetColumn{
			Name:        attr,
			DisplayName: displayName(attr),
			DataType:    inferDataType(attr, records),
		}
		if alias, ok := aliased[attr]; ok {
			col.Alias = alias
		}
		cols = append(cols, col)
	}
	return cols
}

// columnsFromRecords unions every non-annotation field across the page.
// Sorted for stability, since map iteration order would otherwise leak into
// the column order.
func columnsFromRecords(records []models.RawRecord) []models.DatasetColumn {
	seen := make(map[string]bool)
	for _, raw := range records {
		for key := range raw {
			if models.IsAnnotation(key) {
				continue
			}
			seen[key] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	var cols []models.DatasetColumn
	for _, name := range names {
		cols = append(cols, models.DatasetColumn{
			Name:        name,
			DisplayName: displayName(name),
			DataType:    inferDataType(name, records),
		})
	}
	return cols
}

// inferDataType tags a column from the first record that has the field.
func inferDataType(field string, records []models.RawRecord) string {
	for _, raw := range records {
		if _, ok := raw[field]; !ok {
			continue
		}
		switch models.FieldValueFrom(raw, field).Kind {
		case models.KindLookup:
			return "lookup"
		case models.KindOptionSet:
			return "optionset"
		case models.KindScalar:
			switch raw[field].(type) {
			case float64:
				return "number"
			case bool:
				return "boolean"
			}
			return "string"
		}
	}
	return "string"
}

// displayName renders a logical name for humans when no label metadata is
// available: lookup-value wrapping stripped, underscores spaced.
func displayName(logicalName string) string {
	name := strings.TrimSuffix(strings.TrimPrefix(logicalName, "_"), "_value")
	return strings.ReplaceAll(name, "_", " ")
}

func recordID(raw models.RawRecord, idAttr string, index int) string {
	if idAttr != "" {
		if id := models.CoerceString(raw[idAttr]); id != "" {
			return id
		}
	}
	// Fall back to any field that looks like a record identifier.
	for key, value := range raw {
		if models.IsAnnotation(key) || !strings.HasSuffix(key, "id") {
			continue
		}
		id := models.CoerceString(value)
		if _, err := uuid.Parse(id); err == nil {
			return id
		}
	}
	// Deterministic synthetic id for records with no identifier field.
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("record-%d", index))).String()
}
