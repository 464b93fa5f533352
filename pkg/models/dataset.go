package models

// DatasetColumn describes one column of a materialized dataset.
type DatasetColumn struct {
	Name        string
	DisplayName string
	DataType    string
	Alias       string
}

// DatasetRecord is one fully shaped record: its id plus a field map limited
// to the dataset's declared columns. Fields absent from the source record
// are absent here too, never null-padded.
type DatasetRecord struct {
	ID     string
	Fields map[string]FieldValue
}

// PagingState is the dataset's position within the larger result set.
type PagingState struct {
	HasNextPage     bool
	HasPreviousPage bool
	TotalCount      *int64
}

// Dataset is the UI-consumable result of materializing a record page:
// ordered columns, records keyed by id in page order, and paging state.
type Dataset struct {
	Columns []DatasetColumn

	// RecordIDs preserves page order; Records indexes the same values by id.
	RecordIDs []string
	Records   map[string]DatasetRecord

	Paging PagingState
}

// Get returns the record for id, if present.
func (d *Dataset) Get(id string) (DatasetRecord, bool) {
	r, ok := d.Records[id]
	return r, ok
}
