package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ValueKind tags the shape of a field value so consumers pattern-match
// explicitly instead of duck-typing a dynamic map.
type ValueKind string

const (
	KindNull      ValueKind = "null"
	KindScalar    ValueKind = "scalar"
	KindLookup    ValueKind = "lookup"
	KindOptionSet ValueKind = "optionset"
)

// FieldValue is a semi-structured record field: the raw API value plus the
// optional formatted sibling the API returned with it. Lookup fields
// additionally carry the referenced id and its human-readable label.
type FieldValue struct {
	Kind      ValueKind
	Raw       any
	Formatted string

	// Lookup-only fields.
	TargetID     string
	TargetEntity string
	Label        string
}

// ScalarValue builds a plain scalar field value.
func ScalarValue(raw any, formatted string) FieldValue {
	if raw == nil {
		return FieldValue{Kind: KindNull}
	}
	return FieldValue{Kind: KindScalar, Raw: raw, Formatted: formatted}
}

// LookupValue builds a lookup field value from the raw id, the referenced
// entity (when known) and the formatted label.
func LookupValue(id, targetEntity, label string) FieldValue {
	return FieldValue{
		Kind:         KindLookup,
		Raw:          id,
		Formatted:    label,
		TargetID:     id,
		TargetEntity: targetEntity,
		Label:        label,
	}
}

// OptionSetValue builds an option-set field value from the raw numeric code
// and its formatted label.
func OptionSetValue(raw any, label string) FieldValue {
	return FieldValue{Kind: KindOptionSet, Raw: raw, Formatted: label}
}

// FieldValueFrom inspects one raw record field (with its sibling
// annotations) and produces the matching tagged value. The lookup-field
// naming convention (_name_value) identifies lookups; a formatted sibling on
// a numeric raw value identifies option sets.
func FieldValueFrom(rec RawRecord, field string) FieldValue {
	raw, ok := rec[field]
	if !ok || raw == nil {
		return FieldValue{Kind: KindNull}
	}

	formatted, _ := rec.FormattedValue(field)

	if strings.HasPrefix(field, "_") && strings.HasSuffix(field, "_value") {
		id := CoerceString(raw)
		target, _ := rec[field+LookupLogicalNameSuffix].(string)
		return LookupValue(id, target, formatted)
	}

	if formatted != "" {
		switch raw.(type) {
		case float64, int, int64, json.Number:
			return OptionSetValue(raw, formatted)
		}
	}

	return ScalarValue(raw, formatted)
}

// CoerceString renders a raw JSON value as a string, tolerating the numeric
// and boolean shapes a schemaless API hands back.
func CoerceString(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case bool:
		return fmt.Sprintf("%t", v)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
