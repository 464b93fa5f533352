package webapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/craftui/dataset-engine/pkg/apperrors"
	"github.com/craftui/dataset-engine/pkg/models"
)

// ListOptions shapes one record-collection request. FetchXML and the
// structured fields (Select/Filter/OrderBy) are alternatives: when FetchXML
// is set the structured fields are ignored, because the query document
// already encodes them. NextLink resumes a prior page and overrides
// everything else.
type ListOptions struct {
	Select  []string
	Filter  string
	OrderBy string

	// SavedQueryID / UserQueryID reference a persisted view so the remote
	// engine applies the view's own columns and filter.
	SavedQueryID string
	UserQueryID  string

	FetchXML string

	// MaxPageSize caps the page via the Prefer header. Zero means the
	// server default.
	MaxPageSize int

	// NextLink is a continuation token from a previous RecordsResult.
	NextLink string

	// IncludeCount requests the total count annotation.
	IncludeCount bool
}

// RecordsResult is one raw page of records plus paging annotations.
type RecordsResult struct {
	Records  []models.RawRecord
	NextLink string
	Count    *int64
}

// ListRecords fetches one page of a record collection.
func (c *Client) ListRecords(ctx context.Context, collection string, opts ListOptions) (*RecordsResult, error) {
	rawURL := opts.NextLink
	if rawURL == "" {
		query := url.Values{}
		switch {
		case opts.FetchXML != "":
			query.Set("fetchXml", opts.FetchXML)
		default:
			if len(opts.Select) > 0 {
				query.Set("$select", strings.Join(opts.Select, ","))
			}
			if opts.Filter != "" {
				query.Set("$filter", opts.Filter)
			}
			if opts.OrderBy != "" {
				query.Set("$orderby", opts.OrderBy)
			}
			if opts.SavedQueryID != "" {
				query.Set("savedQuery", opts.SavedQueryID)
			}
			if opts.UserQueryID != "" {
				query.Set("userQuery", opts.UserQueryID)
			}
		}
		if opts.IncludeCount {
			query.Set("$count", "true")
		}
		rawURL = c.apiURL(collection, query)
	}

	headers := map[string]string{
		"Prefer": preferHeader(opts.MaxPageSize),
	}

	envelope, err := c.getList(ctx, rawURL, headers)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return &RecordsResult{
		Records:  envelope.Value,
		NextLink: envelope.NextLink,
		Count:    envelope.Count,
	}, nil
}

// preferHeader always requests display annotations so formatted values and
// lookup labels ride along with raw values.
func preferHeader(maxPageSize int) string {
	prefer := `odata.include-annotations="*"`
	if maxPageSize > 0 {
		prefer += ",odata.maxpagesize=" + strconv.Itoa(maxPageSize)
	}
	return prefer
}

// CountRecords issues a dedicated count-only request for a collection,
// optionally filtered.
func (c *Client) CountRecords(ctx context.Context, collection, filter string) (int64, error) {
	query := url.Values{}
	if filter != "" {
		query.Set("$filter", filter)
	}
	rawURL := c.apiURL(collection+"/$count", query)

	payload, err := c.do(ctx, http.MethodGet, rawURL, nil, nil)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}

	n, err := strconv.ParseInt(strings.TrimSpace(string(payload)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: count response %q is not a number", apperrors.ErrMalformedResponse, string(payload))
	}
	return n, nil
}

// GetRecord fetches one record by id, optionally projecting fields.
func (c *Client) GetRecord(ctx context.Context, collection, id string, selectFields []string) (models.RawRecord, error) {
	query := url.Values{}
	if len(selectFields) > 0 {
		query.Set("$select", strings.Join(selectFields, ","))
	}
	path := fmt.Sprintf("%s(%s)", collection, id)

	var raw models.RawRecord
	if err := c.getOne(ctx, c.apiURL(path, query), &raw); err != nil {
		return nil, fmt.Errorf("get %s(%s): %w", collection, id, err)
	}
	return raw, nil
}

// CreateRecord creates a record and returns the new record's id, extracted
// from the OData-EntityId response header convention when present.
func (c *Client) CreateRecord(ctx context.Context, collection string, fields map[string]any) (string, error) {
	rawURL := c.apiURL(collection, nil)
	payload, err := c.do(ctx, http.MethodPost, rawURL, fields, map[string]string{
		"Prefer": "return=representation",
	})
	if err != nil {
		return "", fmt.Errorf("create %s: %w", collection, err)
	}

	// With return=representation the body is the created record; find its
	// id by the (collection-singular)id convention, falling back to any
	// *id key.
	var raw models.RawRecord
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &raw); err == nil {
			for key, value := range raw {
				if strings.HasSuffix(key, "id") && !models.IsAnnotation(key) {
					if s := models.CoerceString(value); s != "" {
						return s, nil
					}
				}
			}
		}
	}
	return "", nil
}

// UpdateRecord applies a partial update to one record.
func (c *Client) UpdateRecord(ctx context.Context, collection, id string, fields map[string]any) error {
	path := fmt.Sprintf("%s(%s)", collection, id)
	if _, err := c.do(ctx, http.MethodPatch, c.apiURL(path, nil), fields, nil); err != nil {
		return fmt.Errorf("update %s(%s): %w", collection, id, err)
	}
	return nil
}

// DeleteRecord deletes one record.
func (c *Client) DeleteRecord(ctx context.Context, collection, id string) error {
	path := fmt.Sprintf("%s(%s)", collection, id)
	if _, err := c.do(ctx, http.MethodDelete, c.apiURL(path, nil), nil, nil); err != nil {
		return fmt.Errorf("delete %s(%s): %w", collection, id, err)
	}
	return nil
}
