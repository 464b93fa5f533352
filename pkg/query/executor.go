// Package query executes resolved views and raw query documents against the
// record API, handling paging and counts. Executions never return Go
// errors: every failure mode lands in the RecordPage's Success/Error pair
// so partial-data consumers can render "unknown" instead of crashing.
package query

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/craftui/dataset-engine/pkg/fetchxml"
	"github.com/craftui/dataset-engine/pkg/models"
	"github.com/craftui/dataset-engine/pkg/webapi"
)

// RecordAPI is the slice of the metadata client the executor uses.
// *webapi.Client satisfies it.
type RecordAPI interface {
	GetEntityDefinition(ctx context.Context, logicalName string) (*models.EntityInfo, error)
	ListRecords(ctx context.Context, collection string, opts webapi.ListOptions) (*webapi.RecordsResult, error)
}

// Options shapes one execution. Page (offset-style) and NextLink
// (cursor-style) are mutually exclusive; supplying both fails the page.
type Options struct {
	MaxPageSize int

	// Page is the 1-based page number for offset-style paging.
	Page int

	// NextLink is a continuation token from a previous page.
	NextLink string

	// ExtraFilter is conjoined with the view's own filter by the remote
	// engine; OrderBy overrides the view's ordering.
	ExtraFilter string
	OrderBy     string

	IncludeCount bool
}

// defaultRawPageSize bounds offset-paged raw executions when neither the
// caller nor the executor configured a page size.
const defaultRawPageSize = 50

// Executor runs views and raw query text against the record API.
type Executor struct {
	api         RecordAPI
	maxPageSize int
	logger      *zap.Logger
}

// NewExecutor creates an Executor. maxPageSize caps every request
// regardless of what callers ask for; zero means uncapped.
func NewExecutor(api RecordAPI, maxPageSize int, logger *zap.Logger) *Executor {
	return &Executor{
		api:         api,
		maxPageSize: maxPageSize,
		logger:      logger.Named("record-query"),
	}
}

// Execute runs a resolved view. The request references the view by id so
// the remote engine applies the view's own columns and filter; the caller's
// paging, extra filter and ordering are layered on top.
func (e *Executor) Execute(ctx context.Context, view *models.ViewDefinition, opts Options) *models.RecordPage {
	page := &models.RecordPage{View: view, Page: opts.Page}

	if view == nil {
		return failPage(page, "no view supplied")
	}
	if opts.Page > 0 && opts.NextLink != "" {
		return failPage(page, "page number and continuation token are mutually exclusive")
	}

	// Offset-style paging has no structured parameter: the dialect encodes
	// paging inline, so page > 1 runs the view's own query text with the
	// page attributes injected. That path cannot layer structured filter
	// or ordering options on top, so refuse them rather than drop them.
	if opts.Page > 1 {
		if opts.ExtraFilter != "" || opts.OrderBy != "" {
			return failPage(page, "extra filter and ordering cannot be combined with offset paging; use a continuation token or encode them in the view's query document")
		}
		raw := e.ExecuteRaw(ctx, view.FetchXML, view.EntityName, opts)
		raw.View = view
		return raw
	}

	info, err := e.api.GetEntityDefinition(ctx, view.EntityName)
	if err != nil {
		return failPage(page, fmt.Sprintf("resolve collection for %s: %v", view.EntityName, err))
	}

	listOpts := webapi.ListOptions{
		Filter:       opts.ExtraFilter,
		OrderBy:      opts.OrderBy,
		MaxPageSize:  e.capPageSize(opts.MaxPageSize),
		NextLink:     opts.NextLink,
		IncludeCount: opts.IncludeCount,
	}
	if view.IsPersonal {
		listOpts.UserQueryID = view.ID
	} else {
		listOpts.SavedQueryID = view.ID
	}

	result, err := e.api.ListRecords(ctx, info.CollectionName, listOpts)
	if err != nil {
		e.logger.Warn("view execution failed",
			zap.String("view", view.Name),
			zap.String("entity", view.EntityName),
			zap.Error(err))
		return failPage(page, err.Error())
	}

	page.Success = true
	page.Entities = result.Records
	page.NextLink = result.NextLink
	page.TotalCount = result.Count
	return page
}

// ExecuteRaw runs raw query text when no view id is available. Paging is a
// textual mutation of the document itself.
func (e *Executor) ExecuteRaw(ctx context.Context, queryText, entityName string, opts Options) *models.RecordPage {
	page := &models.RecordPage{FetchXML: queryText, Page: opts.Page}

	if opts.Page > 0 && opts.NextLink != "" {
		return failPage(page, "page number and continuation token are mutually exclusive")
	}
	// The fetchXml parameter cannot be combined with $filter/$orderby, and
	// rewriting OData expressions into the query dialect would change their
	// semantics. Refusing is better than silently dropping them.
	if opts.ExtraFilter != "" || opts.OrderBy != "" {
		return failPage(page, "extra filter and ordering cannot be applied to raw query execution; encode them in the query document")
	}

	if opts.Page > 0 {
		size := e.capPageSize(opts.MaxPageSize)
		if size == 0 {
			size = e.maxPageSize
		}
		if size == 0 {
			size = defaultRawPageSize
		}
		mutated, err := fetchxml.InjectPaging(queryText, opts.Page, size)
		if err != nil {
			return failPage(page, fmt.Sprintf("inject paging: %v", err))
		}
		queryText = mutated
		page.FetchXML = mutated
	}

	info, err := e.api.GetEntityDefinition(ctx, entityName)
	if err != nil {
		return failPage(page, fmt.Sprintf("resolve collection for %s: %v", entityName, err))
	}

	result, err := e.api.ListRecords(ctx, info.CollectionName, webapi.ListOptions{
		FetchXML:     queryText,
		MaxPageSize:  e.capPageSize(opts.MaxPageSize),
		NextLink:     opts.NextLink,
		IncludeCount: opts.IncludeCount,
	})
	if err != nil {
		e.logger.Warn("raw query execution failed",
			zap.String("entity", entityName),
			zap.Error(err))
		return failPage(page, err.Error())
	}

	page.Success = true
	page.Entities = result.Records
	page.NextLink = result.NextLink
	page.TotalCount = result.Count
	return page
}

// Count issues a dedicated count-only request for the view: a
// view-referenced request carrying the count annotation and a minimal
// page, so the view's own filter bounds the number. It returns nil, not
// zero, on failure so callers can distinguish "no records" from "count
// unavailable".
func (e *Executor) Count(ctx context.Context, view *models.ViewDefinition) *int64 {
	if view == nil {
		return nil
	}
	info, err := e.api.GetEntityDefinition(ctx, view.EntityName)
	if err != nil {
		e.logger.Debug("count failed resolving collection",
			zap.String("entity", view.EntityName), zap.Error(err))
		return nil
	}

	listOpts := webapi.ListOptions{IncludeCount: true, MaxPageSize: 1}
	if view.IsPersonal {
		listOpts.UserQueryID = view.ID
	} else {
		listOpts.SavedQueryID = view.ID
	}

	result, err := e.api.ListRecords(ctx, info.CollectionName, listOpts)
	if err != nil {
		e.logger.Debug("count request failed",
			zap.String("entity", view.EntityName), zap.Error(err))
		return nil
	}
	return result.Count
}

func (e *Executor) capPageSize(requested int) int {
	if requested <= 0 {
		return 0
	}
	if e.maxPageSize > 0 && requested > e.maxPageSize {
		return e.maxPageSize
	}
	return requested
}

func failPage(page *models.RecordPage, msg string) *models.RecordPage {
	page.Success = false
	page.Error = msg
	return page
}
