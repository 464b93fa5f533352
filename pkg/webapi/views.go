package webapi

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/craftui/dataset-engine/pkg/apperrors"
	"github.com/craftui/dataset-engine/pkg/models"
)

// View queries live in two namespaces: the system saved-query collection
// and the per-user personal-query collection. Both carry the same query
// document shape but differ in fields and flags.

const (
	savedQuerySelect = "savedqueryid,name,returnedtypecode,fetchxml,layoutxml,isdefault,description"
	userQuerySelect  = "userqueryid,name,returnedtypecode,fetchxml,layoutxml,description"

	// querytype 0 is the public list-view kind; other values are internal
	// (advanced find, lookup, offline) and are not browsable views.
	publicViewFilter = "querytype eq 0"
)

// ListSavedQueries returns the system views registered for an entity.
func (c *Client) ListSavedQueries(ctx context.Context, entityName string) ([]models.ViewDefinition, error) {
	query := url.Values{
		"$select": []string{savedQuerySelect},
		"$filter": []string{fmt.Sprintf("returnedtypecode eq '%s' and %s", escapeSingleQuotes(entityName), publicViewFilter)},
	}
	envelope, err := c.getList(ctx, c.apiURL("savedqueries", query), nil)
	if err != nil {
		return nil, fmt.Errorf("list saved queries for %s: %w", entityName, err)
	}
	return viewsFrom(envelope.Value, false), nil
}

// ListUserQueries returns the calling user's personal views for an entity.
func (c *Client) ListUserQueries(ctx context.Context, entityName string) ([]models.ViewDefinition, error) {
	query := url.Values{
		"$select": []string{userQuerySelect},
		"$filter": []string{fmt.Sprintf("returnedtypecode eq '%s'", escapeSingleQuotes(entityName))},
	}
	envelope, err := c.getList(ctx, c.apiURL("userqueries", query), nil)
	if err != nil {
		return nil, fmt.Errorf("list user queries for %s: %w", entityName, err)
	}
	return viewsFrom(envelope.Value, true), nil
}

// GetSavedQuery fetches one system view by id.
func (c *Client) GetSavedQuery(ctx context.Context, viewID string) (*models.ViewDefinition, error) {
	if _, err := uuid.Parse(viewID); err != nil {
		return nil, fmt.Errorf("%w: view id %q is not a valid identifier", apperrors.ErrNotFound, viewID)
	}

	path := fmt.Sprintf("savedqueries(%s)", viewID)
	query := url.Values{"$select": []string{savedQuerySelect}}

	var raw models.RawRecord
	if err := c.getOne(ctx, c.apiURL(path, query), &raw); err != nil {
		return nil, fmt.Errorf("get saved query %s: %w", viewID, err)
	}
	view := viewFrom(raw, false)
	return &view, nil
}

// GetUserQuery fetches one personal view by id.
func (c *Client) GetUserQuery(ctx context.Context, viewID string) (*models.ViewDefinition, error) {
	if _, err := uuid.Parse(viewID); err != nil {
		return nil, fmt.Errorf("%w: view id %q is not a valid identifier", apperrors.ErrNotFound, viewID)
	}

	path := fmt.Sprintf("userqueries(%s)", viewID)
	query := url.Values{"$select": []string{userQuerySelect}}

	var raw models.RawRecord
	if err := c.getOne(ctx, c.apiURL(path, query), &raw); err != nil {
		return nil, fmt.Errorf("get user query %s: %w", viewID, err)
	}
	view := viewFrom(raw, true)
	return &view, nil
}

// ListViewEntities returns the distinct entity logical names that have at
// least one public saved view. Relationship metadata is a superset of what
// is meaningfully browsable; this is the ground truth for browsability.
func (c *Client) ListViewEntities(ctx context.Context) ([]string, error) {
	query := url.Values{
		"$select": []string{"returnedtypecode"},
		"$filter": []string{publicViewFilter},
	}
	envelope, err := c.getList(ctx, c.apiURL("savedqueries", query), nil)
	if err != nil {
		return nil, fmt.Errorf("list view entities: %w", err)
	}

	seen := make(map[string]bool)
	var entities []string
	for _, raw := range envelope.Value {
		name := models.CoerceString(raw["returnedtypecode"])
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		entities = append(entities, name)
	}
	return entities, nil
}

func viewsFrom(rows []models.RawRecord, personal bool) []models.ViewDefinition {
	var views []models.ViewDefinition
	for _, raw := range rows {
		views = append(views, viewFrom(raw, personal))
	}
	return views
}

func viewFrom(raw models.RawRecord, personal bool) models.ViewDefinition {
	idField := "savedqueryid"
	if personal {
		idField = "userqueryid"
	}
	view := models.ViewDefinition{
		ID:          models.CoerceString(raw[idField]),
		Name:        models.CoerceString(raw["name"]),
		EntityName:  models.CoerceString(raw["returnedtypecode"]),
		FetchXML:    models.CoerceString(raw["fetchxml"]),
		LayoutXML:   models.CoerceString(raw["layoutxml"]),
		Description: models.CoerceString(raw["description"]),
		IsPersonal:  personal,
		IsPrivate:   personal,
	}
	if v, ok := raw["isdefault"].(bool); ok {
		view.IsDefault = v
	}
	return view
}
