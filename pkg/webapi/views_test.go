package webapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftui/dataset-engine/pkg/apperrors"
)

func TestListSavedQueries(t *testing.T) {
	doer := &fakeDoer{body: `{"value": [
		{"savedqueryid": "00000000-0000-0000-0000-000000000001",
		 "name": "Active Accounts",
		 "returnedtypecode": "account",
		 "fetchxml": "<fetch><entity name=\"account\"/></fetch>",
		 "layoutxml": "<grid/>",
		 "isdefault": true},
		{"savedqueryid": "00000000-0000-0000-0000-000000000002",
		 "name": "Inactive Accounts",
		 "returnedtypecode": "account",
		 "isdefault": false}
	]}`}
	client := testClient(doer)

	views, err := client.ListSavedQueries(context.Background(), "account")
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, "Active Accounts", views[0].Name)
	assert.True(t, views[0].IsDefault)
	assert.False(t, views[0].IsPersonal)
	assert.Equal(t, "account", views[0].EntityName)
	assert.NotEmpty(t, views[0].FetchXML)

	req := doer.lastRequest(t)
	assert.Contains(t, req.URL.Path, "savedqueries")
	assert.Contains(t, req.URL.RawQuery, "querytype+eq+0")
}

func TestListSavedQueries_QuotedEntityName(t *testing.T) {
	doer := &fakeDoer{body: `{"value": []}`}
	client := testClient(doer)

	// A single quote in the logical name must not terminate the filter
	// literal; OData doubles quotes inside string literals.
	_, err := client.ListSavedQueries(context.Background(), "o'brien")
	require.NoError(t, err)

	filter := doer.lastRequest(t).URL.Query().Get("$filter")
	assert.Contains(t, filter, "returnedtypecode eq 'o''brien'")
}

func TestListUserQueries(t *testing.T) {
	doer := &fakeDoer{body: `{"value": [
		{"userqueryid": "00000000-0000-0000-0000-000000000003",
		 "name": "My Hot Leads",
		 "returnedtypecode": "lead"}
	]}`}
	client := testClient(doer)

	views, err := client.ListUserQueries(context.Background(), "lead")
	require.NoError(t, err)
	require.Len(t, views, 1)

	assert.True(t, views[0].IsPersonal)
	assert.True(t, views[0].IsPrivate)
	assert.Equal(t, "00000000-0000-0000-0000-000000000003", views[0].ID)
}

func TestGetSavedQuery_InvalidID(t *testing.T) {
	client := testClient(&fakeDoer{})

	_, err := client.GetSavedQuery(context.Background(), "not-a-guid")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetUserQuery(t *testing.T) {
	doer := &fakeDoer{body: `{
		"userqueryid": "00000000-0000-0000-0000-000000000003",
		"name": "My Hot Leads",
		"returnedtypecode": "lead",
		"fetchxml": "<fetch><entity name=\"lead\"/></fetch>"
	}`}
	client := testClient(doer)

	view, err := client.GetUserQuery(context.Background(), "00000000-0000-0000-0000-000000000003")
	require.NoError(t, err)
	assert.True(t, view.IsPersonal)
	assert.Equal(t, "lead", view.EntityName)
}

func TestGetSavedQuery_NotFound(t *testing.T) {
	client := testClient(&fakeDoer{status: http.StatusNotFound, body: `{}`})

	_, err := client.GetSavedQuery(context.Background(), "00000000-0000-0000-0000-000000000009")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListViewEntities(t *testing.T) {
	doer := &fakeDoer{body: `{"value": [
		{"returnedtypecode": "account"},
		{"returnedtypecode": "contact"},
		{"returnedtypecode": "account"}
	]}`}
	client := testClient(doer)

	entities, err := client.ListViewEntities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"account", "contact"}, entities)
}
