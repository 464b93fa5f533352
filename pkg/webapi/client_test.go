package webapi

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/craftui/dataset-engine/pkg/apperrors"
	"github.com/craftui/dataset-engine/pkg/config"
)

// fakeDoer replays canned responses and records every request it saw.
type fakeDoer struct {
	status   int
	body     string
	err      error
	requests []*http.Request
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(f.body)),
		Header:     make(http.Header),
	}, nil
}

func (f *fakeDoer) lastRequest(t *testing.T) *http.Request {
	t.Helper()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func testClient(doer *fakeDoer) *Client {
	cfg := &config.Config{
		APIBaseURL:         "https://org.example.test",
		APIVersion:         "v9.2",
		APIToken:           "test-token",
		HTTPTimeoutSeconds: 30,
	}
	return NewClient(cfg, doer, nil, zap.NewNop())
}

func TestGetEntityDefinition(t *testing.T) {
	doer := &fakeDoer{body: `{
		"LogicalName": "account",
		"LogicalCollectionName": "accounts",
		"PrimaryIdAttribute": "accountid",
		"PrimaryNameAttribute": "name",
		"DisplayName": {"UserLocalizedLabel": {"Label": "Account"}}
	}`}
	client := testClient(doer)

	info, err := client.GetEntityDefinition(context.Background(), "account")
	require.NoError(t, err)

	assert.Equal(t, "account", info.LogicalName)
	assert.Equal(t, "accounts", info.CollectionName)
	assert.Equal(t, "accountid", info.PrimaryIDAttribute)
	assert.Equal(t, "Account", info.DisplayName)

	req := doer.lastRequest(t)
	assert.Contains(t, req.URL.String(), "EntityDefinitions(LogicalName='account')")
	assert.Equal(t, "Bearer test-token", req.Header.Get("Authorization"))
}

func TestGetEntityDefinition_QuotedName(t *testing.T) {
	doer := &fakeDoer{body: `{"LogicalName": "o'brien", "PrimaryIdAttribute": "id"}`}
	client := testClient(doer)

	_, err := client.GetEntityDefinition(context.Background(), "o'brien")
	require.NoError(t, err)

	assert.Contains(t, doer.lastRequest(t).URL.Path, "EntityDefinitions(LogicalName='o''brien')")
}

func TestGetEntityDefinition_CollectionNameFallback(t *testing.T) {
	// Older schema snapshots omit LogicalCollectionName; the convention is
	// the pluralized logical name.
	doer := &fakeDoer{body: `{"LogicalName": "opportunity", "PrimaryIdAttribute": "opportunityid"}`}
	client := testClient(doer)

	info, err := client.GetEntityDefinition(context.Background(), "opportunity")
	require.NoError(t, err)
	assert.Equal(t, "opportunities", info.CollectionName)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"missing entity", http.StatusNotFound, apperrors.ErrNotFound},
		{"expired token", http.StatusUnauthorized, apperrors.ErrUnauthorized},
		{"throttled", http.StatusTooManyRequests, apperrors.ErrRateLimited},
		{"server error", http.StatusInternalServerError, apperrors.ErrTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := testClient(&fakeDoer{status: tt.status, body: `{}`})
			_, err := client.GetEntityDefinition(context.Background(), "account")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestListRecords(t *testing.T) {
	t.Run("view reference and annotations", func(t *testing.T) {
		doer := &fakeDoer{body: `{"value": [{"name": "Acme"}], "@odata.nextLink": "https://org.example.test/next"}`}
		client := testClient(doer)

		result, err := client.ListRecords(context.Background(), "accounts", ListOptions{
			SavedQueryID: "00000000-0000-0000-0000-000000000001",
			MaxPageSize:  25,
		})
		require.NoError(t, err)
		require.Len(t, result.Records, 1)
		assert.Equal(t, "https://org.example.test/next", result.NextLink)

		req := doer.lastRequest(t)
		assert.Contains(t, req.URL.RawQuery, "savedQuery=")
		prefer := req.Header.Get("Prefer")
		assert.Contains(t, prefer, `odata.include-annotations="*"`)
		assert.Contains(t, prefer, "odata.maxpagesize=25")
	})

	t.Run("fetchXml wins over structured options", func(t *testing.T) {
		doer := &fakeDoer{body: `{"value": []}`}
		client := testClient(doer)

		_, err := client.ListRecords(context.Background(), "accounts", ListOptions{
			FetchXML: `<fetch><entity name="account"/></fetch>`,
			Select:   []string{"name"},
		})
		require.NoError(t, err)

		req := doer.lastRequest(t)
		assert.Contains(t, req.URL.RawQuery, "fetchXml=")
		assert.NotContains(t, req.URL.RawQuery, "%24select")
	})

	t.Run("continuation link used verbatim", func(t *testing.T) {
		doer := &fakeDoer{body: `{"value": []}`}
		client := testClient(doer)

		next := "https://org.example.test/api/data/v9.2/accounts?$skiptoken=abc"
		_, err := client.ListRecords(context.Background(), "accounts", ListOptions{NextLink: next})
		require.NoError(t, err)

		assert.Equal(t, next, doer.lastRequest(t).URL.String())
	})

	t.Run("count annotation decoded", func(t *testing.T) {
		doer := &fakeDoer{body: `{"value": [], "@odata.count": 512}`}
		client := testClient(doer)

		result, err := client.ListRecords(context.Background(), "accounts", ListOptions{IncludeCount: true})
		require.NoError(t, err)
		require.NotNil(t, result.Count)
		assert.Equal(t, int64(512), *result.Count)
	})
}

func TestCountRecords(t *testing.T) {
	t.Run("plain integer body", func(t *testing.T) {
		client := testClient(&fakeDoer{body: "1234\n"})

		n, err := client.CountRecords(context.Background(), "accounts", "")
		require.NoError(t, err)
		assert.Equal(t, int64(1234), n)
	})

	t.Run("malformed body", func(t *testing.T) {
		client := testClient(&fakeDoer{body: "not a number"})

		_, err := client.CountRecords(context.Background(), "accounts", "")
		assert.ErrorIs(t, err, apperrors.ErrMalformedResponse)
	})
}

func TestEncodeQuery(t *testing.T) {
	t.Run("unknown keys are kept", func(t *testing.T) {
		query := url.Values{}
		query.Set("$select", "name")
		query.Set("$expand", "primarycontactid($select=fullname)")
		query.Set("$skiptoken", "abc")

		encoded := encodeQuery(query)
		assert.Contains(t, encoded, "$select=name")
		assert.Contains(t, encoded, "$expand=")
		assert.Contains(t, encoded, "$skiptoken=abc")
	})

	t.Run("known keys keep a stable order", func(t *testing.T) {
		query := url.Values{}
		query.Set("$top", "5")
		query.Set("$filter", "statecode eq 0")
		query.Set("$select", "name")

		assert.Equal(t, "$select=name&$filter=statecode+eq+0&$top=5", encodeQuery(query))
	})

	t.Run("keys outside the known set sort deterministically", func(t *testing.T) {
		query := url.Values{}
		query.Set("zcustom", "1")
		query.Set("acustom", "2")

		assert.Equal(t, "acustom=2&zcustom=1", encodeQuery(query))
	})
}

func TestMalformedEnvelope(t *testing.T) {
	client := testClient(&fakeDoer{body: `{"value": "not an array"}`})

	_, err := client.ListRecords(context.Background(), "accounts", ListOptions{})
	assert.ErrorIs(t, err, apperrors.ErrMalformedResponse)
}

func TestTransportFailure(t *testing.T) {
	client := testClient(&fakeDoer{err: io.ErrUnexpectedEOF})

	_, err := client.GetEntityDefinition(context.Background(), "account")
	assert.ErrorIs(t, err, apperrors.ErrTransport)
}
