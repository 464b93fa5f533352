// Package webapi is a thin typed client over the remote metadata/data API.
// It owns URL construction, bearer auth, and response-envelope decoding;
// everything above it works with models types and classified errors.
package webapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/craftui/dataset-engine/pkg/apperrors"
	"github.com/craftui/dataset-engine/pkg/config"
	"github.com/craftui/dataset-engine/pkg/models"
)

// Doer executes one HTTP request. *http.Client satisfies it; tests inject
// fakes. Retry policy, if any, lives behind this interface — the client
// itself never retries.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is the typed API client. All methods take a context and return
// classified errors (see pkg/apperrors): absence is ErrNotFound, auth
// failures ErrUnauthorized, everything else ErrTransport or
// ErrMalformedResponse.
type Client struct {
	baseURL    string
	apiVersion string
	doer       Doer
	tokens     TokenSource
	logger     *zap.Logger
}

// NewClient creates a Client from configuration. doer may be nil, in which
// case a default http.Client with the configured timeout is used.
func NewClient(cfg *config.Config, doer Doer, tokens TokenSource, logger *zap.Logger) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: time.Duration(cfg.HTTPTimeoutSeconds) * time.Second}
	}
	if tokens == nil {
		tokens = StaticTokenSource(cfg.APIToken)
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.APIBaseURL, "/"),
		apiVersion: cfg.APIVersion,
		doer:       doer,
		tokens:     tokens,
		logger:     logger.Named("webapi"),
	}
}

// listEnvelope is the collection response shape: a value array plus the
// optional count and continuation annotations.
type listEnvelope struct {
	Value    []models.RawRecord `json:"value"`
	Count    *int64             `json:"@odata.count"`
	NextLink string             `json:"@odata.nextLink"`
}

// apiURL joins path and query onto the versioned API root. path must not
// start with a slash.
func (c *Client) apiURL(path string, query url.Values) string {
	u := fmt.Sprintf("%s/api/data/%s/%s", c.baseURL, c.apiVersion, path)
	if len(query) > 0 {
		u += "?" + encodeQuery(query)
	}
	return u
}

// escapeSingleQuotes doubles single quotes per the OData string-literal
// rules, so caller-supplied names cannot terminate the literal early.
func escapeSingleQuotes(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// knownQueryKeys fixes the order of the common OData options so URLs are
// stable across runs; any other key present in the values follows, sorted.
var knownQueryKeys = []string{"$select", "$filter", "$orderby", "$expand", "$count", "$top", "savedQuery", "userQuery", "fetchXml"}

// encodeQuery preserves OData's literal $-prefixed keys and single quotes,
// which url.Values.Encode would escape in ways some gateways reject. Every
// key in query is emitted; known keys first, the rest in sorted order.
func encodeQuery(query url.Values) string {
	known := make(map[string]bool, len(knownQueryKeys))
	for _, key := range knownQueryKeys {
		known[key] = true
	}

	var parts []string
	appendKey := func(key string) {
		for _, v := range query[key] {
			parts = append(parts, key+"="+url.QueryEscape(v))
		}
	}
	for _, key := range knownQueryKeys {
		appendKey(key)
	}
	var rest []string
	for key := range query {
		if !known[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		appendKey(key)
	}
	return strings.Join(parts, "&")
}

// do executes one request and returns the response body. Non-2xx statuses
// are classified via apperrors.FromStatus and wrapped with the request
// context; the caller never sees a raw *http.Response.
func (c *Client) do(ctx context.Context, method, rawURL string, body any, headers map[string]string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("OData-MaxVersion", "4.0")
	req.Header.Set("OData-Version", "4.0")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTransport, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", apperrors.ErrTransport, err)
	}

	if statusErr := apperrors.FromStatus(resp.StatusCode); statusErr != nil {
		c.logger.Debug("request failed",
			zap.String("method", method),
			zap.String("url", rawURL),
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%s %s: %w", method, rawURL, statusErr)
	}

	return payload, nil
}

// getList fetches a collection URL and decodes the standard envelope.
func (c *Client) getList(ctx context.Context, rawURL string, headers map[string]string) (*listEnvelope, error) {
	payload, err := c.do(ctx, http.MethodGet, rawURL, nil, headers)
	if err != nil {
		return nil, err
	}
	var envelope listEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode list envelope: %v", apperrors.ErrMalformedResponse, err)
	}
	return &envelope, nil
}

// getOne fetches a single-record URL and decodes it into out.
func (c *Client) getOne(ctx context.Context, rawURL string, out any) error {
	payload, err := c.do(ctx, http.MethodGet, rawURL, nil, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: decode record: %v", apperrors.ErrMalformedResponse, err)
	}
	return nil
}
