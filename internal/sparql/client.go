// Package sparql executes queries against a GraphDB repository over the
// SPARQL 1.1 protocol.
package sparql

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"d3fend-graphx/internal/resultset"
)

const (
	resultsMediaType = "application/sparql-results+json"
	maxErrorBody     = 512
)

// Client talks to one GraphDB repository.
type Client struct {
	baseURL    string
	repository string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient returns a client for baseURL (e.g. http://localhost:7200) and repository.
func NewClient(baseURL, repository string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		repository: repository,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint is the repository's SPARQL endpoint.
func (c *Client) Endpoint() string {
	return c.baseURL + "/repositories/" + url.PathEscape(c.repository)
}

// Execute runs a SELECT query and returns the decoded results document.
func (c *Client) Execute(ctx context.Context, query string) (*resultset.RawResult, error) {
	u := c.Endpoint() + "?" + url.Values{"query": {query}}.Encode()
	body, err := c.get(ctx, u, resultsMediaType)
	if err != nil {
		return nil, err
	}

	raw, err := resultset.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode sparql results: %w", err)
	}
	c.logger.Debug("sparql query executed",
		zap.String("repository", c.repository),
		zap.Int("bytes", len(body)))
	return raw, nil
}

type repositoryInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// CheckRepository verifies that the server is reachable and serves the configured repository.
func (c *Client) CheckRepository(ctx context.Context) error {
	body, err := c.get(ctx, c.baseURL+"/rest/repositories", "application/json")
	if err != nil {
		return err
	}

	var repos []repositoryInfo
	if err := json.Unmarshal(body, &repos); err != nil {
		return fmt.Errorf("failed to decode repository list: %w", err)
	}
	for _, r := range repos {
		if r.ID == c.repository {
			return nil
		}
	}
	return fmt.Errorf("%w: repository %q not found at %s", resultset.ErrBackendUnavailable, c.repository, c.baseURL)
}

func (c *Client) get(ctx context.Context, u, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", resultset.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt := strings.TrimSpace(string(body))
		if len(excerpt) > maxErrorBody {
			excerpt = excerpt[:maxErrorBody] + "..."
		}
		return nil, fmt.Errorf("graphdb returned %s: %s", resp.Status, excerpt)
	}
	return body, nil
}
