// Package snowz is a Go client for the snowz HTTP API.
package snowz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"
)

// DefaultHTTPTimeout is used by clients created without a custom http.Client.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the snowz REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Dependency is one declared dependency.
type Dependency struct {
	Coordinate string `json:"coordinate"`
	Scope      string `json:"scope"`
}

// RawDescriptor is the unvalidated descriptor sent for resolution.
type RawDescriptor struct {
	Plugins         []string     `json:"plugins,omitempty"`
	Group           string       `json:"group"`
	Version         string       `json:"version"`
	Snapshot        bool         `json:"snapshot"`
	Repositories    []string     `json:"repositories,omitempty"`
	Dependencies    []Dependency `json:"dependencies,omitempty"`
	LanguageVersion int          `json:"languageVersion,omitempty"`
	Publication     string       `json:"publication,omitempty"`
	SourcesJar      bool         `json:"sourcesJar,omitempty"`
	JavadocJar      bool         `json:"javadocJar,omitempty"`
	Encoding        string       `json:"encoding,omitempty"`
}

// Descriptor is the resolved, normalized descriptor.
type Descriptor struct {
	Plugins         []string     `json:"plugins"`
	Group           string       `json:"group"`
	BaseVersion     string       `json:"baseVersion"`
	Snapshot        bool         `json:"snapshot"`
	Version         string       `json:"version"`
	Repositories    []string     `json:"repositories"`
	Dependencies    []Dependency `json:"dependencies"`
	LanguageVersion int          `json:"languageVersion"`
	Publication     string       `json:"publication,omitempty"`
	SourcesJar      bool         `json:"sourcesJar"`
	JavadocJar      bool         `json:"javadocJar"`
	Encoding        string       `json:"encoding"`
}

// MigrationRecord describes one recorded migration run.
type MigrationRecord struct {
	RunID      string `json:"run_id"`
	Group      string `json:"group"`
	Version    string `json:"version"`
	Dialect    string `json:"dialect"`
	Statements int    `json:"statements"`
	Applied    int    `json:"applied"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	CreatedAt  int64  `json:"created_at"`
}

// APIError represents a non-2xx response. Field is set for descriptor
// validation failures.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Field      string `json:"field"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("snowz api error (%d): %s %s - %s", e.StatusCode, e.Code, e.Field, e.Message)
	}
	if e.Code != "" {
		return fmt.Sprintf("snowz api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("snowz api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the snowz API. When httpClient is nil, a
// default client with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// Resolve validates and normalizes raw on the server.
func (c *Client) Resolve(ctx context.Context, raw RawDescriptor) (Descriptor, error) {
	var desc Descriptor
	if err := c.post(ctx, "/api/v1/descriptors/resolve", raw, &desc); err != nil {
		return Descriptor{}, err
	}
	return desc, nil
}

// Migrations lists the most recent migration runs, newest first.
func (c *Client) Migrations(ctx context.Context, limit int) ([]MigrationRecord, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var records []MigrationRecord
	if err := c.get(ctx, "/api/v1/migrations", query, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Health reports whether the server answers its health probe.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/healthz", nil, nil)
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, nil, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, query, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, body io.Reader) (*http.Request, error) {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	if len(query) > 0 {
		rel.RawQuery = query.Encode()
	}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, apiErr)
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
