// Package client talks to the Virtualpaper REST API on behalf of the console.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/virtualpaper/console/internal/domain"
)

// DefaultTimeout is the default HTTP timeout for API requests
const DefaultTimeout = 30 * time.Second

// DefaultMaxBodySize limits how much of a response body is read
const DefaultMaxBodySize = 10 * 1024 * 1024

// DefaultResources maps console resource names to backend paths
func DefaultResources() map[string]string {
	return map[string]string{
		domain.ResourceRules:        "processing/rules",
		domain.ResourceDocuments:    "documents",
		domain.ResourceMetadataKeys: "metadata/keys",
	}
}

// Config holds configuration for the backend client
type Config struct {
	// BaseURL is the API root, e.g. https://papers.example.com/api/v1
	BaseURL string
	// Timeout is the HTTP request timeout
	Timeout time.Duration
	// Resources overrides resource name to path mappings
	Resources map[string]string
	// HealthPath is requested by HealthCheck
	HealthPath  string
	UserAgent   string
	MaxBodySize int64
}

// TokenSource supplies the bearer token for each request
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token
type StaticToken string

// Token implements TokenSource
func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// Client implements domain.Backend over HTTP
type Client struct {
	config     Config
	tokens     TokenSource
	httpClient *http.Client
}

// New creates a client; tokens may be nil for unauthenticated backends
func New(config Config, tokens TokenSource) *Client {
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxBodySize == 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	if config.HealthPath == "" {
		config.HealthPath = "version"
	}
	if config.UserAgent == "" {
		config.UserAgent = "virtualpaper-console"
	}
	resources := DefaultResources()
	for name, path := range config.Resources {
		resources[name] = path
	}
	config.Resources = resources
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Client{
		config: config,
		tokens: tokens,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// resourcePath returns the backend path for a resource name
func (c *Client) resourcePath(resource string) string {
	if path, ok := c.config.Resources[resource]; ok {
		return path
	}
	return resource
}

// errorBody is the backend's error envelope
type errorBody struct {
	Error string `json:"Error"`
}

// do performs one request and decodes a JSON response into out
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) (http.Header, error) {
	endpoint := c.config.BaseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, domain.NewAppErrorWithCause(domain.ErrUnauthorized, "No API token available", 401, err, nil)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.NewAppErrorWithCause(domain.ErrTimeout, "Backend request timed out", 504, err, map[string]any{"path": path})
		}
		return nil, domain.NewAppErrorWithCause(domain.ErrNetwork, "Backend is unreachable", 502, err, map[string]any{"path": path})
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBodySize))
	if err != nil {
		return nil, domain.NewAppErrorWithCause(domain.ErrNetwork, "Failed to read backend response", 502, err, nil)
	}

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("Backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.Header, upstreamError(resp.StatusCode, data)
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.Header, domain.NewAppErrorWithCause(domain.ErrUpstream, "Failed to parse backend response", 502, err, map[string]any{"path": path})
		}
	}
	return resp.Header, nil
}

// upstreamError keeps the backend's message verbatim so the user sees exactly what the server said
func upstreamError(status int, data []byte) *domain.AppError {
	var body errorBody
	message := ""
	if err := json.Unmarshal(data, &body); err == nil {
		message = body.Error
	}
	if message == "" {
		message = http.StatusText(status)
	}

	code := domain.ErrUpstream
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		code = domain.ErrUnauthorized
	case http.StatusNotFound:
		code = domain.ErrNotFound
	}
	return domain.NewAppError(code, message, status, map[string]any{"upstream_status": status})
}

// Get fetches one record
func (c *Client) Get(ctx context.Context, resource, id string, out any) error {
	_, err := c.do(ctx, http.MethodGet, c.resourcePath(resource)+"/"+url.PathEscape(id), nil, nil, out)
	return err
}

// GetList fetches one page of records and the total count
func (c *Client) GetList(ctx context.Context, resource string, params domain.ListParams, out any) (int, error) {
	query, err := listQuery(params.Pagination, params.Sort, params.Filter)
	if err != nil {
		return 0, err
	}
	header, err := c.do(ctx, http.MethodGet, c.resourcePath(resource), query, nil, out)
	if err != nil {
		return 0, err
	}
	return totalFromHeader(header)
}

// GetManyReference lists records whose target field references id
func (c *Client) GetManyReference(ctx context.Context, resource string, params domain.ReferenceParams, out any) (int, error) {
	filter := make(map[string]any, len(params.Filter)+1)
	for k, v := range params.Filter {
		filter[k] = v
	}
	filter[params.Target] = params.ID

	query, err := listQuery(params.Pagination, params.Sort, filter)
	if err != nil {
		return 0, err
	}
	header, err := c.do(ctx, http.MethodGet, c.resourcePath(resource), query, nil, out)
	if err != nil {
		return 0, err
	}
	return totalFromHeader(header)
}

// Create posts a new record
func (c *Client) Create(ctx context.Context, resource string, data any, out any) error {
	_, err := c.do(ctx, http.MethodPost, c.resourcePath(resource), nil, data, out)
	return err
}

// Update replaces a record
func (c *Client) Update(ctx context.Context, resource, id string, data any, out any) error {
	_, err := c.do(ctx, http.MethodPut, c.resourcePath(resource)+"/"+url.PathEscape(id), nil, data, out)
	return err
}

// Delete removes a record
func (c *Client) Delete(ctx context.Context, resource, id string, out any) error {
	_, err := c.do(ctx, http.MethodDelete, c.resourcePath(resource)+"/"+url.PathEscape(id), nil, nil, out)
	return err
}

// TestRule asks the backend to evaluate a stored rule against a document
func (c *Client) TestRule(ctx context.Context, ruleID int, req domain.TestRuleRequest) (*domain.RuleTestResult, error) {
	path := fmt.Sprintf("%s/%d/test", c.resourcePath(domain.ResourceRules), ruleID)
	var result domain.RuleTestResult
	if _, err := c.do(ctx, http.MethodPut, path, nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ReorderRules stores a new evaluation order
func (c *Client) ReorderRules(ctx context.Context, ids []int) error {
	path := c.resourcePath(domain.ResourceRules) + "/reorder"
	body := struct {
		IDs []int `json:"ids"`
	}{IDs: ids}
	_, err := c.do(ctx, http.MethodPut, path, nil, body, nil)
	return err
}

// HealthCheck reports whether the backend answers
func (c *Client) HealthCheck(ctx context.Context) domain.HealthStatus {
	start := time.Now()
	_, err := c.do(ctx, http.MethodGet, c.config.HealthPath, nil, nil, nil)
	latency := time.Since(start)

	details := map[string]any{
		"base_url":   c.config.BaseURL,
		"latency_ms": latency.Milliseconds(),
	}
	if err != nil {
		details["error"] = err.Error()
		return domain.HealthStatus{
			Status:    domain.HealthStatusUnhealthy,
			Message:   "Backend is not reachable",
			Details:   details,
			Timestamp: time.Now(),
		}
	}
	return domain.HealthStatus{
		Status:    domain.HealthStatusHealthy,
		Message:   "Backend is reachable",
		Details:   details,
		Timestamp: time.Now(),
	}
}

func listQuery(p domain.Pagination, s domain.Sort, filter map[string]any) (url.Values, error) {
	query := url.Values{}
	if p.Page > 0 {
		query.Set("page", strconv.Itoa(p.Page))
	}
	if p.PerPage > 0 {
		query.Set("page_size", strconv.Itoa(p.PerPage))
	}
	if s.Field != "" {
		query.Set("sort", s.Field)
		order := strings.ToUpper(s.Order)
		if order != "DESC" {
			order = "ASC"
		}
		query.Set("order", order)
	}
	if len(filter) > 0 {
		encoded, err := json.Marshal(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to encode filter: %w", err)
		}
		query.Set("filter", string(encoded))
	}
	return query, nil
}

// totalFromHeader reads "Content-Range: rules 0-24/319", falling back to X-Total-Count
func totalFromHeader(header http.Header) (int, error) {
	if cr := header.Get("Content-Range"); cr != "" {
		if _, size, ok := strings.Cut(cr, "/"); ok {
			if total, err := strconv.Atoi(strings.TrimSpace(size)); err == nil {
				return total, nil
			}
		}
		return 0, domain.NewAppError(domain.ErrUpstream, "Malformed Content-Range header", 502, map[string]any{"content_range": cr})
	}
	if tc := header.Get("X-Total-Count"); tc != "" {
		if total, err := strconv.Atoi(strings.TrimSpace(tc)); err == nil {
			return total, nil
		}
	}
	return 0, domain.NewAppError(domain.ErrUpstream, "The Content-Range header is missing in the backend response", 502, nil)
}
