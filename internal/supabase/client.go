// Package supabase talks to a hosted Supabase project over its PostgREST API
// and implements the record store on top of it.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"LeadDesk/internal/db"
)

// Client is a minimal PostgREST client authenticated with the service key.
type Client struct {
	restURL    string
	apiKey     string
	httpClient *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("SUPABASE_URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("SUPABASE_SERVICE_KEY is required")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("invalid SUPABASE_URL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		restURL:    strings.TrimRight(cfg.URL, "/") + "/rest/v1",
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}, nil
}

// From starts a query on a table.
func (c *Client) From(table string) *QueryBuilder {
	return &QueryBuilder{client: c, table: table, params: url.Values{}}
}

// QueryBuilder accumulates PostgREST query parameters.
type QueryBuilder struct {
	client *Client
	table  string
	params url.Values
	orders []string
	single bool
}

func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.params.Set("select", columns)
	return q
}

func (q *QueryBuilder) Eq(column string, value any) *QueryBuilder {
	q.params.Add(column, fmt.Sprintf("eq.%v", value))
	return q
}

// Is filters on null, true or false.
func (q *QueryBuilder) Is(column string, value any) *QueryBuilder {
	q.params.Add(column, fmt.Sprintf("is.%v", value))
	return q
}

func (q *QueryBuilder) In(column string, values []string) *QueryBuilder {
	q.params.Add(column, fmt.Sprintf("in.(%s)", strings.Join(values, ",")))
	return q
}

// Or adds a disjunction such as "full_name.ilike.*x*,email.ilike.*x*".
func (q *QueryBuilder) Or(expr string) *QueryBuilder {
	q.params.Add("or", "("+expr+")")
	return q
}

func (q *QueryBuilder) Order(column string, ascending bool) *QueryBuilder {
	dir := "asc"
	if !ascending {
		dir = "desc"
	}
	q.orders = append(q.orders, column+"."+dir)
	return q
}

func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	if n > 0 {
		q.params.Set("limit", fmt.Sprintf("%d", n))
	}
	return q
}

// Single asks PostgREST for exactly one object; zero rows become db.ErrNotFound.
func (q *QueryBuilder) Single() *QueryBuilder {
	q.single = true
	return q
}

func (q *QueryBuilder) url() string {
	params := url.Values{}
	for k, v := range q.params {
		params[k] = v
	}
	if len(q.orders) > 0 {
		params.Set("order", strings.Join(q.orders, ","))
	}
	u := q.client.restURL + "/" + url.PathEscape(q.table)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// Execute runs a SELECT and decodes the body into dest.
func (q *QueryBuilder) Execute(ctx context.Context, dest any) error {
	headers := map[string]string{}
	if q.single {
		headers["Accept"] = "application/vnd.pgrst.object+json"
	}
	return q.client.do(ctx, http.MethodGet, q.url(), nil, headers, dest)
}

// Insert posts rows and decodes the created representation into dest.
func (q *QueryBuilder) Insert(ctx context.Context, data any, dest any) error {
	return q.client.do(ctx, http.MethodPost, q.url(), data, map[string]string{"Prefer": "return=representation"}, dest)
}

// Update patches every row matching the filters and decodes the updated rows into dest.
func (q *QueryBuilder) Update(ctx context.Context, data any, dest any) error {
	return q.client.do(ctx, http.MethodPatch, q.url(), data, map[string]string{"Prefer": "return=representation"}, dest)
}

// Delete removes matching rows and decodes the removed rows into dest.
func (q *QueryBuilder) Delete(ctx context.Context, dest any) error {
	return q.client.do(ctx, http.MethodDelete, q.url(), nil, map[string]string{"Prefer": "return=representation"}, dest)
}

func (c *Client) do(ctx context.Context, method, reqURL string, data any, headers map[string]string, dest any) error {
	var body io.Reader
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("supabase request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return parseError(respBody, resp.StatusCode)
	}
	if dest == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Error is a PostgREST error body.
type Error struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	Hint       string `json:"hint,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("supabase error %d", e.StatusCode)
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

// Unwrap maps well-known codes onto the record store sentinels.
func (e *Error) Unwrap() error {
	switch e.Code {
	case "PGRST116":
		return db.ErrNotFound
	case "PGRST205", "42P01":
		return db.ErrRelationMissing
	case "23505":
		return db.ErrConflict
	}
	if strings.Contains(e.Message, "relation") && strings.Contains(e.Message, "does not exist") {
		return db.ErrRelationMissing
	}
	return nil
}

func parseError(body []byte, statusCode int) error {
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
		Hint    string `json:"hint"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return &Error{Code: "unknown", Message: string(body), StatusCode: statusCode}
	}
	msg := errResp.Message
	if msg == "" {
		msg = errResp.Error
	}
	return &Error{
		Code:       errResp.Code,
		Message:    msg,
		Details:    errResp.Details,
		Hint:       errResp.Hint,
		StatusCode: statusCode,
	}
}
