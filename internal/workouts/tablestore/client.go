package tablestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/2beens/workoutlog/internal/telemetry/tracing"
	"github.com/2beens/workoutlog/internal/workouts"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultTable    = "workouts_v2"
	DefaultPageSize = 1000
)

// APIError is a non 2xx answer of the table API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("table api status %d [%s]: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("table api status %d: %s", e.StatusCode, e.Message)
}

// Client is a workouts backend on top of a hosted REST table API
// (PostgREST dialect). The API has no transactions, so Client does not
// implement workouts.Replacer.
type Client struct {
	tableURL   string
	apiKey     string
	pageSize   int
	httpClient *http.Client
}

type Option func(c *Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithPageSize(size int) Option {
	return func(c *Client) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

func NewClient(baseURL, table, apiKey string, opts ...Option) *Client {
	if table == "" {
		table = DefaultTable
	}
	c := &Client{
		tableURL: strings.TrimRight(baseURL, "/") + "/rest/v1/" + url.PathEscape(table),
		apiKey:   apiKey,
		pageSize: DefaultPageSize,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type row struct {
	User     string  `json:"user"`
	Exercise string  `json:"exercise"`
	Weight   float64 `json:"weight"`
	Reps     int     `json:"reps"`
	Sets     int     `json:"sets"`
	Date     string  `json:"date"`
}

func toRow(e workouts.Entry) row {
	return row{
		User:     e.User,
		Exercise: e.Exercise,
		Weight:   e.Weight,
		Reps:     e.Reps,
		Sets:     e.Sets,
		Date:     e.Date.String(),
	}
}

func (c *Client) Insert(ctx context.Context, e workouts.Entry) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.tablestore.insert")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var created []workouts.Entry
	if err := c.do(ctx, http.MethodPost, nil, []row{toRow(e)}, &created); err != nil {
		return 0, err
	}
	if len(created) != 1 {
		return 0, fmt.Errorf("insert: expected 1 created row, got %d", len(created))
	}

	span.SetAttributes(attribute.Int("entry.id", created[0].ID))
	return created[0].ID, nil
}

func (c *Client) InsertMany(ctx context.Context, entries []workouts.Entry) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.tablestore.insertmany")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("count", len(entries)))

	rows := make([]row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, toRow(e))
	}

	// one request, the API inserts a batch atomically
	var created []workouts.Entry
	if err := c.do(ctx, http.MethodPost, nil, rows, &created); err != nil {
		return 0, err
	}
	return len(created), nil
}

func (c *Client) ListByUser(ctx context.Context, user string) (_ []workouts.Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.tablestore.listbyuser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	query := url.Values{}
	query.Set("select", "*")
	query.Set("user", "eq."+user)
	query.Set("order", "date.desc,id.desc")

	return c.listPaged(ctx, query)
}

func (c *Client) Delete(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.tablestore.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	query := url.Values{}
	query.Set("id", "eq."+strconv.Itoa(id))
	return c.do(ctx, http.MethodDelete, query, nil, nil)
}

func (c *Client) DeleteAll(ctx context.Context) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.tablestore.deleteall")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	// the API refuses unfiltered deletes
	query := url.Values{}
	query.Set("id", "neq.0")
	return c.do(ctx, http.MethodDelete, query, nil, nil)
}

func (c *Client) DistinctUsers(ctx context.Context) (_ []string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.tablestore.distinctusers")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	query := url.Values{}
	query.Set("select", "id,user")
	query.Set("order", "id.asc")
	entries, err := c.listPaged(ctx, query)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	users := []string{}
	for _, e := range entries {
		if strings.TrimSpace(e.User) == "" || seen[e.User] {
			continue
		}
		seen[e.User] = true
		users = append(users, e.User)
	}
	return users, nil
}

func (c *Client) All(ctx context.Context) (_ []workouts.Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.tablestore.all")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	query := url.Values{}
	query.Set("select", "*")
	query.Set("order", "id.asc")
	return c.listPaged(ctx, query)
}

// listPaged follows limit/offset pages until a short page is returned.
func (c *Client) listPaged(ctx context.Context, query url.Values) ([]workouts.Entry, error) {
	all := []workouts.Entry{}
	for offset := 0; ; offset += c.pageSize {
		query.Set("limit", strconv.Itoa(c.pageSize))
		query.Set("offset", strconv.Itoa(offset))

		var page []workouts.Entry
		if err := c.do(ctx, http.MethodGet, query, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < c.pageSize {
			return all, nil
		}
	}
}

func (c *Client) do(ctx context.Context, method string, query url.Values, body, result any) error {
	reqURL := c.tableURL
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if result != nil && method == http.MethodPost {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, c.tableURL, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(resp)
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var parsed struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Message != "" {
		apiErr.Code = parsed.Code
		apiErr.Message = parsed.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
