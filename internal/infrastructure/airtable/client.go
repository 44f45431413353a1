package airtable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/catalog"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/shared"
)

// maxResponseSize is the maximum allowed response size from Airtable (10MB)
const maxResponseSize = 10 * 1024 * 1024

// maxPages stops a listing whose offsets never terminate
const maxPages = 1000

var (
	ErrTableRequired   = errors.New("airtable: table is required")
	ErrAuthFailed      = errors.New("airtable: authentication failed")
	ErrTableNotFound   = errors.New("airtable: table not found")
	ErrRequestFailed   = errors.New("airtable: request failed")
	ErrInvalidResponse = errors.New("airtable: invalid response")
	ErrUnavailable     = errors.New("airtable: service unavailable")
	ErrTooManyPages    = errors.New("airtable: pagination did not terminate")
)

// ListOptions narrows a record listing
type ListOptions struct {
	MaxRecords      int
	FilterByFormula string
	SortField       string
	SortDirection   string
	View            string
	PageSize        int
	Offset          string
}

// ListResponse is one page of records
type ListResponse struct {
	Records []catalog.Record `json:"records"`
	Offset  string           `json:"offset,omitempty"`
}

// errorResponse is the Airtable error envelope. error is either an object
// {type, message} or a bare string such as "NOT_FOUND".
type errorResponse struct {
	Error json.RawMessage `json:"error"`
}

type errorObject struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Client calls the Airtable REST API
type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a new Airtable client with the given configuration
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// Config returns the client configuration
func (c *Client) Config() Config {
	return *c.config
}

// ListRecordsRaw fetches one page and returns the response body untouched.
func (c *Client) ListRecordsRaw(ctx context.Context, table string, opts ListOptions) (json.RawMessage, error) {
	if table == "" {
		return nil, ErrTableRequired
	}

	endpoint := fmt.Sprintf("%s/%s/%s", c.config.APIBaseURL, url.PathEscape(c.config.BaseID), url.PathEscape(table))
	if q := opts.query(); len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	return c.doRequest(ctx, http.MethodGet, endpoint)
}

// ListRecords fetches and decodes one page
func (c *Client) ListRecords(ctx context.Context, table string, opts ListOptions) (*ListResponse, error) {
	body, err := c.ListRecordsRaw(ctx, table, opts)
	if err != nil {
		return nil, err
	}
	var page ListResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, &shared.RemoteError{Service: "airtable", Op: "list records", Message: "malformed response", Err: fmt.Errorf("%w: %v", ErrInvalidResponse, err)}
	}
	return &page, nil
}

// ListAll follows the offset continuation token until it is absent and
// returns every record in source order.
func (c *Client) ListAll(ctx context.Context, table string, opts ListOptions) ([]catalog.Record, error) {
	if opts.PageSize == 0 {
		opts.PageSize = c.config.PageSize
	}
	opts.Offset = ""

	var records []catalog.Record
	for page := 0; page < maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := c.ListRecords(ctx, table, opts)
		if err != nil {
			return nil, err
		}
		records = append(records, resp.Records...)
		if resp.Offset == "" {
			return records, nil
		}
		opts.Offset = resp.Offset
	}
	return nil, ErrTooManyPages
}

// doRequest performs an authenticated request and maps HTTP failures onto
// RemoteError values carrying the upstream status and body.
func (c *Client) doRequest(ctx context.Context, method, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("airtable: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &shared.RemoteError{Service: "airtable", Op: "list records", Err: fmt.Errorf("%w: %v", ErrUnavailable, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("airtable: failed to read response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	remoteErr := &shared.RemoteError{
		Service:    "airtable",
		Op:         "list records",
		StatusCode: resp.StatusCode,
		Message:    errorMessage(body),
	}
	if json.Valid(body) {
		remoteErr.Details = body
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		remoteErr.Err = ErrAuthFailed
	case http.StatusNotFound:
		remoteErr.Err = ErrTableNotFound
	default:
		remoteErr.Err = ErrRequestFailed
	}
	return nil, remoteErr
}

// query renders the options as Airtable query parameters
func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.MaxRecords > 0 {
		q.Set("maxRecords", strconv.Itoa(o.MaxRecords))
	}
	if o.FilterByFormula != "" {
		q.Set("filterByFormula", o.FilterByFormula)
	}
	if o.SortField != "" {
		dir := o.SortDirection
		if dir != "desc" {
			dir = "asc"
		}
		q.Set("sort[0][field]", o.SortField)
		q.Set("sort[0][direction]", dir)
	}
	if o.View != "" {
		q.Set("view", o.View)
	}
	if o.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(o.PageSize))
	}
	if o.Offset != "" {
		q.Set("offset", o.Offset)
	}
	return q
}

// errorMessage extracts a human readable message from an error body.
func errorMessage(body []byte) string {
	var env errorResponse
	if err := json.Unmarshal(body, &env); err != nil || len(env.Error) == 0 {
		return ""
	}
	var obj errorObject
	if err := json.Unmarshal(env.Error, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		return obj.Type
	}
	var s string
	if err := json.Unmarshal(env.Error, &s); err == nil {
		return s
	}
	return ""
}

// ---------------------------------------------------------------------------
// ProductSource
// ---------------------------------------------------------------------------

// ProductSource enumerates the products table for the catalog sync engine
type ProductSource struct {
	client *Client
	table  string
}

// NewProductSource creates a catalog source over the configured products table
func NewProductSource(client *Client) *ProductSource {
	return &ProductSource{client: client, table: client.config.ProductsTable}
}

// ListAll implements catalog.Source
func (s *ProductSource) ListAll(ctx context.Context) ([]catalog.Record, error) {
	return s.client.ListAll(ctx, s.table, ListOptions{})
}

var _ catalog.Source = (*ProductSource)(nil)
