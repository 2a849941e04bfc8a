// Package diagramapi is a client for the diagram storage service.
//
// The service contract is described by an embedded OpenAPI document;
// operations are resolved by operationId when the client is created, so a
// contract that lacks one of the operations the tools depend on fails at
// startup instead of on the first call.
//
// Every call is a single attempt. Non-2xx statuses are returned to the
// caller as a Response; only transport failures produce an error.
package diagramapi

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pb33f/libopenapi"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"

	"github.com/asif-nvc/mcp-chat-visualizer/internal"
)

//go:embed openapi.yaml
var defaultSpec []byte

// Operation IDs the client depends on
const (
	OpCreatePublicDiagram = "createPublicDiagram"
	OpUpdatePublicDiagram = "updatePublicDiagram"
	OpJustifyContent      = "justifyContent"
)

var requiredOperations = []string{
	OpCreatePublicDiagram,
	OpUpdatePublicDiagram,
	OpJustifyContent,
}

// Operation is a resolved endpoint of the storage service
type Operation struct {
	ID     string
	Method string
	Path   string
}

// Response is the outcome of a call that reached the service
type Response struct {
	Status int
	Body   []byte
	// JSON holds the decoded body when it is valid JSON; numbers are kept
	// as json.Number
	JSON any
}

// OK reports whether the status is 2xx
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Text returns the raw body
func (r *Response) Text() string {
	return string(r.Body)
}

// Client calls the diagram storage service
type Client struct {
	baseURL    *url.URL
	http       *retryablehttp.Client
	operations map[string]Operation
	logger     *slog.Logger
}

type options struct {
	httpClient *http.Client
	logger     *slog.Logger
	headers    http.Header
	timeout    time.Duration
	specData   []byte
}

// Option configures a Client
type Option func(*options)

// WithHTTPClient sets the underlying HTTP client. The client is copied, not
// modified.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithLogger sets the logger for request logging
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithHeaders adds default headers to every request
func WithHeaders(h http.Header) Option {
	return func(o *options) {
		for key, values := range h {
			for _, v := range values {
				o.headers.Add(key, v)
			}
		}
	}
}

// WithTimeout bounds each call. Zero, the default, leaves calls unbounded.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithSpecData replaces the embedded OpenAPI description of the service
func WithSpecData(data []byte) Option {
	return func(o *options) {
		o.specData = data
	}
}

// New creates a client for the service rooted at baseURL
func New(baseURL string, opts ...Option) (*Client, error) {
	o := &options{
		logger:   slog.Default(),
		headers:  http.Header{},
		specData: defaultSpec,
	}
	for _, opt := range opts {
		opt(o)
	}

	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", baseURL)
	}

	operations, err := loadOperations(o.specData)
	if err != nil {
		return nil, err
	}
	for _, id := range requiredOperations {
		if _, ok := operations[id]; !ok {
			return nil, fmt.Errorf("API description has no operation %q", id)
		}
	}

	if o.headers.Get("Accept") == "" {
		o.headers.Set("Accept", "application/json")
	}

	hc := &http.Client{}
	if o.httpClient != nil {
		copied := *o.httpClient
		hc = &copied
	}
	hc.Transport = internal.NewHeaderTransport(hc.Transport, o.headers)
	hc.Timeout = o.timeout

	rc := retryablehttp.NewClient()
	rc.HTTPClient = hc
	rc.RetryMax = 0
	rc.CheckRetry = neverRetry
	rc.Logger = o.logger

	return &Client{
		baseURL:    base,
		http:       rc,
		operations: operations,
		logger:     o.logger,
	}, nil
}

// neverRetry makes every call a single attempt; a failed call is reported,
// never repeated
func neverRetry(ctx context.Context, _ *http.Response, _ error) (bool, error) {
	return false, nil
}

// loadOperations indexes the operations of an OpenAPI document by
// operationId
func loadOperations(specData []byte) (map[string]Operation, error) {
	doc, err := libopenapi.NewDocument(specData)
	if err != nil {
		return nil, fmt.Errorf("error parsing API description: %w", err)
	}

	model, errs := doc.BuildV3Model()
	if errs != nil {
		return nil, fmt.Errorf("error building API model: %v", errs)
	}

	operations := make(map[string]Operation)
	if model.Model.Paths == nil || model.Model.Paths.PathItems == nil {
		return operations, nil
	}

	for pair := model.Model.Paths.PathItems.First(); pair != nil; pair = pair.Next() {
		path := pair.Key()
		pathItem := pair.Value()

		for _, candidate := range []struct {
			method string
			op     *v3.Operation
		}{
			{http.MethodGet, pathItem.Get},
			{http.MethodPost, pathItem.Post},
			{http.MethodPut, pathItem.Put},
			{http.MethodDelete, pathItem.Delete},
			{http.MethodPatch, pathItem.Patch},
		} {
			if candidate.op == nil || candidate.op.OperationId == "" {
				continue
			}
			operations[candidate.op.OperationId] = Operation{
				ID:     candidate.op.OperationId,
				Method: candidate.method,
				Path:   path,
			}
		}
	}

	return operations, nil
}

// Operation returns the resolved operation with the given id
func (c *Client) Operation(id string) (Operation, bool) {
	op, ok := c.operations[id]
	return op, ok
}

// Invoke calls the operation with the given id, substituting pathParams
// into its path template
func (c *Client) Invoke(ctx context.Context, operationID string, pathParams map[string]string, body any) (*Response, error) {
	op, ok := c.operations[operationID]
	if !ok {
		return nil, fmt.Errorf("unknown operation %q", operationID)
	}

	path := op.Path
	for name, value := range pathParams {
		path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(value))
	}
	if strings.ContainsAny(path, "{}") {
		return nil, fmt.Errorf("operation %s: missing path parameters in %s", operationID, path)
	}

	return c.Call(ctx, op.Method, path, body)
}

// Call sends one request with a JSON body. The returned error is non-nil
// only when the service could not be reached or the response could not be
// read.
func (c *Client) Call(ctx context.Context, method, path string, body any) (*Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error encoding request body: %w", err)
		}
	}

	target := c.baseURL.String() + path

	var rawBody interface{}
	if payload != nil {
		rawBody = payload
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, rawBody)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	c.logger.Debug("diagram API call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	result := &Response{Status: resp.StatusCode, Body: respBody}
	if decoded, ok := decodeJSON(respBody); ok {
		result.JSON = decoded
	}
	return result, nil
}

func decodeJSON(data []byte) (any, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	return v, true
}

// CreatePublicDiagram stores content and returns the service's answer
func (c *Client) CreatePublicDiagram(ctx context.Context, content map[string]any) (*Response, error) {
	return c.Invoke(ctx, OpCreatePublicDiagram, nil, map[string]any{"json_content": content})
}

// UpdatePublicDiagram replaces the content stored under publicID
func (c *Client) UpdatePublicDiagram(ctx context.Context, publicID string, content map[string]any) (*Response, error) {
	return c.Invoke(ctx, OpUpdatePublicDiagram, map[string]string{"public_id": publicID}, map[string]any{"json_content": content})
}

// JustifyContent asks the service to validate and repair userJSON
func (c *Client) JustifyContent(ctx context.Context, userJSON string) (*Response, error) {
	return c.Invoke(ctx, OpJustifyContent, nil, map[string]any{"user_json": userJSON})
}
