package diagramapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordedRequest struct {
	Method      string
	RequestURI  string
	ContentType string
	Accept      string
	Auth        string
	Body        map[string]any
}

// stubService answers every request with status and body and records what
// it received
func stubService(t *testing.T, status int, body string) (*httptest.Server, *requestLog) {
	t.Helper()
	requests := &requestLog{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{
			Method:      r.Method,
			RequestURI:  r.RequestURI,
			ContentType: r.Header.Get("Content-Type"),
			Accept:      r.Header.Get("Accept"),
			Auth:        r.Header.Get("Authorization"),
		}
		data, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		if len(data) > 0 {
			assert.NoError(t, json.Unmarshal(data, &rec.Body))
		}
		requests.add(rec)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts, requests
}

type requestLog struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (l *requestLog) add(r recordedRequest) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, r)
}

func (l *requestLog) all() []recordedRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]recordedRequest(nil), l.requests...)
}

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	client, err := New(baseURL, opts...)
	require.NoError(t, err)
	return client
}

func TestNewResolvesOperations(t *testing.T) {
	client := newTestClient(t, "https://diagrams.example.com/")

	testCases := []struct {
		id     string
		method string
		path   string
	}{
		{OpCreatePublicDiagram, http.MethodPost, "/api/chat/diagram/public"},
		{OpUpdatePublicDiagram, http.MethodPut, "/api/diagram/{public_id}"},
		{OpJustifyContent, http.MethodPost, "/api/chat/justify_content"},
	}

	for _, tc := range testCases {
		t.Run(tc.id, func(t *testing.T) {
			op, ok := client.Operation(tc.id)
			require.True(t, ok)
			assert.Equal(t, tc.method, op.Method)
			assert.Equal(t, tc.path, op.Path)
		})
	}

	_, ok := client.Operation("deleteDiagram")
	assert.False(t, ok)
}

func TestNewRejectsIncompleteDescription(t *testing.T) {
	spec := `openapi: 3.0.3
info:
  title: partial
  version: "1"
paths:
  /api/chat/diagram/public:
    post:
      operationId: createPublicDiagram
      responses:
        "200":
          description: ok
`
	_, err := New("https://diagrams.example.com", WithSpecData([]byte(spec)), WithLogger(discardLogger()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), OpUpdatePublicDiagram)
}

func TestNewRejectsInvalidBaseURL(t *testing.T) {
	for _, base := range []string{"", "diagrams.example.com", "://bad"} {
		_, err := New(base, WithLogger(discardLogger()))
		assert.Error(t, err, "base URL %q", base)
	}
}

func TestCreatePublicDiagram(t *testing.T) {
	ts, requests := stubService(t, http.StatusOK, `{"link":"https://navigatechat.com/d/abc","public_id":"abc","diagram_id":7}`)
	client := newTestClient(t, ts.URL, WithHeaders(http.Header{"Authorization": {"Bearer token"}}))

	resp, err := client.CreatePublicDiagram(context.Background(), map[string]any{"nodes": []any{}})
	require.NoError(t, err)

	assert.True(t, resp.OK())
	assert.Equal(t, http.StatusOK, resp.Status)
	obj, ok := resp.JSON.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "abc", obj["public_id"])
	assert.Equal(t, json.Number("7"), obj["diagram_id"])

	got := requests.all()
	require.Len(t, got, 1)
	req := got[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/chat/diagram/public", req.RequestURI)
	assert.Equal(t, "application/json", req.ContentType)
	assert.Equal(t, "application/json", req.Accept)
	assert.Equal(t, "Bearer token", req.Auth)
	assert.Equal(t, map[string]any{"json_content": map[string]any{"nodes": []any{}}}, req.Body)
}

func TestUpdatePublicDiagramEscapesID(t *testing.T) {
	ts, requests := stubService(t, http.StatusOK, `{}`)
	client := newTestClient(t, ts.URL)

	_, err := client.UpdatePublicDiagram(context.Background(), "a b/c", map[string]any{"k": "v"})
	require.NoError(t, err)

	got := requests.all()
	require.Len(t, got, 1)
	assert.Equal(t, http.MethodPut, got[0].Method)
	assert.Equal(t, "/api/diagram/a%20b%2Fc", got[0].RequestURI)
}

func TestJustifyContent(t *testing.T) {
	ts, requests := stubService(t, http.StatusOK, `{"valid":true}`)
	client := newTestClient(t, ts.URL)

	resp, err := client.JustifyContent(context.Background(), `{"nodes":[]}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"valid":true}`, resp.Text())

	got := requests.all()
	require.Len(t, got, 1)
	assert.Equal(t, "/api/chat/justify_content", got[0].RequestURI)
	assert.Equal(t, map[string]any{"user_json": `{"nodes":[]}`}, got[0].Body)
}

func TestNonSuccessIsAResponse(t *testing.T) {
	ts, _ := stubService(t, http.StatusInternalServerError, "server error")
	client := newTestClient(t, ts.URL)

	resp, err := client.CreatePublicDiagram(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Equal(t, "server error", resp.Text())
	assert.Nil(t, resp.JSON)
}

func TestSingleAttempt(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL)
	resp, err := client.JustifyContent(context.Background(), "{}")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Status)
	assert.Equal(t, int32(1), hits.Load(), "failed calls must not be retried")
}

func TestTransportFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	client := newTestClient(t, url)
	_, err := client.CreatePublicDiagram(context.Background(), map[string]any{})
	assert.Error(t, err)
}

func TestTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL, WithTimeout(50*time.Millisecond))
	_, err := client.JustifyContent(context.Background(), "{}")
	assert.Error(t, err)
}

func TestInvokeMissingPathParameter(t *testing.T) {
	client := newTestClient(t, "https://diagrams.example.com")

	_, err := client.Invoke(context.Background(), OpUpdatePublicDiagram, nil, map[string]any{})
	assert.Error(t, err)

	_, err = client.Invoke(context.Background(), "nope", nil, nil)
	assert.Error(t, err)
}

func TestWithHTTPClientIsNotModified(t *testing.T) {
	ts, requests := stubService(t, http.StatusOK, `{}`)
	base := ts.Client()
	transport := base.Transport

	client := newTestClient(t, ts.URL, WithHTTPClient(base))
	_, err := client.JustifyContent(context.Background(), "{}")
	require.NoError(t, err)

	assert.Len(t, requests.all(), 1)
	assert.Equal(t, transport, base.Transport)
}
