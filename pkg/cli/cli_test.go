package cli

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturedRequest holds details captured from an incoming HTTP request.
type capturedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// requestRecorder is a thread-safe recorder for HTTP requests received by httptest servers.
type requestRecorder struct {
	mu       sync.Mutex
	requests []capturedRequest
}

func (r *requestRecorder) record(req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()

	body, _ := io.ReadAll(req.Body)
	defer func() { _ = req.Body.Close() }()

	r.requests = append(r.requests, capturedRequest{
		Method: req.Method,
		Path:   req.URL.Path,
		Query:  req.URL.RawQuery,
		Body:   string(body),
	})
}

func (r *requestRecorder) last() capturedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.requests) == 0 {
		return capturedRequest{}
	}
	return r.requests[len(r.requests)-1]
}

// jsonHandler returns an http.HandlerFunc that records the request and responds
// with the given status code and JSON body.
func jsonHandler(rec *requestRecorder, status int, respBody string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(respBody))
	}
}

func newTestRootCmd(t *testing.T, srv *httptest.Server, args ...string) *cobra.Command {
	t.Helper()
	rootCmd := newRootCmd()
	rootCmd.SetArgs(append([]string{"--host", srv.URL, "--output", "json"}, args...))
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	return rootCmd
}

func TestCLI_Report(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, http.StatusOK,
		`{"space_id":"space-1","conversations":[]}`))
	defer srv.Close()

	rootCmd := newTestRootCmd(t, srv, "report", "space-1")
	require.NoError(t, rootCmd.Execute())

	req := rec.last()
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/v1/spaces/space-1/report", req.Path)
}

func TestCLI_Refresh(t *testing.T) {
	t.Run("default_window", func(t *testing.T) {
		rec := &requestRecorder{}
		srv := httptest.NewServer(jsonHandler(rec, http.StatusCreated,
			`{"id":"run-1","space_id":"space-1"}`))
		defer srv.Close()

		rootCmd := newTestRootCmd(t, srv, "refresh", "space-1")
		require.NoError(t, rootCmd.Execute())

		req := rec.last()
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "/v1/spaces/space-1/refresh", req.Path)
		assert.Empty(t, req.Query)
	})

	t.Run("explicit_window", func(t *testing.T) {
		rec := &requestRecorder{}
		srv := httptest.NewServer(jsonHandler(rec, http.StatusCreated,
			`{"id":"run-1","space_id":"space-1","window_hours":168}`))
		defer srv.Close()

		rootCmd := newTestRootCmd(t, srv, "refresh", "space-1", "--window-hours", "168")
		require.NoError(t, rootCmd.Execute())

		assert.Contains(t, rec.last().Query, "window_hours=168")
	})
}

func TestCLI_Runs(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, http.StatusOK,
		`{"data":[{"id":"run-1"}],"next_page_token":"dG9rZW4"}`))
	defer srv.Close()

	rootCmd := newTestRootCmd(t, srv, "runs", "--space", "space-1", "--max-results", "10")
	require.NoError(t, rootCmd.Execute())

	req := rec.last()
	assert.Equal(t, "/v1/runs", req.Path)
	assert.Contains(t, req.Query, "space_id=space-1")
	assert.Contains(t, req.Query, "max_results=10")
}

func TestCLI_RunsGet(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, http.StatusOK,
		`{"id":"run-1","report":{"space_id":"space-1","conversations":[]}}`))
	defer srv.Close()

	rootCmd := newTestRootCmd(t, srv, "runs", "get", "run-1")
	require.NoError(t, rootCmd.Execute())

	assert.Equal(t, "/v1/runs/run-1", rec.last().Path)
}

func TestCLI_Query(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, http.StatusOK,
		`{"query":{"statement_id":"s1","bottleneck":"LARGE_SCAN"},"timeline":[],"optimizations":[],"diagnostics":[],"recommendation":"Add partition filters"}`))
	defer srv.Close()

	rootCmd := newTestRootCmd(t, srv, "query", "space-1", "s1")
	require.NoError(t, rootCmd.Execute())

	assert.Equal(t, "/v1/spaces/space-1/queries/s1", rec.last().Path)
}

func TestCLI_ErrorPropagation(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, http.StatusNotFound,
		`{"code":404,"message":"no audit runs for space space-9"}`))
	defer srv.Close()

	rootCmd := newTestRootCmd(t, srv, "report", "space-9")
	err := rootCmd.Execute()
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.HTTPStatus)
	assert.Contains(t, apiErr.Message, "space-9")
}

func TestCLI_RejectsUnknownOutputFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	rootCmd := newRootCmd()
	rootCmd.SetArgs([]string{"--host", srv.URL, "--output", "yaml", "report", "space-1"})
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}
