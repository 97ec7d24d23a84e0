package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/run/date", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("Mon Jan  1\n"))
	})
	mux.HandleFunc("/run/fail", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Execution-Id", "e-1")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("error"))
	})
	mux.HandleFunc("/stat", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"total requests":2,"successful":1,"failed":1},[{"container":"alpine","result":"success","msg":"","sequence":1},{"container":"dummy","result":"failure","msg":"dummy: no such image","sequence":2}]]`))
	})
	mux.HandleFunc("/errors", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("n"))
		w.Write([]byte(`["dummy: no such image"]`))
	})
	mux.HandleFunc("/executions/e-1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"e-1","job":"fail","image":"dummy","status":"failed","errorKind":"execution","message":"dummy: no such image","exitCode":0,"durationMs":12,"startedAt":"2024-01-01T00:00:00Z","sequence":2}`))
	})
	mux.HandleFunc("/executions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"execution history is not configured"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientRun(t *testing.T) {
	c := New(newServer(t).URL + "/")

	out, err := c.Run("date")
	require.NoError(t, err)
	assert.Equal(t, "Mon Jan  1\n", out)

	_, err = c.Run("fail")
	var runErr *RunError
	require.True(t, errors.As(err, &runErr))
	assert.Equal(t, http.StatusBadGateway, runErr.StatusCode)
	assert.Equal(t, "e-1", runErr.ExecutionID)
	assert.Equal(t, "run failed: container error", runErr.Error())
}

func TestClientExecutionForFailedRun(t *testing.T) {
	c := New(newServer(t).URL)

	_, err := c.Run("fail")
	var runErr *RunError
	require.True(t, errors.As(err, &runErr))

	e, err := c.Execution(runErr.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, "fail", e.Job)
	assert.Equal(t, "dummy: no such image", e.Message)
	assert.Equal(t, uint64(2), e.Sequence)
}

func TestClientStat(t *testing.T) {
	c := New(newServer(t).URL)

	s, err := c.Stat()
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 2, Successful: 1, Failed: 1}, s.Summary)
	require.Len(t, s.Outcomes, 2)
	assert.Equal(t, "dummy: no such image", s.Outcomes[1].Msg)
}

func TestClientErrors(t *testing.T) {
	c := New(newServer(t).URL)

	msgs, err := c.Errors(5)
	require.NoError(t, err)
	assert.Equal(t, []string{"dummy: no such image"}, msgs)
}

func TestClientAPIError(t *testing.T) {
	c := New(newServer(t).URL)

	_, err := c.Executions("date", 10)
	require.Error(t, err)
	assert.Equal(t, "HTTP 503: execution history is not configured", err.Error())
}

func TestWebSocketURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:8800/ws", New("http://localhost:8800").WebSocketURL())
	assert.Equal(t, "wss://jobs.example.com/ws", New("https://jobs.example.com/").WebSocketURL())
}
