package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobledger/config"
	"jobledger/handler"
	"jobledger/hub"
	"jobledger/ledger"
	"jobledger/model"
)

type idleExecutor struct{}

func (idleExecutor) Run(ctx context.Context, name string) (*model.Execution, error) {
	return nil, errors.New("not used")
}

func testRouter(t *testing.T, probes map[string]handler.Probe) http.Handler {
	t.Helper()
	cfg := &config.Config{RecentErrors: 3}
	opts := handler.Options{Runtime: "docker", Version: "test"}
	return newRouter(cfg, idleExecutor{}, ledger.New(), model.DefaultJobs(), opts, probes, hub.New(nil), nil)
}

func getJSON(t *testing.T, h http.Handler, path string, v any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestRouterHealthUsesProbes(t *testing.T) {
	r := testRouter(t, map[string]handler.Probe{
		"docker": func(ctx context.Context) error { return errors.New("connection refused") },
		"consul": func(ctx context.Context) error { return nil },
	})

	var body struct {
		Status   string            `json:"status"`
		Services map[string]string `json:"services"`
	}
	getJSON(t, r, "/health", &body)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, map[string]string{"docker": "down", "consul": "up"}, body.Services)
}

func TestRouterHealthAllUp(t *testing.T) {
	r := testRouter(t, map[string]handler.Probe{
		"docker": func(ctx context.Context) error { return nil },
	})

	var body struct {
		Status   string            `json:"status"`
		Services map[string]string `json:"services"`
	}
	getJSON(t, r, "/health", &body)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, map[string]string{"docker": "up"}, body.Services)
}

func TestRouterInfoReportsListeners(t *testing.T) {
	r := testRouter(t, nil)

	var body struct {
		Runtime   string `json:"runtime"`
		Listeners int    `json:"listeners"`
	}
	getJSON(t, r, "/info", &body)
	assert.Equal(t, "docker", body.Runtime)
	assert.Equal(t, 0, body.Listeners)
}
