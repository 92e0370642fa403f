package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]interface{}
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealthMux(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	mux := NewHealthMux(map[string]Check{"zeebe": ok, "postgres": ok}, time.Second)
	rec, body := get(t, mux, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])

	rec, body = get(t, mux, "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", body["status"])

	mux = NewHealthMux(map[string]Check{"zeebe": ok, "redis": down}, time.Second)
	rec, body = get(t, mux, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not_ready", body["status"])
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "ok", checks["zeebe"])
	assert.Equal(t, "connection refused", checks["redis"])

	rec, _ = get(t, mux, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthMux_CheckTimeout(t *testing.T) {
	slow := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	mux := NewHealthMux(map[string]Check{"slow": slow}, 10*time.Millisecond)
	rec, _ := get(t, mux, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestClient_PostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "olá", payload["prompt"])
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	resp, err := NewClient(time.Second).PostJSON(context.Background(), srv.URL, map[string]string{"prompt": "olá"})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	_, err = NewClient(time.Second).PostJSON(context.Background(), srv.URL, map[string]interface{}{"bad": make(chan int)})
	assert.Error(t, err)
}
