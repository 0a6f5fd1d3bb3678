package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/sheetsgate/internal/auth"
	"github.com/teemow/sheetsgate/internal/backend"
	"github.com/teemow/sheetsgate/internal/backend/backendtest"
	"github.com/teemow/sheetsgate/internal/gateway"
	"github.com/teemow/sheetsgate/internal/logging"
)

// mounterFunc adapts a function to Mounter.
type mounterFunc func(r chi.Router)

func (f mounterFunc) Mount(r chi.Router) { f(r) }

func newTestHTTPServer(t *testing.T, api Mounter, timeout time.Duration) *httptest.Server {
	t.Helper()
	s := NewHTTPServer(HTTPConfig{
		RequestTimeout: timeout,
		CORSOrigins:    []string{"*"},
		Logger:         logging.Discard().Logger(),
	}, api, NewHealthChecker(nil))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPServer_ServesGateway(t *testing.T) {
	bc := backend.NewReadyContext(&backendtest.Stub{}, backend.WithLogger(logging.Discard().Logger()))
	gw := gateway.New(bc, auth.New(auth.StaticKeys{"default": "sk-test"}, nil))
	srv := newTestHTTPServer(t, gw, time.Minute)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/tools/list_sheets/ss1", nil)
	require.NoError(t, err)
	req.Header.Set(auth.HeaderName, "sk-test")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "default", body["client_id"])

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	srv := newTestHTTPServer(t, mounterFunc(func(r chi.Router) {
		r.Get("/echo", func(w http.ResponseWriter, r *http.Request) {
			seen = middleware.GetReqID(r.Context())
		})
	}), 0)

	t.Run("generated", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/echo")
		require.NoError(t, err)
		resp.Body.Close()

		assert.Len(t, resp.Header.Get(RequestIDHeader), 36)
		assert.Equal(t, resp.Header.Get(RequestIDHeader), seen)
	})

	t.Run("propagated", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/echo", nil)
		require.NoError(t, err)
		req.Header.Set(RequestIDHeader, "req-123")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, "req-123", resp.Header.Get(RequestIDHeader))
		assert.Equal(t, "req-123", seen)
	})
}

func TestTimeoutMiddleware(t *testing.T) {
	var deadline time.Time
	var hasDeadline bool
	srv := newTestHTTPServer(t, mounterFunc(func(r chi.Router) {
		r.Get("/slow", func(w http.ResponseWriter, r *http.Request) {
			deadline, hasDeadline = r.Context().Deadline()
		})
	}), 2*time.Second)

	resp, err := http.Get(srv.URL + "/slow")
	require.NoError(t, err)
	resp.Body.Close()

	require.True(t, hasDeadline)
	assert.WithinDuration(t, time.Now().Add(2*time.Second), deadline, 2*time.Second)
}

func TestRecoverer(t *testing.T) {
	srv := newTestHTTPServer(t, mounterFunc(func(r chi.Router) {
		r.Get("/panic", func(http.ResponseWriter, *http.Request) {
			panic("boom")
		})
	}), 0)

	resp, err := http.Get(srv.URL + "/panic")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body struct {
		Detail     string `json:"detail"`
		StatusCode int    `json:"status_code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Internal Server Error", body.Detail)
	assert.Equal(t, http.StatusInternalServerError, body.StatusCode)
}

func TestRecoverer_AbortHandler(t *testing.T) {
	srv := newTestHTTPServer(t, mounterFunc(func(r chi.Router) {
		r.Get("/abort", func(http.ResponseWriter, *http.Request) {
			panic(http.ErrAbortHandler)
		})
	}), 0)

	_, err := http.Get(srv.URL + "/abort")
	assert.Error(t, err)
}

func TestCORS(t *testing.T) {
	srv := newTestHTTPServer(t, mounterFunc(func(r chi.Router) {
		r.Post("/tools/x", func(http.ResponseWriter, *http.Request) {})
	}), 0)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/tools/x", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", auth.HeaderName)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestHTTPServer_StartAndShutdown(t *testing.T) {
	health := NewHealthChecker(nil)
	s := NewHTTPServer(HTTPConfig{Addr: "127.0.0.1:0", Logger: logging.Discard().Logger()},
		mounterFunc(func(chi.Router) {}), health)

	ready := make(chan struct{})
	serverErr := make(chan error, 1)
	go func() { serverErr <- s.StartWithReadySignal(ready) }()

	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + s.ListenAddr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.NoError(t, <-serverErr)
	assert.False(t, health.IsReady())
}
