package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafy-insurance/claims-backend/internal/logging"
)

func TestHealthRoute(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.server.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, srv.backend.URL(), body["backend"])
	assert.Equal(t, "local-default", body["backendSource"])
}

func TestRegisteredRoutes(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.server.URL+"/api/run-agent", echo.MIMEApplicationJSON, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, srv.backend.AgentCalls())

	resp, err = http.Get(srv.server.URL + "/api/getSampleImages")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		showDetails bool
		wantStatus  int
		wantCode    string
		wantDetails string
	}{
		{"api error", NewNotFoundError("claim flow", "x"), false, http.StatusNotFound, "NOT_FOUND", ""},
		{"http error", echo.NewHTTPError(http.StatusMethodNotAllowed, "no"), false, http.StatusMethodNotAllowed, "HTTP_ERROR", ""},
		{"unknown hidden", errors.New("boom"), false, http.StatusInternalServerError, "UNKNOWN_ERROR", ""},
		{"unknown shown", errors.New("boom"), true, http.StatusInternalServerError, "UNKNOWN_ERROR", "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEcho()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			ErrorHandler(tt.showDetails)(tt.err, c)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var got APIError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantDetails, got.Details)
		})
	}
}

func TestSetupMiddleware_NotFoundIsJSON(t *testing.T) {
	e := newTestEcho()
	SetupMiddleware(e, MiddlewareConfig{BodyLimit: "1M", EnableCORS: true, Logger: logging.Discard()})
	e.GET("/api/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodGet, "/api/missing", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"HTTP_ERROR"`)

	req = httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set(echo.HeaderOrigin, "http://example.com")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestRateLimiter(t *testing.T) {
	e := newTestEcho()
	api := e.Group("/api", RateLimiter(1, 2))
	api.GET("/thing", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	api.GET("/health", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/thing", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/api/thing", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code, "limits are per client")

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	e := newTestEcho()
	e.GET("/api/thing", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, RateLimiter(0, 0))

	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/thing", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
	}
}
