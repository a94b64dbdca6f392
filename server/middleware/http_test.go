package middleware_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/pitwall/logger"
	"github.com/kbukum/pitwall/server/middleware"
)

func newEngine(mws ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	e := gin.New()
	e.Use(mws...)
	return e
}

// ---------------------------------------------------------------------------
// Recovery
// ---------------------------------------------------------------------------

func TestRecovery_NoPanic(t *testing.T) {
	e := newEngine(middleware.Recovery(logger.Nop()))
	e.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, httptest.NewRequest("GET", "/", http.NoBody))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestRecovery_Panic(t *testing.T) {
	e := newEngine(middleware.Recovery(logger.Nop()))
	e.GET("/test", func(*gin.Context) { panic("test panic") })

	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, httptest.NewRequest("GET", "/test", http.NoBody))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if body.Error.Code != "INTERNAL_ERROR" {
		t.Fatalf("unexpected error code: %s", body.Error.Code)
	}
}

// ---------------------------------------------------------------------------
// RequestID
// ---------------------------------------------------------------------------

func TestRequestID_GeneratesID(t *testing.T) {
	var seen string
	e := newEngine(middleware.RequestID())
	e.GET("/", func(c *gin.Context) {
		seen = c.GetString(logger.FieldRequestID)
		c.Status(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, httptest.NewRequest("GET", "/", http.NoBody))

	if seen == "" {
		t.Error("expected request ID on the context")
	}
	if rr.Header().Get("X-Request-Id") != seen {
		t.Errorf("expected response header %q, got %q", seen, rr.Header().Get("X-Request-Id"))
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	e := newEngine(middleware.RequestID())
	e.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest("GET", "/", http.NoBody)
	req.Header.Set("X-Request-Id", "existing-id")
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)

	if rr.Header().Get("X-Request-Id") != "existing-id" {
		t.Errorf("expected existing-id, got %s", rr.Header().Get("X-Request-Id"))
	}
}

// ---------------------------------------------------------------------------
// CORS
// ---------------------------------------------------------------------------

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		origin     string
		wantHeader string
	}{
		{"permissive echoes origin", []string{"*"}, "http://dash.local", "http://dash.local"},
		{"restricted allows listed", []string{"http://dash.local"}, "http://dash.local", "http://dash.local"},
		{"restricted blocks unlisted", []string{"http://dash.local"}, "http://evil.example", ""},
		{"no origin header", []string{"*"}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &middleware.CORSConfig{AllowedOrigins: tt.origins, AllowedMethods: []string{"GET"}}
			e := newEngine(middleware.CORS(cfg))
			e.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest("GET", "/", http.NoBody)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()
			e.ServeHTTP(rr, req)

			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantHeader {
				t.Errorf("expected %q, got %q", tt.wantHeader, got)
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	cfg := &middleware.CORSConfig{AllowedOrigins: []string{"*"}, AllowedMethods: []string{"GET", "OPTIONS"}}
	e := newEngine(middleware.CORS(cfg))
	e.GET("/ws", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/ws", http.NoBody)
	req.Header.Set("Origin", "http://dash.local")
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Methods"); got != "GET, OPTIONS" {
		t.Errorf("expected allowed methods, got %q", got)
	}
}

func TestCORSConfig_Mode(t *testing.T) {
	tests := []struct {
		origins []string
		want    string
	}{
		{nil, middleware.CORSPermissive},
		{[]string{"*"}, middleware.CORSPermissive},
		{[]string{"http://a", "*"}, middleware.CORSPermissive},
		{[]string{"http://a"}, middleware.CORSRestricted},
	}
	for _, tt := range tests {
		cfg := middleware.CORSConfig{AllowedOrigins: tt.origins}
		if got := cfg.Mode(); got != tt.want {
			t.Errorf("Mode(%v) = %s, want %s", tt.origins, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// RequestLogger
// ---------------------------------------------------------------------------

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: logger.FormatJSON}, "test", &buf)

	e := newEngine(middleware.RequestID(), middleware.RequestLogger(log))
	e.GET("/ws", func(c *gin.Context) { c.Status(http.StatusTeapot) })
	e.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", http.NoBody))
	if buf.Len() != 0 {
		t.Errorf("expected health checks to be skipped, got %s", buf.String())
	}

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/ws", http.NoBody))
	out := buf.String()
	for _, want := range []string{`"level":"warn"`, `"path":"/ws"`, `"status":418`, `"request_id":`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log to contain %s, got %s", want, out)
		}
	}
}
