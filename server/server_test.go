package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/pitwall/component"
	"github.com/kbukum/pitwall/logger"
)

func testConfig() Config {
	cfg := Config{Host: "127.0.0.1", Port: 0}
	cfg.ApplyDefaults()
	cfg.Port = 0
	return cfg
}

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.Host != "0.0.0.0" {
		t.Errorf("expected host 0.0.0.0, got %s", cfg.Host)
	}
	if cfg.Port != 3000 {
		t.Errorf("expected port 3000, got %d", cfg.Port)
	}
	if cfg.WriteTimeout != 0 {
		t.Errorf("expected unbounded write timeout, got %d", cfg.WriteTimeout)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "*" {
		t.Errorf("expected permissive CORS by default, got %v", cfg.CORS.AllowedOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestServer_DefaultEndpoints(t *testing.T) {
	s := New(testConfig(), logger.Nop())
	s.ApplyMiddleware()
	checker := func(context.Context) []component.Health {
		return []component.Health{{Name: "broadcast", Status: component.StatusHealthy}}
	}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pitwall_broadcast_capacity 100\n"))
	})
	s.RegisterDefaultEndpoints("pitwall", checker, metrics)

	tests := []struct {
		path     string
		wantCode int
		contains string
	}{
		{"/health", http.StatusOK, `"status":"healthy"`},
		{"/info", http.StatusOK, `"service":"pitwall"`},
		{"/metrics", http.StatusOK, "pitwall_broadcast_capacity"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			s.Engine().ServeHTTP(rr, httptest.NewRequest("GET", tt.path, http.NoBody))
			if rr.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rr.Code)
			}
			if !strings.Contains(rr.Body.String(), tt.contains) {
				t.Errorf("expected body to contain %s, got %s", tt.contains, rr.Body.String())
			}
		})
	}
}

func TestServer_HealthUnhealthyComponent(t *testing.T) {
	s := New(testConfig(), logger.Nop())
	s.RegisterDefaultEndpoints("pitwall", func(context.Context) []component.Health {
		return []component.Health{
			{Name: "grpc-server", Status: component.StatusUnhealthy, Message: "listener closed"},
			{Name: "http-server", Status: component.StatusHealthy},
		}
	}, nil)

	rr := httptest.NewRecorder()
	s.Engine().ServeHTTP(rr, httptest.NewRequest("GET", "/health", http.NoBody))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var body struct {
		Status     string             `json:"status"`
		Components []component.Health `json:"components"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Status != "unhealthy" || len(body.Components) != 2 {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestServer_NoMetricsRoute(t *testing.T) {
	s := New(testConfig(), logger.Nop())
	s.RegisterDefaultEndpoints("pitwall", nil, nil)

	rr := httptest.NewRecorder()
	s.Engine().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", http.NoBody))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

func TestServer_StartStop(t *testing.T) {
	s := New(testConfig(), logger.Nop())
	s.Engine().GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	comp := NewComponent(s)

	if h := comp.Health(context.Background()); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy before start, got %s", h.Status)
	}

	if err := comp.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if h := comp.Health(context.Background()); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy after start, got %s", h.Status)
	}

	resp, err := http.Get("http://" + s.Addr() + "/ping")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	shutdownCalled := make(chan struct{})
	s.OnShutdown(func() { close(shutdownCalled) })

	if err := comp.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	<-shutdownCalled
}

func TestServer_StartBindConflict(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	cfg := testConfig()
	cfg.Port = ln.Addr().(*net.TCPAddr).Port
	s := New(cfg, logger.Nop())

	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected bind failure")
	}
	if h := NewComponent(s).Health(context.Background()); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy after failed start, got %s", h.Status)
	}
}

func TestComponent_RoutesSorted(t *testing.T) {
	s := New(testConfig(), logger.Nop())
	s.RegisterDefaultEndpoints("pitwall", nil, nil)
	noop := func(*gin.Context) {}
	s.Engine().GET("/ws", noop)
	s.Engine().GET("/sse", noop)

	routes := NewComponent(s).Routes()
	if len(routes) != 4 {
		t.Fatalf("expected 4 routes, got %d", len(routes))
	}
	wantPaths := []string{"/sse", "/ws", "/health", "/info"}
	for i, want := range wantPaths {
		if routes[i].Path != want {
			t.Errorf("route %d: expected %s, got %s", i, want, routes[i].Path)
		}
	}
	if !strings.HasSuffix(routes[2].Handler, "⚙️") {
		t.Errorf("expected system marker on %s, got %q", routes[2].Path, routes[2].Handler)
	}
}

func TestFormatHandlerName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"github.com/kbukum/pitwall/observer.(*Handler).ServeWS-fm", "Handler.ServeWS"},
		{"github.com/kbukum/pitwall/server/endpoint.Health.func1", "health"},
		{"github.com/gin-gonic/gin.WrapH.func1", "wraph"},
		{"main.handler", "handler"},
	}
	for _, tt := range tests {
		if got := formatHandlerName(tt.in); got != tt.want {
			t.Errorf("formatHandlerName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
