package server

import (
	"context"
	"sort"
	"strings"

	"github.com/kbukum/pitwall/component"
)

const componentName = "http-server"

var (
	_ component.Component     = (*ServerComponent)(nil)
	_ component.Describable   = (*ServerComponent)(nil)
	_ component.RouteProvider = (*ServerComponent)(nil)
)

// ServerComponent wraps Server to implement component.Component.
type ServerComponent struct {
	server *Server
}

// NewComponent returns a component.Component backed by the given Server.
func NewComponent(s *Server) *ServerComponent {
	return &ServerComponent{server: s}
}

// Name returns the component name used for registration.
func (sc *ServerComponent) Name() string { return componentName }

// Start starts the underlying HTTP server.
func (sc *ServerComponent) Start(ctx context.Context) error {
	return sc.server.Start(ctx)
}

// Stop gracefully shuts down the underlying HTTP server.
func (sc *ServerComponent) Stop(ctx context.Context) error {
	return sc.server.Stop(ctx)
}

// Health reports whether the server is accepting connections.
func (sc *ServerComponent) Health(ctx context.Context) component.Health {
	s := sc.server
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.serving:
		return component.Health{Name: componentName, Status: component.StatusHealthy}
	case s.serveErr != nil:
		return component.Health{Name: componentName, Status: component.StatusUnhealthy, Message: s.serveErr.Error()}
	default:
		return component.Health{Name: componentName, Status: component.StatusUnhealthy, Message: "not serving"}
	}
}

// Describe returns infrastructure summary info for the bootstrap display.
func (sc *ServerComponent) Describe() component.Description {
	return component.Description{
		Name:    "HTTP observers",
		Type:    "server",
		Details: sc.server.Addr(),
		Port:    sc.server.config.Port,
	}
}

// Routes returns all registered HTTP routes for the startup summary.
func (sc *ServerComponent) Routes() []component.Route {
	ginRoutes := sc.server.engine.Routes()

	// Sort: observer routes first (by path), then system routes
	sort.Slice(ginRoutes, func(i, j int) bool {
		iSys := systemPaths[ginRoutes[i].Path]
		jSys := systemPaths[ginRoutes[j].Path]
		if iSys != jSys {
			return !iSys
		}
		if ginRoutes[i].Path != ginRoutes[j].Path {
			return ginRoutes[i].Path < ginRoutes[j].Path
		}
		return methodOrder(ginRoutes[i].Method) < methodOrder(ginRoutes[j].Method)
	})

	routes := make([]component.Route, 0, len(ginRoutes))
	for _, r := range ginRoutes {
		handler := formatHandlerName(r.Handler)
		if systemPaths[r.Path] {
			handler = handler + " ⚙️"
		}
		routes = append(routes, component.Route{
			Method:  r.Method,
			Path:    r.Path,
			Handler: handler,
		})
	}
	return routes
}

// systemPaths are the routes RegisterDefaultEndpoints adds. They are listed
// after the observer routes.
var systemPaths = map[string]bool{
	"/health":  true,
	"/info":    true,
	"/metrics": true,
}

// formatHandlerName shortens Gin's handler path for display:
//
//	github.com/kbukum/pitwall/observer.(*Handler).ServeWS-fm  ->  Handler.ServeWS
//	github.com/kbukum/pitwall/server/endpoint.Health.func1    ->  health
func formatHandlerName(full string) string {
	name := strings.TrimSuffix(full, "-fm")
	name = name[strings.LastIndex(name, "/")+1:]
	name = strings.NewReplacer("(*", "", ")", "").Replace(name)

	parts := strings.Split(name, ".")
	if len(parts) > 1 && strings.ToLower(parts[0]) == parts[0] {
		parts = parts[1:]
	}
	for i := len(parts) - 1; i > 0; i-- {
		if strings.HasPrefix(parts[i], "func") {
			return strings.ToLower(parts[i-1])
		}
	}
	return strings.Join(parts, ".")
}

func methodOrder(method string) int {
	for i, m := range []string{"GET", "POST", "PUT", "PATCH", "DELETE"} {
		if m == method {
			return i
		}
	}
	return 5
}
