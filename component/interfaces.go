package component

import "context"

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health holds health information for a component.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Component is a lifecycle-managed part of the process.
//
// Start must return only after the component is ready to serve, so a
// listener that cannot bind surfaces as a Start error.
type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health(ctx context.Context) Health
}

// Description is shown in the startup summary.
type Description struct {
	// Name is the display name. Empty means Component.Name().
	Name string
	// Type groups components, e.g. "server", "grpc", "redis".
	Type    string
	Details string
	Port    int
}

// Describable is implemented by components that report themselves in the
// startup summary.
type Describable interface {
	Describe() Description
}

// Route holds a single HTTP route for the startup summary.
type Route struct {
	Method  string
	Path    string
	Handler string
}

// RouteProvider is implemented by server components that expose routes.
type RouteProvider interface {
	Routes() []Route
}
