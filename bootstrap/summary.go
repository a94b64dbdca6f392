package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kbukum/pitwall/component"
)

// Summary prints what the process started: components, their addresses,
// routes and live health.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	out             io.Writer
}

// NewSummary creates a summary printer writing to stdout.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version, out: os.Stdout}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// Display writes the summary. Describable components are listed with their
// details, RouteProvider components contribute routes.
func (s *Summary) Display(registry *component.Registry) {
	w := s.out
	version := s.version
	if version == "" {
		version = "dev"
	}
	fmt.Fprintf(w, "\n%s %s started in %.2fs\n", s.serviceName, version, s.startupDuration.Seconds())

	if registry == nil {
		fmt.Fprintln(w)
		return
	}
	components := registry.All()
	if len(components) == 0 {
		fmt.Fprintf(w, "   └── No components registered\n\n")
		return
	}

	fmt.Fprintf(w, "\nComponents\n")
	var routes []component.Route
	for i, c := range components {
		desc := component.Description{Name: c.Name()}
		if d, ok := c.(component.Describable); ok {
			desc = d.Describe()
			if desc.Name == "" {
				desc.Name = c.Name()
			}
		}
		line := desc.Name
		if desc.Type != "" {
			line += " [" + desc.Type + "]"
		}
		if desc.Details != "" {
			line += ": " + desc.Details
		}
		fmt.Fprintf(w, "   %s %s\n", treePrefix(i, len(components)), line)

		if rp, ok := c.(component.RouteProvider); ok {
			routes = append(routes, rp.Routes()...)
		}
	}

	if len(routes) > 0 {
		fmt.Fprintf(w, "\nRoutes (%d)\n", len(routes))
		for i, r := range routes {
			fmt.Fprintf(w, "   %s %-7s %s → %s\n", treePrefix(i, len(routes)), r.Method, r.Path, r.Handler)
		}
	}

	health := registry.HealthAll(context.Background())
	fmt.Fprintf(w, "\nHealth\n")
	for i, h := range health {
		msg := ""
		if h.Message != "" {
			msg = " (" + h.Message + ")"
		}
		fmt.Fprintf(w, "   %s %s %s: %s%s\n", treePrefix(i, len(health)), healthIcon(h.Status), h.Name, strings.ToLower(string(h.Status)), msg)
	}
	fmt.Fprintln(w)
}

func treePrefix(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func healthIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}
