package relay

import (
	"context"
	"fmt"

	"github.com/kbukum/pitwall/broadcast"
	"github.com/kbukum/pitwall/component"
	"github.com/kbukum/pitwall/telemetry"
)

var (
	_ component.Component   = (*mediumComponent)(nil)
	_ component.Describable = (*mediumComponent)(nil)
)

// mediumComponent ties the medium's lifetime to the registry. It starts
// first and stops last, so closing it ends any session still attached.
type mediumComponent struct {
	medium *broadcast.Medium[telemetry.Frame]
}

func (m *mediumComponent) Name() string { return "broadcast" }

func (m *mediumComponent) Start(context.Context) error { return nil }

func (m *mediumComponent) Stop(context.Context) error {
	m.medium.Close()
	return nil
}

func (m *mediumComponent) Health(context.Context) component.Health {
	s := m.medium.Stats()
	return component.Health{
		Name:    m.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("published=%d retained=%d subscribers=%d", s.Published, s.Retained, s.Subscribers),
	}
}

func (m *mediumComponent) Describe() component.Description {
	return component.Description{
		Name:    "Broadcast medium",
		Type:    "broadcast",
		Details: fmt.Sprintf("capacity=%d", m.medium.Capacity()),
	}
}
