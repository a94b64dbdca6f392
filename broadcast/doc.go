// Package broadcast implements a bounded, lossy, multi-consumer broadcast
// medium.
//
// One publisher appends to a fixed-capacity ring; any number of cursors read
// from it independently. Publishing never waits for readers. A cursor that
// falls further behind than the ring retains observes a *LaggedError with
// the number of items it missed and resumes from the oldest retained item.
//
//	m, _ := broadcast.New[telemetry.Frame](100)
//	c := m.Subscribe()
//	defer c.Close()
//	for {
//	    f, err := c.Next(ctx)
//	    if skipped, ok := broadcast.Lagged(err); ok { ... }
//	}
package broadcast
