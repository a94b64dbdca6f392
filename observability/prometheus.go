package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kbukum/pitwall/broadcast"
)

// RelayStats is what the Prometheus collector reads at scrape time.
type RelayStats struct {
	Broadcast      broadcast.Stats
	FramesIngested uint64
	ActiveStreams  int
	ActiveSessions int
}

// StatsFunc returns the current RelayStats.
type StatsFunc func() RelayStats

// Collector exposes RelayStats as Prometheus metrics.
type Collector struct {
	stats StatsFunc

	capacity    *prometheus.Desc
	published   *prometheus.Desc
	retained    *prometheus.Desc
	subscribers *prometheus.Desc
	ingested    *prometheus.Desc
	streams     *prometheus.Desc
	sessions    *prometheus.Desc
}

// NewCollector creates a collector reading from stats.
func NewCollector(stats StatsFunc) *Collector {
	return &Collector{
		stats:       stats,
		capacity:    prometheus.NewDesc("pitwall_broadcast_capacity", "Ring capacity of the broadcast medium.", nil, nil),
		published:   prometheus.NewDesc("pitwall_broadcast_published_total", "Frames published to the broadcast medium.", nil, nil),
		retained:    prometheus.NewDesc("pitwall_broadcast_retained", "Frames currently retained in the ring.", nil, nil),
		subscribers: prometheus.NewDesc("pitwall_broadcast_subscribers", "Active cursors on the broadcast medium.", nil, nil),
		ingested:    prometheus.NewDesc("pitwall_ingest_frames_total", "Frames received from producers.", nil, nil),
		streams:     prometheus.NewDesc("pitwall_ingest_streams_active", "Producer streams currently open.", nil, nil),
		sessions:    prometheus.NewDesc("pitwall_observer_sessions_active", "Observer sessions currently open.", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.capacity
	ch <- c.published
	ch <- c.retained
	ch <- c.subscribers
	ch <- c.ingested
	ch <- c.streams
	ch <- c.sessions
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(s.Broadcast.Capacity))
	ch <- prometheus.MustNewConstMetric(c.published, prometheus.CounterValue, float64(s.Broadcast.Published))
	ch <- prometheus.MustNewConstMetric(c.retained, prometheus.GaugeValue, float64(s.Broadcast.Retained))
	ch <- prometheus.MustNewConstMetric(c.subscribers, prometheus.GaugeValue, float64(s.Broadcast.Subscribers))
	ch <- prometheus.MustNewConstMetric(c.ingested, prometheus.CounterValue, float64(s.FramesIngested))
	ch <- prometheus.MustNewConstMetric(c.streams, prometheus.GaugeValue, float64(s.ActiveStreams))
	ch <- prometheus.MustNewConstMetric(c.sessions, prometheus.GaugeValue, float64(s.ActiveSessions))
}

// NewRegistry returns a registry with Go runtime and process collectors plus
// the given collectors.
func NewRegistry(cs ...prometheus.Collector) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	all := append([]prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}, cs...)
	for _, c := range all {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Handler serves reg in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
