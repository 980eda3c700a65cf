package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StreamCollector exposes metrics for the snapshot stream.
type StreamCollector struct {
	BroadcastDuration prometheus.Histogram
	Clients           prometheus.Gauge
	FramesSent        prometheus.Counter
	FramesDropped     prometheus.Counter
}

// NewStreamCollector registers stream metrics against the provided registerer.
func NewStreamCollector(reg prometheus.Registerer) (*StreamCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	broadcast, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "stream_broadcast_duration_seconds",
		Help:    "Time spent fanning one snapshot out to every stream client.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	}), "stream_broadcast_duration_seconds")
	if err != nil {
		return nil, err
	}

	clients, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stream_clients",
		Help: "Number of connected snapshot stream clients.",
	}), "stream_clients")
	if err != nil {
		return nil, err
	}

	sent, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stream_frames_sent_total",
		Help: "Snapshots queued for delivery to stream clients.",
	}), "stream_frames_sent_total")
	if err != nil {
		return nil, err
	}

	dropped, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stream_frames_dropped_total",
		Help: "Snapshots skipped because a client's queue was full.",
	}), "stream_frames_dropped_total")
	if err != nil {
		return nil, err
	}

	return &StreamCollector{
		BroadcastDuration: broadcast,
		Clients:           clients,
		FramesSent:        sent,
		FramesDropped:     dropped,
	}, nil
}

// ObserveBroadcast records how long one fan-out took.
func (c *StreamCollector) ObserveBroadcast(d time.Duration) {
	if c == nil || c.BroadcastDuration == nil {
		return
	}
	c.BroadcastDuration.Observe(d.Seconds())
}

// SetClients updates the connected client gauge.
func (c *StreamCollector) SetClients(count int) {
	if c == nil || c.Clients == nil {
		return
	}
	c.Clients.Set(float64(count))
}

// IncSent counts a snapshot queued for a client.
func (c *StreamCollector) IncSent() {
	if c == nil || c.FramesSent == nil {
		return
	}
	c.FramesSent.Inc()
}

// IncDropped counts a snapshot skipped for a slow client.
func (c *StreamCollector) IncDropped() {
	if c == nil || c.FramesDropped == nil {
		return
	}
	c.FramesDropped.Inc()
}
