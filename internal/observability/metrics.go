package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/orbit-tracker/internal/feed"
)

// TrackerCollector bundles Prometheus metrics for the polling loop and trail
// state and provides a ready-to-serve /metrics handler.
type TrackerCollector struct {
	gatherer prometheus.Gatherer

	Polls         *prometheus.CounterVec
	PollDurations prometheus.Histogram

	TrailPoints prometheus.Gauge
	LastUpdate  prometheus.Gauge
}

// NewTrackerCollector registers tracker Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry when nil.
func NewTrackerCollector(reg prometheus.Registerer) (*TrackerCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	polls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_polls_total",
		Help: "Total poll ticks, labeled by outcome (ok, transport, cancelled, bad_payload).",
	}, []string{"outcome"})
	polls, err := registerCounterVec(reg, polls, "tracker_polls_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracker_poll_duration_seconds",
		Help:    "Upstream fetch latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})
	durations, err = registerHistogram(reg, durations, "tracker_poll_duration_seconds")
	if err != nil {
		return nil, err
	}

	trailPoints, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "trail_points",
		Help: "Current number of points in the past-trail buffer.",
	}), "trail_points")
	if err != nil {
		return nil, err
	}
	lastUpdate, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_last_update_timestamp_seconds",
		Help: "Unix timestamp of the most recent successful position update.",
	}), "tracker_last_update_timestamp_seconds")
	if err != nil {
		return nil, err
	}

	return &TrackerCollector{
		gatherer:      gatherer,
		Polls:         polls,
		PollDurations: durations,
		TrailPoints:   trailPoints,
		LastUpdate:    lastUpdate,
	}, nil
}

// ObservePoll records one poll tick. Implements the tracker's PollRecorder.
func (c *TrackerCollector) ObservePoll(err error, d time.Duration) {
	if c == nil {
		return
	}
	if c.Polls != nil {
		c.Polls.WithLabelValues(feed.Outcome(err)).Inc()
	}
	if c.PollDurations != nil {
		c.PollDurations.Observe(d.Seconds())
	}
}

// SetTrailSize drives the trail-length gauge from the update handler.
func (c *TrackerCollector) SetTrailSize(points int) {
	if c == nil || c.TrailPoints == nil {
		return
	}
	c.TrailPoints.Set(float64(points))
}

// MarkUpdate records the wall-clock time of a successful update.
func (c *TrackerCollector) MarkUpdate(t time.Time) {
	if c == nil || c.LastUpdate == nil {
		return
	}
	c.LastUpdate.Set(float64(t.Unix()))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *TrackerCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
