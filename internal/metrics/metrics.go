package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "homecam"

// Metrics holds the device metrics and the registry they are exported from.
type Metrics struct {
	registry *prometheus.Registry

	FramesSent        prometheus.Counter
	FrameFailures     prometheus.Counter
	BreakerTrips      prometheus.Counter
	StreamWriteErrors prometheus.Counter
	ActiveStreams     prometheus.Gauge
	FrameInterval     prometheus.Gauge

	ConnectivityState   prometheus.Gauge
	AssociationRetries  prometheus.Counter
	ProvisioningEntries prometheus.Counter

	ServerTransitions *prometheus.CounterVec
	ControlRequests   *prometheus.CounterVec
}

// New creates a Metrics instance on a private registry, with Go runtime and
// process collectors attached.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frames_sent_total",
			Help:      "JPEG parts written to stream clients",
		}),
		FrameFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frame_acquire_failures_total",
			Help:      "Frame acquisitions that timed out or failed",
		}),
		BreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "breaker_trips_total",
			Help:      "Streams ended by the consecutive-failure threshold",
		}),
		StreamWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "write_errors_total",
			Help:      "Streams ended by a failed socket write",
		}),
		ActiveStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "active",
			Help:      "Stream connections currently in the frame loop",
		}),
		FrameInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frame_interval_avg_ms",
			Help:      "Running average of the inter-frame interval of the latest stream",
		}),
		ConnectivityState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "wifi",
			Name:      "state",
			Help:      "Connectivity state (0=disconnected 1=connecting 2=associated 3=provisioning 4=failed)",
		}),
		AssociationRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wifi",
			Name:      "association_retries_total",
			Help:      "Reassociation attempts after a disconnection",
		}),
		ProvisioningEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wifi",
			Name:      "provisioning_entries_total",
			Help:      "Times the device fell back to provisioning mode",
		}),
		ServerTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "server_transitions_total",
			Help:      "Listener start/stop outcomes",
		}, []string{"server", "action", "result"}),
		ControlRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "control_requests_total",
			Help:      "Control endpoint calls by endpoint and status code",
		}, []string{"endpoint", "code"}),
	}

	m.registry.MustRegister(
		m.FramesSent,
		m.FrameFailures,
		m.BreakerTrips,
		m.StreamWriteErrors,
		m.ActiveStreams,
		m.FrameInterval,
		m.ConnectivityState,
		m.AssociationRetries,
		m.ProvisioningEntries,
		m.ServerTransitions,
		m.ControlRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
