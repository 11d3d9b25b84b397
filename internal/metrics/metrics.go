package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"codeberg.org/mutker/wvasim/internal/discovery"
	"codeberg.org/mutker/wvasim/internal/stream"
)

const namespace = "wvasim"

// Collector holds the simulator's Prometheus metrics. It observes stream
// sessions and discovery requests.
type Collector struct {
	sessionsActive    *prometheus.GaugeVec   // By transport
	sessionsTotal     *prometheus.CounterVec // By transport
	framesTotal       *prometheus.CounterVec // By field
	cyclesTotal       prometheus.Counter
	sessionErrors     *prometheus.CounterVec // By end reason
	discoveryRequests *prometheus.CounterVec // By family and result (hit/miss)
}

var (
	_ stream.Observer           = (*Collector)(nil)
	_ discovery.RequestObserver = (*Collector)(nil)
)

// New creates the collector and registers every metric with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		sessionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "sessions_active",
			Help:      "Number of streaming sessions currently running",
		}, []string{"transport"}),

		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "sessions_total",
			Help:      "Total number of streaming sessions started",
		}, []string{"transport"}),

		framesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frames_total",
			Help:      "Total number of telemetry frames written",
		}, []string{"field"}),

		cyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "cycles_total",
			Help:      "Total number of completed frame cycles",
		}),

		sessionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "session_errors_total",
			Help:      "Total number of sessions ended by a transport failure",
		}, []string{"reason"}),

		discoveryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "requests_total",
			Help:      "Total number of discovery API requests",
		}, []string{"family", "result"}),
	}

	for _, col := range []prometheus.Collector{
		c.sessionsActive,
		c.sessionsTotal,
		c.framesTotal,
		c.cyclesTotal,
		c.sessionErrors,
		c.discoveryRequests,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *Collector) SessionStarted(info stream.SessionInfo) {
	c.sessionsActive.WithLabelValues(info.Transport).Inc()
	c.sessionsTotal.WithLabelValues(info.Transport).Inc()
}

func (c *Collector) FrameSent(_ stream.SessionInfo, frame stream.Frame) {
	c.framesTotal.WithLabelValues(frame.Field).Inc()
}

func (c *Collector) CycleCompleted(stream.SessionInfo, int, stream.ConnectionState) {
	c.cyclesTotal.Inc()
}

func (c *Collector) SessionEnded(info stream.SessionInfo, summary stream.Summary) {
	c.sessionsActive.WithLabelValues(info.Transport).Dec()
	if summary.Reason == stream.EndTransport {
		c.sessionErrors.WithLabelValues(string(summary.Reason)).Inc()
	}
}

func (c *Collector) ObserveRequest(family string, found bool) {
	result := "miss"
	if found {
		result = "hit"
	}
	c.discoveryRequests.WithLabelValues(family, result).Inc()
}
