package relay

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/circuit-relay/hop/pb"
)

// MetricsTracer is component I: an optional observer of reservation and
// relayed-connection lifecycle events. A nil MetricsTracer on a Service
// means no metrics are recorded; callers never need to nil-check it
// themselves since Service only invokes it when non-nil.
type MetricsTracer interface {
	ReservationAllowed(p peer.ID, refreshed bool)
	ReservationRefused(p peer.ID, status pb.Status)
	ReservationClosed(p peer.ID)
	ConnectionOpened(src, dst peer.ID)
	ConnectionClosed(src, dst peer.ID, bytesTransferred int64)
	ConnectionRefused(src, dst peer.ID, status pb.Status)
	BytesTransferred(n int)
}

// PrometheusMetricsTracer is the default MetricsTracer, registering its
// collectors on construction.
type PrometheusMetricsTracer struct {
	reservations    *prometheus.CounterVec
	connections     *prometheus.CounterVec
	connectionBytes prometheus.Counter
	connectionsOpen prometheus.Gauge
}

// NewPrometheusMetricsTracer constructs and registers a
// PrometheusMetricsTracer against reg. Passing prometheus.DefaultRegisterer
// matches the package-level registration the teacher's metrics helpers use.
func NewPrometheusMetricsTracer(reg prometheus.Registerer) *PrometheusMetricsTracer {
	t := &PrometheusMetricsTracer{
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "libp2p_relay",
			Name:      "reservations_total",
			Help:      "Reservation requests by outcome.",
		}, []string{"outcome"}),
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "libp2p_relay",
			Name:      "connections_total",
			Help:      "Relayed connection attempts by outcome.",
		}, []string{"outcome"}),
		connectionBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "libp2p_relay",
			Name:      "relayed_bytes_total",
			Help:      "Total bytes relayed across both directions of every connection.",
		}),
		connectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "libp2p_relay",
			Name:      "connections_open",
			Help:      "Currently open relayed connections.",
		}),
	}
	reg.MustRegister(t.reservations, t.connections, t.connectionBytes, t.connectionsOpen)
	return t
}

func (t *PrometheusMetricsTracer) ReservationAllowed(p peer.ID, refreshed bool) {
	if refreshed {
		t.reservations.WithLabelValues("refreshed").Inc()
		return
	}
	t.reservations.WithLabelValues("allowed").Inc()
}

func (t *PrometheusMetricsTracer) ReservationRefused(p peer.ID, status pb.Status) {
	t.reservations.WithLabelValues(status.String()).Inc()
}

func (t *PrometheusMetricsTracer) ReservationClosed(p peer.ID) {
	t.reservations.WithLabelValues("closed").Inc()
}

func (t *PrometheusMetricsTracer) ConnectionOpened(src, dst peer.ID) {
	t.connections.WithLabelValues("opened").Inc()
	t.connectionsOpen.Inc()
}

func (t *PrometheusMetricsTracer) ConnectionClosed(src, dst peer.ID, bytesTransferred int64) {
	t.connections.WithLabelValues("closed").Inc()
	t.connectionsOpen.Dec()
}

func (t *PrometheusMetricsTracer) ConnectionRefused(src, dst peer.ID, status pb.Status) {
	t.connections.WithLabelValues(status.String()).Inc()
}

func (t *PrometheusMetricsTracer) BytesTransferred(n int) {
	t.connectionBytes.Add(float64(n))
}
