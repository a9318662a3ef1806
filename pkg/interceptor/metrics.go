// Kunhua Huang 2026

package interceptor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ecstasoy/CipherInGo/pkg/protocol"
	"github.com/ecstasoy/CipherInGo/pkg/transport"
)

const namespace = "cipher"

// Metrics records per-packet counters and durations as an interceptor and
// connection lifecycle events as a transport.Observer.
type Metrics struct {
	packetsTotal  *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	rejectedTotal *prometheus.CounterVec
	closedTotal   *prometheus.CounterVec
	activeConns   prometheus.Gauge
	classify      func(error) string
}

var _ transport.Observer = (*Metrics)(nil)

// NewMetrics registers the collectors on reg, prometheus.DefaultRegisterer
// when nil. classify turns an error into a low-cardinality status label; nil
// labels every failure "error".
func NewMetrics(reg prometheus.Registerer, classify func(error) string) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if classify == nil {
		classify = func(error) string { return "error" }
	}

	m := &Metrics{
		packetsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "packets_total",
				Help:      "Total number of handled packets",
			},
			[]string{"operation", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "packet_duration_seconds",
				Help:      "Duration of packet handling in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		rejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connections_rejected_total",
				Help:      "Connections closed at accept time",
			},
			[]string{"reason"},
		),
		closedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connections_closed_total",
				Help:      "Connections closed after a transaction, by outcome",
			},
			[]string{"status"},
		),
		activeConns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "connections_active",
				Help:      "Connections accepted and not yet closed",
			},
		),
		classify: classify,
	}

	for _, c := range []prometheus.Collector{m.packetsTotal, m.duration, m.rejectedTotal, m.closedTotal, m.activeConns} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				return nil, fmt.Errorf("metrics already registered: %w", err)
			}
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	return m, nil
}

func (m *Metrics) Interceptor() Interceptor {
	return func(ctx context.Context, req *protocol.Packet, invoker Invoker) (*protocol.Packet, error) {
		start := time.Now()

		resp, err := invoker(ctx, req)

		duration := time.Since(start).Seconds()

		m.packetsTotal.WithLabelValues(req.Operation.String(), m.status(err)).Inc()
		m.duration.WithLabelValues(req.Operation.String()).Observe(duration)

		return resp, err
	}
}

func (m *Metrics) status(err error) string {
	if err == nil {
		return "success"
	}
	return m.classify(err)
}

func (m *Metrics) ConnAccepted(net.Addr) {
	m.activeConns.Inc()
}

func (m *Metrics) ConnRejected(_ net.Addr, reason error) {
	m.rejectedTotal.WithLabelValues(m.classify(reason)).Inc()
}

func (m *Metrics) ConnClosed(_ net.Addr, err error) {
	m.activeConns.Dec()
	m.closedTotal.WithLabelValues(m.status(err)).Inc()
}
