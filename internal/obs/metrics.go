// Package obs holds the process-wide Prometheus metrics, exposed via the
// optional metrics listener.
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveSessions    = promauto.NewGauge(prometheus.GaugeOpts{Name: "strait_active_sessions", Help: "Currently open relay sessions"})
	SessionsTotal     = promauto.NewCounter(prometheus.CounterOpts{Name: "strait_sessions_total", Help: "Relay sessions accepted"})
	RelayedBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "strait_relayed_bytes_total", Help: "Bytes forwarded by direction"}, []string{"direction"})
	TunnelErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "strait_tunnel_errors_total", Help: "Tunnel establishment failures by kind"}, []string{"kind"})
	RelayHealthy      = promauto.NewGauge(prometheus.GaugeOpts{Name: "strait_relay_healthy", Help: "Last watchdog probe result (1 healthy, 0 unhealthy)"})
	ProbeSeconds      = promauto.NewHistogram(prometheus.HistogramOpts{Name: "strait_probe_duration_seconds", Help: "Watchdog probe duration", Buckets: prometheus.ExponentialBuckets(0.001, 2, 14)})
)
