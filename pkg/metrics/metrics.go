package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors shared by the token manager,
// the renewal locks and the device proxy.
type Metrics struct {
	RefreshTotal      *prometheus.CounterVec // result=cached|discovered|renewed|busy|awaited|failed
	RefreshLatencyMS  prometheus.Histogram
	LockTotal         *prometheus.CounterVec // op=acquire|release, result=success|busy|fail
	DeviceOpsTotal    *prometheus.CounterVec // op=call|read|describe, result=success|unreachable
	CredentialsPruned prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is what tests and one-shot commands want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sparkdoor_token_refresh_total",
				Help: "Total token refreshes by result",
			},
			[]string{"result"},
		),
		RefreshLatencyMS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sparkdoor_token_refresh_latency_ms",
			Help:    "Latency of token refreshes that reached the cloud (ms)",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1ms .. ~8s
		}),
		LockTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sparkdoor_renewal_lock_total",
				Help: "Total renewal lock operations by result",
			},
			[]string{"op", "result"},
		),
		DeviceOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sparkdoor_device_ops_total",
				Help: "Total device operations through the proxy by result",
			},
			[]string{"op", "result"},
		),
		CredentialsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sparkdoor_credentials_pruned_total",
			Help: "Total number of expired credentials removed",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.RefreshTotal,
			m.RefreshLatencyMS,
			m.LockTotal,
			m.DeviceOpsTotal,
			m.CredentialsPruned,
		)
	}
	return m
}

// OrNop returns m, or an unregistered set of collectors when m is nil.
func OrNop(m *Metrics) *Metrics {
	if m == nil {
		return New(nil)
	}
	return m
}
