package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the sale service.
type Metrics struct {
	ClaimsTotal        *prometheus.CounterVec
	UnitsIssuedTotal   *prometheus.CounterVec
	ClaimDurationMs    prometheus.Histogram
	TotalIssued        prometheus.Gauge
	EarlyIssued        prometheus.Gauge
	Phase              prometheus.Gauge
	PhaseChangesTotal  prometheus.Counter
	StoreFailuresTotal prometheus.Counter
}

// New creates and registers the collectors with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		ClaimsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mintgate_claims_total",
			Help: "Claims processed, by phase and outcome",
		}, []string{"phase", "outcome"}),
		UnitsIssuedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mintgate_units_issued_total",
			Help: "Units issued, by phase",
		}, []string{"phase"}),
		ClaimDurationMs: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mintgate_claim_duration_ms",
			Help:    "Latency of claim processing in milliseconds, including persistence",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
		}),
		TotalIssued: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mintgate_total_issued",
			Help: "Units issued across both phases",
		}),
		EarlyIssued: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mintgate_early_issued",
			Help: "Units issued during the early phase",
		}),
		Phase: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mintgate_phase",
			Help: "Current sale phase (0 closed, 1 early, 2 open)",
		}),
		PhaseChangesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "mintgate_phase_changes_total",
			Help: "Administrative phase changes applied",
		}),
		StoreFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "mintgate_store_failures_total",
			Help: "State store writes that failed and rolled a claim back",
		}),
	}
}

// ObserveClaim records one claim outcome; outcome is "issued" or the rejection kind.
func (m *Metrics) ObserveClaim(phase, outcome string, durationMs float64) {
	m.ClaimsTotal.WithLabelValues(phase, outcome).Inc()
	m.ClaimDurationMs.Observe(durationMs)
}

func (m *Metrics) AddIssued(phase string, qty uint64) {
	m.UnitsIssuedTotal.WithLabelValues(phase).Add(float64(qty))
}

func (m *Metrics) SetTotals(total, early uint64) {
	m.TotalIssued.Set(float64(total))
	m.EarlyIssued.Set(float64(early))
}

func (m *Metrics) SetPhase(phase uint8) {
	m.Phase.Set(float64(phase))
}

func (m *Metrics) IncrementPhaseChanges() {
	m.PhaseChangesTotal.Inc()
}

func (m *Metrics) IncrementStoreFailures() {
	m.StoreFailuresTotal.Inc()
}
