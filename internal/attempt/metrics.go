package attempt

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeLabel = "outcome"
	RoomsLabel   = "rooms"
)

// Metrics records attempt outcomes and solver latency. A nil *Metrics
// records nothing.
type Metrics struct {
	attempts     *prometheus.CounterVec
	solveSeconds *prometheus.HistogramVec
	clauses      prometheus.Histogram
	queryCount   prometheus.Gauge
}

// NewMetrics creates the attempt metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mapper_attempts_total",
				Help: "Number of attempts by outcome",
			},
			[]string{OutcomeLabel, RoomsLabel},
		),
		solveSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mapper_solve_duration_seconds",
				Help:    "Wall-clock time spent in the solver portfolio",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{RoomsLabel},
		),
		clauses: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mapper_formula_clauses",
				Help:    "Number of clauses in encoded formulas",
				Buckets: prometheus.ExponentialBuckets(1000, 4, 8),
			},
		),
		queryCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mapper_query_count",
				Help: "Judge query count after the last exploration",
			},
		),
	}
	for _, c := range []prometheus.Collector{m.attempts, m.solveSeconds, m.clauses, m.queryCount} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeOutcome(o Outcome, rooms string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(o.String(), rooms).Inc()
}

func (m *Metrics) observeSolve(d time.Duration, rooms string) {
	if m == nil {
		return
	}
	m.solveSeconds.WithLabelValues(rooms).Observe(d.Seconds())
}

func (m *Metrics) observeClauses(n int) {
	if m == nil {
		return
	}
	m.clauses.Observe(float64(n))
}

func (m *Metrics) setQueryCount(n int) {
	if m == nil {
		return
	}
	m.queryCount.Set(float64(n))
}
