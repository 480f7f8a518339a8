package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	entriesTotal  *prometheus.CounterVec
	exitsTotal    *prometheus.CounterVec
	escalations   *prometheus.CounterVec
	unwindsTotal  *prometheus.CounterVec
	orderFailures *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	realizedPnL   prometheus.Gauge
	lastZScore    *prometheus.GaugeVec
	openLegs      prometheus.Gauge
	latency       *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		entriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairtrader_entries_total",
				Help: "Total number of two-leg pair entries",
			},
			[]string{"pair"},
		),
		exitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairtrader_exits_total",
				Help: "Total number of closed pair trades",
			},
			[]string{"pair"},
		),
		escalations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairtrader_order_escalations_total",
				Help: "Total number of limit-order price escalations",
			},
			[]string{"symbol"},
		),
		unwindsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairtrader_leg_unwinds_total",
				Help: "Total number of single-leg unwinds after a partial entry",
			},
			[]string{"pair"},
		),
		orderFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairtrader_order_failures_total",
				Help: "Total number of failed order protocol runs",
			},
			[]string{"kind"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairtrader_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		// A gauge, not a counter: losing trades subtract from the total.
		realizedPnL: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pairtrader_realized_pnl",
				Help: "Cumulative realized net profit across closed trades",
			},
		),
		lastZScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pairtrader_last_zscore",
				Help: "Last computed z-score per pair",
			},
			[]string{"pair"},
		),
		openLegs: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pairtrader_open_legs",
				Help: "Number of trade legs currently open",
			},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pairtrader_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordEntry records a successful pair entry.
func (r *Recorder) RecordEntry(pairKey string) {
	r.entriesTotal.WithLabelValues(pairKey).Inc()
}

// RecordExit records a closed pair trade and its realized profit.
func (r *Recorder) RecordExit(pairKey string, netProfit float64) {
	r.exitsTotal.WithLabelValues(pairKey).Inc()
	r.realizedPnL.Add(netProfit)
}

// RecordEscalation records one limit-order price escalation.
func (r *Recorder) RecordEscalation(symbol string) {
	r.escalations.WithLabelValues(symbol).Inc()
}

// RecordUnwind records a single-leg unwind after a partial entry.
func (r *Recorder) RecordUnwind(pairKey string) {
	r.unwindsTotal.WithLabelValues(pairKey).Inc()
}

// RecordOrderFailure records a failed order protocol run.
func (r *Recorder) RecordOrderFailure(kind string) {
	r.orderFailures.WithLabelValues(kind).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordZScore records the last computed z-score for a pair.
func (r *Recorder) RecordZScore(pairKey string, z float64) {
	r.lastZScore.WithLabelValues(pairKey).Set(z)
}

// SetOpenLegs records the current open-legs count.
func (r *Recorder) SetOpenLegs(n int) {
	r.openLegs.Set(float64(n))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
