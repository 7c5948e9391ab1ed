package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_cycles_total",
			Help: "Evaluation cycles by final action",
		},
		[]string{"symbol", "action"},
	)

	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_trades_total",
			Help: "Closed trades by exit reason",
		},
		[]string{"symbol", "reason"},
	)

	tradePnL = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engine_trade_pnl",
			Help:    "Realized PnL per closed trade",
			Buckets: prometheus.ExponentialBucketsRange(1, 100_000, 12),
		},
		[]string{"symbol"},
	)

	anomalySeverity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_anomaly_severity",
			Help: "Latest anomaly severity score per instrument",
		},
		[]string{"symbol"},
	)

	ensembleWeight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_ensemble_weight",
			Help: "Current ensemble weight per signal source",
		},
		[]string{"source"},
	)

	ensembleConfidence = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_ensemble_confidence",
			Help: "Combined confidence of the latest decision",
		},
		[]string{"symbol"},
	)

	riskPerTrade = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_risk_per_trade",
			Help: "Current self-adjusted risk fraction per trade",
		},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_errors_total",
			Help: "Errors by category",
		},
		[]string{"category"},
	)
)

func init() {
	prometheus.MustRegister(
		cyclesTotal, tradesTotal, tradePnL,
		anomalySeverity, ensembleWeight, ensembleConfidence,
		riskPerTrade, errorsTotal,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler { return promhttp.Handler() }

func RecordCycle(symbol, action string) {
	cyclesTotal.WithLabelValues(symbol, action).Inc()
}

func RecordTrade(symbol, reason string, pnl float64) {
	tradesTotal.WithLabelValues(symbol, reason).Inc()
	tradePnL.WithLabelValues(symbol).Observe(pnl)
}

func SetAnomalySeverity(symbol string, severity float64) {
	anomalySeverity.WithLabelValues(symbol).Set(severity)
}

func SetEnsembleWeight(source string, weight float64) {
	ensembleWeight.WithLabelValues(source).Set(weight)
}

func SetEnsembleConfidence(symbol string, confidence float64) {
	ensembleConfidence.WithLabelValues(symbol).Set(confidence)
}

func SetRiskPerTrade(fraction float64) {
	riskPerTrade.Set(fraction)
}

func RecordError(category string) {
	errorsTotal.WithLabelValues(category).Inc()
}
