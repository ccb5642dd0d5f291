package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(refundsTotal, refundProcessingSeconds) }

var refundsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "refunds_total",
		Help: "Finalized refunds by outcome (processed/failed).",
	},
	[]string{"status"},
)

var refundProcessingSeconds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "refund_processing_seconds",
		Help:    "Time from ledger row creation to provider finalization.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	},
)

func IncRefund(status string) {
	refundsTotal.WithLabelValues(norm(status)).Inc()
}

func ObserveRefundProcessing(seconds float64) {
	refundProcessingSeconds.Observe(seconds)
}
