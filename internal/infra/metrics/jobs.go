package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(reconciliationTicksTotal) }

var reconciliationTicksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "reconciliation_ticks_total",
		Help: "Total scheduled reconciliation task ticks, labeled by task and result.",
	},
	[]string{"task", "result"}, // result: 'ok', 'error', 'panic'
)

func IncTick(task, result string) {
	reconciliationTicksTotal.WithLabelValues(norm(task), norm(result)).Inc()
}
