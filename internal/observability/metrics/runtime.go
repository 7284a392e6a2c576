package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SwapsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentswap_swaps_total",
		Help: "Swap attempts by chain and outcome.",
	}, []string{"chain", "outcome"})

	SwapDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agentswap_swap_duration_seconds",
		Help:    "Time from message to swap outcome.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"chain"})

	TasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentswap_tasks_total",
		Help: "Message tasks by terminal status.",
	}, []string{"status"})

	TaskRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agentswap_task_retries_total",
		Help: "Message tasks re-queued after a retryable failure.",
	})
)

// ObserveSwap records one swap attempt. chain may be empty when the request
// could not be resolved.
func ObserveSwap(chain, outcome string, duration time.Duration) {
	if chain == "" {
		chain = "unknown"
	}
	SwapsTotal.WithLabelValues(chain, outcome).Inc()
	SwapDuration.WithLabelValues(chain).Observe(duration.Seconds())
}

// ObserveTask records a task reaching status.
func ObserveTask(status string) {
	TasksTotal.WithLabelValues(status).Inc()
}

// ObserveTaskRetry records a re-queued task.
func ObserveTaskRetry() {
	TaskRetries.Inc()
}
