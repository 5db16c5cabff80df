package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	opsReplayedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keepsake",
		Subsystem: "sync",
		Name:      "ops_replayed_total",
		Help:      "Queued operations replayed successfully.",
	}, []string{"entity", "operation"})

	opsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keepsake",
		Subsystem: "sync",
		Name:      "ops_failed_total",
		Help:      "Replay attempts that failed.",
	}, []string{"entity", "operation"})

	opsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keepsake",
		Subsystem: "sync",
		Name:      "ops_dropped_total",
		Help:      "Queue entries dropped at the retry ceiling.",
	}, []string{"entity", "operation"})
)
