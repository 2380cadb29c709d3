package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcomes
const (
	runOK     = "ok"
	runLocked = "locked"
	runError  = "error"
)

// Email outcomes
const (
	emailSent           = "sent"
	emailSkipped        = "skipped"
	emailFailed         = "failed"
	emailDeliveryFailed = "delivery_failed"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "memoraid",
		Subsystem: "dispatch",
		Name:      "runs_total",
		Help:      "Check-and-send passes by outcome.",
	}, []string{"outcome"})

	emailsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "memoraid",
		Subsystem: "dispatch",
		Name:      "emails_total",
		Help:      "Due emails processed by plan kind and outcome.",
	}, []string{"kind", "outcome"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "memoraid",
		Subsystem: "dispatch",
		Name:      "run_duration_seconds",
		Help:      "Duration of check-and-send passes that held the lock.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	})

	downgradesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "memoraid",
		Subsystem: "dispatch",
		Name:      "downgrades_total",
		Help:      "Subscriptions moved to their downgrade tier.",
	})
)
