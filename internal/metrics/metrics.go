// Package metrics holds the Prometheus collectors exported by the bot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Checks counts due-check ticks by outcome (ok, load_error).
	Checks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "remindbot",
		Name:      "checks_total",
		Help:      "Due-check ticks by outcome.",
	}, []string{"result"})

	CheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "remindbot",
		Name:      "check_duration_seconds",
		Help:      "Time spent scanning and notifying per tick.",
		Buckets:   prometheus.DefBuckets,
	})

	// Notifications counts due notifications by delivery result (sent, failed).
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "remindbot",
		Name:      "notifications_total",
		Help:      "Due notifications by delivery result.",
	}, []string{"result"})

	// Operations counts lifecycle operations by name and result.
	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "remindbot",
		Name:      "operations_total",
		Help:      "Reminder lifecycle operations by name and result.",
	}, []string{"op", "result"})

	DueReminders = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "remindbot",
		Name:      "due_reminders",
		Help:      "Reminders found due on the last tick.",
	})
)
