// Package metrics — счётчики движка для /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wizard_sessions_created_total",
		Help: "Created wizard sessions.",
	})

	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wizard_submissions_total",
		Help: "Quote submissions by result.",
	}, []string{"result"})

	LookupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wizard_vehicle_lookup_failures_total",
		Help: "Failed vehicle lookup calls.",
	})

	PollTerminal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wizard_poll_terminal_total",
		Help: "Quote generation tasks by terminal status.",
	}, []string{"status"})
)

// RegisterActiveSessions публикует число живых сессий как gauge-функцию;
// значение считается хранилищем на каждом scrape.
func RegisterActiveSessions(count func() float64) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "wizard_sessions_active",
		Help: "Live (non-expired) wizard sessions.",
	}, count)
}
