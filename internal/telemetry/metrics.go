package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "merryquiz"

var (
	// AnswersTotal counts submitted answers by result (correct, incorrect).
	AnswersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "answers_total",
		Help:      "Number of answers selected, by result.",
	}, []string{"result"})

	// ScoreWritesTotal counts background profile score writes by outcome (ok, failed).
	ScoreWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "score_writes_total",
		Help:      "Number of background score writes, by outcome.",
	}, []string{"outcome"})

	// EventHandlerFailuresTotal counts failed or panicking event handlers by event name.
	EventHandlerFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_handler_failures_total",
		Help:      "Number of event handlers that returned an error or panicked.",
	}, []string{"event"})

	// ActiveGames is the number of quiz sessions currently held in memory.
	ActiveGames = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_games",
		Help:      "Number of quiz sessions held in memory.",
	})
)
