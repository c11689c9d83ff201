package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the game counters exported on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	SessionsCreated prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionsPruned  prometheus.Counter
	Intents         *prometheus.CounterVec
	Finished        *prometheus.CounterVec
	Subscribers     prometheus.Gauge
}

// New registers all collectors on a fresh registry, so tests can build as many
// as they like without clashing on the global one.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tictactoe_sessions_created_total",
			Help: "Total number of game sessions created",
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tictactoe_sessions_active",
			Help: "Number of game sessions currently held in memory",
		}),
		SessionsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tictactoe_sessions_pruned_total",
			Help: "Total number of idle sessions dropped",
		}),
		Intents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tictactoe_intents_total",
				Help: "User intents processed, by kind and outcome",
			},
			[]string{"intent", "outcome"},
		),
		Finished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tictactoe_games_finished_total",
				Help: "Moves that ended a game, by result",
			},
			[]string{"result"},
		),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tictactoe_event_subscribers",
			Help: "Open server-sent event streams",
		}),
	}
	m.registry.MustRegister(
		m.SessionsCreated,
		m.SessionsActive,
		m.SessionsPruned,
		m.Intents,
		m.Finished,
		m.Subscribers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
