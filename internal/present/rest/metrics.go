package rest

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	connectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_connections_total",
			Help: "Socket connection attempts by result.",
		},
		[]string{"result"},
	)

	activeSockets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatrelay_active_sockets",
			Help: "Sockets currently held by this process.",
		},
	)

	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_frames_total",
			Help: "Client frames handled by type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_events_total",
			Help: "Platform webhook callbacks by kind.",
		},
		[]string{"kind"},
	)

	deliveriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_deliveries_total",
			Help: "Messages pushed to connections.",
		},
	)

	prunedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_pruned_connections_total",
			Help: "Stale connections removed during fan-out.",
		},
	)
)

func init() {
	prometheus.MustRegister(connectionsTotal)
	prometheus.MustRegister(activeSockets)
	prometheus.MustRegister(framesTotal)
	prometheus.MustRegister(eventsTotal)
	prometheus.MustRegister(deliveriesTotal)
	prometheus.MustRegister(prunedTotal)
}
