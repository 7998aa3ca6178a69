package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BusPublishes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "planora_changebus_publishes_total",
		Help: "Number of events published to the change bus.",
	})
	BusDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "planora_changebus_drops_total",
		Help: "Number of events dropped because a subscriber queue was full.",
	})
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "planora_ws_connections",
		Help: "Number of live websocket connections.",
	})
	WSSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "planora_ws_subscriptions",
		Help: "Number of live resource subscriptions across all connections.",
	})
)
