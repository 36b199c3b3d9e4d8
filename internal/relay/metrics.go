package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_active_connections",
		Help: "Currently registered relay channels",
	})

	metricMessagesRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_messages_relayed_total",
		Help: "Total payloads delivered between session members",
	})

	metricSessionsTerminatedRelay = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_sessions_terminated_total",
		Help: "Total forced channel terminations",
	})

	metricHeartbeatsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_heartbeats_sent_total",
		Help: "Total keepalive pings sent to channels",
	})
)
