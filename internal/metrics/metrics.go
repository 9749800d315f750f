package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "remotecam_active_websocket_connections",
		Help: "Number of active WebSocket connections",
	})

	WebSocketConnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remotecam_websocket_connections_total",
		Help: "Total number of WebSocket connections",
	})

	WebSocketDisconnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remotecam_websocket_disconnections_total",
		Help: "Total number of WebSocket disconnections",
	})

	RegisteredEndpoints = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "remotecam_registered_endpoints",
		Help: "Number of registered endpoints",
	}, []string{"kind"}) // "source" | "sink"

	ActivePairs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "remotecam_active_pairs",
		Help: "Number of established source/sink pairs",
	})

	PairingRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remotecam_pairing_requests_total",
		Help: "Pairing requests by outcome",
	}, []string{"outcome"}) // "forwarded" | "dropped" | "accepted" | "rejected"

	PairingsTornDownTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remotecam_pairings_torn_down_total",
		Help: "Pairings ended, by cause",
	}, []string{"cause"}) // "stop" | "disconnect" | "reregister" | "admin"

	SignallingMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remotecam_signalling_messages_total",
		Help: "Total signalling messages",
	}, []string{"type", "direction"}) // direction: "in" | "out"

	RelayDropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remotecam_relay_drops_total",
		Help: "Relayed messages dropped before delivery",
	}, []string{"reason"})

	MalformedMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remotecam_malformed_messages_total",
		Help: "Messages dropped because they failed validation",
	}, []string{"channel"}) // "endpoint" | "discovery"

	OutboxOverflowTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remotecam_outbox_overflow_total",
		Help: "Outbound events dropped because a connection mailbox was full",
	})

	DiscoveryRepliesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remotecam_discovery_replies_total",
		Help: "Discovery responses sent by the responder",
	})

	DiscoveryRoundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remotecam_discovery_rounds_total",
		Help: "Discovery rounds by outcome",
	}, []string{"outcome"}) // "found" | "empty" | "error" | "cancelled"

	ConfigReloads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remotecam_config_reloads_total",
		Help: "Number of configuration reloads",
	})

	StartTime = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "remotecam_start_time_seconds",
		Help: "Server start time in Unix seconds",
	})
)
