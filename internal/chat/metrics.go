package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_messages_sent_total",
			Help: "Total number of messages composed and emitted",
		},
		[]string{"kind"},
	)

	messagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_messages_received_total",
			Help: "Total number of messages received from the server",
		},
		[]string{"kind"},
	)

	sendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsync_send_failures_total",
			Help: "Total number of compose calls that failed",
		},
	)

	reconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsync_reconnects_total",
			Help: "Total number of successful reconnections",
		},
	)

	connectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatsync_connection_up",
			Help: "Whether the socket is currently connected",
		},
	)

	onlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatsync_online_users",
			Help: "Number of peers currently online",
		},
	)
)
