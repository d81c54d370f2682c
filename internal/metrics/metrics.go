// Package metrics exposes engine counters on a prometheus registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's instrumentation. Constructed against an
// injected registry so tests can instantiate isolated instances.
type Metrics struct {
	Registry *prometheus.Registry

	ConnectAttempts   prometheus.Counter
	ReconnectAttempts prometheus.Counter
	DroppedSends      prometheus.Counter
	MessagesIngested  prometheus.Counter
	Sends             *prometheus.CounterVec
	TypingEvents      prometheus.Counter
	UnreadTotal       prometheus.Gauge
}

// New creates a metrics set registered on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		ConnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatlink_connect_attempts_total",
			Help: "Transport connection attempts, including reconnects.",
		}),
		ReconnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatlink_reconnect_attempts_total",
			Help: "Reconnection attempts after a transport failure.",
		}),
		DroppedSends: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatlink_dropped_sends_total",
			Help: "Outbound events dropped because the connection was not ready.",
		}),
		MessagesIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatlink_messages_ingested_total",
			Help: "Inbound messages applied to the conversation store.",
		}),
		Sends: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatlink_sends_total",
			Help: "Optimistic sends by outcome.",
		}, []string{"result"}),
		TypingEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatlink_typing_events_total",
			Help: "Typing indicator events emitted to the transport.",
		}),
		UnreadTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chatlink_unread_messages",
			Help: "Aggregate unread count across all chats.",
		}),
	}
}
