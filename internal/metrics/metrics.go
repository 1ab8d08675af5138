// Package metrics defines the Prometheus collectors exported by the chat
// server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "messenger"

// Reasons used as label values.
const (
	DropInvalid     = "invalid"
	DropRateLimited = "rate_limited"
	DropNotJoined   = "not_joined"
	DropDuplicate   = "duplicate"

	FailRecipientOffline = "recipient_offline"
	FailBufferFull       = "buffer_full"
)

// Metrics groups the server's collectors.
type Metrics struct {
	Connections      prometheus.Gauge
	UsersOnline      prometheus.Gauge
	Messages         *prometheus.CounterVec
	InboundDropped   *prometheus.CounterVec
	DeliveriesFailed *prometheus.CounterVec
	HistorySize      prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open WebSocket connections, joined or not.",
		}),
		UsersOnline: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "users_online",
			Help:      "Users currently registered in the presence registry.",
		}),
		Messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Chat messages accepted, by kind.",
		}, []string{"kind"}),
		InboundDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_dropped_total",
			Help:      "Client frames dropped without processing, by reason.",
		}, []string{"reason"}),
		DeliveriesFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_failed_total",
			Help:      "Outbound frames that could not be handed to a connection, by reason.",
		}, []string{"reason"}),
		HistorySize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_size",
			Help:      "Broadcast messages retained for replay.",
		}),
	}
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
