// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "signaling"

// Drop reasons.
const (
	DropNoTarget    = "no_target"
	DropOutboxFull  = "outbox_full"
	DropSelfAddress = "self_addressed"
	DropEmpty       = "empty_payload"
)

var (
	Rooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "rooms",
		Help:      "Number of room relays created since start.",
	})

	Members = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "room_members",
		Help:      "Current members per room.",
	}, []string{"room"})

	Sessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions",
		Help:      "Connected client sessions.",
	})

	Routed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "routed_total",
		Help:      "Signaling payloads delivered to a member outbox.",
	}, []string{"kind"})

	Dropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dropped_total",
		Help:      "Signaling payloads dropped, by reason.",
	}, []string{"reason"})

	SessionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_errors_total",
		Help:      "Sessions terminated by an error, by cause.",
	}, []string{"cause"})
)
