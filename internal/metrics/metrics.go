// Package metrics provides Prometheus instrumentation for the matchmaking
// and signaling service. It exposes gauges for connection and room counts,
// counters for pairing outcomes, and histograms for latency tracking.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of active WebSocket
	// connections, labeled by kind: "match" or "signaling".
	ConnectionsTotal = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voicematch_connections_total",
		Help: "Current number of active WebSocket connections",
	}, []string{"kind"})

	// MatchOutcomesTotal counts FindAndMatch results, labeled by outcome
	// (match_created, no_match, not_enough_gems, already_matched, ...).
	MatchOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "voicematch_match_outcomes_total",
		Help: "Total number of pairing attempts by outcome",
	}, []string{"outcome"})

	// RespondOutcomesTotal counts Respond results, labeled by outcome
	// (success, waiting_for_partner, rejected, partner_offline, ...).
	RespondOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "voicematch_respond_outcomes_total",
		Help: "Total number of match responses by outcome",
	}, []string{"outcome"})

	// PairingLatency records the time FindAndMatch spends per invocation,
	// from lock acquisition through return.
	PairingLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicematch_pairing_latency_seconds",
		Help:    "FindAndMatch invocation latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	// MatchToRoomDuration records the time from match_found to a signaling
	// room being created (mutual accept).
	MatchToRoomDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicematch_match_to_room_duration_seconds",
		Help:    "Time from match proposal to signaling room creation",
		Buckets: []float64{1, 2, 5, 10, 15, 20, 25, 30},
	})

	// ActiveRooms tracks the current number of durable signaling rooms.
	ActiveRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "voicematch_active_rooms",
		Help: "Current number of active signaling rooms",
	})

	// MatchQueueSize tracks the current number of users in the matching queue.
	MatchQueueSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "voicematch_match_queue_size",
		Help: "Current number of users in matching queue",
	})

	// GemsDebitedTotal counts gems debited on successful pairing.
	GemsDebitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "voicematch_gems_debited_total",
		Help: "Total gems debited across all successful pairings",
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		MatchOutcomesTotal,
		RespondOutcomesTotal,
		PairingLatency,
		MatchToRoomDuration,
		ActiveRooms,
		MatchQueueSize,
		GemsDebitedTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
