package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Framing metrics
	FramesDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "btcpeer_frames_decoded_total",
		Help: "Total number of frames successfully decoded, by command",
	}, []string{"command"})

	FramesUnknownCommand = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "btcpeer_frames_unknown_command_total",
		Help: "Total number of frames with a command not in the schema registry",
	}, []string{"command"})

	ChecksumFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "btcpeer_checksum_failures_total",
		Help: "Total number of frames discarded for a bad checksum",
	})

	OversizeDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "btcpeer_oversize_drops_total",
		Help: "Total number of connections terminated for an oversize frame",
	})

	// Connection lifecycle metrics
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "btcpeer_connections_active",
		Help: "Number of currently active peer connections",
	})

	ConnectionAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "btcpeer_connection_attempts_total",
		Help: "Total number of outbound connection attempts",
	})

	Disconnections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "btcpeer_disconnections_total",
		Help: "Total number of connection terminations, by reason",
	}, []string{"reason"})

	// Handshake metrics
	HandshakesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "btcpeer_handshakes_completed_total",
		Help: "Total number of successful version/verack handshakes",
	})

	HandshakeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "btcpeer_handshake_failures_total",
		Help: "Total number of handshake attempts that did not complete",
	})

	// Keep-alive metrics
	PingsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "btcpeer_pings_sent_total",
		Help: "Total number of ping messages sent",
	})

	PongLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "btcpeer_pong_latency_seconds",
		Help:    "Round-trip time between a sent ping and its matching pong",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	// Inventory metrics
	InvTxAnnouncements = promauto.NewCounter(prometheus.CounterOpts{
		Name: "btcpeer_inv_tx_announcements_total",
		Help: "Total transaction announcements received via inv messages",
	})

	InvBlockAnnouncements = promauto.NewCounter(prometheus.CounterOpts{
		Name: "btcpeer_inv_block_announcements_total",
		Help: "Total block announcements received via inv messages",
	})
)

// corsHandler wraps a handler with CORS headers
func corsHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StartMetricsServer starts the Prometheus metrics HTTP server
func StartMetricsServer(addr string) {
	http.Handle("/metrics", corsHandler(promhttp.Handler()))
	go http.ListenAndServe(addr, nil)
}
