// Package telemetry exposes prometheus metrics for the hub, the store and
// the HTTP surface. Everything is registered on the default registry and
// served from /metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"chathub/pkg/store"
)

var (
	// ConnectedClients tracks currently registered websocket connections.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chathub_connected_clients",
		Help: "Number of currently connected websocket clients.",
	})

	// EventsIn counts inbound client events by kind.
	EventsIn = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chathub_events_in_total",
		Help: "Inbound realtime events processed, by event kind.",
	}, []string{"kind"})

	// EventsDropped counts inbound events rejected before processing.
	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chathub_events_dropped_total",
		Help: "Inbound events dropped, by reason (rate_limit, decode, unauthorized).",
	}, []string{"reason"})

	// BroadcastFanout observes how many connections each broadcast reached.
	BroadcastFanout = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chathub_broadcast_fanout",
		Help:    "Connections reached per broadcast.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	// StoreMutations counts message store mutations by operation.
	StoreMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chathub_store_mutations_total",
		Help: "Message store mutations, by operation (append, edit, soft_delete, erase, hide).",
	}, []string{"op"})

	// StoreDiskBytes mirrors the pebble on-disk footprint.
	StoreDiskBytes = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "chathub_store_disk_bytes",
		Help: "On-disk size of the pebble store.",
	}, func() float64 {
		return float64(store.GetPebbleMetrics().DiskBytes)
	})

	// StoreCompactions mirrors pebble's compaction counter.
	StoreCompactions = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "chathub_store_compactions_total",
		Help: "Compactions run by the pebble store.",
	}, func() float64 {
		return float64(store.GetPebbleMetrics().CompactionsRun)
	})
)
