// Package metrics exposes Prometheus collectors for the oddscout service.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scanRunsTotal           *prometheus.CounterVec
	scanSourcesTotal        prometheus.Counter
	scanMatchesTotal        *prometheus.CounterVec
	floodWaitSeconds        *prometheus.HistogramVec
	signalsGeneratedTotal   *prometheus.CounterVec
	signalsSettledTotal     *prometheus.CounterVec
	deliveryMessagesTotal   *prometheus.CounterVec
	scanDurationSeconds     prometheus.Histogram
	settlePendingRemaining  prometheus.Gauge

	once sync.Once
)

// Init registers the collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		scanRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oddscout_scan_runs_total",
				Help: "Total scan runs, labeled by outcome.",
			},
			[]string{"outcome"},
		)
		scanSourcesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "oddscout_scan_sources_total",
				Help: "Total sources walked across all scan runs.",
			},
		)
		scanMatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oddscout_scan_matches_total",
				Help: "Classified matches, labeled by disposition (new, duplicate).",
			},
			[]string{"disposition"},
		)
		floodWaitSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oddscout_flood_wait_seconds",
				Help:    "Mandated flood-wait sleeps, labeled by operation.",
				Buckets: []float64{1, 5, 10, 30, 60, 120},
			},
			[]string{"op"},
		)
		signalsGeneratedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oddscout_signals_generated_total",
				Help: "Signals produced by the generator, labeled by league.",
			},
			[]string{"league"},
		)
		signalsSettledTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oddscout_signals_settled_total",
				Help: "Signals closed by the reconciler, labeled by final status.",
			},
			[]string{"status"},
		)
		deliveryMessagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oddscout_delivery_messages_total",
				Help: "Messages handed to the delivery publisher, labeled by kind.",
			},
			[]string{"kind"},
		)
		scanDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "oddscout_scan_duration_seconds",
				Help:    "Wall-clock duration of one scan run.",
				Buckets: []float64{1, 5, 15, 60, 300, 900},
			},
		)
		settlePendingRemaining = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "oddscout_settle_pending_remaining",
				Help: "Signals still pending after the last settlement pass.",
			},
		)
	})
}

// IncScanRun records one finished scan run.
func IncScanRun(outcome string) {
	Init()
	scanRunsTotal.WithLabelValues(outcome).Inc()
}

// AddSourcesScanned adds the per-run source count.
func AddSourcesScanned(n int) {
	Init()
	scanSourcesTotal.Add(float64(n))
}

// IncMatch records one classified item.
func IncMatch(disposition string) {
	Init()
	scanMatchesTotal.WithLabelValues(disposition).Inc()
}

// ObserveFloodWait records a mandated flood-wait sleep.
func ObserveFloodWait(op string, d time.Duration) {
	Init()
	floodWaitSeconds.WithLabelValues(op).Observe(d.Seconds())
}

// IncSignalGenerated records one generated signal.
func IncSignalGenerated(league string) {
	Init()
	signalsGeneratedTotal.WithLabelValues(league).Inc()
}

// IncSignalSettled records one closed signal.
func IncSignalSettled(status string) {
	Init()
	signalsSettledTotal.WithLabelValues(status).Inc()
}

// IncDeliveryMessage records one message handed to the publisher.
func IncDeliveryMessage(kind string) {
	Init()
	deliveryMessagesTotal.WithLabelValues(kind).Inc()
}

// ObserveScanDuration records the wall-clock time of a scan run.
func ObserveScanDuration(d time.Duration) {
	Init()
	scanDurationSeconds.Observe(d.Seconds())
}

// SetPendingRemaining records the pending backlog after a settlement pass.
func SetPendingRemaining(n int) {
	Init()
	settlePendingRemaining.Set(float64(n))
}
