package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(storedChats, persistTotal, persistLatencyMs)
}

var (
	storedChats = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_store_chats",
			Help: "Number of chats held in memory.",
		},
	)

	persistTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_store_persist_total",
			Help: "Chat state saves by outcome.",
		},
		[]string{"success"},
	)

	persistLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_store_persist_latency_ms",
			Help:    "Time to write all chat states, in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
	)
)

func SetStoredChats(n int) {
	storedChats.Set(float64(n))
}

func ObservePersist(success bool, took time.Duration) {
	persistTotal.WithLabelValues(strconv.FormatBool(success)).Inc()
	persistLatencyMs.Observe(float64(took.Milliseconds()))
}
