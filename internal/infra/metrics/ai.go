package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		aiTokensIn,
		aiTokensOut,
		aiCallsLatencyMs,
		aiCircuitOpen,
	)
}

var (
	aiTokensIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_in",
			Help: "Estimated prompt (input) tokens per provider/operation.",
		},
		[]string{"provider", "op"},
	)

	aiTokensOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_out",
			Help: "Estimated completion (output) tokens per provider/operation.",
		},
		[]string{"provider", "op"},
	)

	aiCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_calls_latency_ms",
			Help:    "AI call latency distribution in milliseconds.",
			Buckets: []float64{50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 30000},
		},
		[]string{"provider", "op", "success"},
	)

	aiCircuitOpen = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_circuit_rejections_total",
			Help: "Model calls rejected because the circuit breaker was open.",
		},
		[]string{"provider"},
	)
)

// norm lower-cases label values so "OpenAI" and "openai" share a series.
func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// ObserveModelCall records one Reply/Description call.
func ObserveModelCall(provider, op string, tokensIn, tokensOut int, took time.Duration, success bool) {
	lbl := []string{norm(provider), norm(op)}
	aiTokensIn.WithLabelValues(lbl...).Add(float64(tokensIn))
	aiTokensOut.WithLabelValues(lbl...).Add(float64(tokensOut))
	aiCallsLatencyMs.WithLabelValues(norm(provider), norm(op), strconv.FormatBool(success)).
		Observe(float64(took.Milliseconds()))
}

func IncCircuitRejected(provider string) {
	aiCircuitOpen.WithLabelValues(norm(provider)).Inc()
}
