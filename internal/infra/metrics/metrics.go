package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	FlushesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flushes_total",
		Help: "Processed flush batches by trigger reason",
	}, []string{"reason"})

	FlushDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flush_duration_seconds",
		Help:    "Duration of one flush round trip",
		Buckets: prometheus.DefBuckets,
	})

	IntentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "intents_total",
		Help: "Classified intents by kind",
	}, []string{"kind"})

	BlockedCancellationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blocked_cancellations_total",
		Help: "Cancellation intents rejected by the sender security gate",
	})

	SkippedRegistrationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skipped_registrations_total",
		Help: "Registration intents skipped during validation",
	}, []string{"cause"})

	RosterOccupied = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roster_slots_occupied",
		Help: "Occupied roster slots after the last flush",
	})

	WaitingListSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roster_waiting_list_size",
		Help: "Waiting-list length after the last flush",
	})

	SendErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_send_errors_total",
		Help: "Failed outbound sends through the bridge",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Duration of network requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Count of network requests",
	}, []string{"component", "operation", "target", "status"})

	LLMGenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_generation_duration_seconds",
		Help:    "Duration of LLM generations",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	LLMTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Tokens consumed by the LLM",
	}, []string{"model", "type"})
)

// MustRegister registers all metrics.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		FlushesTotal,
		FlushDuration,
		IntentsTotal,
		BlockedCancellationsTotal,
		SkippedRegistrationsTotal,
		RosterOccupied,
		WaitingListSize,
		SendErrorsTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
		LLMGenerationDuration,
		LLMTokensTotal,
	)
}

// ObserveNetworkRequest records the duration and status of one request.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveLLMGeneration records the duration and token usage of one
// generation.
func ObserveLLMGeneration(model string, duration time.Duration, promptTokens, completionTokens, totalTokens int) {
	if model == "" {
		model = "unknown"
	}
	LLMGenerationDuration.WithLabelValues(model).Observe(duration.Seconds())
	if promptTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
	if totalTokens <= 0 {
		totalTokens = promptTokens + completionTokens
	}
	if totalTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "total").Add(float64(totalTokens))
	}
}

// ObserveRoster updates the roster gauges after a mutation.
func ObserveRoster(occupied, waiting int) {
	RosterOccupied.Set(float64(occupied))
	WaitingListSize.Set(float64(waiting))
}
