package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Crew metrics
	CrewRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_crew_runs_total",
			Help: "Total number of crew runs",
		},
		[]string{"status"}, // status: success|timeout_error|processing_error
	)

	CrewDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "advisor_crew_duration_seconds",
			Help:    "Crew run duration in seconds",
			Buckets: []float64{5, 15, 30, 60, 120, 240, 480, 780},
		},
		[]string{"status"},
	)

	CrewInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "advisor_crew_runs_in_flight",
			Help: "Crew runs currently executing",
		},
	)

	// Agent metrics
	AgentCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_agent_calls_total",
			Help: "Total number of model calls made by agents",
		},
		[]string{"agent", "model", "status"}, // status: success|error
	)

	AgentLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "advisor_agent_latency_seconds",
			Help:    "Agent task latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"agent"},
	)

	AgentTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_agent_tokens_total",
			Help: "Total tokens used by agents",
		},
		[]string{"agent", "type"}, // type: prompt|completion
	)

	// Tool metrics
	ToolExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_tool_executions_total",
			Help: "Total number of tool executions",
		},
		[]string{"tool", "status"}, // status: success|error
	)

	ToolLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "advisor_tool_latency_seconds",
			Help:    "Tool execution latency in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"tool"},
	)

	// External API metrics
	ExternalAPICalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_external_api_calls_total",
			Help: "Total number of external API calls",
		},
		[]string{"service", "endpoint", "status"}, // status: success|error|cached
	)

	ExternalAPILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "advisor_external_api_latency_seconds",
			Help:    "External API latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"service", "endpoint"},
	)

	// Guardrail metrics
	GuardrailBlocks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "advisor_guardrail_blocks_total",
			Help: "Total number of queries rejected by the guardrail",
		},
	)

	// HTTP metrics
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "code"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "advisor_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// Tracking metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_kafka_messages_total",
			Help: "Total Kafka messages produced",
		},
		[]string{"topic", "status"},
	)
)

var registerOnce sync.Once

// Init registers all metrics with Prometheus. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			CrewRuns,
			CrewDuration,
			CrewInFlight,
			AgentCalls,
			AgentLatency,
			AgentTokens,
			ToolExecutions,
			ToolLatency,
			ExternalAPICalls,
			ExternalAPILatency,
			GuardrailBlocks,
			HTTPRequests,
			HTTPDuration,
			KafkaMessages,
		)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCrewRun records a finished crew run with its outcome label
func RecordCrewRun(status string, duration time.Duration) {
	CrewRuns.WithLabelValues(status).Inc()
	CrewDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordAgentCall records a single model call made on behalf of an agent
func RecordAgentCall(agent, model string, err error) {
	AgentCalls.WithLabelValues(agent, model, statusOf(err)).Inc()
}

// RecordAgentTask records the latency and token usage of one agent task
func RecordAgentTask(agent string, latency time.Duration, promptTokens, completionTokens int64) {
	AgentLatency.WithLabelValues(agent).Observe(latency.Seconds())

	if promptTokens > 0 {
		AgentTokens.WithLabelValues(agent, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		AgentTokens.WithLabelValues(agent, "completion").Add(float64(completionTokens))
	}
}

// RecordToolExecution records a tool execution
func RecordToolExecution(tool string, latency time.Duration, err error) {
	ToolExecutions.WithLabelValues(tool, statusOf(err)).Inc()
	ToolLatency.WithLabelValues(tool).Observe(latency.Seconds())
}

// RecordExternalAPICall records a call to a third-party API
func RecordExternalAPICall(service, endpoint string, latency time.Duration, err error) {
	ExternalAPICalls.WithLabelValues(service, endpoint, statusOf(err)).Inc()
	ExternalAPILatency.WithLabelValues(service, endpoint).Observe(latency.Seconds())
}

// RecordCacheHit records an external call served from cache
func RecordCacheHit(service, endpoint string) {
	ExternalAPICalls.WithLabelValues(service, endpoint, "cached").Inc()
}

// RecordGuardrailBlock records a rejected query
func RecordGuardrailBlock() {
	GuardrailBlocks.Inc()
}

// RecordHTTPRequest records a served HTTP request
func RecordHTTPRequest(route string, code int, duration time.Duration) {
	HTTPRequests.WithLabelValues(route, http.StatusText(code)).Inc()
	HTTPDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordKafkaMessage records a produced message
func RecordKafkaMessage(topic string, err error) {
	KafkaMessages.WithLabelValues(topic, statusOf(err)).Inc()
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
