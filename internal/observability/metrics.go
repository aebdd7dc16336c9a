package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/liao/sqlchat/internal/pipeline"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlchat_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlchat_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	pipelineInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlchat_pipeline_invocations_total",
			Help: "Pipeline invocations by terminal state.",
		},
		[]string{"state"},
	)

	pipelineStageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlchat_pipeline_stage_duration_seconds",
			Help:    "Latency of each pipeline stage.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"stage", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		pipelineInvocationsTotal,
		pipelineStageDurationSeconds,
	)
}

// PipelineMetrics 把 pipeline 的状态迁移和阶段耗时记录到 prometheus
type PipelineMetrics struct{}

func (PipelineMetrics) Transition(_, to pipeline.State) {
	if to == pipeline.StateDone || to == pipeline.StateFailed {
		pipelineInvocationsTotal.WithLabelValues(string(to)).Inc()
	}
}

func (PipelineMetrics) StageDone(stage pipeline.State, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	pipelineStageDurationSeconds.WithLabelValues(string(stage), outcome).Observe(elapsed.Seconds())
}
