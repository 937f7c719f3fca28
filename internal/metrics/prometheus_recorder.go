package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once            sync.Once
	stageDuration   *prom.HistogramVec
	publishDuration prom.Histogram
	stageResults    *prom.CounterVec
	publishOutcome  *prom.CounterVec
	upsertRetries   prom.Counter
	upsertExhausted prom.Counter
	convergence     *prom.CounterVec
	notifyResults   *prom.CounterVec
	assetResults    *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "pagepub",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual publish stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.publishDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "pagepub",
			Name:      "publish_duration_seconds",
			Help:      "Total publish duration",
			Buckets:   prom.DefBuckets,
		})
		pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "pagepub",
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"})
		pr.publishOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "pagepub",
			Name:      "publish_outcomes_total",
			Help:      "Publish outcomes by final status",
		}, []string{"outcome"})
		pr.upsertRetries = prom.NewCounter(prom.CounterOpts{
			Namespace: "pagepub",
			Name:      "upsert_retries_total",
			Help:      "Optimistic-concurrency retries during document upserts",
		})
		pr.upsertExhausted = prom.NewCounter(prom.CounterOpts{
			Namespace: "pagepub",
			Name:      "upsert_retry_exhaustion_total",
			Help:      "Upserts that ran out of retry budget",
		})
		pr.convergence = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "pagepub",
			Name:      "pages_convergence_total",
			Help:      "Hosting-config convergence outcomes",
		}, []string{"result"})
		pr.notifyResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "pagepub",
			Name:      "notify_results_total",
			Help:      "Callback notification delivery results",
		}, []string{"result"})
		pr.assetResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "pagepub",
			Name:      "asset_extraction_total",
			Help:      "Asset extraction and upload results",
		}, []string{"result"})

		reg.MustRegister(
			pr.stageDuration,
			pr.publishDuration,
			pr.stageResults,
			pr.publishOutcome,
			pr.upsertRetries,
			pr.upsertExhausted,
			pr.convergence,
			pr.notifyResults,
			pr.assetResults,
		)
	})
	return pr
}

func (pr *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	pr.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (pr *PrometheusRecorder) ObservePublishDuration(d time.Duration) {
	pr.publishDuration.Observe(d.Seconds())
}

func (pr *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	pr.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (pr *PrometheusRecorder) IncPublishOutcome(outcome string) {
	pr.publishOutcome.WithLabelValues(outcome).Inc()
}

func (pr *PrometheusRecorder) IncUpsertRetry() {
	pr.upsertRetries.Inc()
}

func (pr *PrometheusRecorder) IncUpsertExhausted() {
	pr.upsertExhausted.Inc()
}

func (pr *PrometheusRecorder) IncConvergence(result ConvergenceLabel) {
	pr.convergence.WithLabelValues(string(result)).Inc()
}

func (pr *PrometheusRecorder) IncNotifyResult(delivered bool) {
	label := "delivered"
	if !delivered {
		label = "exhausted"
	}
	pr.notifyResults.WithLabelValues(label).Inc()
}

func (pr *PrometheusRecorder) IncAssetResult(success bool) {
	label := "success"
	if !success {
		label = "failure"
	}
	pr.assetResults.WithLabelValues(label).Inc()
}

var _ Recorder = (*PrometheusRecorder)(nil)
