// Package metrics provides observability hooks for the publish pipeline.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics can be enabled by swapping in the Prometheus
// implementation without touching call sites.
package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultWarning ResultLabel = "warning"
	ResultFatal   ResultLabel = "fatal"
)

// ConvergenceLabel enumerates hosting-config convergence outcomes.
type ConvergenceLabel string

const (
	ConvergenceConfigured   ConvergenceLabel = "configured"
	ConvergenceUnconfigured ConvergenceLabel = "unconfigured"
	ConvergenceDenied       ConvergenceLabel = "denied"
)

// Recorder defines observability hooks for publish and stage metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObservePublishDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncPublishOutcome(outcome string) // outcome: success|warning|failed
	IncUpsertRetry()
	IncUpsertExhausted()
	IncConvergence(result ConvergenceLabel)
	IncNotifyResult(delivered bool)
	IncAssetResult(success bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObservePublishDuration(time.Duration)       {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) IncPublishOutcome(string)                   {}
func (NoopRecorder) IncUpsertRetry()                            {}
func (NoopRecorder) IncUpsertExhausted()                        {}
func (NoopRecorder) IncConvergence(ConvergenceLabel)            {}
func (NoopRecorder) IncNotifyResult(bool)                       {}
func (NoopRecorder) IncAssetResult(bool)                        {}
