package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNoopRecorderIsSafe verifies every method is callable on the zero value.
func TestNoopRecorderIsSafe(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveStageDuration("upsert", time.Second)
	r.ObservePublishDuration(time.Second)
	r.IncStageResult("upsert", ResultSuccess)
	r.IncPublishOutcome("success")
	r.IncUpsertRetry()
	r.IncUpsertExhausted()
	r.IncConvergence(ConvergenceConfigured)
	r.IncNotifyResult(true)
	r.IncAssetResult(false)
}

// TestPrometheusRecorderRegisters ensures all collectors register and record.
func TestPrometheusRecorderRegisters(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveStageDuration("pages", 120*time.Millisecond)
	pr.ObservePublishDuration(time.Second)
	pr.IncStageResult("pages", ResultWarning)
	pr.IncPublishOutcome("warning")
	pr.IncUpsertRetry()
	pr.IncUpsertExhausted()
	pr.IncConvergence(ConvergenceDenied)
	pr.IncNotifyResult(false)
	pr.IncAssetResult(true)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"pagepub_stage_duration_seconds",
		"pagepub_publish_duration_seconds",
		"pagepub_stage_results_total",
		"pagepub_publish_outcomes_total",
		"pagepub_upsert_retries_total",
		"pagepub_upsert_retry_exhaustion_total",
		"pagepub_pages_convergence_total",
		"pagepub_notify_results_total",
		"pagepub_asset_extraction_total",
	} {
		assert.True(t, names[want], "missing metric family %s", want)
	}
}
