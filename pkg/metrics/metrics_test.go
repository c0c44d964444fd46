package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteToRendersTextExposition(t *testing.T) {
	reg := New()
	reg.LLMCalls.WithLabelValues("success").Inc()
	reg.LLMCalls.WithLabelValues("success").Inc()
	reg.LLMCalls.WithLabelValues("terminal_failure").Inc()
	reg.LLMRetries.Add(3)
	reg.ObserveStage("story_analysis", 250*time.Millisecond)
	reg.CoverageRepairs.WithLabelValues("segmentation", "gap_fill").Inc()
	reg.FallbacksUsed.Inc()

	path := filepath.Join(t.TempDir(), "CODE_metrics.prom")
	require.NoError(t, reg.WriteTo(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "scenepipe_llm_calls_total")
	assert.Contains(t, out, `outcome="success"`)
	assert.Contains(t, out, "scenepipe_llm_retries_total 3")
	assert.Contains(t, out, "scenepipe_stage_duration_seconds")
	assert.Contains(t, out, "scenepipe_coverage_repairs_total")
	assert.Contains(t, out, "scenepipe_fallback_prompts_total 1")
}

func TestWriteToEmptyRegistryStillProducesValidFile(t *testing.T) {
	reg := New()
	path := filepath.Join(t.TempDir(), "EMPTY_metrics.prom")
	require.NoError(t, reg.WriteTo(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.Size() > 0)
}
