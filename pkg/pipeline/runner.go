// Package pipeline orchestrates the seven-stage script-to-scene
// transformation: it enforces resume semantics and passes artifacts
// between stages through the workbook (spec.md §4.5).
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/scenepipe/scenepipe/pkg/batch"
	"github.com/scenepipe/scenepipe/pkg/config"
	"github.com/scenepipe/scenepipe/pkg/srt"
	"github.com/scenepipe/scenepipe/pkg/workbook"
)

// StageTimer receives one observation per stage run; the metrics package
// provides the production implementation backed by a Prometheus
// histogram.
type StageTimer interface {
	ObserveStage(stage string, d time.Duration)
}

// noopStageTimer discards every observation; used when the caller passes
// nil.
type noopStageTimer struct{}

func (noopStageTimer) ObserveStage(string, time.Duration) {}

// CoverageMetrics receives one observation per coverage-repair action a
// stage's completeness loop takes (e.g. Stage 5's GAP-FILL); the metrics
// package provides the production implementation.
type CoverageMetrics interface {
	ObserveCoverageRepair(stage, kind string)
}

// noopCoverageMetrics discards every observation; used when the caller
// passes nil.
type noopCoverageMetrics struct{}

func (noopCoverageMetrics) ObserveCoverageRepair(string, string) {}

// FallbackMetrics receives one observation per scene whose prompt came
// from the fallback generator rather than the LLM; the metrics package
// provides the production implementation.
type FallbackMetrics interface {
	ObserveFallback()
}

// noopFallbackMetrics discards every observation; used when the caller
// passes nil.
type noopFallbackMetrics struct{}

func (noopFallbackMetrics) ObserveFallback() {}

// Completer is the subset of llm.Client the pipeline depends on; tests
// substitute a fake that does not hit the network.
type Completer interface {
	Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
}

// Reporter receives one event per stage transition; the progress package
// provides the production implementation (JSONL + terminal).
type Reporter interface {
	StageSkipped(stage string)
	StageStarted(stage string)
	StageCompleted(stage string)
	StageFailed(stage string, err error)
}

// noopReporter discards every event; used when the caller passes nil.
type noopReporter struct{}

func (noopReporter) StageSkipped(string)        {}
func (noopReporter) StageStarted(string)        {}
func (noopReporter) StageCompleted(string)      {}
func (noopReporter) StageFailed(string, error)  {}

// Runner drives stages 1-7 against one project's workbook.
type Runner struct {
	WB              *workbook.Workbook
	Doc             *srt.Document
	LLM             Completer
	Executor        *batch.Executor
	Config          *config.Config
	Reporter        Reporter
	Metrics         StageTimer
	CoverageMetrics CoverageMetrics
	FallbackMetrics FallbackMetrics
	logger          *slog.Logger
}

// NewRunner builds a Runner, defaulting Reporter and Executor when not
// supplied.
func NewRunner(wb *workbook.Workbook, doc *srt.Document, llmClient Completer, cfg *config.Config) *Runner {
	return &Runner{
		WB:              wb,
		Doc:             doc,
		LLM:             llmClient,
		Executor:        batch.New(cfg.MaxParallelAPI),
		Config:          cfg,
		Reporter:        noopReporter{},
		Metrics:         noopStageTimer{},
		CoverageMetrics: noopCoverageMetrics{},
		FallbackMetrics: noopFallbackMetrics{},
		logger:          slog.With("component", "stage_runner"),
	}
}

type stageFunc func(ctx context.Context, r *Runner) error

type stageDef struct {
	name string
	done func() (bool, error)
	run  stageFunc
}

// Run executes every stage in order, skipping ones already complete, and
// stops at the first stage that returns an error: each stage already
// absorbs the partial-failure tolerance spec.md §4.9 allows it (Stage
// 2's Validation A/B, Stage 5's per-segment fallback, Stage 6/7's per-
// batch fallback), so an error reaching here means that stage's own
// repair budget was exhausted and a later invocation should resume from
// it (spec.md §4.5 step 3).
func (r *Runner) Run(ctx context.Context) error {
	if r.Reporter == nil {
		r.Reporter = noopReporter{}
	}
	if r.Metrics == nil {
		r.Metrics = noopStageTimer{}
	}
	if r.CoverageMetrics == nil {
		r.CoverageMetrics = noopCoverageMetrics{}
	}
	if r.FallbackMetrics == nil {
		r.FallbackMetrics = noopFallbackMetrics{}
	}

	stages := []stageDef{
		{"story_analysis", r.WB.StoryAnalysisDone, runStage1},
		{"segmentation", r.WB.SegmentsDone, runStage2},
		{"characters", r.WB.CharactersDone, runStage3},
		{"locations", r.WB.LocationsDone, runStage4},
		{"director_plan", r.directorPlanDone, runStage5},
		{"scene_planning", r.scenePlanningDone, runStage6},
		{"scene_prompts", r.WB.ScenesDone, runStage7},
	}

	for _, stage := range stages {
		done, err := stage.done()
		if err != nil {
			return fmt.Errorf("pipeline: checking completeness of %s: %w", stage.name, err)
		}
		if done {
			r.logger.Info("stage skipped, already complete", "stage", stage.name)
			r.Reporter.StageSkipped(stage.name)
			continue
		}

		r.logger.Info("stage started", "stage", stage.name)
		r.Reporter.StageStarted(stage.name)

		started := time.Now()
		err = stage.run(ctx, r)
		r.Metrics.ObserveStage(stage.name, time.Since(started))

		if err != nil {
			r.logger.Error("stage failed", "stage", stage.name, "error", err)
			r.Reporter.StageFailed(stage.name, err)

			var stageErr *StageError
			if se, ok := err.(*StageError); ok {
				stageErr = se
			} else {
				stageErr = newStageError(stage.name, KindTerminal, err)
			}
			if stageErr.Terminal() {
				return stageErr
			}
			// Non-terminal: the stage already persisted whatever it could;
			// resuming a later run will pick up from here.
			return stageErr
		}

		r.logger.Info("stage completed", "stage", stage.name)
		r.Reporter.StageCompleted(stage.name)
	}

	return nil
}

// directorPlanDone adapts Workbook.DirectorPlanDone to the stageDef.done
// shape, supplying the SRT index span from the parsed document.
func (r *Runner) directorPlanDone() (bool, error) {
	return r.WB.DirectorPlanDone(r.Doc.Len())
}

// scenePlanningDone reports whether every director-plan scene_id has a
// corresponding scene_planning row (spec.md §4.5.6 completeness).
func (r *Runner) scenePlanningDone() (bool, error) {
	entries, err := r.WB.ReadDirectorPlan()
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return false, nil
	}
	plans, err := r.WB.ReadScenePlanning()
	if err != nil {
		return false, err
	}
	have := make(map[string]bool, len(plans))
	for _, p := range plans {
		have[p.SceneID] = true
	}
	for _, e := range entries {
		if !have[e.SceneID] {
			return false, nil
		}
	}
	return true, nil
}
