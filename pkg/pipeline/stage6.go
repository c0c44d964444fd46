package pipeline

import (
	"context"

	"github.com/scenepipe/scenepipe/pkg/batch"
	"github.com/scenepipe/scenepipe/pkg/workbook"
)

// runStage6 fans batches of director-plan entries out through the Batch
// Executor, one LLM call per batch of stage6_batch_size, and writes the
// scene_planning sheet (spec.md §4.5.6).
func runStage6(ctx context.Context, r *Runner) error {
	entries, err := r.WB.ReadDirectorPlan()
	if err != nil {
		return newStageError("scene_planning", KindTerminal, err)
	}
	existing, err := r.WB.ReadScenePlanning()
	if err != nil {
		return newStageError("scene_planning", KindTerminal, err)
	}
	have := make(map[string]bool, len(existing))
	for _, p := range existing {
		have[p.SceneID] = true
	}

	var pending []workbook.DirectorPlanEntry
	for _, e := range entries {
		if !have[e.SceneID] {
			pending = append(pending, e)
		}
	}

	batches := chunkEntries(pending, r.Config.Stage6BatchSize)
	tasks := make([]batch.Task[[]workbook.ScenePlan], len(batches))
	for i, b := range batches {
		b := b
		tasks[i] = batch.Task[[]workbook.ScenePlan]{
			Index: i,
			Execute: func(ctx context.Context) ([]workbook.ScenePlan, error) {
				text, err := r.LLM.Complete(ctx, scenePlanningPrompt(b), temperatureDefault, 1024)
				if err != nil || text == "" {
					return nil, errFailedCall("scene planning batch")
				}
				return parseScenePlanning(text)
			},
		}
	}

	results := batch.Run(ctx, r.Executor, tasks)

	plans := existing
	for _, res := range results {
		if res.Err != nil {
			continue // per-batch failures tolerated (spec.md §4.9)
		}
		plans = append(plans, res.Value...)
	}

	if err := r.WB.WriteScenePlanning(plans); err != nil {
		return newStageError("scene_planning", KindTerminal, err)
	}

	for i, e := range entries {
		if e.Status == workbook.StatusPending {
			entries[i].Status = workbook.StatusPlanned
		}
	}
	if err := r.WB.WriteDirectorPlan(entries); err != nil {
		return newStageError("scene_planning", KindTerminal, err)
	}
	return nil
}

func chunkEntries(entries []workbook.DirectorPlanEntry, size int) [][]workbook.DirectorPlanEntry {
	if size < 1 {
		size = 1
	}
	var out [][]workbook.DirectorPlanEntry
	for i := 0; i < len(entries); i += size {
		end := i + size
		if end > len(entries) {
			end = len(entries)
		}
		out = append(out, entries[i:end])
	}
	return out
}
