package pipeline

import (
	"context"

	"github.com/scenepipe/scenepipe/pkg/batch"
	"github.com/scenepipe/scenepipe/pkg/scene"
	"github.com/scenepipe/scenepipe/pkg/workbook"
)

// runStage7 fans batches of director-plan entries out through the Batch
// Executor for prompt generation, then synthesizes final Scene rows via
// the Scene Synthesizer (spec.md §4.5.7, §4.7). Only scene_ids not
// already present in the scenes sheet are processed — this is Stage 7's
// resume point.
func runStage7(ctx context.Context, r *Runner) error {
	entries, err := r.WB.ReadDirectorPlan()
	if err != nil {
		return newStageError("scene_prompts", KindTerminal, err)
	}
	segments, err := r.WB.ReadSegments()
	if err != nil {
		return newStageError("scene_prompts", KindTerminal, err)
	}
	segByID := make(map[int]workbook.Segment, len(segments))
	for _, s := range segments {
		segByID[s.SegmentID] = s
	}

	existing, err := r.WB.ReadScenes()
	if err != nil {
		return newStageError("scene_prompts", KindTerminal, err)
	}
	have := make(map[string]bool, len(existing))
	for _, s := range existing {
		have[s.SceneID] = true
	}

	var pending []workbook.DirectorPlanEntry
	for _, e := range entries {
		if !have[e.SceneID] {
			pending = append(pending, e)
		}
	}

	batches := chunkEntries(pending, r.Config.Stage7BatchSize)
	tasks := make([]batch.Task[map[string]scenePromptPair], len(batches))
	for i, b := range batches {
		b := b
		tasks[i] = batch.Task[map[string]scenePromptPair]{
			Index: i,
			Execute: func(ctx context.Context) (map[string]scenePromptPair, error) {
				text, err := r.LLM.Complete(ctx, scenePromptsPrompt(b), temperatureDefault, 2048)
				if err != nil || text == "" {
					return map[string]scenePromptPair{}, nil // Synthesizer's fallback covers this (spec.md §4.9)
				}
				pairs, err := parseScenePrompts(text)
				if err != nil {
					return map[string]scenePromptPair{}, nil
				}
				return pairs, nil
			},
		}
	}

	results := batch.Run(ctx, r.Executor, tasks)
	prompts := make(map[string]scenePromptPair)
	for _, res := range results {
		for id, pair := range res.Value {
			prompts[id] = pair
		}
	}

	// Synthesize runs once per prompt batch, so the duplicate rate is
	// measured within each Stage 7 batch.
	var newScenes []workbook.Scene
	for _, b := range batches {
		inputs := make([]scene.PlanInput, len(b))
		for i, e := range b {
			pair := prompts[e.SceneID]
			inputs[i] = scene.PlanInput{
				Entry:       e,
				Segment:     segByID[e.SegmentID],
				RawPrompt:   pair.ImgPrompt,
				VideoPrompt: pair.VideoPrompt,
			}
		}
		newScenes = append(newScenes, scene.Synthesize(inputs, r.Doc, r.Config, r.FallbackMetrics.ObserveFallback)...)
	}
	allScenes := append(existing, newScenes...)

	if err := r.WB.WriteScenes(allScenes); err != nil {
		return newStageError("scene_prompts", KindTerminal, err)
	}

	for i, e := range entries {
		if e.Status != workbook.StatusDone {
			entries[i].Status = workbook.StatusPrompted
		}
	}
	if err := r.WB.WriteDirectorPlan(entries); err != nil {
		return newStageError("scene_prompts", KindTerminal, err)
	}
	return nil
}
