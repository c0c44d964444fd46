package pipeline

import "context"

// runStage4 produces the locations sheet. Same shape as Stage 3: an
// empty result is acceptable (spec.md §4.5.4, §4.9).
func runStage4(ctx context.Context, r *Runner) error {
	sa, err := r.WB.ReadStoryAnalysis()
	if err != nil {
		return newStageError("locations", KindTerminal, err)
	}

	text, err := r.LLM.Complete(ctx, locationsPrompt(r.Doc.FullText(), sa), temperatureDefault, 1024)
	if err != nil {
		return newStageError("locations", KindTransientAPI, err)
	}
	if text == "" {
		return r.writeEmptyLocations()
	}

	locs, err := parseLocations(text)
	if err != nil {
		return r.writeEmptyLocations()
	}
	if err := r.WB.WriteLocations(locs); err != nil {
		return newStageError("locations", KindTerminal, err)
	}
	if len(locs) == 0 {
		if err := r.WB.MarkStageDone("locations_done"); err != nil {
			return newStageError("locations", KindTerminal, err)
		}
	}
	return nil
}

func (r *Runner) writeEmptyLocations() error {
	if err := r.WB.WriteLocations(nil); err != nil {
		return newStageError("locations", KindTerminal, err)
	}
	if err := r.WB.MarkStageDone("locations_done"); err != nil {
		return newStageError("locations", KindTerminal, err)
	}
	return nil
}
