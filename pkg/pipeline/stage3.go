package pipeline

import "context"

// runStage3 produces the characters sheet. An empty result is acceptable
// (spec.md §4.9). It returns without an LLM call when the workbook
// already records Stage 3 as done.
func runStage3(ctx context.Context, r *Runner) error {
	done, err := r.WB.CharactersDone()
	if err != nil {
		return newStageError("characters", KindTerminal, err)
	}
	if done {
		return nil
	}

	sa, err := r.WB.ReadStoryAnalysis()
	if err != nil {
		return newStageError("characters", KindTerminal, err)
	}

	text, err := r.LLM.Complete(ctx, charactersPrompt(r.Doc.FullText(), sa), temperatureDefault, 1024)
	if err != nil {
		return newStageError("characters", KindTransientAPI, err)
	}
	if text == "" {
		// Terminal-API-empty is tolerated here: an empty cast is valid.
		return r.writeEmptyCharacters()
	}

	chars, err := parseCharacters(text)
	if err != nil {
		return r.writeEmptyCharacters()
	}
	if err := r.WB.WriteCharacters(chars); err != nil {
		return newStageError("characters", KindTerminal, err)
	}
	if len(chars) == 0 {
		if err := r.WB.MarkStageDone("characters_done"); err != nil {
			return newStageError("characters", KindTerminal, err)
		}
	}
	return nil
}

func (r *Runner) writeEmptyCharacters() error {
	if err := r.WB.WriteCharacters(nil); err != nil {
		return newStageError("characters", KindTerminal, err)
	}
	if err := r.WB.MarkStageDone("characters_done"); err != nil {
		return newStageError("characters", KindTerminal, err)
	}
	return nil
}
