package pipeline

import "context"

// runStage1 produces StoryAnalysis from the full SRT text (spec.md
// §4.5.1). Terminal if the LLM returns nothing after its own retries.
func runStage1(ctx context.Context, r *Runner) error {
	text, err := r.LLM.Complete(ctx, storyAnalysisPrompt(r.Doc.FullText()), temperatureDefault, 512)
	if err != nil {
		return newStageError("story_analysis", KindTransientAPI, err)
	}
	if text == "" {
		return newStageError("story_analysis", KindTerminal, errFailedCall("story analysis"))
	}

	sa, err := parseStoryAnalysis(text)
	if err != nil {
		return newStageError("story_analysis", KindParseError, err)
	}
	if err := r.WB.WriteStoryAnalysis(sa); err != nil {
		return newStageError("story_analysis", KindTerminal, err)
	}
	return nil
}
