// Package scene synthesizes final Scene rows from director-plan entries
// and LLM-produced prompts, with a deterministic fallback path that
// guarantees every scene gets a unique, non-empty prompt (spec.md §4.7).
package scene

import (
	"github.com/scenepipe/scenepipe/pkg/config"
	"github.com/scenepipe/scenepipe/pkg/reference"
	"github.com/scenepipe/scenepipe/pkg/srt"
	"github.com/scenepipe/scenepipe/pkg/workbook"
)

// PlanInput bundles one director-plan entry with its raw LLM prompt
// (possibly empty) and the segment it belongs to.
type PlanInput struct {
	Entry       workbook.DirectorPlanEntry
	Segment     workbook.Segment
	RawPrompt   string
	VideoPrompt string
}

// Synthesize produces one Scene row per input, applying the fallback
// generator batch-wide and reference resolution per-scene (spec.md §4.7
// steps 1-5). doc supplies the srt_text excerpt for fallback prompts.
// onFallback, if non-nil, is called once per scene whose prompt came from
// the fallback generator rather than the LLM.
func Synthesize(inputs []PlanInput, doc *srt.Document, cfg *config.Config, onFallback func()) []workbook.Scene {
	prompts := make([]string, len(inputs))
	for i, in := range inputs {
		prompts[i] = in.RawPrompt
	}
	rate := duplicateRate(prompts, cfg.DuplicateSimilarity)
	useFallbackForBatch := rate > cfg.DuplicateThreshold

	scenes := make([]workbook.Scene, len(inputs))
	for i, in := range inputs {
		imgPrompt := in.RawPrompt
		if imgPrompt == "" || useFallbackForBatch {
			srtText := doc.Text(in.Entry.SRTStartIndex, in.Entry.SRTEndIndex)
			imgPrompt = fallbackPrompt(in.Entry.SceneID, in.Segment.Name, srtText, in.Entry.CharactersUsed, in.Entry.LocationUsed)
			if onFallback != nil {
				onFallback()
			}
		}

		res := reference.Resolve(imgPrompt, in.Entry.CharactersUsed, in.Entry.LocationUsed)

		entries := doc.Slice(in.Entry.SRTStartIndex, in.Entry.SRTEndIndex)
		srtText := doc.Text(in.Entry.SRTStartIndex, in.Entry.SRTEndIndex)

		scenes[i] = workbook.Scene{
			SceneID:           in.Entry.SceneID,
			SRTStartMS:        entries[0].StartMS(),
			SRTEndMS:          entries[len(entries)-1].EndMS(),
			PlannedDurationMS: in.Entry.PlannedDurationMS,
			SRTText:           srtText,
			ImgPrompt:         imgPrompt,
			VideoPrompt:       in.VideoPrompt,
			CharactersUsed:    res.CharactersUsed,
			LocationUsed:      res.LocationUsed,
			ReferenceFiles:    res.ReferenceFiles,
			StatusImg:         "pending",
			StatusVid:         "pending",
			VideoNote:         videoNote(in.Entry.SegmentID, cfg.VideoMode),
			SegmentID:         in.Entry.SegmentID,
		}
	}
	return scenes
}

// videoNote applies the §4.7 step 4 policy.
func videoNote(segmentID int, mode config.VideoMode) string {
	if mode == config.VideoModeFull {
		return ""
	}
	if segmentID > 1 {
		return "SKIP"
	}
	return ""
}
