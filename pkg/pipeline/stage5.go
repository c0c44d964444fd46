package pipeline

import (
	"context"
	"fmt"

	"github.com/scenepipe/scenepipe/pkg/batch"
	"github.com/scenepipe/scenepipe/pkg/coverage"
	"github.com/scenepipe/scenepipe/pkg/workbook"
)

// maxGapFillSpan bounds each synthesized GAP-FILL entry to at most 10
// SRT indices (spec.md §4.5.5, GLOSSARY "GAP-FILL").
const maxGapFillSpan = 10

// runStage5 dispatches one LLM call per segment through the Batch
// Executor, then runs GAP-FILL and assigns stable scene IDs (spec.md
// §4.5.5).
func runStage5(ctx context.Context, r *Runner) error {
	segments, err := r.WB.ReadSegments()
	if err != nil {
		return newStageError("director_plan", KindTerminal, err)
	}
	chars, err := r.WB.ReadCharacters()
	if err != nil {
		return newStageError("director_plan", KindTerminal, err)
	}
	locs, err := r.WB.ReadLocations()
	if err != nil {
		return newStageError("director_plan", KindTerminal, err)
	}

	tasks := make([]batch.Task[[]workbook.DirectorPlanEntry], len(segments))
	for i, seg := range segments {
		seg := seg
		tasks[i] = batch.Task[[]workbook.DirectorPlanEntry]{
			Index: i,
			Execute: func(ctx context.Context) ([]workbook.DirectorPlanEntry, error) {
				sliceText := r.Doc.Text(seg.SRTStartIndex, seg.SRTEndIndex)
				text, err := r.LLM.Complete(ctx, directorPlanPrompt(seg, sliceText, chars, locs), temperatureDefault, 1024)
				if err != nil {
					return nil, err
				}
				if text == "" {
					return nil, fmt.Errorf("director plan call for segment %d: %w", seg.SegmentID, errFailedCall("director plan"))
				}
				entries, err := parseDirectorPlan(text, seg.SegmentID)
				if err != nil {
					return nil, err
				}
				return entries, nil
			},
		}
	}

	results := batch.Run(ctx, r.Executor, tasks)

	var entries []workbook.DirectorPlanEntry
	for _, res := range results {
		if res.Err != nil {
			// Partial segment failures are tolerated; GAP-FILL covers the
			// resulting hole (spec.md §4.9).
			continue
		}
		entries = append(entries, res.Value...)
	}

	beforeGapFill := len(entries)
	entries = gapFill(entries, segments, chars, locs, r.Doc.Len())
	for i := 0; i < len(entries)-beforeGapFill; i++ {
		r.CoverageMetrics.ObserveCoverageRepair("director_plan", "gap_fill")
	}

	report := coverage.Check(directorPlanRanges(entries), r.Doc.Len())
	if !report.Satisfied() {
		return newStageError("director_plan", KindCoverageIrreparable, errCoverageIrreparable("director_plan", report))
	}

	assignSceneIDs(entries)

	if err := r.WB.WriteDirectorPlan(entries); err != nil {
		return newStageError("director_plan", KindTerminal, err)
	}
	return nil
}

// gapFill synthesizes additional entries, each spanning at most 10 SRT
// indices, for every contiguous run left uncovered by entries.
func gapFill(entries []workbook.DirectorPlanEntry, segments []workbook.Segment, chars []workbook.Character, locs []workbook.Location, n int) []workbook.DirectorPlanEntry {
	report := coverage.Check(directorPlanRanges(entries), n)
	for _, gap := range report.Gaps {
		seg := segmentContaining(segments, gap.Start)
		segID := 0
		if seg != nil {
			segID = seg.SegmentID
		}
		defaultChars, defaultLoc := dominantEntities(chars, locs)

		for start := gap.Start; start <= gap.End; start += maxGapFillSpan {
			end := start + maxGapFillSpan - 1
			if end > gap.End {
				end = gap.End
			}
			entries = append(entries, workbook.DirectorPlanEntry{
				SegmentID:      segID,
				VisualMoment:   "",
				SRTStartIndex:  start,
				SRTEndIndex:    end,
				CharactersUsed: defaultChars,
				LocationUsed:   defaultLoc,
				Status:         workbook.StatusPending,
			})
		}
	}
	return entries
}

// dominantEntities returns the first character/location as the "dominant
// entity" default (spec.md §4.5.5 GAP-FILL: "defaults inferred from the
// segment's dominant entities (empty if none)"). Absent a frequency
// signal from the LLM's own output, the first-returned entity is the
// best available proxy for "dominant".
func dominantEntities(chars []workbook.Character, locs []workbook.Location) ([]string, string) {
	var characters []string
	if len(chars) > 0 {
		characters = []string{chars[0].CharacterID}
	}
	location := ""
	if len(locs) > 0 {
		location = locs[0].LocationID
	}
	return characters, location
}

func segmentContaining(segments []workbook.Segment, index int) *workbook.Segment {
	for i := range segments {
		if segments[i].SRTStartIndex <= index && index <= segments[i].SRTEndIndex {
			return &segments[i]
		}
	}
	return nil
}

func directorPlanRanges(entries []workbook.DirectorPlanEntry) []coverage.Range {
	out := make([]coverage.Range, len(entries))
	for i, e := range entries {
		out[i] = coverage.Range{Start: e.SRTStartIndex, End: e.SRTEndIndex}
	}
	return out
}

// assignSceneIDs sorts by srt_start_index and assigns scene_001,
// scene_002, ... in that order (spec.md §4.5.5).
func assignSceneIDs(entries []workbook.DirectorPlanEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].SRTStartIndex < entries[j-1].SRTStartIndex; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
	for i := range entries {
		entries[i].SceneID = fmt.Sprintf("scene_%03d", i+1)
	}
}
