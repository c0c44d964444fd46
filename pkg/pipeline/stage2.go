package pipeline

import (
	"context"
	"math"

	"github.com/scenepipe/scenepipe/pkg/coverage"
	"github.com/scenepipe/scenepipe/pkg/workbook"
)

const (
	// validationARatioSplit is the ratio threshold above which a segment
	// is split locally rather than accepted (spec.md §4.5.2).
	validationARatioSplit = 15
	// validationARatioRecall is the ratio threshold above which the LLM
	// is re-invoked on just that segment's slice.
	validationARatioRecall = 30
	// validationAMaxDepth bounds Validation A's recursive re-invocation.
	validationAMaxDepth = 3
)

// runStage2 produces the segments sheet: one LLM call, then Validation A
// (disproportion repair) and Validation B (gap repair) until the
// partition invariant holds (spec.md §4.5.2).
func runStage2(ctx context.Context, r *Runner) error {
	sa, err := r.WB.ReadStoryAnalysis()
	if err != nil {
		return newStageError("segmentation", KindTerminal, err)
	}

	text, err := r.LLM.Complete(ctx, segmentationPrompt(r.Doc.FullText(), sa), temperatureDefault, 1024)
	if err != nil {
		return newStageError("segmentation", KindTransientAPI, err)
	}
	if text == "" {
		return newStageError("segmentation", KindTerminal, errFailedCall("segmentation"))
	}

	segments, err := parseSegments(text)
	if err != nil {
		return newStageError("segmentation", KindParseError, err)
	}

	segments, err = r.applyValidationA(ctx, segments, 0)
	if err != nil {
		return newStageError("segmentation", KindCoverageIrreparable, err)
	}

	segments, err = r.applyValidationB(ctx, segments)
	if err != nil {
		return newStageError("segmentation", KindCoverageIrreparable, err)
	}

	renumberSegments(segments)

	if err := r.WB.WriteSegments(segments); err != nil {
		return newStageError("segmentation", KindTerminal, err)
	}
	return nil
}

// applyValidationA repairs disproportionate segments: ratio <= 15 is
// accepted, 15 < ratio <= 30 is split locally, ratio > 30 re-invokes the
// LLM on the segment's own slice and recurses up to validationAMaxDepth.
func (r *Runner) applyValidationA(ctx context.Context, segments []workbook.Segment, depth int) ([]workbook.Segment, error) {
	out := make([]workbook.Segment, 0, len(segments))
	for _, seg := range segments {
		length := seg.SRTEndIndex - seg.SRTStartIndex + 1
		imageCount := seg.ImageCount
		if imageCount < 1 {
			imageCount = 1
		}
		ratio := float64(length) / float64(imageCount)

		switch {
		case ratio <= validationARatioSplit:
			out = append(out, seg)

		case ratio <= validationARatioRecall:
			subCount := int(math.Ceil(ratio / 10))
			if subCount < 1 {
				subCount = 1
			}
			out = append(out, splitSegmentEqually(seg, subCount)...)

		default:
			if depth >= validationAMaxDepth {
				// Depth exhausted: fall back to a local split so the run
				// still makes progress instead of looping forever.
				out = append(out, splitSegmentEqually(seg, ceilDiv(length, 10))...)
				continue
			}
			sliceText := r.Doc.Text(seg.SRTStartIndex, seg.SRTEndIndex)
			text, err := r.LLM.Complete(ctx, segmentationSlicePrompt(sliceText, seg.SRTStartIndex, seg.SRTEndIndex), temperatureDefault, 1024)
			if err != nil || text == "" {
				out = append(out, splitSegmentEqually(seg, ceilDiv(length, 10))...)
				continue
			}
			sub, err := parseSegments(text)
			if err != nil || len(sub) == 0 {
				out = append(out, splitSegmentEqually(seg, ceilDiv(length, 10))...)
				continue
			}
			repaired, err := r.applyValidationA(ctx, sub, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, repaired...)
		}
	}
	return out, nil
}

// applyValidationB fills coverage gaps: every uncovered run gets an
// LLM call scoped to that slice, producing replacement segments.
func (r *Runner) applyValidationB(ctx context.Context, segments []workbook.Segment) ([]workbook.Segment, error) {
	n := r.Doc.Len()
	const maxRounds = 5

	for round := 0; round < maxRounds; round++ {
		report := coverage.Check(toRanges(segments), n)
		if len(report.Gaps) == 0 {
			return segments, nil
		}

		for _, gap := range report.Gaps {
			sliceText := r.Doc.Text(gap.Start, gap.End)
			text, err := r.LLM.Complete(ctx, segmentationSlicePrompt(sliceText, gap.Start, gap.End), temperatureDefault, 1024)
			var fill []workbook.Segment
			if err == nil && text != "" {
				if sub, perr := parseSegments(text); perr == nil && len(sub) > 0 {
					fill = sub
				}
			}
			if len(fill) == 0 {
				fill = []workbook.Segment{{
					Name: "gap-fill", SRTStartIndex: gap.Start, SRTEndIndex: gap.End,
					ImageCount: coverage.ImageCountFor(gap.Len()),
				}}
			}
			segments = append(segments, fill...)
		}
	}

	report := coverage.Check(toRanges(segments), n)
	if !report.Satisfied() {
		return nil, errCoverageIrreparable("segmentation", report)
	}
	return segments, nil
}

func splitSegmentEqually(seg workbook.Segment, parts int) []workbook.Segment {
	if parts < 1 {
		parts = 1
	}
	length := seg.SRTEndIndex - seg.SRTStartIndex + 1
	base := length / parts
	remainder := length % parts

	out := make([]workbook.Segment, 0, parts)
	cursor := seg.SRTStartIndex
	for i := 0; i < parts; i++ {
		size := base
		if i < remainder {
			size++
		}
		if size < 1 {
			continue
		}
		end := cursor + size - 1
		out = append(out, workbook.Segment{
			Name: seg.Name, SRTStartIndex: cursor, SRTEndIndex: end,
			ImageCount: coverage.ImageCountFor(end - cursor + 1),
		})
		cursor = end + 1
	}
	return out
}

// renumberSegments sorts by srt_start_index and assigns 1-based
// segment_id in that order.
func renumberSegments(segments []workbook.Segment) {
	sortSegments(segments)
	for i := range segments {
		segments[i].SegmentID = i + 1
	}
}

func sortSegments(segments []workbook.Segment) {
	for i := 1; i < len(segments); i++ {
		for j := i; j > 0 && segments[j].SRTStartIndex < segments[j-1].SRTStartIndex; j-- {
			segments[j], segments[j-1] = segments[j-1], segments[j]
		}
	}
}

func toRanges(segments []workbook.Segment) []coverage.Range {
	out := make([]coverage.Range, len(segments))
	for i, s := range segments {
		out[i] = coverage.Range{Start: s.SRTStartIndex, End: s.SRTEndIndex}
	}
	return out
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}
