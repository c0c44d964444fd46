package scene

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenepipe/scenepipe/pkg/config"
	"github.com/scenepipe/scenepipe/pkg/srt"
	"github.com/scenepipe/scenepipe/pkg/workbook"
)

func tenEntryDoc() *srt.Document {
	entries := make([]srt.Entry, 10)
	for i := range entries {
		entries[i] = srt.Entry{
			Index: i + 1,
			Start: time.Duration(i) * time.Second,
			End:   time.Duration(i+1) * time.Second,
			Text:  "line text",
		}
	}
	return &srt.Document{Entries: entries}
}

func TestSynthesizeScenarioS1(t *testing.T) {
	doc := tenEntryDoc()
	cfg := config.DefaultConfig()
	cfg.VideoMode = config.VideoModeBasic

	inputs := []PlanInput{
		{
			Entry: workbook.DirectorPlanEntry{
				SceneID: "scene_001", SegmentID: 1, VisualMoment: "open",
				SRTStartIndex: 1, SRTEndIndex: 5, CharactersUsed: []string{"nv1"},
			},
			Segment:   workbook.Segment{SegmentID: 1, Name: "opening", SRTStartIndex: 1, SRTEndIndex: 5},
			RawPrompt: "A figure (nv1.png) stands in the doorway.",
		},
		{
			Entry: workbook.DirectorPlanEntry{
				SceneID: "scene_002", SegmentID: 2, VisualMoment: "close",
				SRTStartIndex: 6, SRTEndIndex: 10, CharactersUsed: []string{"nv1"},
			},
			Segment:   workbook.Segment{SegmentID: 2, Name: "closing", SRTStartIndex: 6, SRTEndIndex: 10},
			RawPrompt: "A figure (nv1.png) stands at the window.",
		},
	}

	scenes := Synthesize(inputs, doc, cfg, nil)
	require.Len(t, scenes, 2)

	assert.Equal(t, 1, scenes[0].SegmentID)
	assert.Equal(t, "", scenes[0].VideoNote)
	assert.Equal(t, []string{"nv1"}, scenes[0].CharactersUsed)
	assert.Equal(t, []string{"nv1.png"}, scenes[0].ReferenceFiles)

	assert.Equal(t, 2, scenes[1].SegmentID)
	assert.Equal(t, "SKIP", scenes[1].VideoNote)
	assert.Equal(t, "pending", scenes[1].StatusImg)
	assert.Equal(t, "pending", scenes[1].StatusVid)
}

func TestSynthesizeUsesFallbackForEmptyPrompt(t *testing.T) {
	doc := tenEntryDoc()
	cfg := config.DefaultConfig()

	inputs := []PlanInput{
		{
			Entry: workbook.DirectorPlanEntry{
				SceneID: "scene_001", SegmentID: 1,
				SRTStartIndex: 1, SRTEndIndex: 3,
			},
			Segment:   workbook.Segment{SegmentID: 1, Name: "intro"},
			RawPrompt: "",
		},
	}

	scenes := Synthesize(inputs, doc, cfg, nil)
	require.Len(t, scenes, 1)
	assert.NotEmpty(t, scenes[0].ImgPrompt)
	assert.Contains(t, scenes[0].ImgPrompt, "scene_001")
}

func TestFallbackPromptEmbedsDirectorPlanReferenceTokens(t *testing.T) {
	doc := tenEntryDoc()
	cfg := config.DefaultConfig()

	inputs := []PlanInput{
		{
			Entry: workbook.DirectorPlanEntry{
				SceneID: "scene_001", SegmentID: 1,
				SRTStartIndex: 1, SRTEndIndex: 3,
				CharactersUsed: []string{"nv1"},
				LocationUsed:   "loc1",
			},
			Segment:   workbook.Segment{SegmentID: 1, Name: "intro"},
			RawPrompt: "",
		},
	}

	scenes := Synthesize(inputs, doc, cfg, nil)
	require.Len(t, scenes, 1)

	s := scenes[0]
	assert.Contains(t, s.ImgPrompt, "(nv1.png)")
	assert.Contains(t, s.ImgPrompt, "(loc1.png)")
	assert.Equal(t, []string{"nv1"}, s.CharactersUsed)
	assert.Equal(t, "loc1", s.LocationUsed)
	assert.ElementsMatch(t, []string{"nv1.png", "loc1.png"}, s.ReferenceFiles)
}

func TestSynthesizeFallsBackWholeBatchOnHighDuplicateRate(t *testing.T) {
	doc := tenEntryDoc()
	cfg := config.DefaultConfig()
	cfg.DuplicateThreshold = 0.5
	cfg.DuplicateSimilarity = 0.9

	same := "An identical prompt text repeated across the batch."
	inputs := []PlanInput{
		{Entry: workbook.DirectorPlanEntry{SceneID: "scene_001", SRTStartIndex: 1, SRTEndIndex: 2}, Segment: workbook.Segment{Name: "a"}, RawPrompt: same},
		{Entry: workbook.DirectorPlanEntry{SceneID: "scene_002", SRTStartIndex: 3, SRTEndIndex: 4}, Segment: workbook.Segment{Name: "b"}, RawPrompt: same},
		{Entry: workbook.DirectorPlanEntry{SceneID: "scene_003", SRTStartIndex: 5, SRTEndIndex: 6}, Segment: workbook.Segment{Name: "c"}, RawPrompt: same},
	}

	scenes := Synthesize(inputs, doc, cfg, nil)
	require.Len(t, scenes, 3)
	seen := map[string]bool{}
	for _, s := range scenes {
		assert.NotEmpty(t, s.ImgPrompt)
		assert.False(t, seen[s.ImgPrompt], "fallback prompts must be unique per scene")
		seen[s.ImgPrompt] = true
	}
}

func TestVideoNoteFullModeNeverSkips(t *testing.T) {
	assert.Equal(t, "", videoNote(5, config.VideoModeFull))
	assert.Equal(t, "", videoNote(1, config.VideoModeFull))
}

func TestVideoNoteBasicModeSkipsAfterFirstSegment(t *testing.T) {
	assert.Equal(t, "", videoNote(1, config.VideoModeBasic))
	assert.Equal(t, "SKIP", videoNote(2, config.VideoModeBasic))
}

func TestDuplicateRateAllEmptyIsZero(t *testing.T) {
	assert.Equal(t, 0.0, duplicateRate([]string{"", "", ""}, 0.9))
}

func TestDuplicateRateDistinctPromptsIsZero(t *testing.T) {
	rate := duplicateRate([]string{"alpha scene", "bravo scene", "charlie scene"}, 0.9)
	assert.Equal(t, 0.0, rate)
}
