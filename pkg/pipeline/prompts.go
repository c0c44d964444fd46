package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/scenepipe/scenepipe/pkg/workbook"
)

// The LLM is a weak contract (spec.md §9 "Prompt-as-interface"): every
// prompt below asks for a JSON body, and every parse function treats
// malformed or missing JSON as a task-level ParseError, never a panic.
// Correctness never depends on the model actually complying.

const temperatureDefault = 0.4

func storyAnalysisPrompt(fullText string) string {
	return fmt.Sprintf(`Analyze the following subtitle transcript and reply with JSON
matching {"genre":"","mood":"","style":"","summary":""}.

TRANSCRIPT:
%s`, fullText)
}

type storyAnalysisResponse struct {
	Genre   string `json:"genre"`
	Mood    string `json:"mood"`
	Style   string `json:"style"`
	Summary string `json:"summary"`
}

func parseStoryAnalysis(text string) (workbook.StoryAnalysis, error) {
	var resp storyAnalysisResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return workbook.StoryAnalysis{}, fmt.Errorf("parse story analysis: %w", err)
	}
	return workbook.StoryAnalysis{
		Genre: resp.Genre, Mood: resp.Mood, Style: resp.Style, Summary: resp.Summary,
	}, nil
}

func segmentationPrompt(fullText string, sa workbook.StoryAnalysis) string {
	return fmt.Sprintf(`Given this story analysis (genre=%s, mood=%s) and transcript below,
divide the transcript into narrative segments. Reply with JSON:
{"segments":[{"name":"","srt_start_index":1,"srt_end_index":1,"image_count":1}]}

TRANSCRIPT:
%s`, sa.Genre, sa.Mood, fullText)
}

// segmentationSlicePrompt re-invokes the LLM on just one SRT slice, used
// by Validation A's recursive split and Validation B's gap fill.
func segmentationSlicePrompt(sliceText string, startIndex, endIndex int) string {
	return fmt.Sprintf(`Divide SRT indices %d..%d (text below) into narrative segments
covering exactly that range. Reply with JSON:
{"segments":[{"name":"","srt_start_index":%d,"srt_end_index":%d,"image_count":1}]}

TEXT:
%s`, startIndex, endIndex, startIndex, endIndex, sliceText)
}

type segmentsResponse struct {
	Segments []struct {
		Name          string `json:"name"`
		SRTStartIndex int    `json:"srt_start_index"`
		SRTEndIndex   int    `json:"srt_end_index"`
		ImageCount    int    `json:"image_count"`
	} `json:"segments"`
}

func parseSegments(text string) ([]workbook.Segment, error) {
	var resp segmentsResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, fmt.Errorf("parse segments: %w", err)
	}
	out := make([]workbook.Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		out = append(out, workbook.Segment{
			Name: s.Name, SRTStartIndex: s.SRTStartIndex, SRTEndIndex: s.SRTEndIndex, ImageCount: s.ImageCount,
		})
	}
	return out, nil
}

func charactersPrompt(fullText string, sa workbook.StoryAnalysis) string {
	return fmt.Sprintf(`List every named or clearly-recurring character in this transcript
(genre=%s). Reply with JSON: {"characters":[{"name":"","description":"","appearance":""}]}

TRANSCRIPT:
%s`, sa.Genre, fullText)
}

type charactersResponse struct {
	Characters []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Appearance  string `json:"appearance"`
	} `json:"characters"`
}

func parseCharacters(text string) ([]workbook.Character, error) {
	var resp charactersResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, fmt.Errorf("parse characters: %w", err)
	}
	out := make([]workbook.Character, 0, len(resp.Characters))
	for i, c := range resp.Characters {
		out = append(out, workbook.Character{
			CharacterID: fmt.Sprintf("nv%d", i+1), Name: c.Name, Description: c.Description, Appearance: c.Appearance,
		})
	}
	return out, nil
}

func locationsPrompt(fullText string, sa workbook.StoryAnalysis) string {
	return fmt.Sprintf(`List every distinct location in this transcript (genre=%s).
Reply with JSON: {"locations":[{"name":"","description":"","atmosphere":""}]}

TRANSCRIPT:
%s`, sa.Genre, fullText)
}

type locationsResponse struct {
	Locations []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Atmosphere  string `json:"atmosphere"`
	} `json:"locations"`
}

func parseLocations(text string) ([]workbook.Location, error) {
	var resp locationsResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, fmt.Errorf("parse locations: %w", err)
	}
	out := make([]workbook.Location, 0, len(resp.Locations))
	for i, l := range resp.Locations {
		out = append(out, workbook.Location{
			LocationID: fmt.Sprintf("loc%d", i+1), Name: l.Name, Description: l.Description, Atmosphere: l.Atmosphere,
		})
	}
	return out, nil
}

func directorPlanPrompt(seg workbook.Segment, sliceText string, chars []workbook.Character, locs []workbook.Location) string {
	return fmt.Sprintf(`Plan %d scenes covering SRT indices %d..%d (segment %q) from the text
below. Reply with JSON:
{"entries":[{"visual_moment":"","srt_start_index":%d,"srt_end_index":%d,"planned_duration_ms":0,"characters_used":[],"location_used":""}]}
Character IDs available: %v. Location IDs available: %v.

TEXT:
%s`, seg.ImageCount, seg.SRTStartIndex, seg.SRTEndIndex, seg.Name, seg.SRTStartIndex, seg.SRTEndIndex, characterIDs(chars), locationIDs(locs), sliceText)
}

type directorPlanResponse struct {
	Entries []struct {
		VisualMoment      string   `json:"visual_moment"`
		SRTStartIndex     int      `json:"srt_start_index"`
		SRTEndIndex       int      `json:"srt_end_index"`
		PlannedDurationMS int64    `json:"planned_duration_ms"`
		CharactersUsed    []string `json:"characters_used"`
		LocationUsed      string   `json:"location_used"`
	} `json:"entries"`
}

func parseDirectorPlan(text string, segmentID int) ([]workbook.DirectorPlanEntry, error) {
	var resp directorPlanResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, fmt.Errorf("parse director plan: %w", err)
	}
	out := make([]workbook.DirectorPlanEntry, 0, len(resp.Entries))
	for _, e := range resp.Entries {
		out = append(out, workbook.DirectorPlanEntry{
			SegmentID:         segmentID,
			VisualMoment:      e.VisualMoment,
			SRTStartIndex:     e.SRTStartIndex,
			SRTEndIndex:       e.SRTEndIndex,
			PlannedDurationMS: e.PlannedDurationMS,
			CharactersUsed:    e.CharactersUsed,
			LocationUsed:      e.LocationUsed,
			Status:            workbook.StatusPending,
		})
	}
	return out, nil
}

func scenePlanningPrompt(batch []workbook.DirectorPlanEntry) string {
	return fmt.Sprintf(`Provide camera, lighting, and composition notes for these %d scenes.
Reply with JSON: {"plans":[{"scene_id":"","camera":"","lighting":"","composition":""}]}

SCENE IDS: %v`, len(batch), sceneIDs(batch))
}

type scenePlanningResponse struct {
	Plans []struct {
		SceneID     string `json:"scene_id"`
		Camera      string `json:"camera"`
		Lighting    string `json:"lighting"`
		Composition string `json:"composition"`
	} `json:"plans"`
}

func parseScenePlanning(text string) ([]workbook.ScenePlan, error) {
	var resp scenePlanningResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, fmt.Errorf("parse scene planning: %w", err)
	}
	out := make([]workbook.ScenePlan, 0, len(resp.Plans))
	for _, p := range resp.Plans {
		out = append(out, workbook.ScenePlan{
			SceneID: p.SceneID, Camera: p.Camera, Lighting: p.Lighting, Composition: p.Composition,
		})
	}
	return out, nil
}

func scenePromptsPrompt(batch []workbook.DirectorPlanEntry) string {
	return fmt.Sprintf(`Write an image prompt and a video prompt for each of these %d scenes,
referencing characters/locations as "(nv1.png)" or "(loc1.png)" tokens inline.
Reply with JSON: {"prompts":[{"scene_id":"","img_prompt":"","video_prompt":""}]}

SCENE IDS: %v`, len(batch), sceneIDs(batch))
}

type scenePromptsResponse struct {
	Prompts []struct {
		SceneID     string `json:"scene_id"`
		ImgPrompt   string `json:"img_prompt"`
		VideoPrompt string `json:"video_prompt"`
	} `json:"prompts"`
}

func parseScenePrompts(text string) (map[string]scenePromptPair, error) {
	var resp scenePromptsResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, fmt.Errorf("parse scene prompts: %w", err)
	}
	out := make(map[string]scenePromptPair, len(resp.Prompts))
	for _, p := range resp.Prompts {
		out[p.SceneID] = scenePromptPair{ImgPrompt: p.ImgPrompt, VideoPrompt: p.VideoPrompt}
	}
	return out, nil
}

type scenePromptPair struct {
	ImgPrompt   string
	VideoPrompt string
}

func characterIDs(chars []workbook.Character) []string {
	out := make([]string, len(chars))
	for i, c := range chars {
		out[i] = c.CharacterID
	}
	return out
}

func locationIDs(locs []workbook.Location) []string {
	out := make([]string, len(locs))
	for i, l := range locs {
		out[i] = l.LocationID
	}
	return out
}

func sceneIDs(entries []workbook.DirectorPlanEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.SceneID
	}
	return out
}
