package workbook

import "strings"

// Sheet names are contractual (spec.md §6): downstream collaborators
// depend on these exact names.
const (
	SheetStoryAnalysis = "story_analysis"
	SheetSegments      = "segments"
	SheetCharacters    = "characters"
	SheetLocations     = "locations"
	SheetDirectorPlan  = "director_plan"
	SheetScenePlanning = "scene_planning"
	SheetScenes        = "scenes"
	SheetMeta          = "meta"
)

// SchemaVersion is the current workbook schema version, recorded in the
// meta sheet. Bump only when appending new trailing columns; never when
// reordering existing ones (spec.md §4.2, §9).
const SchemaVersion = 1

// StoryAnalysis is the Stage 1 output (spec.md §4.5.1). One row, never
// mutated after creation.
type StoryAnalysis struct {
	Genre   string
	Mood    string
	Style   string
	Summary string
}

// IsEmpty reports whether no story analysis has been written yet.
func (s StoryAnalysis) IsEmpty() bool {
	return s.Genre == "" && s.Mood == "" && s.Style == "" && s.Summary == ""
}

func (s StoryAnalysis) row() []string { return []string{s.Genre, s.Mood, s.Style, s.Summary} }

func storyAnalysisFromRow(r []string) StoryAnalysis {
	return StoryAnalysis{
		Genre:   cell(r, 0),
		Mood:    cell(r, 1),
		Style:   cell(r, 2),
		Summary: cell(r, 3),
	}
}

// Segment is a named contiguous run of SRT indices with a target scene
// count (spec.md §3 "Segment").
type Segment struct {
	SegmentID     int
	Name          string
	SRTStartIndex int
	SRTEndIndex   int
	ImageCount    int
}

func (s Segment) row() []string {
	return []string{
		itoa(s.SegmentID), s.Name, itoa(s.SRTStartIndex), itoa(s.SRTEndIndex), itoa(s.ImageCount),
	}
}

func segmentFromRow(r []string) Segment {
	return Segment{
		SegmentID:     atoi(cell(r, 0)),
		Name:          cell(r, 1),
		SRTStartIndex: atoi(cell(r, 2)),
		SRTEndIndex:   atoi(cell(r, 3)),
		ImageCount:    atoi(cell(r, 4)),
	}
}

// Character is a Stage 3 output row. Append-only.
type Character struct {
	CharacterID string
	Name        string
	Description string
	Appearance  string
}

func (c Character) row() []string {
	return []string{c.CharacterID, c.Name, c.Description, c.Appearance}
}

func characterFromRow(r []string) Character {
	return Character{
		CharacterID: cell(r, 0),
		Name:        cell(r, 1),
		Description: cell(r, 2),
		Appearance:  cell(r, 3),
	}
}

// Location is a Stage 4 output row. Append-only.
type Location struct {
	LocationID  string
	Name        string
	Description string
	Atmosphere  string
}

func (l Location) row() []string {
	return []string{l.LocationID, l.Name, l.Description, l.Atmosphere}
}

func locationFromRow(r []string) Location {
	return Location{
		LocationID:  cell(r, 0),
		Name:        cell(r, 1),
		Description: cell(r, 2),
		Atmosphere:  cell(r, 3),
	}
}

// DirectorPlanStatus is DirectorPlanEntry.Status (spec.md §4.8).
type DirectorPlanStatus string

const (
	StatusPending  DirectorPlanStatus = "pending"
	StatusPlanned  DirectorPlanStatus = "planned"
	StatusPrompted DirectorPlanStatus = "prompted"
	StatusDone     DirectorPlanStatus = "done"
)

// directorPlanStatusRank gives the monotonic ordering for status
// transitions; the Stage Runner never moves a status backwards.
var directorPlanStatusRank = map[DirectorPlanStatus]int{
	StatusPending:  0,
	StatusPlanned:  1,
	StatusPrompted: 2,
	StatusDone:     3,
}

// Advances reports whether moving from s to next is a legal (non-backwards)
// transition.
func (s DirectorPlanStatus) Advances(next DirectorPlanStatus) bool {
	return directorPlanStatusRank[next] >= directorPlanStatusRank[s]
}

// DirectorPlanEntry is a Stage 5 output row. segment_id is the second
// column and status is last — this column layout is contractual
// (spec.md §6) and must not change without a migration.
type DirectorPlanEntry struct {
	SceneID           string
	SegmentID         int
	VisualMoment      string
	SRTStartIndex     int
	SRTEndIndex       int
	PlannedDurationMS int64
	CharactersUsed    []string
	LocationUsed      string
	Status            DirectorPlanStatus
}

func (d DirectorPlanEntry) row() []string {
	return []string{
		d.SceneID,
		itoa(d.SegmentID),
		d.VisualMoment,
		itoa(d.SRTStartIndex),
		itoa(d.SRTEndIndex),
		itoa64(d.PlannedDurationMS),
		joinList(d.CharactersUsed),
		d.LocationUsed,
		string(d.Status),
	}
}

func directorPlanEntryFromRow(r []string) DirectorPlanEntry {
	status := DirectorPlanStatus(cell(r, 8))
	if status == "" {
		status = StatusPending
	}
	return DirectorPlanEntry{
		SceneID:           cell(r, 0),
		SegmentID:         atoi(cell(r, 1)),
		VisualMoment:      cell(r, 2),
		SRTStartIndex:     atoi(cell(r, 3)),
		SRTEndIndex:       atoi(cell(r, 4)),
		PlannedDurationMS: atoi64(cell(r, 5)),
		CharactersUsed:    splitList(cell(r, 6)),
		LocationUsed:      cell(r, 7),
		Status:            status,
	}
}

// ScenePlan is the Stage 6 auxiliary per-scene detail, keyed by SceneID.
type ScenePlan struct {
	SceneID     string
	Camera      string
	Lighting    string
	Composition string
}

func (p ScenePlan) row() []string {
	return []string{p.SceneID, p.Camera, p.Lighting, p.Composition}
}

func scenePlanFromRow(r []string) ScenePlan {
	return ScenePlan{
		SceneID:     cell(r, 0),
		Camera:      cell(r, 1),
		Lighting:    cell(r, 2),
		Composition: cell(r, 3),
	}
}

// Scene is the final output row (spec.md §3 "Scene"). segment_id is the
// LAST column — appended so older workbooks stay readable (spec.md §6).
type Scene struct {
	SceneID           string
	SRTStartMS        int64
	SRTEndMS          int64
	PlannedDurationMS int64
	SRTText           string
	ImgPrompt         string
	VideoPrompt       string
	CharactersUsed    []string
	LocationUsed      string
	ReferenceFiles    []string
	StatusImg         string
	StatusVid         string
	VideoNote         string
	SegmentID         int
}

func (s Scene) row() []string {
	return []string{
		s.SceneID,
		itoa64(s.SRTStartMS),
		itoa64(s.SRTEndMS),
		itoa64(s.PlannedDurationMS),
		s.SRTText,
		s.ImgPrompt,
		s.VideoPrompt,
		joinList(s.CharactersUsed),
		s.LocationUsed,
		joinList(s.ReferenceFiles),
		s.StatusImg,
		s.StatusVid,
		s.VideoNote,
		itoa(s.SegmentID),
	}
}

func sceneFromRow(r []string) Scene {
	return Scene{
		SceneID:           cell(r, 0),
		SRTStartMS:        atoi64(cell(r, 1)),
		SRTEndMS:          atoi64(cell(r, 2)),
		PlannedDurationMS: atoi64(cell(r, 3)),
		SRTText:           cell(r, 4),
		ImgPrompt:         cell(r, 5),
		VideoPrompt:       cell(r, 6),
		CharactersUsed:    splitList(cell(r, 7)),
		LocationUsed:      cell(r, 8),
		ReferenceFiles:    splitList(cell(r, 9)),
		StatusImg:         cell(r, 10),
		StatusVid:         cell(r, 11),
		VideoNote:         cell(r, 12),
		SegmentID:         atoi(cell(r, 13)),
	}
}

// --- cell decoding helpers ---
//
// Every accessor below treats a short row as trailing-default, never as
// absence of the key (spec.md §4.2, §9 "duck-typed dict access").

func cell(r []string, i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return r[i]
}

func joinList(items []string) string {
	return strings.Join(items, "|")
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
