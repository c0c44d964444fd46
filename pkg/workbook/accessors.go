package workbook

import "github.com/scenepipe/scenepipe/pkg/coverage"

// This file provides the typed, per-entity Read/Write pairs on top of the
// generic readRows/writeRows primitives in workbook.go, plus the stage
// completeness predicates. Stages 1 and 2 count as done when their sheet
// is non-empty; Stages 3 and 4 also accept a meta-sheet marker for an
// empty result; Stage 5 is done when its entries partition [1..n]; Stage
// 7 is done when every director-plan scene_id has a scene row.

// ReadStoryAnalysis returns the Stage 1 result, or the zero value if the
// stage has not run yet.
func (w *Workbook) ReadStoryAnalysis() (StoryAnalysis, error) {
	rows, err := readRows(w, SheetStoryAnalysis)
	if err != nil {
		return StoryAnalysis{}, err
	}
	if len(rows) == 0 {
		return StoryAnalysis{}, nil
	}
	return storyAnalysisFromRow(rows[0]), nil
}

// WriteStoryAnalysis persists the Stage 1 result.
func (w *Workbook) WriteStoryAnalysis(sa StoryAnalysis) error {
	return writeRows(w, SheetStoryAnalysis, [][]string{sa.row()})
}

// ReadSegments returns every Stage 2 segment, in file order.
func (w *Workbook) ReadSegments() ([]Segment, error) {
	rows, err := readRows(w, SheetSegments)
	if err != nil {
		return nil, err
	}
	out := make([]Segment, 0, len(rows))
	for _, r := range rows {
		out = append(out, segmentFromRow(r))
	}
	return out, nil
}

// WriteSegments replaces the entire segments sheet.
func (w *Workbook) WriteSegments(segments []Segment) error {
	rows := make([][]string, 0, len(segments))
	for _, s := range segments {
		rows = append(rows, s.row())
	}
	return writeRows(w, SheetSegments, rows)
}

// ReadCharacters returns every Stage 3 character.
func (w *Workbook) ReadCharacters() ([]Character, error) {
	rows, err := readRows(w, SheetCharacters)
	if err != nil {
		return nil, err
	}
	out := make([]Character, 0, len(rows))
	for _, r := range rows {
		out = append(out, characterFromRow(r))
	}
	return out, nil
}

// WriteCharacters replaces the entire characters sheet.
func (w *Workbook) WriteCharacters(chars []Character) error {
	rows := make([][]string, 0, len(chars))
	for _, c := range chars {
		rows = append(rows, c.row())
	}
	return writeRows(w, SheetCharacters, rows)
}

// ReadLocations returns every Stage 4 location.
func (w *Workbook) ReadLocations() ([]Location, error) {
	rows, err := readRows(w, SheetLocations)
	if err != nil {
		return nil, err
	}
	out := make([]Location, 0, len(rows))
	for _, r := range rows {
		out = append(out, locationFromRow(r))
	}
	return out, nil
}

// WriteLocations replaces the entire locations sheet.
func (w *Workbook) WriteLocations(locs []Location) error {
	rows := make([][]string, 0, len(locs))
	for _, l := range locs {
		rows = append(rows, l.row())
	}
	return writeRows(w, SheetLocations, rows)
}

// ReadDirectorPlan returns every Stage 5 entry, in file order.
func (w *Workbook) ReadDirectorPlan() ([]DirectorPlanEntry, error) {
	rows, err := readRows(w, SheetDirectorPlan)
	if err != nil {
		return nil, err
	}
	out := make([]DirectorPlanEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, directorPlanEntryFromRow(r))
	}
	return out, nil
}

// WriteDirectorPlan replaces the entire director_plan sheet.
func (w *Workbook) WriteDirectorPlan(entries []DirectorPlanEntry) error {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, e.row())
	}
	return writeRows(w, SheetDirectorPlan, rows)
}

// ReadScenePlanning returns every Stage 6 auxiliary plan row.
func (w *Workbook) ReadScenePlanning() ([]ScenePlan, error) {
	rows, err := readRows(w, SheetScenePlanning)
	if err != nil {
		return nil, err
	}
	out := make([]ScenePlan, 0, len(rows))
	for _, r := range rows {
		out = append(out, scenePlanFromRow(r))
	}
	return out, nil
}

// WriteScenePlanning replaces the entire scene_planning sheet.
func (w *Workbook) WriteScenePlanning(plans []ScenePlan) error {
	rows := make([][]string, 0, len(plans))
	for _, p := range plans {
		rows = append(rows, p.row())
	}
	return writeRows(w, SheetScenePlanning, rows)
}

// ReadScenes returns every Stage 7 output row.
func (w *Workbook) ReadScenes() ([]Scene, error) {
	rows, err := readRows(w, SheetScenes)
	if err != nil {
		return nil, err
	}
	out := make([]Scene, 0, len(rows))
	for _, r := range rows {
		out = append(out, sceneFromRow(r))
	}
	return out, nil
}

// WriteScenes replaces the entire scenes sheet.
func (w *Workbook) WriteScenes(scenes []Scene) error {
	rows := make([][]string, 0, len(scenes))
	for _, s := range scenes {
		rows = append(rows, s.row())
	}
	return writeRows(w, SheetScenes, rows)
}

// SchemaVersionOf returns the schema_version recorded in the meta sheet,
// or 0 if the workbook predates that field.
func (w *Workbook) SchemaVersionOf() (int, error) {
	rows, err := readRows(w, SheetMeta)
	if err != nil {
		return 0, err
	}
	for _, r := range rows {
		if cell(r, 0) == "schema_version" {
			return atoi(cell(r, 1)), nil
		}
	}
	return 0, nil
}

// Stage completeness predicates (spec.md §5 "a stage is complete iff its
// sheet is non-empty / satisfies its completeness predicate").

// StoryAnalysisDone reports whether Stage 1 has already run.
func (w *Workbook) StoryAnalysisDone() (bool, error) {
	sa, err := w.ReadStoryAnalysis()
	if err != nil {
		return false, err
	}
	return !sa.IsEmpty(), nil
}

// SegmentsDone reports whether Stage 2 has already run.
func (w *Workbook) SegmentsDone() (bool, error) {
	segs, err := w.ReadSegments()
	if err != nil {
		return false, err
	}
	return len(segs) > 0, nil
}

// CharactersDone reports whether Stage 3 has already run. A Stage 3
// result may legitimately be empty (no characters in the transcript), so
// non-emptiness alone cannot distinguish "ran, found none" from "never
// ran" — the meta sheet's explicit marker resolves that ambiguity.
func (w *Workbook) CharactersDone() (bool, error) {
	cs, err := w.ReadCharacters()
	if err != nil {
		return false, err
	}
	if len(cs) > 0 {
		return true, nil
	}
	return w.stageMarked(markerCharacters)
}

// LocationsDone reports whether Stage 4 has already run (see
// CharactersDone for why an explicit marker is needed for the empty
// case).
func (w *Workbook) LocationsDone() (bool, error) {
	ls, err := w.ReadLocations()
	if err != nil {
		return false, err
	}
	if len(ls) > 0 {
		return true, nil
	}
	return w.stageMarked(markerLocations)
}

// DirectorPlanDone reports whether Stage 5's entries exactly partition
// [1..n], per its own completeness predicate (spec.md §4.5.5). Status is
// not part of this check: every entry is created with status "pending"
// (see parseDirectorPlan and gapFill), so "all pending" is the normal
// state immediately after Stage 5 runs, not a sign it needs to re-run.
func (w *Workbook) DirectorPlanDone(n int) (bool, error) {
	entries, err := w.ReadDirectorPlan()
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return false, nil
	}
	ranges := make([]coverage.Range, len(entries))
	for i, e := range entries {
		ranges[i] = coverage.Range{Start: e.SRTStartIndex, End: e.SRTEndIndex}
	}
	return coverage.Check(ranges, n).Satisfied(), nil
}

// ScenesDone reports whether Stage 7 has produced a row for every scene
// in the director plan.
func (w *Workbook) ScenesDone() (bool, error) {
	entries, err := w.ReadDirectorPlan()
	if err != nil {
		return false, err
	}
	scenes, err := w.ReadScenes()
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return false, nil
	}
	have := make(map[string]bool, len(scenes))
	for _, s := range scenes {
		have[s.SceneID] = true
	}
	for _, e := range entries {
		if !have[e.SceneID] {
			return false, nil
		}
	}
	return true, nil
}
