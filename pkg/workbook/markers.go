package workbook

// Stage completion markers recorded in the meta sheet, alongside
// schema_version. Needed only for stages whose output may legitimately
// be empty (spec.md §4.5.3/.4), where row count alone can't distinguish
// "ran, found nothing" from "never ran".
const (
	markerCharacters = "characters_done"
	markerLocations  = "locations_done"
)

// MarkStageDone records that a stage ran to completion, for stages whose
// completeness predicate can't rely on non-empty output alone.
func (w *Workbook) MarkStageDone(marker string) error {
	rows, err := readRows(w, SheetMeta)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if cell(r, 0) == marker {
			return nil // already marked
		}
	}
	rows = append(rows, []string{marker, "true"})
	return writeRows(w, SheetMeta, rows)
}

func (w *Workbook) stageMarked(marker string) (bool, error) {
	rows, err := readRows(w, SheetMeta)
	if err != nil {
		return false, err
	}
	for _, r := range rows {
		if cell(r, 0) == marker {
			return true, nil
		}
	}
	return false, nil
}
