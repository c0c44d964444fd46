// Package workbook provides typed, checkpointed persistence of every
// pipeline artifact into a single .xlsx file, with atomic whole-file
// writes after each sheet update (spec.md §4.2).
package workbook

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"
)

var allSheets = []string{
	SheetStoryAnalysis,
	SheetSegments,
	SheetCharacters,
	SheetLocations,
	SheetDirectorPlan,
	SheetScenePlanning,
	SheetScenes,
	SheetMeta,
}

// Workbook is the single source of truth for a project's pipeline state.
// All in-memory entities are rebuilt from it on restart; only the Stage
// Runner is expected to call its Write* methods, and only between stages
// (spec.md §5 "Shared resources").
type Workbook struct {
	mu   sync.Mutex
	path string
	f    *excelize.File
}

// Create makes a brand-new, empty workbook at path with every contractual
// sheet present (even if empty) and writes the meta/schema_version row.
func Create(path string) (*Workbook, error) {
	f := excelize.NewFile()
	for _, name := range allSheets {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("workbook: create sheet %s: %w", name, err)
		}
	}
	// excelize always starts a file with a default "Sheet1"; drop it once
	// our named sheets exist.
	_ = f.DeleteSheet("Sheet1")

	wb := &Workbook{path: path, f: f}
	if err := wb.writeMetaLocked(); err != nil {
		return nil, err
	}
	if err := wb.saveLocked(); err != nil {
		return nil, err
	}
	return wb, nil
}

// Load opens an existing workbook, creating any contractual sheet that is
// missing (schema evolution: readers tolerate a workbook written by an
// older version that predates a new sheet).
func Load(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("workbook: open %s: %w", path, err)
	}
	wb := &Workbook{path: path, f: f}

	changed := false
	for _, name := range allSheets {
		if idx, _ := f.GetSheetIndex(name); idx == -1 {
			if _, err := f.NewSheet(name); err != nil {
				return nil, fmt.Errorf("workbook: add missing sheet %s: %w", name, err)
			}
			changed = true
		}
	}
	if changed {
		if err := wb.saveLocked(); err != nil {
			return nil, err
		}
	}
	return wb, nil
}

// LoadOrCreate opens path if it exists, else creates a fresh workbook
// there.
func LoadOrCreate(path string) (*Workbook, error) {
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("workbook: mkdir: %w", err)
	}
	return Create(path)
}

// Close releases the underlying file handle.
func (w *Workbook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

// Path returns the workbook's backing file path.
func (w *Workbook) Path() string { return w.path }

// saveLocked writes the entire workbook to a temp file and renames it
// into place, so a crash mid-write never corrupts the last-good workbook
// (spec.md §5 "Cancellation and timeouts"). Caller must hold w.mu.
func (w *Workbook) saveLocked() error {
	dir := filepath.Dir(w.path)
	tmp, err := os.CreateTemp(dir, ".workbook-*.tmp")
	if err != nil {
		return &SaveError{Path: w.path, Err: err}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := w.f.WriteTo(tmp); err != nil {
		tmp.Close()
		return &SaveError{Path: w.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &SaveError{Path: w.path, Err: err}
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		return &SaveError{Path: w.path, Err: err}
	}
	return nil
}

func (w *Workbook) writeMetaLocked() error {
	return w.f.SetSheetRow(SheetMeta, "A1", &[]interface{}{"schema_version", SchemaVersion})
}

// writeRows replaces a sheet's contents wholesale (spec.md §4.2
// write_sheet: whole-sheet replacement, written atomically).
func writeRows(w *Workbook, sheet string, rows [][]string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Clear by recreating the sheet.
	idx, _ := w.f.GetSheetIndex(sheet)
	if idx != -1 {
		if err := w.f.DeleteSheet(sheet); err != nil {
			return fmt.Errorf("workbook: clear sheet %s: %w", sheet, err)
		}
	}
	if _, err := w.f.NewSheet(sheet); err != nil {
		return fmt.Errorf("workbook: recreate sheet %s: %w", sheet, err)
	}

	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("workbook: coordinates: %w", err)
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := w.f.SetSheetRow(sheet, cellRef, &values); err != nil {
			return fmt.Errorf("workbook: write row %d of %s: %w", i, sheet, err)
		}
	}

	return w.saveLocked()
}

// readRows returns every row of sheet, tolerating rows shorter or longer
// than what the current schema expects (spec.md §4.2).
func readRows(w *Workbook, sheet string) ([][]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if idx, _ := w.f.GetSheetIndex(sheet); idx == -1 {
		return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
	}
	rows, err := w.f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("workbook: read sheet %s: %w", sheet, err)
	}
	return rows, nil
}
