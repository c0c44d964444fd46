// Package progress implements the Progress/Log component (spec.md C11):
// an append-only JSONL event stream for external observers, plus a
// colorized terminal reporter for interactive runs.
package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/scenepipe/scenepipe/pkg/pipeline"
)

// Event is one line of the JSONL stream.
type Event struct {
	Time    time.Time `json:"time"`
	Stage   string    `json:"stage"`
	Kind    string    `json:"kind"` // "skipped", "started", "completed", "failed"
	Error   string    `json:"error,omitempty"`
	Project string    `json:"project,omitempty"`
}

// JSONLReporter appends one Event per stage transition to a file, flushing
// and syncing after every write so a tailing process never reads a torn
// line (spec.md C11 "readable by external observers").
type JSONLReporter struct {
	mu      sync.Mutex
	f       *os.File
	project string
}

// NewJSONLReporter opens (creating if absent) the progress log at path.
func NewJSONLReporter(path, project string) (*JSONLReporter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("progress: open %s: %w", path, err)
	}
	return &JSONLReporter{f: f, project: project}, nil
}

// Close releases the underlying file handle.
func (r *JSONLReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}

func (r *JSONLReporter) write(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.Project = r.project
	line, err := json.Marshal(ev)
	if err != nil {
		return
	}
	line = append(line, '\n')
	if _, err := r.f.Write(line); err != nil {
		return
	}
	_ = r.f.Sync()
}

func (r *JSONLReporter) StageSkipped(stage string) {
	r.write(Event{Time: r.now(), Stage: stage, Kind: "skipped"})
}

func (r *JSONLReporter) StageStarted(stage string) {
	r.write(Event{Time: r.now(), Stage: stage, Kind: "started"})
}

func (r *JSONLReporter) StageCompleted(stage string) {
	r.write(Event{Time: r.now(), Stage: stage, Kind: "completed"})
}

func (r *JSONLReporter) StageFailed(stage string, err error) {
	r.write(Event{Time: r.now(), Stage: stage, Kind: "failed", Error: err.Error()})
}

func (r *JSONLReporter) now() time.Time { return time.Now() }

var _ pipeline.Reporter = (*JSONLReporter)(nil)

// TerminalReporter prints one colorized line per stage transition:
// green for completed, red for failed, dim gray for skipped. Colorizing
// is disabled automatically when out is not a terminal, so redirected
// output stays plain text.
type TerminalReporter struct {
	out      io.Writer
	colorize bool
}

// NewTerminalReporter builds a TerminalReporter writing to out, detecting
// terminal-ness via isatty when out is an *os.File.
func NewTerminalReporter(out io.Writer) *TerminalReporter {
	colorize := false
	if f, ok := out.(*os.File); ok {
		colorize = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &TerminalReporter{out: out, colorize: colorize}
}

func (t *TerminalReporter) StageSkipped(stage string) {
	t.printf(color.FgHiBlack, "skip", stage, "")
}

func (t *TerminalReporter) StageStarted(stage string) {
	fmt.Fprintf(t.out, "-> %s\n", stage)
}

func (t *TerminalReporter) StageCompleted(stage string) {
	t.printf(color.FgGreen, "done", stage, "")
}

func (t *TerminalReporter) StageFailed(stage string, err error) {
	t.printf(color.FgRed, "fail", stage, err.Error())
}

func (t *TerminalReporter) printf(c color.Attribute, verb, stage, detail string) {
	line := fmt.Sprintf("[%s] %s", verb, stage)
	if detail != "" {
		line += ": " + detail
	}
	if t.colorize {
		color.New(c).Fprintln(t.out, line)
		return
	}
	fmt.Fprintln(t.out, line)
}

var _ pipeline.Reporter = (*TerminalReporter)(nil)

// MultiReporter fans every event out to each of its children, used to run
// the JSONL stream and the terminal reporter side by side.
type MultiReporter []pipeline.Reporter

func (m MultiReporter) StageSkipped(stage string) {
	for _, r := range m {
		r.StageSkipped(stage)
	}
}

func (m MultiReporter) StageStarted(stage string) {
	for _, r := range m {
		r.StageStarted(stage)
	}
}

func (m MultiReporter) StageCompleted(stage string) {
	for _, r := range m {
		r.StageCompleted(stage)
	}
}

func (m MultiReporter) StageFailed(stage string, err error) {
	for _, r := range m {
		r.StageFailed(stage, err)
	}
}

var _ pipeline.Reporter = MultiReporter(nil)
