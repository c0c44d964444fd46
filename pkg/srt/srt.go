// Package srt parses subtitle (SRT) files into an indexed, immutable
// sequence of timed text entries.
package srt

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInput is returned when an SRT file is malformed: indices are
// not sequential, a timestamp fails to parse, or the file is empty.
var ErrInvalidInput = errors.New("srt: invalid input")

// Entry is a single timed subtitle line. Entries are immutable once
// parsed and are never mutated by later pipeline stages.
type Entry struct {
	// Index is the 1-based, dense position of this entry in the file.
	Index int
	// Start and End are the entry's timecodes, start <= end.
	Start time.Duration
	End   time.Duration
	// Text is the (possibly multi-line) subtitle body, newlines joined
	// with a single space.
	Text string
}

// StartMS returns Start in milliseconds, the unit the workbook stores.
func (e Entry) StartMS() int64 { return e.Start.Milliseconds() }

// EndMS returns End in milliseconds.
func (e Entry) EndMS() int64 { return e.End.Milliseconds() }

// Document is a fully parsed, validated SRT file.
type Document struct {
	Entries []Entry
}

// Len returns N, the number of entries (and the size of the index space
// [1..N] that every downstream segment/scene must cover).
func (d Document) Len() int { return len(d.Entries) }

// Slice returns the entries whose index lies in [startIndex, endIndex]
// inclusive (1-based). Panics if the range is outside [1, Len()] — callers
// are expected to have already validated coverage.
func (d Document) Slice(startIndex, endIndex int) []Entry {
	if startIndex < 1 || endIndex > d.Len() || startIndex > endIndex {
		panic(fmt.Sprintf("srt: slice [%d,%d] out of range for document of length %d", startIndex, endIndex, d.Len()))
	}
	return d.Entries[startIndex-1 : endIndex]
}

// Text concatenates the Text field of every entry in [startIndex, endIndex]
// inclusive, separated by a single space. This is the srt_text value
// synthesized onto Scene rows.
func (d Document) Text(startIndex, endIndex int) string {
	entries := d.Slice(startIndex, endIndex)
	out := make([]byte, 0, 64*len(entries))
	for i, e := range entries {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, e.Text...)
	}
	return string(out)
}

// FullText concatenates every entry's text, used as the Stage 1 prompt
// input.
func (d Document) FullText() string {
	if len(d.Entries) == 0 {
		return ""
	}
	return d.Text(1, d.Len())
}
