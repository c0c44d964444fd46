package srt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// arrow separates the start and end timestamps on a SubRip timing line:
// 00:00:20,000 --> 00:00:24,400
const arrow = "-->"

// ParseFile reads and validates the SRT file at path.
func ParseFile(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("srt: open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads an SRT stream and returns a validated Document.
//
// Invariants enforced: indices form [1..N] without gaps, start <= end per
// entry, and entries are ordered by start time. Any violation is reported
// as ErrInvalidInput.
func Parse(r io.Reader) (Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var entries []Entry
	expected := 1

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		idx, err := strconv.Atoi(strings.TrimPrefix(line, string(rune(0xFEFF))))
		if err != nil {
			return Document{}, fmt.Errorf("%w: expected entry index, got %q", ErrInvalidInput, line)
		}
		if idx != expected {
			return Document{}, fmt.Errorf("%w: non-sequential index: expected %d, got %d", ErrInvalidInput, expected, idx)
		}

		if !scanner.Scan() {
			return Document{}, fmt.Errorf("%w: entry %d missing timestamp line", ErrInvalidInput, idx)
		}
		start, end, err := parseTimestampLine(strings.TrimSpace(scanner.Text()))
		if err != nil {
			return Document{}, fmt.Errorf("%w: entry %d: %w", ErrInvalidInput, idx, err)
		}
		if start > end {
			return Document{}, fmt.Errorf("%w: entry %d: start %v after end %v", ErrInvalidInput, idx, start, end)
		}

		var textLines []string
		for scanner.Scan() {
			textLine := scanner.Text()
			if strings.TrimSpace(textLine) == "" {
				break
			}
			textLines = append(textLines, strings.TrimSpace(textLine))
		}

		entries = append(entries, Entry{
			Index: idx,
			Start: start,
			End:   end,
			Text:  strings.Join(textLines, " "),
		})
		expected++
	}
	if err := scanner.Err(); err != nil {
		return Document{}, fmt.Errorf("srt: scan: %w", err)
	}
	if len(entries) == 0 {
		return Document{}, fmt.Errorf("%w: no entries found", ErrInvalidInput)
	}

	for i := 1; i < len(entries); i++ {
		if entries[i].Start < entries[i-1].Start {
			return Document{}, fmt.Errorf("%w: entry %d starts before entry %d", ErrInvalidInput, entries[i].Index, entries[i-1].Index)
		}
	}

	return Document{Entries: entries}, nil
}

func parseTimestampLine(line string) (start, end time.Duration, err error) {
	parts := strings.SplitN(line, arrow, 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed timestamp line %q", line)
	}
	start, err = parseTimestamp(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	// Trailing cue settings (e.g. "X1:... Y1:...") are not part of the
	// data model and are discarded.
	endField := strings.Fields(strings.TrimSpace(parts[1]))
	if len(endField) == 0 {
		return 0, 0, fmt.Errorf("malformed timestamp line %q", line)
	}
	end, err = parseTimestamp(endField[0])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// parseTimestamp parses "HH:MM:SS,mmm" (or "HH:MM:SS.mmm").
func parseTimestamp(s string) (time.Duration, error) {
	s = strings.ReplaceAll(s, ".", ",")
	hms := strings.SplitN(s, ",", 2)
	if len(hms) != 2 {
		return 0, fmt.Errorf("malformed timestamp %q", s)
	}
	millis, err := strconv.Atoi(hms[1])
	if err != nil {
		return 0, fmt.Errorf("malformed milliseconds in %q: %w", s, err)
	}
	clock := strings.Split(hms[0], ":")
	if len(clock) != 3 {
		return 0, fmt.Errorf("malformed clock in %q", s)
	}
	h, err := strconv.Atoi(clock[0])
	if err != nil {
		return 0, fmt.Errorf("malformed hours in %q: %w", s, err)
	}
	m, err := strconv.Atoi(clock[1])
	if err != nil {
		return 0, fmt.Errorf("malformed minutes in %q: %w", s, err)
	}
	sec, err := strconv.Atoi(clock[2])
	if err != nil {
		return 0, fmt.Errorf("malformed seconds in %q: %w", s, err)
	}
	total := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second + time.Duration(millis)*time.Millisecond
	return total, nil
}

// Format renders a Document back to SRT wire format. Round-tripping
// ParseFile -> Format -> Parse must yield an identical Document.
func Format(d Document) string {
	var b strings.Builder
	for _, e := range d.Entries {
		fmt.Fprintf(&b, "%d\n", e.Index)
		fmt.Fprintf(&b, "%s %s %s\n", formatTimestamp(e.Start), arrow, formatTimestamp(e.End))
		fmt.Fprintf(&b, "%s\n\n", e.Text)
	}
	return b.String()
}

func formatTimestamp(d time.Duration) string {
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	ms := d / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
