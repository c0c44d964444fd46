// Package coverage computes SRT index coverage for any list of
// (start, end) ranges over [1..N], and reports the gaps and overlaps the
// §3 partition invariants forbid (spec.md §4.6). Stages 2 and 5 both
// drive their repair loops from this single source of truth.
package coverage

import "sort"

// Range is an inclusive 1-based [Start, End] interval over the SRT index
// space.
type Range struct {
	Start int
	End   int
}

// Overlap records two ranges whose intervals intersect.
type Overlap struct {
	A, B Range
}

// Report is the result of checking a set of ranges against [1..N].
type Report struct {
	Gaps     []Range
	Overlaps []Overlap
}

// Satisfied reports whether ranges exactly partition [1..N]: no gaps, no
// overlaps.
func (r Report) Satisfied() bool {
	return len(r.Gaps) == 0 && len(r.Overlaps) == 0
}

// Check reports every uncovered maximal run and every overlapping pair
// within ranges, relative to the full span [1..n].
func Check(ranges []Range, n int) Report {
	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	report := Report{}

	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j].Start > sorted[i].End {
				break
			}
			report.Overlaps = append(report.Overlaps, Overlap{A: sorted[i], B: sorted[j]})
		}
	}

	covered := 0
	next := 1
	for _, r := range sorted {
		start := r.Start
		if start < next {
			start = next
		}
		if start > n {
			break
		}
		end := r.End
		if end > n {
			end = n
		}
		if start > end {
			continue
		}
		if start > next {
			report.Gaps = append(report.Gaps, Range{Start: next, End: start - 1})
		}
		if end+1 > next {
			next = end + 1
		}
		covered = next - 1
	}
	if covered < n && next <= n {
		report.Gaps = append(report.Gaps, Range{Start: next, End: n})
	}

	return report
}

// Len returns the inclusive length of a range.
func (r Range) Len() int { return r.End - r.Start + 1 }

// ImageCountFor returns the §3 target image_count for a range of this
// length: ceil(length / 10).
func ImageCountFor(length int) int {
	if length <= 0 {
		return 1
	}
	return (length + 9) / 10
}
