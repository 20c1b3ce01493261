package presentation

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineKind classifies one line of a diff.
type LineKind int

const (
	LineUnchanged LineKind = iota
	LineAdded
	LineRemoved
)

// DiffLine is one line of a line-level diff, without its newline.
type DiffLine struct {
	Kind LineKind
	Text string
}

// Diff compares before and after line by line.
func Diff(before, after string) []DiffLine {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out []DiffLine
	for _, d := range diffs {
		kind := LineUnchanged
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			kind = LineAdded
		case diffmatchpatch.DiffDelete:
			kind = LineRemoved
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out = append(out, DiffLine{Kind: kind, Text: strings.TrimSuffix(line, "\n")})
		}
	}
	return out
}

// Changed reports whether the diff holds an added or removed line.
func Changed(lines []DiffLine) bool {
	for _, l := range lines {
		if l.Kind != LineUnchanged {
			return true
		}
	}
	return false
}

// RenderDiff renders the changed lines of a diff with "+ " and "- " markers.
// Unchanged lines are kept only when context is true.
func RenderDiff(lines []DiffLine, context bool) string {
	var sb strings.Builder
	for _, l := range lines {
		switch l.Kind {
		case LineAdded:
			sb.WriteString(AddedStyle.Render("+ " + l.Text))
		case LineRemoved:
			sb.WriteString(RemovedStyle.Render("- " + l.Text))
		default:
			if !context {
				continue
			}
			sb.WriteString(MutedStyle.Render("  " + l.Text))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
