// Package diff renders unified diffs between a stylesheet before and after
// transformation.
package diff

import (
	"fmt"
	"io"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Result holds a computed unified diff.
type Result struct {
	Unified string
	Added   int
	Removed int
	Hunks   int
	From    string
	To      string
}

// Changed reports whether the two documents differ.
func (r *Result) Changed() bool { return r.Unified != "" }

// Summary returns a one-line description such as "+3 -1 in 2 hunk(s)".
func (r *Result) Summary() string {
	if !r.Changed() {
		return "unchanged"
	}

	return fmt.Sprintf("+%d -%d in %d hunk(s)", r.Added, r.Removed, r.Hunks)
}

// Options configures Compute.
type Options struct {
	From    string
	To      string
	Context int
}

// DefaultOptions returns labels "before"/"after" with three lines of context.
func DefaultOptions() Options {
	return Options{
		From:    "before",
		To:      "after",
		Context: 3,
	}
}

// Compute returns the unified diff from before to after.
func Compute(before, after string, opts Options) (*Result, error) {
	ud := difflib.UnifiedDiff{
		A:        splitLines(before),
		B:        splitLines(after),
		FromFile: opts.From,
		ToFile:   opts.To,
		Context:  opts.Context,
	}

	unified, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return nil, fmt.Errorf("computing diff: %w", err)
	}

	res := &Result{Unified: unified, From: opts.From, To: opts.To}

	for _, line := range strings.Split(unified, "\n") {
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
		case strings.HasPrefix(line, "@@"):
			res.Hunks++
		case strings.HasPrefix(line, "+"):
			res.Added++
		case strings.HasPrefix(line, "-"):
			res.Removed++
		}
	}

	return res, nil
}

// Write prints res to w, optionally with ANSI colors.
func Write(w io.Writer, res *Result, color bool) {
	if !res.Changed() {
		_, _ = fmt.Fprintf(w, "%s: no changes\n", res.To)
		return
	}

	for _, line := range strings.Split(strings.TrimSuffix(res.Unified, "\n"), "\n") {
		if color {
			writeColorLine(w, line)
		} else {
			_, _ = fmt.Fprintln(w, line)
		}
	}
}

func writeColorLine(w io.Writer, line string) {
	const (
		red   = "\033[31m"
		green = "\033[32m"
		cyan  = "\033[36m"
		bold  = "\033[1m"
		reset = "\033[0m"
	)

	switch {
	case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
		_, _ = fmt.Fprintf(w, "%s%s%s\n", bold, line, reset)
	case strings.HasPrefix(line, "@@"):
		_, _ = fmt.Fprintf(w, "%s%s%s\n", cyan, line, reset)
	case strings.HasPrefix(line, "-"):
		_, _ = fmt.Fprintf(w, "%s%s%s\n", red, line, reset)
	case strings.HasPrefix(line, "+"):
		_, _ = fmt.Fprintf(w, "%s%s%s\n", green, line, reset)
	default:
		_, _ = fmt.Fprintln(w, line)
	}
}

// splitLines keeps the trailing newline on each element, as difflib expects.
func splitLines(s string) []string {
	if s == "" {
		return []string{""}
	}

	return strings.SplitAfter(s, "\n")
}
