// Package plan reports what a build would do without running the external
// processor.
package plan

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	sigsyaml "sigs.k8s.io/yaml"

	"github.com/hupe1980/stylewatch/internal/dispatch"
)

// Supported output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Entry is one stylesheet in the plan.
type Entry struct {
	Root        string         `json:"root"`
	Source      string         `json:"source"`
	Destination string         `json:"destination"`
	Input       string         `json:"input"`
	State       dispatch.State `json:"state"`
}

// Summary counts entries by state.
type Summary struct {
	Total int `json:"total"`
	New   int `json:"new"`
	Stale int `json:"stale"`
	Fresh int `json:"fresh"`
}

// Result is the complete plan.
type Result struct {
	Entries []Entry `json:"entries"`
	Summary Summary `json:"summary"`
}

// Build converts dispatcher decisions into a plan.
func Build(decisions []dispatch.Decision) *Result {
	res := &Result{Entries: make([]Entry, 0, len(decisions))}

	for _, d := range decisions {
		res.Entries = append(res.Entries, Entry{
			Root:        d.Root.String(),
			Source:      d.Source,
			Destination: d.Destination,
			Input:       d.Input,
			State:       d.State,
		})

		switch d.State {
		case dispatch.StateNew:
			res.Summary.New++
		case dispatch.StateStale:
			res.Summary.Stale++
		case dispatch.StateFresh:
			res.Summary.Fresh++
		}
	}

	res.Summary.Total = len(res.Entries)

	return res
}

// Write renders res in the given format.
func Write(w io.Writer, res *Result, format string) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, res)
	case FormatYAML:
		return WriteYAML(w, res)
	case FormatText, "":
		WriteText(w, res)
		return nil
	default:
		return fmt.Errorf("unsupported format %q: must be one of text, json, yaml", format)
	}
}

// WriteText renders res as a human-readable table.
func WriteText(w io.Writer, res *Result) {
	fmt.Fprintln(w, "Plan")
	fmt.Fprintln(w, strings.Repeat("=", 60))

	if len(res.Entries) == 0 {
		fmt.Fprintln(w, "\nNo stylesheets found.")
	}

	var currentRoot string

	for _, e := range res.Entries {
		if e.Root != currentRoot {
			currentRoot = e.Root
			fmt.Fprintf(w, "\n%s:\n", currentRoot)
			fmt.Fprintln(w, strings.Repeat("-", 40))
		}

		fmt.Fprintf(w, "  %-6s %s -> %s\n", e.State, e.Source, e.Destination)

		if e.Input != e.Source {
			fmt.Fprintf(w, "         input: %s\n", filepath.Base(e.Input)+" (destination)")
		}
	}

	fmt.Fprintf(w, "\nSummary: %d stylesheets (%d new, %d stale, %d fresh)\n",
		res.Summary.Total, res.Summary.New, res.Summary.Stale, res.Summary.Fresh)
}

// WriteJSON renders res as indented JSON.
func WriteJSON(w io.Writer, res *Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling plan: %w", err)
	}

	_, err = fmt.Fprintln(w, string(data))

	return err
}

// WriteYAML renders res as YAML using the JSON field names.
func WriteYAML(w io.Writer, res *Result) error {
	data, err := sigsyaml.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshaling plan: %w", err)
	}

	_, err = w.Write(data)

	return err
}
