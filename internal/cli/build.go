package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/stylewatch/internal/dispatch"
)

type buildOptions struct {
	verifyTool bool
	showDiff   bool
}

func newBuildCommand() *cobra.Command {
	opts := &buildOptions{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Transform every stylesheet once",
		Long: `Build scans the internal and then the external source root and hands
every stylesheet to the transformation tool. Stylesheets whose output is
at least as recent as the source are transformed from the existing
output instead of the source.

The build stops at the first failed transformation. Outputs written
before the failure are left in place.

Exit codes:
  0  Success
  1  Transformation or I/O error
  2  Invalid arguments or configuration`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd.Context(), cmd, opts)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.verifyTool, "verify-tool", false, "check the tool version against --tool-version before building")
	f.BoolVar(&opts.showDiff, "show-diff", false, "print a unified diff of every transformed stylesheet")

	return cmd
}

func runBuild(ctx context.Context, cmd *cobra.Command, opts *buildOptions) error {
	sessOpts := sessionOptions{}
	if opts.showDiff {
		sessOpts.diffOut = cmd.OutOrStdout()
	}

	s, err := newSession(ctx, sessOpts)
	if err != nil {
		return err
	}

	if opts.verifyTool {
		if _, err := s.tool.CheckVersion(ctx, s.cfg.ToolVersion); err != nil {
			return fmt.Errorf("verifying tool: %w", err)
		}
	}

	res, err := s.dispatcher.ScanAll(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), summarize(res.Processed))

	return nil
}

// summarize renders the one-line build report.
func summarize(decisions []dispatch.Decision) string {
	var fresh, stale, created int

	for _, d := range decisions {
		switch d.State {
		case dispatch.StateFresh:
			fresh++
		case dispatch.StateStale:
			stale++
		case dispatch.StateNew:
			created++
		}
	}

	return fmt.Sprintf("transformed %d stylesheet(s) (%d new, %d stale, %d fresh)",
		len(decisions), created, stale, fresh)
}
