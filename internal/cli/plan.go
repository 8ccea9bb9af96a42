package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/stylewatch/internal/plan"
)

type planOptions struct {
	// Output format: "text" (default), "json", "yaml".
	format string
}

func newPlanCommand() *cobra.Command {
	opts := &planOptions{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Preview what a build would do",
		Long: `Plan lists every stylesheet a build would transform, its output path,
the file that would be handed to the tool and whether the output is new,
stale or fresh. Nothing is transformed and no directory is created.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlan(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.format, "format", plan.FormatText, "output format: text, json, yaml")

	return cmd
}

func runPlan(ctx context.Context, cmd *cobra.Command, opts *planOptions) error {
	switch opts.format {
	case plan.FormatText, plan.FormatJSON, plan.FormatYAML:
	default:
		return &ExitError{Code: 2, Err: fmt.Errorf("unsupported format %q: must be one of text, json, yaml", opts.format)}
	}

	s, err := newSession(ctx, sessionOptions{})
	if err != nil {
		return err
	}

	decisions, err := s.dispatcher.Plan()
	if err != nil {
		return err
	}

	return plan.Write(cmd.OutOrStdout(), plan.Build(decisions), opts.format)
}
