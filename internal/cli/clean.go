package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newCleanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the output of every stylesheet",
		Long: `Clean removes the output path of every stylesheet found under the
source roots, as if each source had been deleted. Missing outputs are
ignored. Other files under the output roots are left alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClean(cmd.Context(), cmd)
		},
	}

	return cmd
}

func runClean(ctx context.Context, cmd *cobra.Command) error {
	s, err := newSession(ctx, sessionOptions{})
	if err != nil {
		return err
	}

	removed, err := s.dispatcher.Clean(ctx)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d output(s)\n", removed)

	return err
}
