package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newDoctorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the transformation tool and source roots",
		Long: `Doctor runs the tool with --version and checks the reported version
against --tool-version, then lists which source roots exist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd.Context(), cmd)
		},
	}

	return cmd
}

func runDoctor(ctx context.Context, cmd *cobra.Command) error {
	s, err := newSession(ctx, sessionOptions{})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()

	v, err := s.tool.CheckVersion(ctx, s.cfg.ToolVersion)
	if err != nil {
		fmt.Fprintf(w, "tool:    %s (FAIL)\n", s.tool.Name())
		return err
	}

	fmt.Fprintf(w, "tool:    %s %s (satisfies %s)\n", s.tool.Name(), v, s.cfg.ToolVersion)

	for _, src := range s.dispatcher.Mapper().Sources() {
		status := "missing"
		if dirExists(src.Source) {
			status = "ok"
		}

		fmt.Fprintf(w, "%-8s %s -> %s (%s)\n", src.Root.String()+":", src.Source, src.Output, status)
	}

	return nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
