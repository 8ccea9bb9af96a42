// Package cli implements the cobra command tree for stylewatch.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/stylewatch/internal/config"
	"github.com/hupe1980/stylewatch/internal/logging"
)

// ExitError wraps an error with a specific process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}

	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Execute builds the command tree, runs it, and returns the exit code.
func Execute() int {
	cmd := NewRootCommand()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}

		return 1
	}

	return 0
}

// NewRootCommand constructs the top-level cobra.Command with all
// subcommands attached.
func NewRootCommand() *cobra.Command {
	var (
		cfgFile string
		envFile string
	)

	cmd := &cobra.Command{
		Use:   "stylewatch",
		Short: "Incrementally transform stylesheets with an external tool",
		Long: `stylewatch keeps the compiled stylesheets of a project in sync with
their sources. Every stylesheet under the internal and external source
roots is handed to an external transformation tool (myth by default)
and written to the mirrored path under the matching output root.

A stylesheet is only transformed again when its source is newer than
the existing output; otherwise the output is reused as the input of the
next pass. In watch mode created, updated and deleted sources are
propagated as they happen.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd, cfgFile, envFile)
			if err != nil {
				return &ExitError{Code: 2, Err: err}
			}

			logger := logging.Setup(cfg)

			ctx := cmd.Context()
			ctx = config.NewContext(ctx, cfg)
			ctx = logging.NewContext(ctx, logger)
			cmd.SetContext(ctx)

			logger.Debug("configuration loaded",
				slog.String("logLevel", cfg.LogLevel),
				slog.String("logFormat", cfg.LogFormat),
				slog.String("configFile", cfg.ConfigFile),
				slog.String("baseDir", cfg.BaseDir),
				slog.String("tool", cfg.Tool),
			)

			return nil
		},
	}

	// Global persistent flags.
	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: .stylewatch.yaml)")
	pf.StringVar(&envFile, "env-file", "", "dotenv file with STYLEWATCH_ variables (default: .env if present)")
	pf.String("log-level", config.LogLevelInfo, "log level: debug, info, warn, error")
	pf.String("log-format", config.LogFormatText, "log format: text, json")
	pf.Bool("no-color", false, "disable colored output")
	pf.BoolP("quiet", "q", false, "suppress non-essential output")

	// Build layout flags shared by all subcommands.
	pf.String("base-dir", ".", "project directory relative roots are resolved against")
	pf.String("internal-source", config.DefaultInternalSource, "internal stylesheet source root")
	pf.String("internal-output", config.DefaultInternalOutput, "internal stylesheet output root")
	pf.String("external-source", config.DefaultExternalSource, "external stylesheet source root")
	pf.String("external-output", config.DefaultExternalOutput, "external stylesheet output root")
	pf.String("tool", config.DefaultTool, "transformation tool executable")
	pf.StringArray("tool-args", nil, "argument passed to the tool before the input and output paths (repeatable)")
	pf.String("tool-version", config.DefaultToolVersion, "version or constraint the tool must satisfy")
	pf.String("extension", config.DefaultExtension, "stylesheet file extension")

	// Flag parsing errors return exit code 2.
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: 2, Err: err}
	})

	// Register subcommands.
	cmd.AddCommand(
		newBuildCommand(),
		newWatchCommand(),
		newPlanCommand(),
		newCleanCommand(),
		newDoctorCommand(),
		newConfigCommand(),
		newVersionCommand(),
		newCompletionCommand(),
	)

	return cmd
}
