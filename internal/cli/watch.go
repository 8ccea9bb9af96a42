package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/stylewatch/internal/config"
	"github.com/hupe1980/stylewatch/internal/logging"
	"github.com/hupe1980/stylewatch/internal/watch"
)

type watchOptions struct {
	showDiff bool
}

func newWatchCommand() *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Build, then transform stylesheets as they change",
		Long: `Watch runs a full build and then monitors both source roots. A created
or updated stylesheet is transformed again; a deleted stylesheet has its
output removed.

Events on the same file are debounced. A failed transformation is
reported and watching continues. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), cmd, opts)
		},
	}

	f := cmd.Flags()
	// Bound to the "debounce" config key by config.Load.
	f.Duration("debounce", config.DefaultDebounce, "quiet period per file before it is transformed")
	f.BoolVar(&opts.showDiff, "show-diff", false, "print a unified diff of every transformed stylesheet")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, opts *watchOptions) error {
	sessOpts := sessionOptions{}
	if opts.showDiff {
		sessOpts.diffOut = cmd.OutOrStdout()
	}

	s, err := newSession(ctx, sessOpts)
	if err != nil {
		return err
	}

	var dirs []string
	for _, src := range s.dispatcher.Mapper().Sources() {
		dirs = append(dirs, src.Source)
	}

	watchOpts := watch.Options{
		Dirs:     dirs,
		Debounce: s.cfg.Debounce,
		Logger:   logging.Component(logging.FromContext(ctx), "watch"),
		Out:      cmd.ErrOrStderr(),
	}

	scan := func(scanCtx context.Context) (int, error) {
		res, scanErr := s.dispatcher.ScanAll(scanCtx)
		if scanErr != nil {
			return 0, scanErr
		}

		return len(res.Processed), nil
	}

	err = watch.Run(ctx, watchOpts, watch.NewPipeline(s.dispatcher), scan)
	if errors.Is(err, watch.ErrNothingToWatch) {
		fmt.Fprintln(cmd.ErrOrStderr(), "no source directory exists, nothing to watch")
		return nil
	}

	return err
}
