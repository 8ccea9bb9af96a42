package cli

import (
	"context"
	"io"

	"github.com/hupe1980/stylewatch/internal/config"
	"github.com/hupe1980/stylewatch/internal/dispatch"
	"github.com/hupe1980/stylewatch/internal/logging"
	"github.com/hupe1980/stylewatch/internal/processor"
)

// session bundles the collaborators of one build, watch, plan or clean run.
type session struct {
	cfg        *config.Config
	tool       *processor.Exec
	dispatcher *dispatch.Dispatcher
}

type sessionOptions struct {
	// diffOut receives a unified diff of every transformed stylesheet.
	// Nil disables diffing.
	diffOut io.Writer
}

// newSession builds the mapper, tool and dispatcher from the configuration
// stored in ctx.
func newSession(ctx context.Context, opts sessionOptions) (*session, error) {
	cfg := config.FromContext(ctx)
	logger := logging.FromContext(ctx)

	mapper, err := cfg.Mapper()
	if err != nil {
		return nil, &ExitError{Code: 2, Err: err}
	}

	tool := processor.NewExec(cfg.Tool,
		processor.WithArgs(cfg.ToolArgs...),
		processor.WithLogger(logging.Component(logger, "processor")),
	)

	var transformer processor.Transformer = tool
	if opts.diffOut != nil {
		transformer = processor.NewDiffing(tool, opts.diffOut, !cfg.NoColor)
	}

	d := dispatch.New(mapper, transformer,
		dispatch.WithLogger(logging.Component(logger, "dispatch")),
	)

	return &session{cfg: cfg, tool: tool, dispatcher: d}, nil
}
