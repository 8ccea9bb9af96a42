// Package stylewatch provides a public Go API for incremental stylesheet
// builds.
//
// This package exposes the stylewatch build, plan and watch operations as a
// library, allowing programmatic use without the CLI.
//
// Basic usage:
//
//	result, err := stylewatch.Build(ctx, "path/to/project")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(len(result.Files))
//
// With an in-process transformer instead of the external tool:
//
//	result, err := stylewatch.Build(ctx, "path/to/project",
//	    stylewatch.WithTransformer(func(ctx context.Context, in, out string) error {
//	        return minify(in, out)
//	    }),
//	    stylewatch.WithExtension("pcss"),
//	)
package stylewatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/hupe1980/stylewatch/internal/config"
	"github.com/hupe1980/stylewatch/internal/dispatch"
	"github.com/hupe1980/stylewatch/internal/layout"
	"github.com/hupe1980/stylewatch/internal/logging"
	"github.com/hupe1980/stylewatch/internal/processor"
	"github.com/hupe1980/stylewatch/internal/watch"
)

// TransformationFailed is returned when the transformer fails for a file.
// Input names the file that was handed to the transformer.
type TransformationFailed = processor.TransformationFailed

// ErrNothingToWatch is returned by Watch when no source root exists.
var ErrNothingToWatch = watch.ErrNothingToWatch

// TransformFunc transforms the stylesheet at input and writes it to output.
type TransformFunc func(ctx context.Context, input, output string) error

// Option configures a build. Use the With* functions to create Options.
type Option func(*options)

type options struct {
	internalSource string
	internalOutput string
	externalSource string
	externalOutput string
	extension      string

	tool      string
	toolArgs  []string
	transform TransformFunc

	debounce time.Duration
	out      io.Writer
	logger   *slog.Logger
}

// WithInternalRoots sets the internal source and output roots.
func WithInternalRoots(source, output string) Option {
	return func(o *options) { o.internalSource, o.internalOutput = source, output }
}

// WithExternalRoots sets the external source and output roots.
func WithExternalRoots(source, output string) Option {
	return func(o *options) { o.externalSource, o.externalOutput = source, output }
}

// WithExtension sets the stylesheet extension, with or without the dot.
func WithExtension(ext string) Option { return func(o *options) { o.extension = ext } }

// WithTool sets the external tool and its leading arguments.
func WithTool(name string, args ...string) Option {
	return func(o *options) { o.tool, o.toolArgs = name, args }
}

// WithTransformer replaces the external tool with fn.
func WithTransformer(fn TransformFunc) Option { return func(o *options) { o.transform = fn } }

// WithDebounce sets the per-file quiet period used by Watch.
func WithDebounce(d time.Duration) Option { return func(o *options) { o.debounce = d } }

// WithOutput sets the writer for Watch status lines. The default discards
// them.
func WithOutput(w io.Writer) Option { return func(o *options) { o.out = w } }

// WithLogger sets the logger. The default discards all records.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// File describes the outcome for one stylesheet.
type File struct {
	Root        string `json:"root"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Input       string `json:"input"`
	State       string `json:"state"`
}

// Result is the outcome of Build or Plan, in scan order.
type Result struct {
	Files []File `json:"files"`
}

// Build transforms every stylesheet under baseDir once. The first failure
// stops the build; the files transformed before it are still returned.
func Build(ctx context.Context, baseDir string, opts ...Option) (*Result, error) {
	d, _, err := newDispatcher(baseDir, opts)
	if err != nil {
		return nil, err
	}

	res, err := d.ScanAll(ctx)
	if res == nil {
		return nil, err
	}

	return toResult(res.Processed), err
}

// Plan reports what Build would do without transforming anything.
func Plan(_ context.Context, baseDir string, opts ...Option) (*Result, error) {
	d, _, err := newDispatcher(baseDir, opts)
	if err != nil {
		return nil, err
	}

	decisions, err := d.Plan()
	if err != nil {
		return nil, err
	}

	return toResult(decisions), nil
}

// Watch builds once and then keeps the outputs in sync until ctx is
// cancelled.
func Watch(ctx context.Context, baseDir string, opts ...Option) error {
	d, o, err := newDispatcher(baseDir, opts)
	if err != nil {
		return err
	}

	var dirs []string
	for _, src := range d.Mapper().Sources() {
		dirs = append(dirs, src.Source)
	}

	scan := func(scanCtx context.Context) (int, error) {
		res, scanErr := d.ScanAll(scanCtx)
		if scanErr != nil {
			return 0, scanErr
		}

		return len(res.Processed), nil
	}

	return watch.Run(ctx, watch.Options{
		Dirs:     dirs,
		Debounce: o.debounce,
		Logger:   o.logger,
		Out:      o.out,
	}, watch.NewPipeline(d), scan)
}

func newDispatcher(baseDir string, opts []Option) (*dispatch.Dispatcher, *options, error) {
	o := &options{
		internalSource: config.DefaultInternalSource,
		internalOutput: config.DefaultInternalOutput,
		externalSource: config.DefaultExternalSource,
		externalOutput: config.DefaultExternalOutput,
		extension:      config.DefaultExtension,
		tool:           config.DefaultTool,
		debounce:       config.DefaultDebounce,
		out:            io.Discard,
		logger:         logging.Discard(),
	}

	for _, opt := range opts {
		opt(o)
	}

	if baseDir == "" {
		return nil, nil, errors.New("base directory must not be empty")
	}

	roots, err := layout.NewRoots(baseDir, o.internalSource, o.internalOutput, o.externalSource, o.externalOutput)
	if err != nil {
		return nil, nil, err
	}

	var t processor.Transformer
	if o.transform != nil {
		t = processor.Func(o.transform)
	} else {
		t = processor.NewExec(o.tool, processor.WithArgs(o.toolArgs...), processor.WithLogger(o.logger))
	}

	d := dispatch.New(layout.NewMapper(roots, o.extension), t, dispatch.WithLogger(o.logger))

	return d, o, nil
}

func toResult(decisions []dispatch.Decision) *Result {
	res := &Result{Files: make([]File, 0, len(decisions))}

	for _, dec := range decisions {
		res.Files = append(res.Files, File{
			Root:        dec.Root.String(),
			Source:      dec.Source,
			Destination: dec.Destination,
			Input:       dec.Input,
			State:       string(dec.State),
		})
	}

	return res
}
