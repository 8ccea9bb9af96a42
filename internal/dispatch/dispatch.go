// Package dispatch decides, per stylesheet, whether the external processor
// must run and keeps the output trees in step with create, update and
// delete events.
//
// Filesystem modification times are the only staleness signal. Nothing is
// cached between calls; every decision re-reads the timestamps.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hupe1980/stylewatch/internal/layout"
	"github.com/hupe1980/stylewatch/internal/processor"
)

// State describes a source file relative to its destination.
type State string

const (
	// StateNew means no destination exists yet.
	StateNew State = "new"
	// StateStale means the source is strictly newer than the destination.
	StateStale State = "stale"
	// StateFresh means the destination is at least as new as the source,
	// so the destination itself is reprocessed.
	StateFresh State = "fresh"
)

// Decision is the outcome of the staleness check for one source file.
type Decision struct {
	Source      string      `json:"source"`
	Destination string      `json:"destination"`
	Input       string      `json:"input"`
	Root        layout.Root `json:"-"`
	State       State       `json:"state"`
}

// Dispatcher runs the incremental build for one session.
type Dispatcher struct {
	mapper      *layout.Mapper
	transformer processor.Transformer
	logger      *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// New creates a Dispatcher.
func New(mapper *layout.Mapper, transformer processor.Transformer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		mapper:      mapper,
		transformer: transformer,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Mapper returns the path mapper used by d.
func (d *Dispatcher) Mapper() *layout.Mapper { return d.mapper }

// Accept reports whether path is a stylesheet inside one of the source roots.
func (d *Dispatcher) Accept(path string) bool {
	return d.mapper.Accept(path)
}

// OnCreated processes a newly created stylesheet.
func (d *Dispatcher) OnCreated(ctx context.Context, path string) (bool, error) {
	if _, err := d.Process(ctx, path); err != nil {
		return false, err
	}

	return true, nil
}

// OnUpdated processes a modified stylesheet.
func (d *Dispatcher) OnUpdated(ctx context.Context, path string) (bool, error) {
	return d.OnCreated(ctx, path)
}

// OnDeleted removes the output of a deleted stylesheet. Removal is best
// effort: a missing file or any I/O error is logged and ignored.
func (d *Dispatcher) OnDeleted(_ context.Context, path string) (bool, error) {
	dest := d.mapper.OutputFor(path)

	if err := os.Remove(dest); err != nil {
		d.logger.Debug("output not removed", slog.String("path", dest), slog.String("error", err.Error()))
	} else {
		d.logger.Info("removed output", slog.String("path", dest))
	}

	return true, nil
}

// Decide computes the destination and the effective input for file
// without touching the filesystem beyond two stat calls.
func (d *Dispatcher) Decide(file string) Decision {
	dest := d.mapper.OutputFor(file)

	dec := Decision{
		Source:      file,
		Destination: dest,
		Input:       file,
		Root:        d.mapper.RootOf(file),
		State:       StateNew,
	}

	destInfo, err := os.Stat(dest)
	if err != nil || !destInfo.Mode().IsRegular() {
		return dec
	}

	dec.State = StateStale

	// A missing source reads as the zero time, which favours the destination.
	var srcMod int64
	if srcInfo, statErr := os.Stat(file); statErr == nil {
		srcMod = srcInfo.ModTime().UnixNano()
	}

	if destInfo.ModTime().UnixNano() >= srcMod {
		dec.State = StateFresh
		dec.Input = dest
	}

	return dec
}

// Process runs the external processor for file.
//
// The destination's parent directory is created when missing. When the
// destination already exists and is at least as new as file, the
// destination is handed to the processor instead of file.
func (d *Dispatcher) Process(ctx context.Context, file string) (Decision, error) {
	dest := d.mapper.OutputFor(file)

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		d.logger.Debug("creating output directory", slog.String("path", filepath.Dir(dest)), slog.String("error", err.Error()))
	}

	dec := d.Decide(file)

	if dec.State == StateFresh {
		d.logger.Info("processing destination instead of source",
			slog.String("input", dec.Input),
			slog.String("source", file),
		)
	} else {
		d.logger.Info("processing", slog.String("input", dec.Input), slog.String("output", dec.Destination))
	}

	if err := d.transformer.Transform(ctx, dec.Input, dec.Destination); err != nil {
		return dec, &processor.TransformationFailed{Input: dec.Input, Err: err}
	}

	return dec, nil
}

// ScanResult summarises a full scan.
type ScanResult struct {
	Processed []Decision
}

// ScanAll processes every stylesheet under every existing source root,
// Internal first, one file at a time. Missing roots are skipped. The first
// failure stops the scan and is returned.
func (d *Dispatcher) ScanAll(ctx context.Context) (*ScanResult, error) {
	result := &ScanResult{}

	err := d.walk(func(file string) error {
		dec, err := d.Process(ctx, file)
		if err != nil {
			return err
		}

		result.Processed = append(result.Processed, dec)

		return nil
	})

	return result, err
}

// Plan returns the decision for every stylesheet without running the
// processor or creating directories.
func (d *Dispatcher) Plan() ([]Decision, error) {
	var decisions []Decision

	err := d.walk(func(file string) error {
		decisions = append(decisions, d.Decide(file))
		return nil
	})

	return decisions, err
}

// Clean removes the output of every stylesheet found in the source roots
// and returns the number of outputs that existed before removal.
func (d *Dispatcher) Clean(ctx context.Context) (int, error) {
	removed := 0

	err := d.walk(func(file string) error {
		if _, statErr := os.Stat(d.mapper.OutputFor(file)); statErr == nil {
			removed++
		}

		_, delErr := d.OnDeleted(ctx, file)

		return delErr
	})

	return removed, err
}

// Sources lists every stylesheet currently present under the source roots.
func (d *Dispatcher) Sources() ([]string, error) {
	var files []string

	err := d.walk(func(file string) error {
		files = append(files, file)
		return nil
	})

	return files, err
}

// walk calls fn for every regular stylesheet file in scan order.
func (d *Dispatcher) walk(fn func(file string) error) error {
	for _, src := range d.mapper.Sources() {
		info, err := os.Stat(src.Source)
		if err != nil || !info.IsDir() {
			d.logger.Debug("source root absent", slog.String("root", src.Root.String()), slog.String("path", src.Source))
			continue
		}

		d.logger.Info("compiling stylesheets", slog.String("root", src.Root.String()), slog.String("path", src.Source))

		walkErr := filepath.WalkDir(src.Source, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if !d.mapper.HasExtension(path) || !isRegularFile(path, entry) {
				return nil
			}

			return fn(path)
		})
		if walkErr != nil {
			var tf *processor.TransformationFailed
			if errors.As(walkErr, &tf) {
				return walkErr
			}

			return fmt.Errorf("scanning %s: %w", src.Source, walkErr)
		}
	}

	return nil
}

// isRegularFile reports whether entry is a regular file, following a
// symlink to its target.
func isRegularFile(path string, entry fs.DirEntry) bool {
	if entry.Type()&fs.ModeSymlink != 0 {
		info, err := os.Stat(path)
		return err == nil && info.Mode().IsRegular()
	}

	return entry.Type().IsRegular()
}
