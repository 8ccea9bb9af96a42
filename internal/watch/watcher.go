package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ScanFunc performs the initial full build before watching starts.
// It returns the number of files processed.
type ScanFunc func(ctx context.Context) (int, error)

// Options configures the watch behaviour.
type Options struct {
	// Dirs are the source roots to watch recursively. Roots that do not
	// exist are skipped.
	Dirs []string

	// Debounce is the quiet period per file before its event is delivered.
	Debounce time.Duration

	// Logger is used for structured logging.
	Logger *slog.Logger

	// Out is the writer for user-facing status messages.
	Out io.Writer
}

// DefaultOptions returns sensible default watch options.
func DefaultOptions() Options {
	return Options{
		Debounce: 300 * time.Millisecond,
		Logger:   slog.Default(),
		Out:      os.Stderr,
	}
}

// ErrNothingToWatch is returned when none of the configured roots exist.
var ErrNothingToWatch = errors.New("no source directory exists")

// Run performs the initial scan, then watches opts.Dirs and delivers each
// settled event to pipeline until the context is cancelled or a SIGINT or
// SIGTERM signal is received. Delivery failures are reported and do not
// stop the watcher.
func Run(ctx context.Context, opts Options, pipeline *Pipeline, scan ScanFunc) error {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Out == nil {
		opts.Out = io.Discard
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	var watched []string

	for _, dir := range opts.Dirs {
		info, statErr := os.Stat(dir)
		if statErr != nil || !info.IsDir() {
			opts.Logger.Debug("skipping absent source root", slog.String("path", dir))
			continue
		}

		if err := addRecursive(watcher, dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}

		watched = append(watched, dir)
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if scan != nil {
		initialScan(sigCtx, opts, scan)
	}

	if len(watched) == 0 {
		return ErrNothingToWatch
	}

	fmt.Fprintf(opts.Out, "watching %s (debounce=%s)\n", strings.Join(watched, ", "), opts.Debounce)

	debouncer := NewDebouncer(opts.Debounce)
	defer debouncer.Stop()

	for {
		select {
		case <-sigCtx.Done():
			fmt.Fprintln(opts.Out, "\nshutting down watcher")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			ev, relevant := translate(event)
			if !relevant {
				continue
			}

			// A new directory is watched too, and the files already in it
			// are reported as created since their events were missed.
			if ev.Kind == Created {
				if info, statErr := os.Stat(ev.Path); statErr == nil && info.IsDir() {
					for _, f := range addNewDirectory(watcher, ev.Path, opts.Logger) {
						if pipeline.Accepts(f) {
							debouncer.Trigger(Event{Path: f, Kind: Created})
						}
					}

					continue
				}
			}

			if !pipeline.Accepts(ev.Path) {
				continue
			}

			debouncer.Trigger(ev)

		case ev := <-debouncer.Events():
			deliver(sigCtx, opts, pipeline, ev)

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			opts.Logger.Error("watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

func initialScan(ctx context.Context, opts Options, scan ScanFunc) {
	now := time.Now().Format("15:04:05")

	n, err := scan(ctx)
	if err != nil {
		fmt.Fprintf(opts.Out, "[%s] (initial) → ERROR: %v\n", now, err)
		return
	}

	fmt.Fprintf(opts.Out, "[%s] (initial) → OK (%d stylesheets)\n", now, n)
}

// deliver hands ev to the pipeline and prints the status line.
func deliver(ctx context.Context, opts Options, pipeline *Pipeline, ev Event) {
	now := time.Now().Format("15:04:05")

	if _, err := pipeline.Deliver(ctx, ev); err != nil {
		fmt.Fprintf(opts.Out, "[%s] %s %s → ERROR: %v\n", now, ev.Kind, ev.Path, err)
		return
	}

	fmt.Fprintf(opts.Out, "[%s] %s %s → OK\n", now, ev.Kind, ev.Path)
}

// addRecursive walks root and adds all directories to the watcher.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			// Skip hidden directories (e.g., .git).
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}

			return watcher.Add(path)
		}

		return nil
	})
}

// addNewDirectory watches a directory created while running and returns the
// regular files already inside it.
func addNewDirectory(watcher *fsnotify.Watcher, dir string, logger *slog.Logger) []string {
	if strings.HasPrefix(filepath.Base(dir), ".") {
		return nil
	}

	if err := addRecursive(watcher, dir); err != nil {
		logger.Warn("watching new directory", slog.String("path", dir), slog.String("error", err.Error()))
	}

	var files []string

	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // best effort, the directory may vanish
		}

		if d.IsDir() && strings.HasPrefix(d.Name(), ".") && path != dir {
			return filepath.SkipDir
		}

		if d.Type().IsRegular() {
			files = append(files, path)
		}

		return nil
	})

	return files
}

// translate maps an fsnotify event onto a file event, filtering out
// permission changes and editor temporary files.
func translate(event fsnotify.Event) (Event, bool) {
	name := filepath.Base(event.Name)

	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".swp") || strings.HasPrefix(name, "#") {
		return Event{}, false
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return Event{Path: event.Name, Kind: Deleted}, true
	case event.Has(fsnotify.Create):
		return Event{Path: event.Name, Kind: Created}, true
	case event.Has(fsnotify.Write):
		return Event{Path: event.Name, Kind: Updated}, true
	default:
		return Event{}, false
	}
}
