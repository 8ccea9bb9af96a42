package watch

import (
	"context"
	"fmt"
)

// Kind is the type of a file event.
type Kind int

const (
	// Created means the file appeared.
	Created Kind = iota + 1
	// Updated means the file content changed.
	Updated
	// Deleted means the file was removed or renamed away.
	Deleted
)

// String returns the past-tense name of the event kind.
func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Deleted:
		return "deleted"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is a single settled file event.
type Event struct {
	Path string
	Kind Kind
}

// Watcher handles the file events it accepts. Each callback reports
// whether the event should continue to the next watcher in the pipeline.
type Watcher interface {
	// Accept reports whether the watcher handles path. It must be cheap
	// and free of side effects.
	Accept(path string) bool
	OnCreated(ctx context.Context, path string) (bool, error)
	OnUpdated(ctx context.Context, path string) (bool, error)
	OnDeleted(ctx context.Context, path string) (bool, error)
}

// Pipeline routes events to an ordered list of watchers.
type Pipeline struct {
	watchers []Watcher
}

// NewPipeline creates a pipeline that offers events to watchers in order.
func NewPipeline(watchers ...Watcher) *Pipeline {
	return &Pipeline{watchers: watchers}
}

// Len returns the number of watchers.
func (p *Pipeline) Len() int { return len(p.watchers) }

// Accepts reports whether any watcher accepts path.
func (p *Pipeline) Accepts(path string) bool {
	for _, w := range p.watchers {
		if w.Accept(path) {
			return true
		}
	}

	return false
}

// Deliver offers ev to every watcher that accepts its path, stopping at the
// first watcher that returns false or an error. It returns the number of
// watchers that handled the event.
func (p *Pipeline) Deliver(ctx context.Context, ev Event) (int, error) {
	handled := 0

	for _, w := range p.watchers {
		if !w.Accept(ev.Path) {
			continue
		}

		proceed, err := dispatchEvent(ctx, w, ev)
		handled++

		if err != nil {
			return handled, err
		}

		if !proceed {
			break
		}
	}

	return handled, nil
}

func dispatchEvent(ctx context.Context, w Watcher, ev Event) (bool, error) {
	switch ev.Kind {
	case Created:
		return w.OnCreated(ctx, ev.Path)
	case Updated:
		return w.OnUpdated(ctx, ev.Path)
	case Deleted:
		return w.OnDeleted(ctx, ev.Path)
	default:
		return false, fmt.Errorf("unknown event kind %v for %s", ev.Kind, ev.Path)
	}
}
