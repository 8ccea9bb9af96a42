package processor

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hupe1980/stylewatch/internal/diff"
)

// Diffing wraps a Transformer and prints a unified diff of each file it
// transforms. The input is read before the wrapped transformer runs, so a
// transformation that rewrites its input in place still diffs correctly.
type Diffing struct {
	next  Transformer
	out   io.Writer
	color bool
}

// NewDiffing wraps next, writing diffs to out.
func NewDiffing(next Transformer, out io.Writer, color bool) *Diffing {
	return &Diffing{next: next, out: out, color: color}
}

// Transform runs the wrapped transformer and reports the diff on success.
func (d *Diffing) Transform(ctx context.Context, input, output string) error {
	before, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("reading %s: %w", input, err)
	}

	if err := d.next.Transform(ctx, input, output); err != nil {
		return err
	}

	after, err := os.ReadFile(output)
	if err != nil {
		return fmt.Errorf("reading %s: %w", output, err)
	}

	opts := diff.DefaultOptions()
	opts.From = input
	opts.To = output

	res, err := diff.Compute(string(before), string(after), opts)
	if err != nil {
		return err
	}

	diff.Write(d.out, res, d.color)

	return nil
}
