package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/stylewatch/internal/layout"
	"github.com/hupe1980/stylewatch/internal/processor"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type invocation struct {
	input  string
	output string
}

// recorder is a transformer that records invocations, copies input to
// output, and fails for inputs listed in failOn.
type recorder struct {
	calls  []invocation
	failOn map[string]error
}

func (r *recorder) Transform(_ context.Context, input, output string) error {
	r.calls = append(r.calls, invocation{input: input, output: output})

	if err, ok := r.failOn[input]; ok {
		return err
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	return os.WriteFile(output, data, 0o644)
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *recorder, layout.Roots) {
	t.Helper()

	roots, err := layout.NewRoots(t.TempDir(), "src/main/resources", "target/classes", "src/main/assets", "target/wisdom/assets")
	require.NoError(t, err)

	rec := &recorder{failOn: map[string]error{}}
	d := New(layout.NewMapper(roots, "css"), rec, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	return d, rec, roots
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func setMtime(t *testing.T, path string, mtime time.Time) {
	t.Helper()

	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

// ---------------------------------------------------------------------------
// Process: staleness
// ---------------------------------------------------------------------------

func TestProcess_EqualMtimeReusesDestination(t *testing.T) {
	d, rec, roots := newTestDispatcher(t)

	src := filepath.Join(roots.InternalSource, "a.css")
	dest := filepath.Join(roots.InternalOutput, "a.css")
	writeFile(t, src, "source")
	writeFile(t, dest, "copied")

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	setMtime(t, src, ts)
	setMtime(t, dest, ts)

	dec, err := d.Process(context.Background(), src)
	require.NoError(t, err)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, dest, rec.calls[0].input)
	assert.Equal(t, dest, rec.calls[0].output)
	assert.Equal(t, StateFresh, dec.State)
}

func TestProcess_NewerDestinationReusesDestination(t *testing.T) {
	d, rec, roots := newTestDispatcher(t)

	src := filepath.Join(roots.ExternalSource, "sub", "b.css")
	dest := filepath.Join(roots.ExternalOutput, "sub", "b.css")
	writeFile(t, src, "source")
	writeFile(t, dest, "copied")

	now := time.Now()
	setMtime(t, src, now.Add(-time.Hour))
	setMtime(t, dest, now)

	_, err := d.Process(context.Background(), src)
	require.NoError(t, err)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, dest, rec.calls[0].input)
}

func TestProcess_StrictlyNewerSourceUsesSource(t *testing.T) {
	d, rec, roots := newTestDispatcher(t)

	src := filepath.Join(roots.InternalSource, "a.css")
	dest := filepath.Join(roots.InternalOutput, "a.css")
	writeFile(t, src, "fresh source")
	writeFile(t, dest, "old output")

	now := time.Now()
	setMtime(t, dest, now.Add(-time.Hour))
	setMtime(t, src, now)

	dec, err := d.Process(context.Background(), src)
	require.NoError(t, err)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, src, rec.calls[0].input)
	assert.Equal(t, dest, rec.calls[0].output)
	assert.Equal(t, StateStale, dec.State)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "fresh source", string(data))
}

func TestProcess_NoDestinationCreatesParent(t *testing.T) {
	d, rec, roots := newTestDispatcher(t)

	src := filepath.Join(roots.InternalSource, "deep", "er", "c.css")
	dest := filepath.Join(roots.InternalOutput, "deep", "er", "c.css")
	writeFile(t, src, "x")

	var parentExisted bool

	d.transformer = processor.Func(func(ctx context.Context, input, output string) error {
		info, err := os.Stat(filepath.Dir(output))
		parentExisted = err == nil && info.IsDir()

		return rec.Transform(ctx, input, output)
	})

	dec, err := d.Process(context.Background(), src)
	require.NoError(t, err)

	assert.True(t, parentExisted, "parent directory must exist before invocation")
	require.Len(t, rec.calls, 1)
	assert.Equal(t, src, rec.calls[0].input)
	assert.Equal(t, dest, rec.calls[0].output)
	assert.Equal(t, StateNew, dec.State)
	assert.FileExists(t, dest)
}

func TestProcess_DestinationDirectoryIsNotReused(t *testing.T) {
	d, rec, roots := newTestDispatcher(t)

	src := filepath.Join(roots.InternalSource, "odd.css")
	writeFile(t, src, "x")
	require.NoError(t, os.MkdirAll(filepath.Join(roots.InternalOutput, "odd.css"), 0o755))

	dec := d.Decide(src)
	assert.Equal(t, StateNew, dec.State)
	assert.Equal(t, src, dec.Input)
	assert.Empty(t, rec.calls)
}

func TestProcess_FailureIsWrapped(t *testing.T) {
	d, rec, roots := newTestDispatcher(t)

	src := filepath.Join(roots.InternalSource, "a.css")
	writeFile(t, src, "x")

	cause := errors.New("myth exited with status 1")
	rec.failOn[src] = cause

	_, err := d.Process(context.Background(), src)
	require.Error(t, err)

	var tf *processor.TransformationFailed
	require.ErrorAs(t, err, &tf)
	assert.Equal(t, src, tf.Input)
	assert.ErrorIs(t, err, cause)
	assert.Len(t, rec.calls, 1, "failures are not retried")
}

func TestProcess_FailureNamesEffectiveInput(t *testing.T) {
	d, rec, roots := newTestDispatcher(t)

	src := filepath.Join(roots.InternalSource, "a.css")
	dest := filepath.Join(roots.InternalOutput, "a.css")
	writeFile(t, src, "x")
	writeFile(t, dest, "y")

	ts := time.Now()
	setMtime(t, src, ts)
	setMtime(t, dest, ts)

	rec.failOn[dest] = errors.New("bad")

	_, err := d.Process(context.Background(), src)

	var tf *processor.TransformationFailed
	require.ErrorAs(t, err, &tf)
	assert.Equal(t, dest, tf.Input)
}

// ---------------------------------------------------------------------------
// Lifecycle callbacks
// ---------------------------------------------------------------------------

func TestOnCreatedAndOnUpdated(t *testing.T) {
	d, rec, roots := newTestDispatcher(t)

	src := filepath.Join(roots.InternalSource, "a.css")
	writeFile(t, src, "x")

	ok, err := d.OnCreated(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.OnUpdated(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Len(t, rec.calls, 2)
}

func TestOnCreated_Failure(t *testing.T) {
	d, rec, roots := newTestDispatcher(t)

	src := filepath.Join(roots.InternalSource, "a.css")
	writeFile(t, src, "x")
	rec.failOn[src] = errors.New("bad")

	_, err := d.OnCreated(context.Background(), src)

	var tf *processor.TransformationFailed
	assert.ErrorAs(t, err, &tf)
}

func TestOnDeleted_RemovesOutput(t *testing.T) {
	d, rec, roots := newTestDispatcher(t)

	src := filepath.Join(roots.ExternalSource, "sub", "gone.css")
	dest := filepath.Join(roots.ExternalOutput, "sub", "gone.css")
	writeFile(t, dest, "output")

	ok, err := d.OnDeleted(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoFileExists(t, dest)
	assert.Empty(t, rec.calls)
}

func TestOnDeleted_MissingOutputStillContinues(t *testing.T) {
	d, _, roots := newTestDispatcher(t)

	ok, err := d.OnDeleted(context.Background(), filepath.Join(roots.InternalSource, "never.css"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOnDeleted_RemovalFailureStillContinues(t *testing.T) {
	d, _, roots := newTestDispatcher(t)

	// A non-empty directory at the output location cannot be removed.
	dest := filepath.Join(roots.InternalOutput, "dir.css")
	writeFile(t, filepath.Join(dest, "keep"), "x")

	ok, err := d.OnDeleted(context.Background(), filepath.Join(roots.InternalSource, "dir.css"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.DirExists(t, dest)
}

func TestAccept(t *testing.T) {
	d, _, roots := newTestDispatcher(t)

	assert.True(t, d.Accept(filepath.Join(roots.InternalSource, "a.css")))
	assert.False(t, d.Accept(filepath.Join(roots.InternalSource, "a.less")))
	assert.False(t, d.Accept("/elsewhere/a.css"))
}

// ---------------------------------------------------------------------------
// ScanAll
// ---------------------------------------------------------------------------

func TestScanAll_InternalOnly(t *testing.T) {
	d, rec, roots := newTestDispatcher(t)

	writeFile(t, filepath.Join(roots.InternalSource, "a.css"), "a")
	writeFile(t, filepath.Join(roots.InternalSource, "sub", "b.css"), "b")
	writeFile(t, filepath.Join(roots.InternalSource, "sub", "c.less"), "c")
	writeFile(t, filepath.Join(roots.InternalSource, "README.CSS"), "upper")

	res, err := d.ScanAll(context.Background())
	require.NoError(t, err)

	require.Len(t, rec.calls, 2)
	assert.ElementsMatch(t, []invocation{
		{input: filepath.Join(roots.InternalSource, "a.css"), output: filepath.Join(roots.InternalOutput, "a.css")},
		{input: filepath.Join(roots.InternalSource, "sub", "b.css"), output: filepath.Join(roots.InternalOutput, "sub", "b.css")},
	}, rec.calls)
	assert.Len(t, res.Processed, 2)

	assert.FileExists(t, filepath.Join(roots.InternalOutput, "a.css"))
	assert.FileExists(t, filepath.Join(roots.InternalOutput, "sub", "b.css"))
}

func TestScanAll_BothRootsInternalFirst(t *testing.T) {
	d, rec, roots := newTestDispatcher(t)

	writeFile(t, filepath.Join(roots.ExternalSource, "ext.css"), "e")
	writeFile(t, filepath.Join(roots.InternalSource, "int.css"), "i")

	_, err := d.ScanAll(context.Background())
	require.NoError(t, err)

	require.Len(t, rec.calls, 2)
	assert.Equal(t, filepath.Join(roots.InternalOutput, "int.css"), rec.calls[0].output)
	assert.Equal(t, filepath.Join(roots.ExternalOutput, "ext.css"), rec.calls[1].output)
}

func TestScanAll_NoRoots(t *testing.T) {
	d, rec, _ := newTestDispatcher(t)

	res, err := d.ScanAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Processed)
	assert.Empty(t, rec.calls)
}

func TestScanAll_SkipsDirectoriesWithExtension(t *testing.T) {
	d, rec, roots := newTestDispatcher(t)

	require.NoError(t, os.MkdirAll(filepath.Join(roots.InternalSource, "vendor.css"), 0o755))
	writeFile(t, filepath.Join(roots.InternalSource, "vendor.css", "inner.css"), "x")

	_, err := d.ScanAll(context.Background())
	require.NoError(t, err)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, filepath.Join(roots.InternalSource, "vendor.css", "inner.css"), rec.calls[0].input)
}

func TestScanAll_FollowsSymlinkedStylesheets(t *testing.T) {
	d, rec, roots := newTestDispatcher(t)

	target := filepath.Join(t.TempDir(), "shared.css")
	writeFile(t, target, "shared")
	require.NoError(t, os.MkdirAll(roots.InternalSource, 0o755))

	link := filepath.Join(roots.InternalSource, "linked.css")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	// Links to directories and dangling links are not stylesheets.
	require.NoError(t, os.Symlink(t.TempDir(), filepath.Join(roots.InternalSource, "dir.css")))
	require.NoError(t, os.Symlink(filepath.Join(t.TempDir(), "gone.css"), filepath.Join(roots.InternalSource, "dangling.css")))

	assert.True(t, d.Accept(link))

	res, err := d.ScanAll(context.Background())
	require.NoError(t, err)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, link, rec.calls[0].input)
	assert.Equal(t, filepath.Join(roots.InternalOutput, "linked.css"), rec.calls[0].output)
	assert.Len(t, res.Processed, 1)
}

func TestScanAll_FailFast(t *testing.T) {
	d, rec, roots := newTestDispatcher(t)

	// WalkDir visits entries in lexical order.
	first := filepath.Join(roots.InternalSource, "a.css")
	second := filepath.Join(roots.InternalSource, "b.css")
	writeFile(t, first, "a")
	writeFile(t, second, "b")

	rec.failOn[first] = errors.New("syntax error")

	res, err := d.ScanAll(context.Background())
	require.Error(t, err)

	var tf *processor.TransformationFailed
	require.ErrorAs(t, err, &tf)
	assert.Equal(t, first, tf.Input)
	assert.Contains(t, err.Error(), first)

	require.Len(t, rec.calls, 1, "second file must never be dispatched")
	assert.Empty(t, res.Processed)
}

func TestScanAll_FailureInInternalSkipsExternal(t *testing.T) {
	d, rec, roots := newTestDispatcher(t)

	bad := filepath.Join(roots.InternalSource, "bad.css")
	writeFile(t, bad, "x")
	writeFile(t, filepath.Join(roots.ExternalSource, "ok.css"), "y")
	rec.failOn[bad] = errors.New("bad")

	_, err := d.ScanAll(context.Background())
	require.Error(t, err)
	assert.Len(t, rec.calls, 1)
}

// ---------------------------------------------------------------------------
// Plan, Clean, Sources
// ---------------------------------------------------------------------------

func TestPlan_HasNoSideEffects(t *testing.T) {
	d, rec, roots := newTestDispatcher(t)

	newSrc := filepath.Join(roots.InternalSource, "sub", "new.css")
	staleSrc := filepath.Join(roots.ExternalSource, "stale.css")
	staleDest := filepath.Join(roots.ExternalOutput, "stale.css")
	writeFile(t, newSrc, "n")
	writeFile(t, staleSrc, "s")
	writeFile(t, staleDest, "old")

	now := time.Now()
	setMtime(t, staleDest, now.Add(-time.Minute))
	setMtime(t, staleSrc, now)

	decisions, err := d.Plan()
	require.NoError(t, err)
	require.Len(t, decisions, 2)

	assert.Equal(t, StateNew, decisions[0].State)
	assert.Equal(t, layout.Internal, decisions[0].Root)
	assert.Equal(t, StateStale, decisions[1].State)
	assert.Equal(t, staleSrc, decisions[1].Input)

	assert.Empty(t, rec.calls)
	assert.NoDirExists(t, filepath.Join(roots.InternalOutput, "sub"))
}

func TestClean(t *testing.T) {
	d, _, roots := newTestDispatcher(t)

	writeFile(t, filepath.Join(roots.InternalSource, "a.css"), "a")
	writeFile(t, filepath.Join(roots.InternalSource, "b.css"), "b")
	writeFile(t, filepath.Join(roots.InternalOutput, "a.css"), "out")

	removed, err := d.Clean(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, filepath.Join(roots.InternalOutput, "a.css"))
	assert.FileExists(t, filepath.Join(roots.InternalSource, "a.css"))
}

func TestSources(t *testing.T) {
	d, _, roots := newTestDispatcher(t)

	writeFile(t, filepath.Join(roots.InternalSource, "a.css"), "a")
	writeFile(t, filepath.Join(roots.ExternalSource, "x", "b.css"), "b")
	writeFile(t, filepath.Join(roots.ExternalSource, "x", "b.less"), "b")

	files, err := d.Sources()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(roots.InternalSource, "a.css"),
		filepath.Join(roots.ExternalSource, "x", "b.css"),
	}, files)
}
