package diagnostics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spiffcs/inbox/internal/candidate"
	"github.com/spiffcs/inbox/internal/model"
	"github.com/spiffcs/inbox/internal/view"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder collects published states.
type recorder struct {
	ch chan State
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan State, 64)}
}

func (r *recorder) publish(s State) { r.ch <- s }

func (r *recorder) next(t *testing.T) State {
	t.Helper()
	select {
	case s := <-r.ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a state")
		return State{}
	}
}

// nextSettled skips Loading publications.
func (r *recorder) nextSettled(t *testing.T) State {
	t.Helper()
	for {
		if s := r.next(t); s.Kind() != view.KindLoading {
			return s
		}
	}
}

func (r *recorder) expectNone(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case s := <-r.ch:
		t.Fatalf("unexpected publication %v", s.Kind())
	case <-time.After(wait):
	}
}

// fakeResolver maps URIs to entries, failing for unknown URIs when strict.
type fakeResolver struct {
	mu      sync.Mutex
	files   map[string]*model.FileEntry
	err     error
	skip    map[string]bool
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeResolver) LookupAll(ctx context.Context, uris []string) ([]candidate.Candidate, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []candidate.Candidate
	for _, u := range uris {
		if f.skip[u] {
			continue
		}
		out = append(out, candidate.Candidate{URI: u, Entry: f.files[u]})
	}
	return out, nil
}

func (f *fakeResolver) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

var (
	e1 = &model.FileEntry{Path: "a.go"}
	e2 = &model.FileEntry{Path: "b.go"}
	d1 = model.Diagnostic{Message: "d1"}
	d2 = model.Diagnostic{Message: "d2", Severity: model.SeverityWarning}
	d3 = model.Diagnostic{Message: "d3"}
)

func twoFiles() *fakeResolver {
	return &fakeResolver{files: map[string]*model.FileEntry{"git://r#a.go": e1, "git://r#b.go": e2}}
}

func TestAggregatorFlattensInSourceOrder(t *testing.T) {
	coll := NewMemoryCollection(
		Entry{URL: "git://r#a.go", Diagnostics: []model.Diagnostic{d1}},
		Entry{URL: "git://r#b.go", Diagnostics: []model.Diagnostic{d2, d3}},
	)
	rec := newRecorder()
	agg := NewAggregator(coll, twoFiles(), rec.publish)
	defer agg.Dispose()

	if err := agg.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if first := rec.next(t); first.Kind() != view.KindLoading {
		t.Fatalf("first state = %v, want loading", first.Kind())
	}

	got := rec.next(t)
	if got.Kind() != view.KindPopulated {
		t.Fatalf("state = %v (%s), want populated", got.Kind(), got.Message())
	}
	want := []model.DiagnosticInfo{
		{Diagnostic: d1, Entry: e1},
		{Diagnostic: d2, Entry: e2},
		{Diagnostic: d3, Entry: e2},
	}
	if diff := cmp.Diff(want, got.Items()); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if got.Items()[1].Entry != got.Items()[2].Entry {
		t.Error("diagnostics of one entry should share the file entry")
	}
}

func TestAggregatorEmptyCollection(t *testing.T) {
	rec := newRecorder()
	agg := NewAggregator(NewMemoryCollection(), twoFiles(), rec.publish)
	defer agg.Dispose()

	if err := agg.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := rec.nextSettled(t); got.Kind() != view.KindEmpty {
		t.Fatalf("state = %v, want empty", got.Kind())
	}
}

func TestAggregatorResolutionErrorIsNotPartial(t *testing.T) {
	coll := NewMemoryCollection(Entry{URL: "git://r#a.go", Diagnostics: []model.Diagnostic{d1}})
	res := twoFiles()
	boom := errors.New("lookup failed")
	res.setErr(boom)

	rec := newRecorder()
	agg := NewAggregator(coll, res, rec.publish)
	defer agg.Dispose()

	if err := agg.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := rec.nextSettled(t)
	if got.Kind() != view.KindError {
		t.Fatalf("state = %v, want error", got.Kind())
	}
	if !errors.Is(got.Err(), boom) {
		t.Errorf("error = %v, want %v", got.Err(), boom)
	}
	if got.Items() != nil {
		t.Error("error state carries items")
	}
}

func TestAggregatorMissingEntry(t *testing.T) {
	coll := NewMemoryCollection(
		Entry{URL: "git://r#a.go", Diagnostics: []model.Diagnostic{d1}},
		Entry{URL: "git://r#gone.go", Diagnostics: []model.Diagnostic{d2}},
	)
	res := twoFiles()
	res.skip = map[string]bool{"git://r#gone.go": true}

	rec := newRecorder()
	agg := NewAggregator(coll, res, rec.publish)
	defer agg.Dispose()

	if err := agg.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := rec.nextSettled(t)
	var missing *MissingEntryError
	if !errors.As(got.Err(), &missing) {
		t.Fatalf("error = %v, want MissingEntryError", got.Err())
	}
	if missing.URL != "git://r#gone.go" {
		t.Errorf("missing URL = %q", missing.URL)
	}
}

func TestAggregatorRerunsOnChange(t *testing.T) {
	coll := NewMemoryCollection(Entry{URL: "git://r#a.go", Diagnostics: []model.Diagnostic{d1}})
	rec := newRecorder()
	agg := NewAggregator(coll, twoFiles(), rec.publish)
	defer agg.Dispose()

	if err := agg.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := rec.nextSettled(t); len(got.Items()) != 1 {
		t.Fatalf("got %d items, want 1", len(got.Items()))
	}

	coll.Set("git://r#b.go", []model.Diagnostic{d2, d3})
	got := rec.nextSettled(t)
	if len(got.Items()) != 3 {
		t.Fatalf("got %d items after change, want 3", len(got.Items()))
	}

	coll.Delete("git://r#a.go")
	got = rec.nextSettled(t)
	if len(got.Items()) != 2 {
		t.Fatalf("got %d items after delete, want 2", len(got.Items()))
	}
}

func TestAggregatorErrorIsStickyUntilRefresh(t *testing.T) {
	coll := NewMemoryCollection(Entry{URL: "git://r#a.go", Diagnostics: []model.Diagnostic{d1}})
	res := twoFiles()
	res.setErr(errors.New("down"))

	rec := newRecorder()
	agg := NewAggregator(coll, res, rec.publish)
	defer agg.Dispose()

	if err := agg.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := rec.nextSettled(t); got.Kind() != view.KindError {
		t.Fatalf("state = %v, want error", got.Kind())
	}

	res.setErr(nil)
	coll.Set("git://r#b.go", []model.Diagnostic{d2})
	rec.expectNone(t, 100*time.Millisecond)
	if agg.Current().Kind() != view.KindError {
		t.Errorf("Current() = %v, want error", agg.Current().Kind())
	}

	agg.Refresh()
	if got := rec.next(t); got.Kind() != view.KindLoading {
		t.Fatalf("state after refresh = %v, want loading", got.Kind())
	}
	if got := rec.next(t); len(got.Items()) != 2 {
		t.Fatalf("got %d items after refresh, want 2", len(got.Items()))
	}
}

func TestAggregatorLatestTriggerWins(t *testing.T) {
	coll := NewMemoryCollection(Entry{URL: "git://r#a.go", Diagnostics: []model.Diagnostic{d1}})
	res := twoFiles()
	res.gate = make(chan struct{})
	res.entered = make(chan struct{}, 8)

	rec := newRecorder()
	agg := NewAggregator(coll, res, rec.publish)
	defer agg.Dispose()

	if err := agg.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	<-res.entered // first run is blocked in the resolver

	coll.Set("git://r#b.go", []model.Diagnostic{d2})
	<-res.entered // second run supersedes the first
	close(res.gate)

	if got := rec.next(t); got.Kind() != view.KindLoading {
		t.Fatalf("first state = %v, want loading", got.Kind())
	}
	got := rec.next(t)
	if len(got.Items()) != 2 {
		t.Fatalf("got %d items, want the newer run's 2", len(got.Items()))
	}
	rec.expectNone(t, 50*time.Millisecond)
}

func TestAggregatorDispose(t *testing.T) {
	coll := NewMemoryCollection(Entry{URL: "git://r#a.go", Diagnostics: []model.Diagnostic{d1}})
	res := twoFiles()
	res.gate = make(chan struct{})
	res.entered = make(chan struct{}, 8)

	rec := newRecorder()
	agg := NewAggregator(coll, res, rec.publish)
	if err := agg.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	<-res.entered
	agg.Dispose()
	agg.Dispose()

	rec.next(t) // loading
	close(res.gate)
	coll.Set("git://r#b.go", []model.Diagnostic{d2})
	agg.Refresh()
	rec.expectNone(t, 50*time.Millisecond)
}

func TestAggregatorStartTwice(t *testing.T) {
	agg := NewAggregator(NewMemoryCollection(), twoFiles(), nil)
	defer agg.Dispose()

	if err := agg.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := agg.Start(context.Background()); !errors.Is(err, ErrStarted) {
		t.Errorf("second Start() error = %v, want ErrStarted", err)
	}
}
