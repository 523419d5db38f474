package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spiffcs/inbox/internal/candidate"
	"github.com/spiffcs/inbox/internal/log"
	"github.com/spiffcs/inbox/internal/model"
	"github.com/spiffcs/inbox/internal/view"
)

// State is what the aggregator publishes.
type State = view.State[model.DiagnosticInfo]

// MissingEntryError reports a collection URL that resolved to no file.
type MissingEntryError struct {
	URL string
}

func (e *MissingEntryError) Error() string {
	return fmt.Sprintf("no file entry for %s", e.URL)
}

// Resolver resolves URLs to files, returning one candidate per input in
// input order. *candidate.Cache satisfies it.
type Resolver interface {
	LookupAll(ctx context.Context, uris []string) ([]candidate.Candidate, error)
}

// ErrStarted is returned by Start on an aggregator that is already running.
var ErrStarted = errors.New("aggregator already started")

// Aggregator publishes the diagnostics of a collection joined with their
// files. Each change to the collection starts a new run; a newer run
// supersedes any run still in flight. After an error, changes are ignored
// until Refresh is called.
type Aggregator struct {
	coll     Collection
	resolver Resolver
	onState  func(State)

	// pubMu serializes publications.
	pubMu sync.Mutex

	mu          sync.Mutex
	ctx         context.Context
	gen         uint64
	cancel      context.CancelFunc
	errored     bool
	disposed    bool
	unsubscribe func()
	current     State
	wg          sync.WaitGroup
}

// NewAggregator creates an aggregator. onState receives every publication
// in order from a single goroutine at a time; it must not call Dispose
// or Current.
func NewAggregator(coll Collection, resolver Resolver, onState func(State)) *Aggregator {
	if onState == nil {
		onState = func(State) {}
	}
	return &Aggregator{
		coll:     coll,
		resolver: resolver,
		onState:  onState,
		current:  view.Loading[model.DiagnosticInfo](),
	}
}

// Start subscribes to the collection, publishes Loading and runs once.
// Cancelling ctx stops further runs.
func (a *Aggregator) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return nil
	}
	if a.ctx != nil {
		a.mu.Unlock()
		return ErrStarted
	}
	a.ctx = ctx
	changes, unsubscribe := a.coll.Subscribe()
	a.unsubscribe = unsubscribe
	a.wg.Add(1)
	a.mu.Unlock()

	go a.watch(ctx, changes)
	a.trigger(true)
	return nil
}

// Refresh clears a sticky error and runs again.
func (a *Aggregator) Refresh() {
	a.trigger(true)
}

// Current returns the last published state.
func (a *Aggregator) Current() State {
	a.pubMu.Lock()
	defer a.pubMu.Unlock()
	return a.current
}

// Dispose stops the aggregator. No publication happens after it returns.
func (a *Aggregator) Dispose() {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return
	}
	a.disposed = true
	if a.cancel != nil {
		a.cancel()
	}
	unsubscribe := a.unsubscribe
	a.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	a.wg.Wait()

	// Wait out a Refresh publishing Loading on its caller's goroutine.
	a.pubMu.Lock()
	defer a.pubMu.Unlock()
}

func (a *Aggregator) watch(ctx context.Context, changes <-chan struct{}) {
	defer a.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			a.trigger(false)
		}
	}
}

// trigger supersedes any in-flight run and starts a new one. A refresh
// publishes Loading first and clears a sticky error; a plain change
// notification is dropped while an error is showing.
func (a *Aggregator) trigger(refresh bool) {
	a.mu.Lock()
	if a.disposed || a.ctx == nil {
		a.mu.Unlock()
		return
	}
	if a.errored && !refresh {
		a.mu.Unlock()
		log.Debug("ignoring diagnostics change after error; refresh to retry")
		return
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.gen++
	gen := a.gen
	ctx, cancel := context.WithCancel(a.ctx)
	a.cancel = cancel
	a.errored = false
	a.wg.Add(1)
	a.mu.Unlock()

	if refresh {
		a.publish(gen, view.Loading[model.DiagnosticInfo]())
	}
	go func() {
		defer a.wg.Done()
		a.run(ctx, gen)
	}()
}

func (a *Aggregator) run(ctx context.Context, gen uint64) {
	entries := a.coll.Entries()
	items, err := a.resolve(ctx, entries)
	if ctx.Err() != nil {
		// Superseded, disposed or stopped.
		return
	}
	if err != nil {
		log.Debug("diagnostics run failed", "error", err)
		a.publish(gen, view.Failed[model.DiagnosticInfo](err))
		return
	}
	log.Debug("diagnostics run complete", "entries", len(entries), "diagnostics", len(items))
	a.publish(gen, view.Loaded(items))
}

func (a *Aggregator) resolve(ctx context.Context, entries []Entry) ([]model.DiagnosticInfo, error) {
	uris := make([]string, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.URL]; ok {
			continue
		}
		seen[e.URL] = struct{}{}
		uris = append(uris, e.URL)
	}

	files := make(map[string]*model.FileEntry, len(uris))
	if len(uris) > 0 {
		cands, err := a.resolver.LookupAll(ctx, uris)
		if err != nil {
			return nil, err
		}
		for _, c := range cands {
			if c.Entry != nil {
				files[c.URI] = c.Entry
			}
		}
	}

	var out []model.DiagnosticInfo
	for _, e := range entries {
		file, ok := files[e.URL]
		if !ok {
			return nil, &MissingEntryError{URL: e.URL}
		}
		for _, d := range e.Diagnostics {
			out = append(out, model.DiagnosticInfo{Diagnostic: d, Entry: file})
		}
	}
	return out, nil
}

func (a *Aggregator) publish(gen uint64, s State) {
	a.pubMu.Lock()
	defer a.pubMu.Unlock()

	a.mu.Lock()
	stale := a.disposed || gen != a.gen
	if !stale && s.Kind() == view.KindError {
		a.errored = true
	}
	a.mu.Unlock()
	if stale {
		return
	}

	a.current = s
	a.onState(s)
}
