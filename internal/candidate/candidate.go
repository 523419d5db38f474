// Package candidate resolves repo URIs to file blobs, memoizing results
// and sharing in-flight fetches between concurrent callers.
package candidate

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/spiffcs/inbox/internal/cache"
	"github.com/spiffcs/inbox/internal/constants"
	"github.com/spiffcs/inbox/internal/log"
	"github.com/spiffcs/inbox/internal/model"
	"github.com/spiffcs/inbox/internal/repouri"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Fetcher retrieves the file a URI points at.
type Fetcher interface {
	CandidateFile(ctx context.Context, uri string) (*model.FileEntry, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, uri string) (*model.FileEntry, error)

// CandidateFile calls f.
func (f FetcherFunc) CandidateFile(ctx context.Context, uri string) (*model.FileEntry, error) {
	return f(ctx, uri)
}

// Candidate is a resolved URI.
type Candidate struct {
	URI   string
	Entry *model.FileEntry
}

// Option configures a Cache.
type Option func(*Cache)

// WithStore adds a persistent layer read before and written after each fetch.
func WithStore(s cache.Store) Option {
	return func(c *Cache) {
		c.store = s
	}
}

// WithConcurrency bounds LookupAll's parallelism.
func WithConcurrency(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithProgress registers fn to be called as LookupAll settles each URI.
// fn may be called concurrently.
func WithProgress(fn func(completed, total int)) Option {
	return func(c *Cache) {
		c.onProgress = fn
	}
}

// Cache memoizes successful lookups for its lifetime. Failed lookups are
// not remembered.
type Cache struct {
	fetcher     Fetcher
	store       cache.Store
	concurrency int
	onProgress  func(completed, total int)

	mu    sync.RWMutex
	memo  map[string]*model.FileEntry
	group singleflight.Group
}

// New creates a cache over fetcher.
func New(fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		fetcher:     fetcher,
		concurrency: constants.DefaultConcurrency,
		memo:        make(map[string]*model.FileEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup resolves uri. Concurrent callers for the same uri share one
// fetch and observe the same result. Cancelling ctx returns early
// without cancelling the shared fetch.
func (c *Cache) Lookup(ctx context.Context, uri string) (Candidate, error) {
	c.mu.RLock()
	entry, ok := c.memo[uri]
	c.mu.RUnlock()
	if ok {
		return Candidate{URI: uri, Entry: entry}, nil
	}

	ch := c.group.DoChan(uri, func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx), uri)
	})

	select {
	case <-ctx.Done():
		return Candidate{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Candidate{}, res.Err
		}
		return Candidate{URI: uri, Entry: res.Val.(*model.FileEntry)}, nil
	}
}

func (c *Cache) fetch(ctx context.Context, uri string) (*model.FileEntry, error) {
	// A caller that lost the race to a finished fetch lands here after
	// the memo was filled.
	c.mu.RLock()
	entry, ok := c.memo[uri]
	c.mu.RUnlock()
	if ok {
		return entry, nil
	}

	if c.store != nil {
		if entry, ok := c.store.Get(uri); ok {
			log.Trace("candidate from disk cache", "uri", uri)
			c.remember(uri, entry)
			return entry, nil
		}
	}

	log.Debug("fetching candidate file", "uri", uri)
	entry, err := c.fetcher.CandidateFile(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", uri, err)
	}
	if entry == nil {
		return nil, fmt.Errorf("failed to fetch %s: empty result", uri)
	}
	c.remember(uri, entry)

	if c.store != nil {
		pinned := false
		if u, err := repouri.Parse(uri); err == nil {
			pinned = u.Immutable()
		}
		if err := c.store.Set(uri, entry, pinned); err != nil {
			log.Debug("failed to persist candidate", "uri", uri, "error", err)
		}
	}
	return entry, nil
}

func (c *Cache) remember(uri string, entry *model.FileEntry) {
	c.mu.Lock()
	c.memo[uri] = entry
	c.mu.Unlock()
}

// LookupAll resolves uris concurrently and returns candidates in input
// order. The first failure cancels the rest and is returned.
func (c *Cache) LookupAll(ctx context.Context, uris []string) ([]Candidate, error) {
	out := make([]Candidate, len(uris))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	var completed atomic.Int64
	for i, uri := range uris {
		g.Go(func() error {
			cand, err := c.Lookup(gctx, uri)
			if err != nil {
				return err
			}
			out[i] = cand
			if c.onProgress != nil {
				c.onProgress(int(completed.Add(1)), len(uris))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Len returns the number of memoized entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.memo)
}
