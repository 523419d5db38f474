// Package diagnostics joins the entries of a diagnostics collection with
// the files they point at and publishes the result as a view state.
package diagnostics

import (
	"slices"
	"sync"

	"github.com/spiffcs/inbox/internal/model"
)

// Entry is the set of diagnostics published for one file URL.
type Entry struct {
	URL         string             `json:"url"`
	Diagnostics []model.Diagnostic `json:"diagnostics"`
}

// Collection is a source of diagnostics with a change feed.
type Collection interface {
	// Entries returns a snapshot in source order.
	Entries() []Entry
	// Subscribe returns a channel that receives a value after each change
	// and a function that ends the subscription and closes the channel.
	Subscribe() (<-chan struct{}, func())
}

// notifier fans change signals out to subscribers. Signals coalesce: a
// subscriber that has not drained its channel receives one signal.
type notifier struct {
	mu   sync.Mutex
	next int
	subs map[int]chan struct{}
}

func (n *notifier) Subscribe() (<-chan struct{}, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int]chan struct{})
	}
	id := n.next
	n.next++
	ch := make(chan struct{}, 1)
	n.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs, id)
			close(ch)
		})
	}
}

func (n *notifier) notify() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// MemoryCollection is a Collection held in memory.
type MemoryCollection struct {
	notifier

	mu      sync.RWMutex
	entries []Entry
}

var _ Collection = (*MemoryCollection)(nil)

// NewMemoryCollection creates a collection holding entries.
func NewMemoryCollection(entries ...Entry) *MemoryCollection {
	return &MemoryCollection{entries: cloneEntries(entries)}
}

// Entries implements Collection.
func (c *MemoryCollection) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneEntries(c.entries)
}

// Set replaces the diagnostics for url, appending a new entry if url is
// not present yet.
func (c *MemoryCollection) Set(url string, diags []model.Diagnostic) {
	c.mu.Lock()
	i := slices.IndexFunc(c.entries, func(e Entry) bool { return e.URL == url })
	if i < 0 {
		c.entries = append(c.entries, Entry{URL: url, Diagnostics: slices.Clone(diags)})
	} else {
		c.entries[i].Diagnostics = slices.Clone(diags)
	}
	c.mu.Unlock()
	c.notify()
}

// Delete removes the entry for url.
func (c *MemoryCollection) Delete(url string) {
	c.mu.Lock()
	before := len(c.entries)
	c.entries = slices.DeleteFunc(c.entries, func(e Entry) bool { return e.URL == url })
	changed := len(c.entries) != before
	c.mu.Unlock()
	if changed {
		c.notify()
	}
}

// Replace swaps the whole contents.
func (c *MemoryCollection) Replace(entries []Entry) {
	c.mu.Lock()
	c.entries = cloneEntries(entries)
	c.mu.Unlock()
	c.notify()
}

func cloneEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = Entry{URL: e.URL, Diagnostics: slices.Clone(e.Diagnostics)}
	}
	return out
}
