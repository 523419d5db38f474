// Package cache persists candidate file blobs between runs.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/spiffcs/inbox/internal/constants"
	"github.com/spiffcs/inbox/internal/log"
	"github.com/spiffcs/inbox/internal/model"
)

// Version should be incremented when the entry format changes so old
// entries are ignored.
const Version = constants.CacheVersion

const fileExt = ".json.zst"

// Entry is a cached file blob.
type Entry struct {
	URI      string          `json:"uri"`
	File     model.FileEntry `json:"file"`
	CachedAt time.Time       `json:"cachedAt"`
	// Pinned entries were fetched by commit ID and never expire.
	Pinned  bool `json:"pinned"`
	Version int  `json:"version"`
}

// Stats contains cache statistics.
type Stats struct {
	Total  int
	Valid  int
	Pinned int
	Bytes  int64
}

// Store is the persistent layer consulted by the candidate cache.
type Store interface {
	Get(uri string) (*model.FileEntry, bool)
	Set(uri string, file *model.FileEntry, pinned bool) error
}

var _ Store = (*Cache)(nil)

// Cache stores compressed blobs in a directory, one file per URI.
type Cache struct {
	dir string
	ttl time.Duration

	encOnce sync.Once
	enc     *zstd.Encoder
	decOnce sync.Once
	dec     *zstd.Decoder
}

// DefaultDir returns the cache directory under the user cache dir.
func DefaultDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "inbox", "files"), nil
}

// New creates a cache rooted at dir. A zero ttl selects
// constants.CandidateCacheTTL.
func New(dir string, ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		ttl = constants.CandidateCacheTTL
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Cache{dir: dir, ttl: ttl}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

func (c *Cache) encoder() *zstd.Encoder {
	c.encOnce.Do(func() {
		// NewWriter only fails on invalid options.
		c.enc, _ = zstd.NewWriter(nil)
	})
	return c.enc
}

func (c *Cache) decoder() *zstd.Decoder {
	c.decOnce.Do(func() {
		c.dec, _ = zstd.NewReader(nil)
	})
	return c.dec
}

// keyPath hashes the URI so any repo path maps to a safe file name.
func (c *Cache) keyPath(uri string) string {
	sum := sha256.Sum256([]byte(uri))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+fileExt)
}

func (c *Cache) read(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw, err := c.decoder().DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress cache entry: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("failed to parse cache entry: %w", err)
	}
	return &entry, nil
}

func (c *Cache) valid(e *Entry, now time.Time) bool {
	if e.Version != Version {
		return false
	}
	return e.Pinned || now.Sub(e.CachedAt) <= c.ttl
}

// Get returns the cached blob for uri if present and still valid.
func (c *Cache) Get(uri string) (*model.FileEntry, bool) {
	entry, err := c.read(c.keyPath(uri))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Debug("ignoring unreadable cache entry", "uri", uri, "error", err)
		}
		return nil, false
	}
	if entry.URI != uri {
		return nil, false
	}
	if !c.valid(entry, time.Now()) {
		log.Trace("cache entry expired", "uri", uri, "cached_at", entry.CachedAt)
		return nil, false
	}
	file := entry.File
	return &file, true
}

// Set stores a blob for uri.
func (c *Cache) Set(uri string, file *model.FileEntry, pinned bool) error {
	if file == nil {
		return nil
	}
	entry := Entry{
		URI:      uri,
		File:     *file,
		CachedAt: time.Now(),
		Pinned:   pinned,
		Version:  Version,
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	path := c.keyPath(uri)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, c.encoder().EncodeAll(raw, nil), 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Clear removes all cached entries.
func (c *Cache) Clear() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Stats walks the cache directory.
func (c *Cache) Stats() (*Stats, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	now := time.Now()
	for _, de := range entries {
		if !strings.HasSuffix(de.Name(), fileExt) {
			continue
		}
		stats.Total++
		if info, err := de.Info(); err == nil {
			stats.Bytes += info.Size()
		}
		entry, err := c.read(filepath.Join(c.dir, de.Name()))
		if err != nil {
			continue
		}
		if entry.Pinned {
			stats.Pinned++
		}
		if c.valid(entry, now) {
			stats.Valid++
		}
	}
	return stats, nil
}
