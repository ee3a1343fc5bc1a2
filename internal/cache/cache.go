// Package cache implements the two-tier block cache: an in-memory map in
// front of a sharded on-disk store of rendered markup.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/starford/shikibuild/internal/checksum"
	"github.com/starford/shikibuild/internal/models"
	"github.com/starford/shikibuild/internal/storage"
)

// DefaultMaxAge is the entry lifetime used when none is configured.
const DefaultMaxAge = time.Hour

// Option configures a Cache.
type Option func(*Cache)

// WithMaxAge sets the entry lifetime.
func WithMaxAge(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.maxAge = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// Cache maps (code, lang, meta) triples to rendered markup. Disk failures
// are logged and degrade to misses; they never surface to callers of
// Get or Set.
type Cache struct {
	mu     sync.RWMutex
	mem    map[string]models.CacheEntry
	store  storage.Provider
	maxAge time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// Open creates the cache directory if needed and returns a Cache on top of
// it.
func Open(dir string, opts ...Option) (*Cache, error) {
	store, err := storage.NewFS(dir)
	if err != nil {
		return nil, fmt.Errorf("cache: open: %w", err)
	}
	return New(store, opts...), nil
}

// New returns a Cache persisting entries through store.
func New(store storage.Provider, opts ...Option) *Cache {
	c := &Cache{
		mem:    make(map[string]models.CacheEntry),
		store:  store,
		maxAge: DefaultMaxAge,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Dir returns the disk tier root.
func (c *Cache) Dir() string { return c.store.Root() }

func entryPath(key string) string {
	return filepath.Join(key[:2], key+".json")
}

func (c *Cache) expired(e models.CacheEntry) bool {
	return c.now().Sub(e.CreatedAt()) > c.maxAge
}

// Get returns the cached markup for the triple.
func (c *Cache) Get(code, lang, meta string) (string, bool) {
	key := checksum.BlockKey(code, lang, meta)

	c.mu.RLock()
	e, ok := c.mem[key]
	c.mu.RUnlock()
	if ok {
		if !c.expired(e) {
			return e.HTML, true
		}
		c.mu.Lock()
		delete(c.mem, key)
		c.mu.Unlock()
		return "", false
	}

	var disk models.CacheEntry
	if err := c.store.ReadJSON(entryPath(key), &disk); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("cache: read failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return "", false
	}
	if disk.Hash != key || c.expired(disk) {
		return "", false
	}

	c.mu.Lock()
	c.mem[key] = disk
	c.mu.Unlock()
	return disk.HTML, true
}

// Has reports whether a live entry exists for the triple.
func (c *Cache) Has(code, lang, meta string) bool {
	_, ok := c.Get(code, lang, meta)
	return ok
}

// Set stores markup in both tiers.
func (c *Cache) Set(code, lang, meta, html string) {
	key := checksum.BlockKey(code, lang, meta)
	e := models.CacheEntry{Hash: key, HTML: html, Timestamp: c.now().UnixMilli()}

	c.mu.Lock()
	c.mem[key] = e
	c.mu.Unlock()

	if err := c.store.WriteJSON(entryPath(key), e); err != nil {
		c.logger.Warn("cache: write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// Clear drops every entry from both tiers. Files outside the shard
// directories are left alone.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.mem = make(map[string]models.CacheEntry)
	c.mu.Unlock()
	return c.walkEntries(ctx, func(rel string, _ fs.FileInfo, _ *models.CacheEntry) error {
		if err := c.store.Delete(rel); err != nil {
			return fmt.Errorf("cache: clear: %w", err)
		}
		return nil
	})
}

// Cleanup evicts expired entries from the memory tier.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.mem {
		if c.expired(e) {
			delete(c.mem, k)
			n++
		}
	}
	return n
}

// Stats summarises a cache tier.
type Stats struct {
	Count  int       `json:"count"`
	Bytes  int64     `json:"bytes,omitempty"`
	Oldest time.Time `json:"oldest"`
	Newest time.Time `json:"newest"`
}

func (s *Stats) add(ts time.Time) {
	if s.Count == 0 || ts.Before(s.Oldest) {
		s.Oldest = ts
	}
	if s.Count == 0 || ts.After(s.Newest) {
		s.Newest = ts
	}
	s.Count++
}

// Stats reports on the memory tier.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var s Stats
	for _, e := range c.mem {
		s.add(e.CreatedAt())
	}
	return s
}

// DiskStats reports on the disk tier. Unreadable entries are skipped.
func (c *Cache) DiskStats(ctx context.Context) (Stats, error) {
	var s Stats
	err := c.walkEntries(ctx, func(rel string, info fs.FileInfo, e *models.CacheEntry) error {
		if e == nil {
			return nil
		}
		s.add(e.CreatedAt())
		s.Bytes += info.Size()
		return nil
	})
	return s, err
}

// Prune deletes expired and unreadable entry files from the disk tier and
// evicts expired entries from memory. It returns the number of files removed.
func (c *Cache) Prune(ctx context.Context) (int, error) {
	c.Cleanup()
	removed := 0
	err := c.walkEntries(ctx, func(rel string, _ fs.FileInfo, e *models.CacheEntry) error {
		if e != nil && !c.expired(*e) {
			return nil
		}
		if err := c.store.Delete(rel); err != nil {
			c.logger.Warn("cache: prune failed", slog.String("path", rel), slog.String("error", err.Error()))
			return nil
		}
		removed++
		return nil
	})
	return removed, err
}

// walkEntries visits every entry file; e is nil when the file cannot be
// decoded.
func (c *Cache) walkEntries(ctx context.Context, fn func(rel string, info fs.FileInfo, e *models.CacheEntry) error) error {
	err := c.store.Walk("", func(rel string, info fs.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !strings.HasSuffix(rel, ".json") || filepath.Dir(rel) == "." {
			return nil
		}
		var e models.CacheEntry
		if err := c.store.ReadJSON(rel, &e); err != nil {
			return fn(rel, info, nil)
		}
		return fn(rel, info, &e)
	})
	if err != nil {
		return fmt.Errorf("cache: walk: %w", err)
	}
	return nil
}
