package cache

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/shikibuild/internal/checksum"
	"github.com/starford/shikibuild/internal/storage"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func quiet() *slog.Logger { return slog.New(slog.NewJSONHandler(io.Discard, nil)) }

func newTestCache(t *testing.T, dir string, clk *clock) *Cache {
	t.Helper()
	c, err := Open(dir, WithClock(clk.now), WithMaxAge(time.Hour), WithLogger(quiet()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return c
}

func TestSetGet(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	c := newTestCache(t, t.TempDir(), clk)

	if _, ok := c.Get("a", "js", ""); ok {
		t.Fatal("unexpected hit on empty cache")
	}
	c.Set("a", "js", "", "<pre>a</pre>")
	got, ok := c.Get("a", "js", "")
	if !ok || got != "<pre>a</pre>" {
		t.Errorf("Get = %q, %v", got, ok)
	}
	if !c.Has("a", "js", "") {
		t.Error("Has = false")
	}
	if c.Has("a", "ts", "") || c.Has("a", "js", "x") || c.Has("b", "js", "") {
		t.Error("component change should miss")
	}
}

func TestExpiry(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	dir := t.TempDir()
	c := newTestCache(t, dir, clk)
	c.Set("a", "js", "", "m")

	clk.advance(59 * time.Minute)
	if !c.Has("a", "js", "") {
		t.Fatal("entry expired too early")
	}
	clk.advance(2 * time.Minute)
	if c.Has("a", "js", "") {
		t.Fatal("expired entry returned")
	}
	if c.Stats().Count != 0 {
		t.Error("expired memory entry not evicted")
	}

	fresh := newTestCache(t, dir, clk)
	if fresh.Has("a", "js", "") {
		t.Error("expired disk entry returned")
	}
}

func TestReloadFromDisk(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	dir := t.TempDir()
	newTestCache(t, dir, clk).Set("fmt.Println()", "go", "{1}", "<pre>go</pre>")

	key := checksum.BlockKey("fmt.Println()", "go", "{1}")
	if _, err := os.Stat(filepath.Join(dir, key[:2], key+".json")); err != nil {
		t.Fatalf("sharded entry missing: %v", err)
	}

	fresh := newTestCache(t, dir, clk)
	got, ok := fresh.Get("fmt.Println()", "go", "{1}")
	if !ok || got != "<pre>go</pre>" {
		t.Errorf("Get after reload = %q, %v", got, ok)
	}
	if fresh.Stats().Count != 1 {
		t.Error("disk hit not promoted to memory")
	}
}

func TestCorruptEntryIsMiss(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	dir := t.TempDir()
	key := checksum.BlockKey("x", "go", "")
	if err := os.MkdirAll(filepath.Join(dir, key[:2]), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, key[:2], key+".json"), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if newTestCache(t, dir, clk).Has("x", "go", "") {
		t.Error("corrupt entry returned")
	}
}

type failingStore struct{ storage.Provider }

func (failingStore) Root() string                { return "/nowhere" }
func (failingStore) ReadJSON(string, any) error  { return errors.New("read boom") }
func (failingStore) WriteJSON(string, any) error { return errors.New("write boom") }

func TestDiskFailureDegradesToMemory(t *testing.T) {
	c := New(failingStore{}, WithLogger(quiet()))
	c.Set("a", "js", "", "m")
	if got, ok := c.Get("a", "js", ""); !ok || got != "m" {
		t.Errorf("memory tier should still serve: %q, %v", got, ok)
	}
	if c.Has("b", "js", "") {
		t.Error("read failure should be a miss")
	}
}

func TestCleanupAndStats(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	c := newTestCache(t, t.TempDir(), clk)
	c.Set("old", "js", "", "o")
	first := clk.t
	clk.advance(50 * time.Minute)
	c.Set("new", "js", "", "n")

	s := c.Stats()
	if s.Count != 2 || !s.Oldest.Equal(first) || !s.Newest.Equal(clk.t) {
		t.Errorf("Stats = %+v", s)
	}

	clk.advance(20 * time.Minute)
	if n := c.Cleanup(); n != 1 {
		t.Errorf("Cleanup removed %d, want 1", n)
	}
	if c.Stats().Count != 1 {
		t.Errorf("Stats after cleanup = %+v", c.Stats())
	}
}

func TestPruneAndDiskStats(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	dir := t.TempDir()
	c := newTestCache(t, dir, clk)
	c.Set("old", "js", "", "o")
	clk.advance(2 * time.Hour)
	c.Set("new", "js", "", "n")

	ctx := context.Background()
	s, err := c.DiskStats(ctx)
	if err != nil || s.Count != 2 || s.Bytes == 0 {
		t.Fatalf("DiskStats = %+v, %v", s, err)
	}

	n, err := c.Prune(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Prune = %d, %v", n, err)
	}
	s, _ = c.DiskStats(ctx)
	if s.Count != 1 {
		t.Errorf("entries after prune = %d", s.Count)
	}
}

func TestClearKeepsForeignFiles(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	dir := t.TempDir()
	marker := filepath.Join(dir, "build-time.json")
	if err := os.WriteFile(marker, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	c := newTestCache(t, dir, clk)
	c.Set("a", "js", "", "m")

	if err := c.Clear(context.Background()); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if c.Has("a", "js", "") {
		t.Error("entry survived Clear")
	}
	if _, err := os.Stat(marker); errors.Is(err, fs.ErrNotExist) {
		t.Error("Clear removed build-time.json")
	}
}
