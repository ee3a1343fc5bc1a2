package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/starford/shikibuild/internal/cache"
	"github.com/starford/shikibuild/internal/testutil"
)

func TestSchedulePrune_RemovesExpiredEntries(t *testing.T) {
	dir := t.TempDir()
	old, err := cache.Open(dir, cache.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) }))
	if err != nil {
		t.Fatal(err)
	}
	old.Set("fmt.Println()", "go", "", "<pre>old</pre>")

	c, err := cache.Open(dir, cache.WithMaxAge(time.Hour), cache.WithLogger(testutil.Logger()))
	if err != nil {
		t.Fatal(err)
	}
	c.Set("x := 1", "go", "", "<pre>fresh</pre>")

	s, err := NewScheduler(testutil.Logger())
	if err != nil {
		t.Fatal(err)
	}
	id, err := s.SchedulePrune(20*time.Millisecond, c)
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Error("empty job id")
	}
	s.Start()
	defer func() {
		if err := s.Stop(); err != nil {
			t.Errorf("Stop: %v", err)
		}
	}()

	deadline := time.Now().Add(3 * time.Second)
	for {
		stats, err := c.DiskStats(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if stats.Count == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("entries = %d, want 1 after prune", stats.Count)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if _, ok := c.Get("x := 1", "go", ""); !ok {
		t.Error("fresh entry pruned")
	}
}

func TestSchedulePrune_InvalidInterval(t *testing.T) {
	s, err := NewScheduler(testutil.Logger())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Stop()
	c, err := cache.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.SchedulePrune(0, c); err == nil {
		t.Error("zero interval should be rejected")
	}
}
