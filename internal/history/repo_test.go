package history

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/starford/shikibuild/internal/apperr"
	"github.com/starford/shikibuild/internal/build"
	"github.com/starford/shikibuild/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func report(id string, start time.Time, errs ...models.ProcessError) *build.Report {
	return &build.Report{
		ID:          id,
		StartedAt:   start,
		FinishedAt:  start.Add(time.Second),
		Incremental: true,
		Stats:       build.Stats{FilesScanned: 3, FilesProcessed: 2, FilesSkipped: 1, BlocksTotal: 5, BlocksProcessed: 4, BlocksFailed: 1},
		Errors:      errs,
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	for _, table := range []string{"builds", "build_errors"} {
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestRecordAndGet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := report("b1", start, models.ProcessError{
		Type:         models.ErrLanguageNotSupported,
		Message:      "Language \"javs\" not supported",
		File:         "a.md",
		Line:         3,
		Lang:         "javs",
		Suggestions:  []string{"java", "javascript"},
		FallbackUsed: models.FallbackPlaintext,
	})
	r.Since = start.Add(-time.Hour)
	if err := db.Record(ctx, r); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := db.Get(ctx, "b1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Stats != r.Stats || got.ErrorCount != 1 || !got.Incremental {
		t.Errorf("summary = %+v", got)
	}
	if !got.StartedAt.Equal(start) || !got.Since.Equal(r.Since) {
		t.Errorf("times = %v / %v", got.StartedAt, got.Since)
	}

	errs, err := db.Errors(ctx, "b1")
	if err != nil {
		t.Fatalf("Errors: %v", err)
	}
	if len(errs) != 1 || errs[0].Type != models.ErrLanguageNotSupported || errs[0].Line != 3 {
		t.Fatalf("errors = %+v", errs)
	}
	if !slices.Equal(errs[0].Suggestions, []string{"java", "javascript"}) {
		t.Errorf("suggestions = %v", errs[0].Suggestions)
	}
}

func TestGetNotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.Get(context.Background(), "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get err = %v, want ErrNotFound", err)
	}
	if _, err := db.Errors(context.Background(), "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Errors err = %v, want ErrNotFound", err)
	}
}

func TestRecentNewestFirst(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		if err := db.Record(ctx, report(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 || got[0].ID != "third" || got[1].ID != "second" {
		t.Errorf("recent = %+v", got)
	}
	if !got[0].Since.IsZero() || got[0].ErrorCount != 0 {
		t.Errorf("recent[0] = %+v", got[0])
	}
}

func TestRecordDuplicateID(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	if err := db.Record(ctx, report("dup", time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := db.Record(ctx, report("dup", time.Now())); err == nil {
		t.Error("expected duplicate id to fail")
	}
}
