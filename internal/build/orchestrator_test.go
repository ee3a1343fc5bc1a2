package build

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/starford/shikibuild/internal/apperr"
	"github.com/starford/shikibuild/internal/models"
	"github.com/starford/shikibuild/internal/processor"
	"github.com/starford/shikibuild/internal/testutil"
)

const twoBlockPost = "# Post\n\n```javascript\nconst a = 1;\n```\n\nText.\n\n```unknownlang\nsome code\n```\n"

type fixture struct {
	content string
	cfg     Config
	hl      *testutil.FakeHighlighter
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	content := testutil.ContentDir(t, files)
	past := time.Now().Add(-time.Hour)
	for rel := range files {
		testutil.Touch(t, filepath.Join(content, rel), past)
	}
	work := t.TempDir()
	cfg := DefaultConfig()
	cfg.ContentDir = content
	cfg.OutputDir = filepath.Join(work, "out")
	cfg.CacheDir = filepath.Join(work, "cache")
	return &fixture{content: content, cfg: cfg, hl: testutil.NewFakeHighlighter()}
}

func (f *fixture) run(t *testing.T, opts ...Option) *Report {
	t.Helper()
	opts = append([]Option{WithLogger(testutil.Logger())}, opts...)
	report, err := New(f.cfg, processor.DefaultConfig(), f.hl, opts...).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return report
}

func (f *fixture) output(t *testing.T, rel string) []models.BlockResult {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.cfg.OutputDir, rel))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var out []models.BlockResult
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	return out
}

func TestRun_EndToEnd(t *testing.T) {
	f := newFixture(t, map[string]string{"posts/hello.md": twoBlockPost})
	report := f.run(t)

	out := f.output(t, "posts/hello.json")
	if len(out) != 2 {
		t.Fatalf("len(output) = %d, want 2", len(out))
	}
	if !out[0].Success || out[0].Lang != "javascript" || out[0].Index != 0 || out[0].Line != 3 || out[0].HTML == "" {
		t.Errorf("block 0 = %+v", out[0])
	}
	if !out[1].Success || out[1].Lang != "unknownlang" || out[1].Index != 1 {
		t.Errorf("block 1 = %+v", out[1])
	}

	if len(report.Errors) != 1 || report.Errors[0].Lang != "unknownlang" || report.Errors[0].Type != models.ErrLanguageNotSupported {
		t.Errorf("errors = %+v", report.Errors)
	}
	want := Stats{FilesScanned: 1, FilesProcessed: 1, BlocksTotal: 2, BlocksProcessed: 2}
	if report.Stats != want {
		t.Errorf("stats = %+v, want %+v", report.Stats, want)
	}
	if report.ID == "" || report.FinishedAt.Before(report.StartedAt) {
		t.Errorf("report = %+v", report)
	}

	var rec models.BuildTimeRecord
	data, err := os.ReadFile(filepath.Join(f.cfg.CacheDir, RecordFile))
	if err != nil || json.Unmarshal(data, &rec) != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.Version != RecordVersion || rec.LastBuildTime != report.StartedAt.UnixMilli() {
		t.Errorf("record = %+v, start = %d", rec, report.StartedAt.UnixMilli())
	}
}

func TestRun_SecondRunSkipsEverything(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.md":     twoBlockPost,
		"sub/b.md": "```go\nfunc main() {}\n```\n",
	})
	f.run(t)
	calls := f.hl.Calls()

	second := f.run(t)
	if second.Stats.FilesSkipped != second.Stats.FilesScanned || second.Stats.FilesScanned != 2 {
		t.Errorf("stats = %+v", second.Stats)
	}
	if second.Stats.BlocksProcessed != 0 || f.hl.Calls() != calls {
		t.Errorf("blocks processed = %d, highlighter calls %d -> %d", second.Stats.BlocksProcessed, calls, f.hl.Calls())
	}
}

func TestRun_SkippedOutputUntouched(t *testing.T) {
	f := newFixture(t, map[string]string{"old.md": twoBlockPost, "new.md": twoBlockPost})
	f.run(t)
	before, err := os.ReadFile(filepath.Join(f.cfg.OutputDir, "old.json"))
	if err != nil {
		t.Fatal(err)
	}

	// Rewrite old.md but keep its mtime before the record; bump new.md after.
	oldPath := filepath.Join(f.content, "old.md")
	testutil.WriteFile(t, f.content, "old.md", "```go\nchanged\n```\n")
	testutil.Touch(t, oldPath, time.Now().Add(-time.Hour))
	testutil.Touch(t, filepath.Join(f.content, "new.md"), time.Now().Add(time.Minute))

	report := f.run(t)
	if report.Stats.FilesSkipped != 1 || report.Stats.FilesProcessed != 1 {
		t.Errorf("stats = %+v", report.Stats)
	}
	after, err := os.ReadFile(filepath.Join(f.cfg.OutputDir, "old.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Error("skipped file output changed")
	}
}

func TestRun_NonIncrementalUsesCache(t *testing.T) {
	f := newFixture(t, map[string]string{"a.md": twoBlockPost})
	f.run(t)
	calls := f.hl.Calls()

	f.cfg.Incremental = false
	report := f.run(t)
	if report.Stats.BlocksCached != 2 || report.Stats.BlocksProcessed != 0 || report.Stats.FilesSkipped != 0 {
		t.Errorf("stats = %+v", report.Stats)
	}
	if f.hl.Calls() != calls {
		t.Error("cache hits should not reach the highlighter")
	}
}

func TestRun_FailedBlockNotCached(t *testing.T) {
	f := newFixture(t, map[string]string{"a.md": "```go\nok\n```\n\n```go\nbad\n```\n"})
	f.hl.Fail["bad"] = errors.New("render failed")
	f.cfg.Parallel = false

	report := f.run(t)
	if report.Stats.BlocksFailed != 1 || report.Stats.BlocksProcessed != 1 {
		t.Errorf("stats = %+v", report.Stats)
	}
	out := f.output(t, "a.json")
	if out[1].Success || out[1].HTML != "" || !out[0].Success {
		t.Errorf("output = %+v", out)
	}

	f.cfg.Incremental = false
	report = f.run(t)
	if report.Stats.BlocksCached != 1 || report.Stats.BlocksFailed != 1 {
		t.Errorf("second stats = %+v", report.Stats)
	}
}

func TestRun_EmptyContent(t *testing.T) {
	f := newFixture(t, map[string]string{"notes.txt": "nothing", "prose.md": "no code\n"})
	report := f.run(t)
	if report.Stats != (Stats{}) || len(report.Errors) != 0 {
		t.Errorf("report = %+v", report)
	}
	if entries, _ := os.ReadDir(f.cfg.OutputDir); len(entries) != 0 {
		t.Errorf("unexpected output: %v", entries)
	}
}

func TestRun_MissingContentDir(t *testing.T) {
	f := newFixture(t, nil)
	f.cfg.ContentDir = filepath.Join(f.cfg.OutputDir, "missing")
	if report := f.run(t); report.Stats != (Stats{}) {
		t.Errorf("stats = %+v", report.Stats)
	}
}

func TestRun_InvalidConfigIsFatal(t *testing.T) {
	f := newFixture(t, map[string]string{"a.md": twoBlockPost})
	f.cfg.Concurrency = 0

	_, err := New(f.cfg, processor.DefaultConfig(), f.hl, WithLogger(testutil.Logger())).Run(context.Background())
	if !errors.Is(err, apperr.ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
	if _, err := os.Stat(f.cfg.OutputDir); !os.IsNotExist(err) {
		t.Error("output dir created despite invalid config")
	}

	f = newFixture(t, map[string]string{"a.md": twoBlockPost})
	procCfg := processor.DefaultConfig()
	procCfg.Themes.Light = "no-such-theme"
	_, err = New(f.cfg, procCfg, f.hl, WithLogger(testutil.Logger())).Run(context.Background())
	if !errors.Is(err, apperr.ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestRun_CorruptRecordMeansFullBuild(t *testing.T) {
	f := newFixture(t, map[string]string{"a.md": twoBlockPost})
	testutil.WriteFile(t, f.cfg.CacheDir, RecordFile, `{"lastBuildTime": 99999999999999, "version": "0.1"}`)

	report := f.run(t)
	if report.Stats.FilesProcessed != 1 || report.Stats.FilesSkipped != 0 || !report.Since.IsZero() {
		t.Errorf("report = %+v", report)
	}
}

func TestRun_StatesMoveForwardOnce(t *testing.T) {
	f := newFixture(t, map[string]string{"a.md": twoBlockPost})
	var seen []State
	o := New(f.cfg, processor.DefaultConfig(), f.hl, WithLogger(testutil.Logger()), WithStateHook(func(s State) {
		seen = append(seen, s)
	}))
	if _, err := o.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := []State{StateInitializing, StateScanning, StateProcessing, StateFinalizing, StateDone}
	if !slices.Equal(seen, want) || o.State() != StateDone {
		t.Errorf("states = %v", seen)
	}
	if _, err := o.Run(context.Background()); err == nil {
		t.Error("second Run on the same instance should fail")
	}
}

func TestOutputPath(t *testing.T) {
	cases := map[string]string{
		"a.md":             "a.json",
		"posts/x/index.md": "posts/x/index.json",
		"notes.markdown":   "notes.markdown.json",
	}
	for in, want := range cases {
		if got := OutputPath(in); got != filepath.FromSlash(want) && got != want {
			t.Errorf("OutputPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReportSummary(t *testing.T) {
	start := time.Unix(100, 0)
	r := &Report{StartedAt: start, FinishedAt: start.Add(2 * time.Second), Stats: Stats{FilesScanned: 1, BlocksTotal: 4}}
	if r.AvgPerBlock() != 500*time.Millisecond {
		t.Errorf("AvgPerBlock = %v", r.AvgPerBlock())
	}
	var buf bytes.Buffer
	r.WriteSummary(&buf)
	for _, want := range []string{"Shiki Build Complete", "Total blocks:      4", "Duration:          2.00s", "Avg time/block:    500.00ms"} {
		if !bytes.Contains(buf.Bytes(), []byte(want)) {
			t.Errorf("summary missing %q:\n%s", want, buf.String())
		}
	}
}
