package internal

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/shikibuild/internal/apperr"
	"github.com/starford/shikibuild/internal/testutil"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	work := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Build.ContentDir = testutil.ContentDir(t, map[string]string{
		"post.md": "```go\nfunc main() {}\n```\n\n```js\nlet a\n```\n",
	})
	cfg.Build.OutputDir = filepath.Join(work, "out")
	cfg.Build.CacheDir = filepath.Join(work, "cache")
	return cfg
}

func TestRun_BuildsAndPrintsSummary(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer

	report, err := Run(context.Background(),
		WithConfig(cfg),
		WithLogger(testutil.Logger()),
		WithHighlighter(testutil.NewFakeHighlighter()),
		WithOutput(&out),
	)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Stats.BlocksProcessed != 2 {
		t.Errorf("stats = %+v", report.Stats)
	}
	if !strings.Contains(out.String(), "Shiki Build Complete") {
		t.Errorf("summary missing:\n%s", out.String())
	}
	if _, err := os.Stat(filepath.Join(cfg.Build.OutputDir, "post.json")); err != nil {
		t.Errorf("output missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Build.CacheDir, "history.db")); err != nil {
		t.Errorf("history db missing: %v", err)
	}
}

func TestRun_HistoryDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.Enabled = false

	_, err := Run(context.Background(),
		WithConfig(cfg),
		WithLogger(testutil.Logger()),
		WithHighlighter(testutil.NewFakeHighlighter()),
		WithOutput(&bytes.Buffer{}),
	)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Build.CacheDir, "history.db")); !os.IsNotExist(err) {
		t.Errorf("history db created while disabled: %v", err)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.CodeHighlight.Shiki.Themes.Light = "min-light"

	_, err := Run(context.Background(), WithConfig(cfg), WithLogger(testutil.Logger()))
	if !errors.Is(err, apperr.ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestRun_ConfigRequired(t *testing.T) {
	if _, err := Run(context.Background()); err == nil {
		t.Error("expected error without config")
	}
}
