// Package testutil provides shared test helpers for content trees and a
// deterministic highlighter.
package testutil

import (
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/shikibuild/internal/highlight"
	"github.com/starford/shikibuild/internal/lang"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// ContentDir creates a temporary content tree from rel path → content.
func ContentDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		WriteFile(t, dir, rel, content)
	}
	return dir
}

// WriteFile writes content under dir, creating parents, and returns the
// absolute path.
func WriteFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	p := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// Touch sets the modification time of path.
func Touch(t *testing.T, path string, at time.Time) {
	t.Helper()
	if err := os.Chtimes(path, at, at); err != nil {
		t.Fatal(err)
	}
}

// FakeHighlighter renders code as escaped text inside a <pre>. Failures and
// panics are keyed by the exact code string.
type FakeHighlighter struct {
	Fail    map[string]error
	PanicOn string

	mu       sync.Mutex
	requests []highlight.Request
}

// NewFakeHighlighter returns a FakeHighlighter with no configured failures.
func NewFakeHighlighter() *FakeHighlighter {
	return &FakeHighlighter{Fail: map[string]error{}}
}

// Languages implements highlight.Highlighter.
func (f *FakeHighlighter) Languages() []lang.Info {
	return []lang.Info{
		{ID: "bash", Name: "Bash", Aliases: []string{"zsh"}},
		{ID: "go", Name: "Go", Aliases: []string{"golang"}},
		{ID: "java", Name: "Java"},
		{ID: "javascript", Name: "JavaScript", Aliases: []string{"mjs"}},
		{ID: "markdown", Name: "markdown"},
		{ID: "plaintext", Name: "plaintext"},
		{ID: "python", Name: "Python", Aliases: []string{"py3"}},
		{ID: "typescript", Name: "TypeScript", Aliases: []string{"tsx"}},
		{ID: "yaml", Name: "YAML"},
	}
}

// Resolver builds a lang.Resolver over the fake language set.
func (f *FakeHighlighter) Resolver() *lang.Resolver {
	return lang.NewResolver(f.Languages(), lang.DefaultOverrides)
}

// Highlight implements highlight.Highlighter.
func (f *FakeHighlighter) Highlight(ctx context.Context, req highlight.Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	err := f.Fail[req.Code]
	f.mu.Unlock()

	if err != nil {
		return "", err
	}
	if f.PanicOn != "" && req.Code == f.PanicOn {
		panic("fake highlighter panic")
	}
	return fmt.Sprintf(`<pre class="shiki" data-language="%s" data-transformers="%d"><code>%s</code></pre>`,
		req.Lang, len(req.Transformers), html.EscapeString(req.Code)), nil
}

// Requests returns the requests received so far.
func (f *FakeHighlighter) Requests() []highlight.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]highlight.Request(nil), f.requests...)
}

// Calls returns the number of Highlight invocations.
func (f *FakeHighlighter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}
