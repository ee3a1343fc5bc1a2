// Package scanner finds Markdown files under a content root and extracts
// their fenced code blocks.
package scanner

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/starford/shikibuild/internal/models"
)

// DefaultPattern matches every Markdown file recursively.
const DefaultPattern = "**/*.md"

var ignoredDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
}

// Scanner walks a content tree for Markdown files.
type Scanner struct {
	root   string
	logger *slog.Logger
}

// New creates a Scanner rooted at contentDir.
func New(contentDir string, logger *slog.Logger) (*Scanner, error) {
	abs, err := filepath.Abs(contentDir)
	if err != nil {
		return nil, fmt.Errorf("scan: resolve root: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{root: abs, logger: logger}, nil
}

// Root returns the absolute content root.
func (s *Scanner) Root() string { return s.root }

// ScanFiles returns the absolute paths of files matching pattern, sorted.
// A missing root yields no files.
func (s *Scanner) ScanFiles(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := path.Match(strings.TrimPrefix(pattern, "**/"), ""); err != nil {
		return nil, fmt.Errorf("scan: bad pattern %q: %w", pattern, err)
	}
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		s.logger.Warn("scan: content root missing", slog.String("root", s.root))
		return nil, nil
	}

	var out []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			s.logger.Warn("scan: walk failed", slog.String("path", p), slog.String("error", walkErr.Error()))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if _, skip := ignoredDirs[d.Name()]; skip && p != s.root {
				return fs.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return nil
		}
		if matchPattern(pattern, filepath.ToSlash(rel)) {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan: walk: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// matchPattern supports a leading "**/" meaning "at any depth"; the rest is
// matched with path.Match against the slash-separated relative path.
func matchPattern(pattern, rel string) bool {
	if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
		if !strings.Contains(rest, "/") {
			m, _ := path.Match(rest, path.Base(rel))
			return m
		}
		parts := strings.Split(rel, "/")
		for i := range parts {
			if m, _ := path.Match(rest, strings.Join(parts[i:], "/")); m {
				return true
			}
		}
		return false
	}
	m, _ := path.Match(pattern, rel)
	return m
}

// ExtractCodeBlocks reads file and returns its fenced code blocks. A file
// that cannot be read yields no blocks and a logged warning.
func (s *Scanner) ExtractCodeBlocks(file string) []models.CodeBlock {
	data, err := os.ReadFile(file)
	if err != nil {
		s.logger.Warn("scan: read failed", slog.String("path", file), slog.String("error", err.Error()))
		return nil
	}
	return Parse(file, data)
}

// ScanAndExtract scans for files and extracts their blocks. Files without
// blocks are omitted; the result is ordered by path.
func (s *Scanner) ScanAndExtract(ctx context.Context, pattern string) ([]models.FileBlocks, error) {
	files, err := s.ScanFiles(ctx, pattern)
	if err != nil {
		return nil, err
	}
	var out []models.FileBlocks
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		blocks := s.ExtractCodeBlocks(f)
		if len(blocks) == 0 {
			continue
		}
		rel, _ := filepath.Rel(s.root, f)
		out = append(out, models.FileBlocks{Path: f, RelPath: rel, Blocks: blocks})
	}
	return out, nil
}

// ModifiedSince returns the matching files whose modification time, at
// millisecond precision, is strictly after since. Files that cannot be
// stat'd are left out.
func (s *Scanner) ModifiedSince(ctx context.Context, since time.Time, pattern string) ([]string, error) {
	files, err := s.ScanFiles(ctx, pattern)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range files {
		if IsModifiedSince(f, since) {
			out = append(out, f)
		}
	}
	return out, nil
}

// IsModifiedSince reports whether file's mtime is strictly after since, at
// millisecond precision. A stat failure reports false.
func IsModifiedSince(file string, since time.Time) bool {
	info, err := os.Stat(file)
	if err != nil {
		return false
	}
	return info.ModTime().UnixMilli() > since.UnixMilli()
}

// lineOf returns the 1-based line number of byte offset off.
func lineOf(src []byte, off int) int {
	return bytes.Count(src[:off], []byte("\n")) + 1
}
