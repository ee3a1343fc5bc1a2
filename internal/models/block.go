// Package models defines the domain types for shikibuild.
package models

import "time"

// PlaintextLang is the language marker used for untagged blocks and as the
// universal fallback for unsupported languages.
const PlaintextLang = "plaintext"

// CodeBlock is one fenced code block found in a Markdown file.
type CodeBlock struct {
	File string `json:"file"`
	Line int    `json:"line"` // 1-based line of the opening fence
	Lang string `json:"lang"` // raw tag as written, "plaintext" when empty
	Meta string `json:"meta"`
	Code string `json:"code"`
}

// FileBlocks groups the blocks of one scanned file in document order.
type FileBlocks struct {
	Path    string      `json:"path"` // absolute
	RelPath string      `json:"rel_path"`
	Blocks  []CodeBlock `json:"blocks"`
}

// CacheEntry is one cached rendering result, as persisted on disk.
type CacheEntry struct {
	Hash      string `json:"hash"`
	HTML      string `json:"html"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
}

// CreatedAt returns the entry timestamp as a time.Time.
func (e CacheEntry) CreatedAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// BuildTimeRecord marks the start of the previous successful build.
type BuildTimeRecord struct {
	LastBuildTime int64  `json:"lastBuildTime"` // epoch milliseconds
	Version       string `json:"version"`
}

// BlockResult is one element of a per-file output document.
type BlockResult struct {
	Index   int    `json:"index"`
	Lang    string `json:"lang"`
	Meta    string `json:"meta"`
	Line    int    `json:"line"`
	HTML    string `json:"html"`
	Success bool   `json:"success"`
}
