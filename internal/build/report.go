package build

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/starford/shikibuild/internal/models"
)

// Stats aggregates the counters of one build.
type Stats struct {
	FilesScanned    int `json:"files_scanned"`
	FilesSkipped    int `json:"files_skipped"`
	FilesProcessed  int `json:"files_processed"`
	FilesFailed     int `json:"files_failed"`
	BlocksTotal     int `json:"blocks_total"`
	BlocksProcessed int `json:"blocks_processed"`
	BlocksCached    int `json:"blocks_cached"`
	BlocksFailed    int `json:"blocks_failed"`
}

// FileError records a file whose result could not be produced.
type FileError struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

// Report summarises one completed build.
type Report struct {
	ID          string                `json:"id"`
	StartedAt   time.Time             `json:"started_at"`
	FinishedAt  time.Time             `json:"finished_at"`
	Incremental bool                  `json:"incremental"`
	Since       time.Time             `json:"since,omitzero"`
	Stats       Stats                 `json:"stats"`
	Errors      []models.ProcessError `json:"errors"`
	FileErrors  []FileError           `json:"file_errors,omitempty"`
}

// Duration returns the wall-clock time of the build.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// AvgPerBlock returns the mean wall-clock time per block, or zero when no
// blocks were found.
func (r *Report) AvgPerBlock() time.Duration {
	if r.Stats.BlocksTotal == 0 {
		return 0
	}
	return r.Duration() / time.Duration(r.Stats.BlocksTotal)
}

// WriteSummary prints the human-readable summary table.
func (r *Report) WriteSummary(w io.Writer) {
	rule := strings.Repeat("=", 60)
	s := r.Stats
	fmt.Fprintf(w, "\n%s\nShiki Build Complete\n%s\n", rule, rule)
	fmt.Fprintf(w, "Total files:       %d\n", s.FilesScanned)
	fmt.Fprintf(w, "Skipped files:     %d\n", s.FilesSkipped)
	fmt.Fprintf(w, "Failed files:      %d\n", s.FilesFailed)
	fmt.Fprintf(w, "Total blocks:      %d\n", s.BlocksTotal)
	fmt.Fprintf(w, "Processed blocks:  %d\n", s.BlocksProcessed)
	fmt.Fprintf(w, "Cached blocks:     %d\n", s.BlocksCached)
	fmt.Fprintf(w, "Failed blocks:     %d\n", s.BlocksFailed)
	fmt.Fprintf(w, "Duration:          %.2fs\n", r.Duration().Seconds())
	if s.BlocksTotal > 0 {
		fmt.Fprintf(w, "Avg time/block:    %.2fms\n", float64(r.AvgPerBlock().Microseconds())/1000)
	}
	if len(r.Errors) > 0 {
		fmt.Fprintf(w, "Warnings:          %d (see log)\n", len(r.Errors))
	}
	fmt.Fprintf(w, "%s\n\n", rule)
}
