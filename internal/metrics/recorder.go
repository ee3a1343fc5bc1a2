// Package metrics provides build observability hooks. Components receive a
// Recorder; NoopRecorder is the default when metrics are not configured.
package metrics

import "time"

// Block outcomes.
const (
	BlockProcessed = "processed"
	BlockCached    = "cached"
	BlockFailed    = "failed"
)

// File outcomes.
const (
	FileProcessed = "processed"
	FileSkipped   = "skipped"
	FileFailed    = "failed"
)

// Build outcomes.
const (
	BuildSuccess = "success"
	BuildFailed  = "failed"
)

// Recorder defines observability hooks for builds.
type Recorder interface {
	ObserveBuildDuration(d time.Duration)
	ObserveStageDuration(stage string, d time.Duration)
	AddBlocks(outcome string, n int)
	AddFiles(outcome string, n int)
	IncBuildOutcome(outcome string)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) AddBlocks(string, int)                      {}
func (NoopRecorder) AddFiles(string, int)                       {}
func (NoopRecorder) IncBuildOutcome(string)                     {}
