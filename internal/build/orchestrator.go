// Package build drives one highlighting build: scan the content tree, render
// every changed file's code blocks through the cache and processor, persist
// per-file results and stamp the build-time record.
package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/shikibuild/internal/apperr"
	"github.com/starford/shikibuild/internal/cache"
	"github.com/starford/shikibuild/internal/fanout"
	"github.com/starford/shikibuild/internal/highlight"
	"github.com/starford/shikibuild/internal/lang"
	"github.com/starford/shikibuild/internal/metrics"
	"github.com/starford/shikibuild/internal/models"
	"github.com/starford/shikibuild/internal/processor"
	"github.com/starford/shikibuild/internal/scanner"
	"github.com/starford/shikibuild/internal/storage"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithResolver overrides the language resolver built from the highlighter.
func WithResolver(r *lang.Resolver) Option {
	return func(o *Orchestrator) { o.resolver = r }
}

// WithStateHook registers fn to observe state transitions.
func WithStateHook(fn func(State)) Option {
	return func(o *Orchestrator) { o.onState = fn }
}

// Orchestrator runs a single build. A fresh build needs a fresh instance.
type Orchestrator struct {
	cfg      Config
	procCfg  processor.Config
	hl       highlight.Highlighter
	resolver *lang.Resolver
	logger   *slog.Logger
	recorder metrics.Recorder
	now      func() time.Time
	onState  func(State)

	mu    sync.Mutex
	state State
	proc  *processor.Processor
}

// New creates an Orchestrator.
func New(cfg Config, procCfg processor.Config, hl highlight.Highlighter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		procCfg:  procCfg,
		hl:       hl,
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current phase.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Processor returns the processor of the current run, or nil before
// initialization.
func (o *Orchestrator) Processor() *processor.Processor {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.proc
}

func (o *Orchestrator) advance(next State) {
	o.mu.Lock()
	if next <= o.state {
		o.mu.Unlock()
		panic(fmt.Sprintf("build: invalid transition %s -> %s", o.state, next))
	}
	o.state = next
	o.mu.Unlock()

	o.logger.Debug("build: state", slog.String("state", next.String()))
	if o.onState != nil {
		o.onState(next)
	}
}

type runEnv struct {
	scan   *scanner.Scanner
	cache  *cache.Cache
	proc   *processor.Processor
	output storage.Provider
	state  storage.Provider
}

// Run executes the build. Only configuration problems and failure to set up
// the output or cache directories are returned as errors; everything else is
// recorded in the report.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	if o.State() != StateIdle {
		return nil, errors.New("build: orchestrator already used")
	}
	start := o.now()
	report := &Report{
		ID:          uuid.NewString(),
		StartedAt:   start,
		Incremental: o.cfg.Incremental,
	}

	o.advance(StateInitializing)
	env, err := o.initialize()
	if err != nil {
		o.recorder.IncBuildOutcome(metrics.BuildFailed)
		return nil, err
	}

	o.advance(StateScanning)
	stageStart := o.now()
	var since time.Time
	if o.cfg.Incremental {
		since = ReadRecord(env.state, o.logger)
	}
	report.Since = since
	files, err := env.scan.ScanAndExtract(ctx, o.cfg.Pattern)
	if err != nil {
		o.recorder.IncBuildOutcome(metrics.BuildFailed)
		return nil, fmt.Errorf("build: scan: %w", err)
	}
	report.Stats.FilesScanned = len(files)
	for _, f := range files {
		report.Stats.BlocksTotal += len(f.Blocks)
	}
	o.logger.Info("build: scanned",
		slog.Int("files", report.Stats.FilesScanned),
		slog.Int("blocks", report.Stats.BlocksTotal),
	)
	o.recorder.ObserveStageDuration(StateScanning.String(), o.now().Sub(stageStart))

	o.advance(StateProcessing)
	stageStart = o.now()
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			o.recorder.IncBuildOutcome(metrics.BuildFailed)
			return nil, err
		}
		if !since.IsZero() && !scanner.IsModifiedSince(f.Path, since) {
			report.Stats.FilesSkipped++
			o.logger.Debug("build: file unchanged", slog.String("path", f.RelPath))
			continue
		}
		if err := o.processFile(ctx, env, f, &report.Stats); err != nil {
			report.Stats.FilesFailed++
			report.FileErrors = append(report.FileErrors, FileError{File: f.RelPath, Message: err.Error()})
			o.logger.Error("build: file failed", slog.String("path", f.RelPath), slog.String("error", err.Error()))
			continue
		}
		report.Stats.FilesProcessed++
		o.logger.Debug("build: file processed",
			slog.String("path", f.RelPath),
			slog.Int("blocks", len(f.Blocks)),
			slog.String("progress", fmt.Sprintf("%d/%d", i+1, len(files))),
		)
	}
	o.recorder.ObserveStageDuration(StateProcessing.String(), o.now().Sub(stageStart))

	o.advance(StateFinalizing)
	if err := WriteRecord(env.state, start); err != nil {
		o.logger.Warn("build: record not written", slog.String("error", err.Error()))
	}
	report.Errors = env.proc.ErrorLog()
	report.FinishedAt = o.now()

	s := report.Stats
	o.recorder.AddFiles(metrics.FileProcessed, s.FilesProcessed)
	o.recorder.AddFiles(metrics.FileSkipped, s.FilesSkipped)
	o.recorder.AddFiles(metrics.FileFailed, s.FilesFailed)
	o.recorder.AddBlocks(metrics.BlockProcessed, s.BlocksProcessed)
	o.recorder.AddBlocks(metrics.BlockCached, s.BlocksCached)
	o.recorder.AddBlocks(metrics.BlockFailed, s.BlocksFailed)
	o.recorder.ObserveBuildDuration(report.Duration())
	o.recorder.IncBuildOutcome(metrics.BuildSuccess)

	o.advance(StateDone)
	o.logger.Info("build: complete",
		slog.String("id", report.ID),
		slog.Int("files", s.FilesScanned),
		slog.Int("skipped", s.FilesSkipped),
		slog.Int("processed_blocks", s.BlocksProcessed),
		slog.Int("cached_blocks", s.BlocksCached),
		slog.Int("failed_blocks", s.BlocksFailed),
		slog.Duration("duration", report.Duration()),
	)
	return report, nil
}

func (o *Orchestrator) initialize() (*runEnv, error) {
	if err := o.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: build: %w", apperr.ErrInvalidConfig, err)
	}
	if err := o.procCfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: code_highlight: %w", apperr.ErrInvalidConfig, err)
	}

	resolver := o.resolver
	if resolver == nil {
		resolver = lang.NewResolver(o.hl.Languages(), lang.DefaultOverrides)
	}
	scan, err := scanner.New(o.cfg.ContentDir, o.logger)
	if err != nil {
		return nil, err
	}
	state, err := storage.NewFS(o.cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("build: cache dir: %w", err)
	}
	output, err := storage.NewFS(o.cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("build: output dir: %w", err)
	}
	proc := processor.New(o.procCfg, o.hl, resolver, o.logger)

	o.mu.Lock()
	o.proc = proc
	o.mu.Unlock()

	return &runEnv{
		scan:   scan,
		cache:  cache.New(state, cache.WithMaxAge(o.cfg.CacheMaxAge), cache.WithClock(o.now), cache.WithLogger(o.logger)),
		proc:   proc,
		output: output,
		state:  state,
	}, nil
}

type blockOutcome int

const (
	outcomeProcessed blockOutcome = iota
	outcomeCached
	outcomeFailed
)

type blockRender struct {
	result  models.BlockResult
	outcome blockOutcome
}

func (o *Orchestrator) processFile(ctx context.Context, env *runEnv, f models.FileBlocks, stats *Stats) error {
	render := func(ctx context.Context, i int, b models.CodeBlock) blockRender {
		r := blockRender{result: models.BlockResult{Index: i, Lang: b.Lang, Meta: b.Meta, Line: b.Line}}
		if html, ok := env.cache.Get(b.Code, b.Lang, b.Meta); ok {
			o.logger.Debug("build: cache hit", slog.String("path", f.RelPath), slog.Int("line", b.Line))
			r.result.HTML, r.result.Success, r.outcome = html, true, outcomeCached
			return r
		}
		res := env.proc.ProcessOne(ctx, b)
		if !res.OK() {
			r.outcome = outcomeFailed
			return r
		}
		env.cache.Set(b.Code, b.Lang, b.Meta, res.HTML)
		r.result.HTML, r.result.Success, r.outcome = res.HTML, true, outcomeProcessed
		return r
	}

	limit := 1
	if o.cfg.Parallel {
		limit = o.cfg.Concurrency
	}
	renders := fanout.Map(ctx, f.Blocks, limit, render)

	results := make([]models.BlockResult, len(renders))
	for i, r := range renders {
		results[i] = r.result
		switch r.outcome {
		case outcomeCached:
			stats.BlocksCached++
		case outcomeFailed:
			stats.BlocksFailed++
		default:
			stats.BlocksProcessed++
		}
	}
	return env.output.WriteJSON(OutputPath(f.RelPath), results)
}

// OutputPath maps a content-relative Markdown path to its result path.
func OutputPath(rel string) string {
	if strings.EqualFold(filepath.Ext(rel), ".md") {
		rel = rel[:len(rel)-len(".md")]
	}
	return rel + ".json"
}
