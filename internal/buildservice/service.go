// Package buildservice serializes builds behind a single trigger and answers
// the language, theme and result queries shared by the API, MCP server and
// content watcher.
package buildservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/starford/shikibuild/internal/apperr"
	"github.com/starford/shikibuild/internal/build"
	"github.com/starford/shikibuild/internal/highlight"
	"github.com/starford/shikibuild/internal/history"
	"github.com/starford/shikibuild/internal/lang"
	"github.com/starford/shikibuild/internal/metrics"
	"github.com/starford/shikibuild/internal/models"
	"github.com/starford/shikibuild/internal/processor"
	"github.com/starford/shikibuild/internal/sse"
	"github.com/starford/shikibuild/internal/storage"
)

// Publisher receives build lifecycle events. *sse.Broker satisfies it.
type Publisher interface {
	Publish(sse.Event)
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithHistory records every completed build in store.
func WithHistory(store history.Store) Option {
	return func(s *Service) { s.history = store }
}

// WithPublisher publishes build events to p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithRecorder sets the metrics recorder handed to every build.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// Service owns the build configuration and runs at most one build at a time.
type Service struct {
	cfg       build.Config
	procCfg   processor.Config
	hl        highlight.Highlighter
	resolver  *lang.Resolver
	history   history.Store
	publisher Publisher
	recorder  metrics.Recorder
	logger    *slog.Logger

	running atomic.Bool
	pending atomic.Bool
	mu      sync.RWMutex
	latest  *build.Report
}

// New creates a Service.
func New(cfg build.Config, procCfg processor.Config, hl highlight.Highlighter, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		procCfg:  procCfg,
		hl:       hl,
		resolver: lang.NewResolver(hl.Languages(), lang.DefaultOverrides),
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolver returns the language resolver shared by every build.
func (s *Service) Resolver() *lang.Resolver { return s.resolver }

// Running reports whether a build is in progress.
func (s *Service) Running() bool { return s.running.Load() }

// Trigger runs one build. A call while another build is running returns
// apperr.ErrBuildInProgress without waiting. When Request was called during
// the build, Trigger builds again before returning the last report.
func (s *Service) Trigger(ctx context.Context) (*build.Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, apperr.ErrBuildInProgress
	}
	for {
		s.pending.Store(false)
		report, err := s.run(ctx)
		s.running.Store(false)
		if err != nil || ctx.Err() != nil || !s.pending.Load() {
			return report, err
		}
		if !s.running.CompareAndSwap(false, true) {
			// Another caller started the follow-up build.
			return report, nil
		}
		s.logger.Info("buildservice: content changed during build, rebuilding")
	}
}

// Request asks for a build because content changed. If a build is already
// running it returns apperr.ErrBuildInProgress, and the running build is
// followed by another one that picks the change up.
func (s *Service) Request(ctx context.Context) (*build.Report, error) {
	s.pending.Store(true)
	return s.Trigger(ctx)
}

func (s *Service) run(ctx context.Context) (*build.Report, error) {
	s.publish(sse.TypeBuildStarted, map[string]any{"incremental": s.cfg.Incremental})

	o := build.New(s.cfg, s.procCfg, s.hl,
		build.WithLogger(s.logger),
		build.WithRecorder(s.recorder),
		build.WithResolver(s.resolver),
	)
	report, err := o.Run(ctx)
	if err != nil {
		s.logger.Error("buildservice: build failed", slog.String("error", err.Error()))
		s.publish(sse.TypeBuildFailed, map[string]string{"error": err.Error()})
		return nil, err
	}

	s.mu.Lock()
	s.latest = report
	s.mu.Unlock()

	if s.history != nil {
		if err := s.history.Record(ctx, report); err != nil {
			s.logger.Warn("buildservice: history record failed",
				slog.String("id", report.ID),
				slog.String("error", err.Error()))
		}
	}
	s.publish(sse.TypeBuildCompleted, history.SummaryOf(report))
	return report, nil
}

func (s *Service) publish(typ string, data any) {
	if s.publisher != nil {
		s.publisher.Publish(sse.Event{Type: typ, Data: data})
	}
}

// Latest returns the report of the most recent successful build in this
// process, or apperr.ErrNotFound.
func (s *Service) Latest() (*build.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, apperr.ErrNotFound
	}
	return s.latest, nil
}

// Recent lists up to limit builds, newest first. Without a history store only
// the latest in-process build is known.
func (s *Service) Recent(ctx context.Context, limit int) ([]history.Summary, error) {
	if s.history != nil {
		return s.history.Recent(ctx, limit)
	}
	latest, err := s.Latest()
	if err != nil {
		return []history.Summary{}, nil
	}
	return []history.Summary{history.SummaryOf(latest)}, nil
}

// Build returns one build summary by id.
func (s *Service) Build(ctx context.Context, id string) (*history.Summary, error) {
	if s.history != nil {
		return s.history.Get(ctx, id)
	}
	latest, err := s.Latest()
	if err != nil || latest.ID != id {
		return nil, apperr.ErrNotFound
	}
	sum := history.SummaryOf(latest)
	return &sum, nil
}

// BuildErrors returns the block errors of one build.
func (s *Service) BuildErrors(ctx context.Context, id string) ([]models.ProcessError, error) {
	if s.history != nil {
		return s.history.Errors(ctx, id)
	}
	latest, err := s.Latest()
	if err != nil || latest.ID != id {
		return nil, apperr.ErrNotFound
	}
	return slices.Clone(latest.Errors), nil
}

// Result reads the stored block results at a path relative to the output dir.
// A Markdown content path is mapped to its result path first.
func (s *Service) Result(rel string) ([]models.BlockResult, error) {
	out, err := storage.NewFS(s.cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("buildservice: output dir: %w", err)
	}
	var results []models.BlockResult
	if err := out.ReadJSON(build.OutputPath(strings.TrimSuffix(rel, ".json")), &results); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("buildservice: read result: %w", err)
	}
	return results, nil
}

// LanguageCheck describes how a fence tag resolves.
type LanguageCheck struct {
	Tag         string    `json:"tag"`
	Supported   bool      `json:"supported"`
	Language    lang.Info `json:"language,omitzero"`
	Suggestions []string  `json:"suggestions,omitempty"`
	Message     string    `json:"message,omitempty"`
}

// Languages lists every supported language.
func (s *Service) Languages() []lang.Info {
	return s.resolver.Languages()
}

// CheckLanguage resolves tag and, when unsupported, suggests alternatives.
func (s *Service) CheckLanguage(tag string) LanguageCheck {
	if info, ok := s.resolver.Info(tag); ok {
		return LanguageCheck{Tag: tag, Supported: true, Language: info}
	}
	return LanguageCheck{
		Tag:         tag,
		Suggestions: s.resolver.Suggest(tag, 3),
		Message:     s.resolver.SuggestionMessage(tag),
	}
}

// ThemeList is the set of available themes plus the configured pair.
type ThemeList struct {
	Configured highlight.Themes `json:"configured"`
	Available  []string         `json:"available"`
}

// Themes lists the available themes.
func (s *Service) Themes() ThemeList {
	return ThemeList{Configured: s.procCfg.Themes, Available: highlight.ThemeNames()}
}

// HighlightResult is the outcome of a one-off highlight.
type HighlightResult struct {
	HTML     string                `json:"html"`
	Success  bool                  `json:"success"`
	Fallback string                `json:"fallback,omitempty"`
	Errors   []models.ProcessError `json:"errors,omitempty"`
}

// Highlight renders one snippet with the configured themes and transformers.
// Render failures are reported in the result, not as an error.
func (s *Service) Highlight(ctx context.Context, code, tag, meta string) HighlightResult {
	p := processor.New(s.procCfg, s.hl, s.resolver, s.logger)
	res := p.ProcessOne(ctx, models.CodeBlock{Code: code, Lang: tag, Meta: meta, File: "<inline>", Line: 1})
	return HighlightResult{
		HTML:     res.HTML,
		Success:  res.OK(),
		Fallback: res.FallbackUsed,
		Errors:   p.ErrorLog(),
	}
}
