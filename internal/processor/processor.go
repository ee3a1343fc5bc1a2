// Package processor renders code blocks through the highlighter, resolving
// language tags and degrading to documented fallbacks on failure.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/shikibuild/internal/fanout"
	"github.com/starford/shikibuild/internal/highlight"
	"github.com/starford/shikibuild/internal/lang"
	"github.com/starford/shikibuild/internal/models"
	"github.com/starford/shikibuild/internal/transform"
)

// DefaultConcurrency bounds parallel batches when no limit is given.
const DefaultConcurrency = 4

// Result is the outcome of rendering one block. HTML is empty when the block
// fell back to basic mode.
type Result struct {
	HTML         string
	Err          error
	FallbackUsed string
}

// OK reports whether the result carries markup.
func (r Result) OK() bool { return r.HTML != "" }

// Processor renders blocks. It is safe for concurrent use.
type Processor struct {
	cfg      Config
	hl       highlight.Highlighter
	resolver *lang.Resolver
	logger   *slog.Logger

	mu   sync.Mutex
	errs []models.ProcessError
}

// New creates a Processor. cfg is expected to be validated by the caller.
func New(cfg Config, hl highlight.Highlighter, resolver *lang.Resolver, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{cfg: cfg, hl: hl, resolver: resolver, logger: logger}
}

// SupportedLanguages returns every canonical language id.
func (p *Processor) SupportedLanguages() []string {
	return p.resolver.IDs()
}

// IsLanguageSupported reports whether tag resolves to a language.
func (p *Processor) IsLanguageSupported(tag string) bool {
	return p.resolver.IsSupported(tag)
}

// ErrorLog returns a copy of the errors recorded so far.
func (p *Processor) ErrorLog() []models.ProcessError {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.ProcessError(nil), p.errs...)
}

// ClearErrorLog discards the recorded errors.
func (p *Processor) ClearErrorLog() {
	p.mu.Lock()
	p.errs = nil
	p.mu.Unlock()
}

func (p *Processor) record(e models.ProcessError) {
	p.mu.Lock()
	p.errs = append(p.errs, e)
	p.mu.Unlock()

	attrs := []any{
		slog.String("type", string(e.Type)),
		slog.String("file", e.File),
		slog.Int("line", e.Line),
		slog.String("lang", e.Lang),
		slog.String("message", e.Message),
	}
	if e.Cause != "" {
		attrs = append(attrs, slog.String("error", e.Cause))
	}
	p.logger.Error("process: block failed", attrs...)
	if e.FallbackUsed != "" {
		p.logger.Warn("process: fallback applied",
			slog.String("file", e.File),
			slog.Int("line", e.Line),
			slog.String("fallback", e.FallbackUsed),
		)
	}
}

// ProcessOne renders a single block. It never panics and never returns an
// error to the caller; failures are recorded in the error log and reflected
// in the result.
func (p *Processor) ProcessOne(ctx context.Context, b models.CodeBlock) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			p.record(models.ProcessError{
				Type:         models.ErrUnknown,
				Message:      "Unexpected error: " + err.Error(),
				File:         b.File,
				Line:         b.Line,
				Lang:         b.Lang,
				Cause:        err.Error(),
				FallbackUsed: models.FallbackBasicMode,
			})
			res = Result{Err: err, FallbackUsed: models.FallbackBasicMode}
		}
	}()

	effective, ok := p.resolver.Resolve(b.Lang)
	if !ok {
		p.record(models.ProcessError{
			Type:         models.ErrLanguageNotSupported,
			Message:      p.resolver.SuggestionMessage(b.Lang),
			File:         b.File,
			Line:         b.Line,
			Lang:         b.Lang,
			Suggestions:  p.resolver.Suggest(b.Lang, 3),
			FallbackUsed: models.FallbackPlaintext,
		})
		effective = models.PlaintextLang
		res.FallbackUsed = models.FallbackPlaintext
	}

	transformers, err := p.transformers()
	if err != nil {
		p.record(models.ProcessError{
			Type:    models.ErrTransformer,
			Message: "Failed to initialize transformers: " + err.Error(),
			File:    b.File,
			Line:    b.Line,
			Lang:    b.Lang,
			Cause:   err.Error(),
		})
		transformers = nil
	}

	html, err := p.hl.Highlight(ctx, highlight.Request{
		Code:         b.Code,
		Lang:         effective,
		Meta:         b.Meta,
		Themes:       p.cfg.Themes,
		DefaultColor: p.cfg.DefaultColor,
		Wrap:         p.cfg.Wrap,
		Transformers: transformers,
	})
	if err != nil {
		pe := models.ProcessError{
			File:         b.File,
			Line:         b.Line,
			Lang:         b.Lang,
			Cause:        err.Error(),
			FallbackUsed: models.FallbackBasicMode,
		}
		switch highlight.ReasonOf(err) {
		case highlight.ReasonTheme:
			pe.Type, pe.Message = models.ErrThemeNotFound, "Theme error: "+err.Error()
		case highlight.ReasonTransform:
			pe.Type, pe.Message = models.ErrTransformer, "Transformer failed: "+err.Error()
		default:
			pe.Type, pe.Message = models.ErrRendering, "Rendering failed: "+err.Error()
		}
		p.record(pe)
		return Result{Err: err, FallbackUsed: models.FallbackBasicMode}
	}

	res.HTML = html
	return res
}

// transformers assembles the enabled transformers in their fixed order:
// file name, highlight, word highlight, diff.
func (p *Processor) transformers() ([]highlight.Transformer, error) {
	var out []highlight.Transformer
	t := p.cfg.Transformers
	if t.FileName {
		fn, err := transform.NewFileName(p.cfg.FileNameOptions.Style, p.cfg.FileNameOptions.HideDot)
		if err != nil {
			return nil, err
		}
		out = append(out, fn)
	}
	if t.Highlight {
		hl, err := transform.NewHighlight(transform.MatchV3)
		if err != nil {
			return nil, err
		}
		out = append(out, hl)
	}
	if t.WordHighlight {
		wh, err := transform.NewWordHighlight(transform.MatchV3)
		if err != nil {
			return nil, err
		}
		out = append(out, wh)
	}
	if t.Diff {
		d, err := transform.NewDiff(p.cfg.DiffOptions.MatchAlgorithm)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// ProcessSequential renders blocks one after another.
func (p *Processor) ProcessSequential(ctx context.Context, blocks []models.CodeBlock) []Result {
	out := make([]Result, len(blocks))
	for i, b := range blocks {
		out[i] = p.ProcessOne(ctx, b)
	}
	return out
}

// ProcessParallel renders blocks with at most concurrency in flight. Results
// are in input order.
func (p *Processor) ProcessParallel(ctx context.Context, blocks []models.CodeBlock, concurrency int) []Result {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return fanout.Map(ctx, blocks, concurrency, func(ctx context.Context, _ int, b models.CodeBlock) Result {
		return p.ProcessOne(ctx, b)
	})
}
