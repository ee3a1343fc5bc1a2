// Package highlight defines the syntax-highlighter collaborator used by the
// processor and provides a chroma-backed implementation that renders
// Shiki-compatible dual-theme markup.
package highlight

import (
	"context"
	"errors"
	"fmt"

	"github.com/starford/shikibuild/internal/lang"
)

// Themes is a light/dark theme pair.
type Themes struct {
	Light string `json:"light" yaml:"light"`
	Dark  string `json:"dark" yaml:"dark"`
}

// Request describes one highlight invocation.
type Request struct {
	Code         string
	Lang         string
	Meta         string
	Themes       Themes
	DefaultColor bool
	Wrap         bool
	Transformers []Transformer
}

// Transformer post-processes a highlighted document before rendering.
type Transformer interface {
	Name() string
	Transform(doc *Document) error
}

// Highlighter turns source code into styled markup.
type Highlighter interface {
	Highlight(ctx context.Context, req Request) (string, error)
	// Languages lists the bundled languages keyed by canonical id.
	Languages() []lang.Info
}

// Reason classifies a highlight failure at its point of origin.
type Reason string

const (
	ReasonTheme     Reason = "theme"
	ReasonLanguage  Reason = "language"
	ReasonTransform Reason = "transform"
	ReasonRender    Reason = "render"
)

// RenderError is returned by Highlighter implementations.
type RenderError struct {
	Reason Reason
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("highlight: %s: %v", e.Reason, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// ReasonOf extracts the failure reason of err, defaulting to ReasonRender.
func ReasonOf(err error) Reason {
	var re *RenderError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ReasonRender
}
