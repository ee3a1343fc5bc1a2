package internal

import (
	"io"
	"log/slog"

	"github.com/starford/shikibuild/internal/highlight"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config      *Config
	logger      *slog.Logger
	highlighter highlight.Highlighter
	out         io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogger sets the logger. Without it a JSON logger on stdout at the
// configured level is used.
func WithLogger(l *slog.Logger) Option {
	return func(a *application) {
		a.logger = l
	}
}

// WithHighlighter replaces the chroma highlighter.
func WithHighlighter(h highlight.Highlighter) Option {
	return func(a *application) {
		a.highlighter = h
	}
}

// WithOutput sets where the build summary is printed.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}
