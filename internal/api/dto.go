package api

import (
	"github.com/starford/shikibuild/internal/history"
	"github.com/starford/shikibuild/internal/lang"
)

// HighlightRequest is the request body for a one-off highlight.
type HighlightRequest struct {
	Code string `json:"code" example:"const a = 1;"`
	Lang string `json:"lang" example:"js"`
	Meta string `json:"meta,omitempty" example:"file=app.js"`
}

// BuildListResponse wraps recent build summaries.
type BuildListResponse struct {
	Builds []history.Summary `json:"builds"`
}

// LanguageListResponse wraps the supported language list.
type LanguageListResponse struct {
	Languages []lang.Info `json:"languages"`
	Total     int         `json:"total"`
}
