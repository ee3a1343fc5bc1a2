package models

// ErrorType classifies a failed or degraded block render.
type ErrorType string

const (
	ErrLanguageNotSupported ErrorType = "LANGUAGE_NOT_SUPPORTED"
	ErrThemeNotFound        ErrorType = "THEME_NOT_FOUND"
	ErrTransformer          ErrorType = "TRANSFORMER_ERROR"
	ErrRendering            ErrorType = "RENDERING_ERROR"
	ErrUnknown              ErrorType = "UNKNOWN_ERROR"
)

// Fallback strategies recorded on a ProcessError.
const (
	FallbackPlaintext = "plaintext"
	FallbackBasicMode = "basic mode"
)

// ProcessError is a structured record of one failed or degraded block render.
type ProcessError struct {
	Type         ErrorType `json:"type"`
	Message      string    `json:"message"`
	File         string    `json:"file"`
	Line         int       `json:"line"`
	Lang         string    `json:"lang"`
	Cause        string    `json:"cause,omitempty"`
	Suggestions  []string  `json:"suggestions,omitempty"`
	FallbackUsed string    `json:"fallback_used,omitempty"`
}
