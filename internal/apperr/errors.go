package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrBuildInProgress = errors.New("build already in progress")
)
