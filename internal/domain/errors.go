package domain

import "errors"

var (
	// ErrExtraction marks a single malformed review node. Callers skip the node.
	ErrExtraction = errors.New("review node malformed")
	// ErrInvalidCutoff is fatal for a harvest run.
	ErrInvalidCutoff = errors.New("invalid cutoff format")

	ErrNotFound     = errors.New("source: not found")
	ErrUnauthorized = errors.New("source: unauthorized")
	ErrForbidden    = errors.New("source: forbidden")
)
