package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrConflict is returned when a write collides with a unique key the merge
// cannot reconcile.
var ErrConflict = errors.New("permit key conflict")

// FetchError aborts one adapter run. It carries the source and when it failed.
type FetchError struct {
	Source Source
	At     time.Time
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s at %s: %v", e.Source, e.At.UTC().Format(time.RFC3339), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewFetchError stamps err with the source and the current time.
func NewFetchError(source Source, err error) *FetchError {
	return &FetchError{Source: source, At: time.Now().UTC(), Err: err}
}

// ParseError drops one row. The batch continues.
type ParseError struct {
	Source Source
	// Row is the zero-based row index within the batch, or -1 if unknown.
	Row    int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("parse %s row %d: %s", e.Source, e.Row, e.Reason)
	}
	return fmt.Sprintf("parse %s: %s", e.Source, e.Reason)
}

// ResolutionError means no identity key could be derived for a row.
type ResolutionError struct {
	ParseError
}

// NewResolutionError builds a ResolutionError for the given row.
func NewResolutionError(source Source, row int) *ResolutionError {
	return &ResolutionError{ParseError{Source: source, Row: row, Reason: "no identity key"}}
}

// IsRowError reports whether err only affects a single record.
func IsRowError(err error) bool {
	var parseErr *ParseError
	var resolutionErr *ResolutionError
	return errors.As(err, &parseErr) || errors.As(err, &resolutionErr) || errors.Is(err, ErrConflict)
}
