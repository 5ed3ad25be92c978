package pipeline

import (
	"errors"
	"fmt"

	"github.com/mkoziy/habitat/ingest/internal/transform"
)

// Kind classifies pipeline failures for callers and the HTTP surface.
type Kind string

const (
	KindCapture    Kind = "capture"
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
	KindInternal   Kind = "internal"
)

// Error is a classified pipeline failure.
type Error struct {
	Kind    Kind              `json:"kind"`
	Details string            `json:"details"`
	Issues  []transform.Issue `json:"issues,omitempty"`
	Err     error             `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Details, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Details)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorKind returns the classification as a string.
func (e *Error) ErrorKind() string { return string(e.Kind) }

// KindOf returns the kind of a pipeline error; unclassified errors are internal.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

func newError(kind Kind, details string, err error) *Error {
	return &Error{Kind: kind, Details: details, Err: err}
}

func validationError(stage string, r transform.Report) *Error {
	return &Error{Kind: KindValidation, Details: stage + ": " + r.Summary(), Issues: r.Errors}
}
