package transform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mkoziy/habitat/ingest/internal/parse"
)

// Issue is a field-level finding of a transformation stage.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Field == "" {
		return i.Message
	}
	return i.Field + ": " + i.Message
}

// Report accumulates warnings and errors. Any error stops the item.
type Report struct {
	Warnings []Issue `json:"warnings,omitempty"`
	Errors   []Issue `json:"errors,omitempty"`
}

// Warn records a non-fatal finding.
func (r *Report) Warn(field, format string, args ...any) {
	r.Warnings = append(r.Warnings, Issue{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Fail records a finding that prevents the record from being written.
func (r *Report) Fail(field, format string, args ...any) {
	r.Errors = append(r.Errors, Issue{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Degrade records a parse rule mismatch as a warning; the field stays null.
func (r *Report) Degrade(field string, err error) {
	if err == nil {
		return
	}
	var mm *parse.MismatchError
	if errors.As(err, &mm) {
		r.Warn(field, "unparsed value %q", mm.Input)
		return
	}
	r.Warn(field, "%v", err)
}

// OK reports whether no error was recorded.
func (r Report) OK() bool { return len(r.Errors) == 0 }

// Merge appends another report's findings.
func (r *Report) Merge(other Report) {
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.Errors = append(r.Errors, other.Errors...)
}

// Summary joins errors into one line for the tracker.
func (r Report) Summary() string {
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, e.String())
	}
	return strings.Join(parts, "; ")
}

// WarningStrings flattens warnings for API responses.
func (r Report) WarningStrings() []string {
	out := make([]string, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		out = append(out, w.String())
	}
	return out
}
