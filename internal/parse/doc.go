// Package parse holds the named free-text rules used to turn captured listing
// text into typed fields. Every rule is pure and returns a *MismatchError when
// the input is present but no pattern matched, so callers can degrade the
// field to null and record a warning.
package parse
