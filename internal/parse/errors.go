package parse

import "fmt"

// MismatchError reports input that no pattern of a rule accepted.
type MismatchError struct {
	Rule  string
	Input string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: no pattern matched %q", e.Rule, truncate(e.Input, 60))
}

func mismatch(rule, input string) error {
	return &MismatchError{Rule: rule, Input: input}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
