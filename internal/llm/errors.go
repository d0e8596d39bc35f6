// Package llm wraps the external text-generation boundary with call
// budgeting, token/cost accounting, and response parsing.
package llm

import (
	"errors"
	"fmt"
)

// snippetLen bounds how much raw model text is carried in diagnostics.
const snippetLen = 160

// ErrUnmappedLabel reports a classification response outside the diet
// vocabulary. Non-fatal: callers substitute unknown and continue.
var ErrUnmappedLabel = errors.New("llm: response label outside diet vocabulary")

// BudgetExceededError reports an exhausted call budget. Fatal to the
// iteration that triggered it; names the operation attempted.
type BudgetExceededError struct {
	Op string
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("llm: call budget exceeded while attempting %s", e.Op)
}

// UnparseableResponseError reports model text that no parsing strategy
// could reduce to exactly three food names.
type UnparseableResponseError struct {
	Snippet string
}

func (e *UnparseableResponseError) Error() string {
	return fmt.Sprintf("llm: expected exactly 3 foods, got: %q", e.Snippet)
}

// snippet truncates raw model text for error payloads and logs.
func snippet(s string) string {
	if len(s) > snippetLen {
		return s[:snippetLen]
	}
	return s
}
