package llm

import "sync"

// Budget is a consumable counter limiting external calls. One Budget is
// shared by all clients of a batch invocation; a nil limit is unlimited.
// The counter is decremented strictly before the call it guards, so an
// exhausted budget never allows one more call.
type Budget struct {
	mu        sync.Mutex
	remaining *int64
}

// NewBudget returns a budget allowing at most n calls. Negative n is
// clamped to zero.
func NewBudget(n int64) *Budget {
	if n < 0 {
		n = 0
	}
	return &Budget{remaining: &n}
}

// Unlimited returns a budget that never refuses a call.
func Unlimited() *Budget {
	return &Budget{}
}

// Consume takes one call from the budget, failing with BudgetExceededError
// when none remain. op names the guarded operation for diagnostics.
func (b *Budget) Consume(op string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remaining == nil {
		return nil
	}
	if *b.remaining <= 0 {
		return &BudgetExceededError{Op: op}
	}
	*b.remaining--
	return nil
}

// Remaining reports the calls left, or -1 for an unlimited budget.
func (b *Budget) Remaining() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remaining == nil {
		return -1
	}
	return *b.remaining
}
