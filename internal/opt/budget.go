package opt

import "log/slog"

// DefaultMaxIterations bounds a single search when no budget is configured.
// A uniformly drawn RGB color matches an exact target with probability 1/2^24,
// so this cap is a quarter of the expected draws for a perfect match.
const DefaultMaxIterations = 1 << 22

// Budget defines the termination guards of a search
type Budget struct {
	// MaxIterations caps the number of proposals (0 = unbounded)
	MaxIterations int

	// Patience is the number of consecutive rejected proposals before stopping
	// (0 = disabled)
	Patience int
}

// DefaultBudget returns the budget used when none is configured
func DefaultBudget() Budget {
	return Budget{
		MaxIterations: DefaultMaxIterations,
	}
}

// UnboundedBudget returns a budget with every guard disabled
func UnboundedBudget() Budget {
	return Budget{}
}

// stagnationTracker counts consecutive rejections against the patience limit
type stagnationTracker struct {
	patience   int
	staleCount int
}

func newStagnationTracker(b Budget) *stagnationTracker {
	return &stagnationTracker{patience: b.Patience}
}

// Improved resets the stale counter after an accepted proposal
func (s *stagnationTracker) Improved() {
	s.staleCount = 0
}

// Rejected records a rejected proposal and returns true once patience is exhausted
func (s *stagnationTracker) Rejected() bool {
	if s.patience <= 0 {
		return false
	}

	s.staleCount++
	if s.staleCount >= s.patience {
		slog.Debug("Patience exhausted",
			"stale_count", s.staleCount,
			"patience", s.patience,
		)
		return true
	}
	return false
}

// StaleCount returns the current number of consecutive rejections
func (s *stagnationTracker) StaleCount() int {
	return s.staleCount
}
