package opt

import "context"

// ctxCheckInterval is how many proposals run between cancellation checks
const ctxCheckInterval = 4096

// HillClimber accepts a proposal only when it strictly improves fitness and
// stops once fitness reaches Threshold or the Budget runs out.
//
// Proposals are independent of the current candidate, so the search behaves
// like rejection sampling with memory of the best draw.
type HillClimber[T any] struct {
	Threshold float64
	Budget    Budget
}

var _ Optimizer[int] = (*HillClimber[int])(nil)

// NewHillClimber creates a hill climber for the given threshold and budget
func NewHillClimber[T any](threshold float64, budget Budget) *HillClimber[T] {
	return &HillClimber[T]{
		Threshold: threshold,
		Budget:    budget,
	}
}

// Run executes the search
func (h *HillClimber[T]) Run(ctx context.Context, start T, fitness func(T) float64, propose func() T) Result[T] {
	best := start
	current := fitness(start)

	result := Result[T]{Initial: current}
	tracker := newStagnationTracker(h.Budget)

	for current < h.Threshold {
		if h.Budget.MaxIterations > 0 && result.Iterations >= h.Budget.MaxIterations {
			result.Stop = StopMaxIterations
			break
		}
		if result.Iterations%ctxCheckInterval == 0 && ctx.Err() != nil {
			result.Stop = StopCancelled
			break
		}

		candidate := propose()
		candidateFitness := fitness(candidate)
		result.Iterations++

		if candidateFitness > current {
			best = candidate
			current = candidateFitness
			result.Accepted++
			tracker.Improved()
			continue
		}

		if tracker.Rejected() {
			result.Stop = StopPatience
			break
		}
	}

	if current >= h.Threshold {
		result.Stop = StopThreshold
	}

	result.Best = best
	result.Fitness = current
	return result
}
