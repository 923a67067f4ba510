package opt

import "context"

// Optimizer defines a single-individual search over candidates of type T
type Optimizer[T any] interface {
	// Run executes the search
	// start: initial candidate
	// fitness: objective to maximize
	// propose: draws the next candidate
	// Returns: best candidate found and run statistics
	Run(ctx context.Context, start T, fitness func(T) float64, propose func() T) Result[T]
}

// StopReason explains why a search ended
type StopReason string

const (
	StopThreshold     StopReason = "threshold"
	StopMaxIterations StopReason = "max_iterations"
	StopPatience      StopReason = "patience"
	StopCancelled     StopReason = "cancelled"
)

// Result holds the output of a search run
type Result[T any] struct {
	Best       T
	Fitness    float64
	Initial    float64
	Iterations int
	Accepted   int
	Stop       StopReason
}

// Converged reports whether the run reached its threshold
func (r Result[T]) Converged() bool {
	return r.Stop == StopThreshold
}
