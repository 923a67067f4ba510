package fit

import (
	"context"

	"github.com/cwbudde/circlemosaic/internal/opt"
)

// Outcome describes a single circle's color optimization
type Outcome struct {
	Iterations int
	Accepted   int
	Initial    float64 // Fitness of the factory color
	Fitness    float64 // Fitness of the final color
	Stop       opt.StopReason
}

// ColorOptimizer searches for a circle color that reaches the quality threshold
// against a target color. Every proposal is a fresh uniform color, and only
// strict improvements replace the current one.
type ColorOptimizer struct {
	search opt.Optimizer[Color]
}

// NewColorOptimizer creates an optimizer for cfg.Quality and cfg.Budget
func NewColorOptimizer(cfg Config) *ColorOptimizer {
	return &ColorOptimizer{
		search: opt.NewHillClimber[Color](float64(cfg.Quality), cfg.Budget),
	}
}

// Optimize returns the circle with its optimized color. rng must not be shared
// with a concurrent caller.
func (o *ColorOptimizer) Optimize(ctx context.Context, c Circle, target Color, rng Rand) (Circle, Outcome) {
	fitness := func(candidate Color) float64 {
		return Score(target, candidate)
	}
	propose := func() Color {
		return RandomColor(rng)
	}

	res := o.search.Run(ctx, c.Color, fitness, propose)

	return c.WithColor(res.Best), Outcome{
		Iterations: res.Iterations,
		Accepted:   res.Accepted,
		Initial:    res.Initial,
		Fitness:    res.Fitness,
		Stop:       res.Stop,
	}
}
