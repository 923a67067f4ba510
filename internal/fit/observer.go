package fit

import (
	"log/slog"
)

// CircleResult is reported for every circle after it has been drawn
type CircleResult struct {
	Circle  Circle // Final circle as drawn
	Target  Color  // Sampled target color
	Outcome Outcome
}

// Observer receives per-circle results in generation order
type Observer interface {
	CircleDone(index int, res CircleResult)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(index int, res CircleResult)

// CircleDone calls f(index, res)
func (f ObserverFunc) CircleDone(index int, res CircleResult) {
	f(index, res)
}

// MultiObserver fans results out to several observers in order
type MultiObserver []Observer

// CircleDone forwards the result to every non-nil observer
func (m MultiObserver) CircleDone(index int, res CircleResult) {
	for _, o := range m {
		if o != nil {
			o.CircleDone(index, res)
		}
	}
}

// LogObserver writes one progress line per circle
type LogObserver struct {
	Logger *slog.Logger
}

// CircleDone logs the 1-based circle position and its iteration count
func (l LogObserver) CircleDone(index int, res CircleResult) {
	l.Logger.Info("Circle optimized",
		"position", index+1,
		"iterations", res.Outcome.Iterations,
	)
}
