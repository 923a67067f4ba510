package fit

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/circlemosaic/internal/opt"
)

// windowSize is the number of circles optimized between two drawing barriers
const windowSize = 4096

// factoryStream is the PCG stream reserved for circle generation. Circle i
// optimizes with stream i+1.
const factoryStream = 0

// ErrDimensionMismatch is returned when the source is not Size×Size.
// Use errors.Is(err, ErrDimensionMismatch) to check for this error.
var ErrDimensionMismatch = &DimensionError{}

// DimensionError reports a source image with the wrong dimensions
type DimensionError struct {
	Width, Height int
	Want          int
}

func (e *DimensionError) Error() string {
	if e.Want == 0 {
		return "source image dimensions mismatch"
	}
	return fmt.Sprintf("source image is %dx%d, expected %dx%d", e.Width, e.Height, e.Want, e.Want)
}

func (e *DimensionError) Is(target error) bool {
	_, ok := target.(*DimensionError)
	return ok
}

// Report holds the output of a pipeline run
type Report struct {
	Canvas          *image.NRGBA
	Circles         int
	TotalIterations int64
	Capped          int // Circles stopped by the budget before reaching quality
	MSE             float64
	PSNR            float64
	Elapsed         time.Duration
}

// NewStream returns the deterministic random stream with the given index
func NewStream(seed uint64, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

// Run reconstructs src with circles: generate, then per circle sample the
// target color, optimize and draw. Optimization runs on cfg.Workers goroutines
// but drawing and observer notifications follow generation order, so the
// canvas only depends on cfg.
func Run(ctx context.Context, src *image.NRGBA, cfg Config, obs Observer) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := CheckSource(src, cfg); err != nil {
		return nil, err
	}
	// Sampling assumes a zero origin
	if src.Bounds().Min != (image.Point{}) {
		src = rebase(src)
	}

	start := time.Now()
	total := cfg.NumCircles()

	slog.Info("Starting circle reconstruction",
		"size", cfg.Size,
		"circles", total,
		"quality", cfg.Quality,
		"max_radius", cfg.MaxRadius,
		"workers", cfg.workers(),
		"max_iterations", cfg.Budget.MaxIterations,
	)

	if msg := budgetWarning(cfg); msg != "" {
		slog.Warn(msg,
			"quality", cfg.Quality,
			"max_iterations", cfg.Budget.MaxIterations,
			"worst_case_proposals", int64(total)*int64(cfg.Budget.MaxIterations),
		)
	}

	canvas := NewCanvas(cfg.Size, cfg.Background)
	circles := NewFactory(cfg, NewStream(cfg.Seed, factoryStream)).Generate(total)
	optimizer := NewColorOptimizer(cfg)

	report := &Report{Circles: total}
	results := make([]CircleResult, windowSize)

	for offset := 0; offset < total; offset += windowSize {
		if err := ctx.Err(); err != nil {
			slog.Info("Circle reconstruction cancelled", "completed", offset, "circles", total)
			return nil, fmt.Errorf("optimizing circles: %w", err)
		}

		end := min(offset+windowSize, total)

		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.workers())

		for i := offset; i < end; i++ {
			g.Go(func() error {
				c := circles[i]
				target := AverageColor(src, c.X, c.Y)
				rng := NewStream(cfg.Seed, uint64(i)+1)

				final, outcome := optimizer.Optimize(gCtx, c, target, rng)
				if outcome.Stop == opt.StopCancelled {
					return gCtx.Err()
				}

				results[i-offset] = CircleResult{Circle: final, Target: target, Outcome: outcome}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				slog.Info("Circle reconstruction cancelled", "completed", offset, "circles", total)
			}
			return nil, fmt.Errorf("optimizing circles: %w", err)
		}

		// Draw strictly in generation order
		for i := offset; i < end; i++ {
			res := results[i-offset]
			canvas.DrawCircle(res.Circle)

			report.TotalIterations += int64(res.Outcome.Iterations)
			if res.Outcome.Stop != opt.StopThreshold {
				report.Capped++
			}
			if obs != nil {
				obs.CircleDone(i, res)
			}
		}

		slog.Debug("Window complete", "completed", end, "circles", total)
	}

	report.Canvas = canvas.Image()
	report.MSE = MSECost(report.Canvas, src)
	report.PSNR = PSNR(report.MSE)
	report.Elapsed = time.Since(start)

	slog.Info("Circle reconstruction complete",
		"circles", total,
		"total_iterations", report.TotalIterations,
		"capped", report.Capped,
		"mse", report.MSE,
		"elapsed", report.Elapsed,
	)

	return report, nil
}

// budgetWarning flags configurations where nearly every circle runs into the
// iteration cap: quality 100 needs an exact match, which a uniform draw hits
// once in 2^24 proposals on average.
func budgetWarning(cfg Config) string {
	if cfg.Quality < 100 || cfg.Budget.Patience > 0 {
		return ""
	}
	if cfg.Budget.MaxIterations == 0 {
		return "Quality 100 with an unbounded budget may not terminate in practical time"
	}
	return "Quality 100 requires exact color matches; most circles will stop at the iteration cap"
}

// CheckSource returns a *DimensionError unless src is cfg.Size×cfg.Size
func CheckSource(src *image.NRGBA, cfg Config) error {
	b := src.Bounds()
	if b.Dx() != cfg.Size || b.Dy() != cfg.Size {
		return &DimensionError{Width: b.Dx(), Height: b.Dy(), Want: cfg.Size}
	}
	return nil
}

// rebase copies img into a zero-origin raster
func rebase(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()*4], img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):])
	}
	return out
}
