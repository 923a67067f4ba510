package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"time"

	"github.com/cwbudde/circlemosaic/internal/config"
	"github.com/cwbudde/circlemosaic/internal/fit"
)

// RunRecord is the archived result of a completed run. Together with the
// input image it is enough to reproduce the run and check the output.
type RunRecord struct {
	// RunID is the unique identifier of the run
	RunID string `json:"runId"`

	// Config is the resolved configuration the run used
	Config config.Config `json:"config"`

	Circles         int     `json:"circles"`
	TotalIterations int64   `json:"totalIterations"`
	Capped          int     `json:"capped"`
	MSE             float64 `json:"mse"`
	PSNR            float64 `json:"psnr"`

	// ElapsedMS is the wall time of the pipeline in milliseconds
	ElapsedMS int64 `json:"elapsedMs"`

	// Timestamp records when the run finished
	Timestamp time.Time `json:"timestamp"`

	// InputDigest and Digest are SHA-256 digests of the source and result rasters
	InputDigest string `json:"inputDigest"`
	Digest      string `json:"digest"`

	// Output is the path the result image was written to, if any
	Output string `json:"output,omitempty"`
}

// RunInfo is the summary shown when listing runs
type RunInfo struct {
	RunID     string    `json:"runId"`
	Input     string    `json:"input"`
	Quality   int       `json:"quality"`
	MaxRadius int       `json:"maxRadius"`
	Circles   int       `json:"circles"`
	PSNR      float64   `json:"psnr"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRunRecord builds a record from a pipeline report
func NewRunRecord(runID string, cfg config.Config, src *image.NRGBA, report *fit.Report) *RunRecord {
	return &RunRecord{
		RunID:           runID,
		Config:          cfg,
		Circles:         report.Circles,
		TotalIterations: report.TotalIterations,
		Capped:          report.Capped,
		MSE:             report.MSE,
		PSNR:            report.PSNR,
		ElapsedMS:       report.Elapsed.Milliseconds(),
		Timestamp:       time.Now(),
		InputDigest:     Digest(src),
		Digest:          Digest(report.Canvas),
	}
}

// ToInfo converts a full record to its listing summary
func (r *RunRecord) ToInfo() RunInfo {
	return RunInfo{
		RunID:     r.RunID,
		Input:     r.Config.Input,
		Quality:   r.Config.Quality,
		MaxRadius: r.Config.MaxRadius,
		Circles:   r.Circles,
		PSNR:      r.PSNR,
		Timestamp: r.Timestamp,
	}
}

// Validate checks if the record has valid data.
func (r *RunRecord) Validate() error {
	if r.RunID == "" {
		return &ValidationError{Field: "RunID", Reason: "cannot be empty"}
	}
	if r.Circles <= 0 {
		return &ValidationError{Field: "Circles", Reason: "must be positive"}
	}
	if r.TotalIterations < 0 {
		return &ValidationError{Field: "TotalIterations", Reason: "cannot be negative"}
	}
	if r.Capped < 0 || r.Capped > r.Circles {
		return &ValidationError{Field: "Capped", Reason: fmt.Sprintf("must be between 0 and %d", r.Circles)}
	}
	if r.MSE < 0 {
		return &ValidationError{Field: "MSE", Reason: "cannot be negative"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if len(r.Digest) != sha256.Size*2 {
		return &ValidationError{Field: "Digest", Reason: "must be a hex SHA-256 digest"}
	}
	if r.Config.Input == "" {
		return &ValidationError{Field: "Config.Input", Reason: "cannot be empty"}
	}
	return nil
}

// ValidationError represents a run record validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// CheckInput reports whether src is the raster the run was made from.
func (r *RunRecord) CheckInput(src *image.NRGBA) error {
	if got := Digest(src); got != r.InputDigest {
		return &CompatibilityError{Field: "InputDigest", Expected: r.InputDigest, Actual: got}
	}
	return nil
}

// CompatibilityError reports an archived run that cannot be replayed as is.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}

// Digest returns the hex SHA-256 of the raster's dimensions and pixels
func Digest(img *image.NRGBA) string {
	h := sha256.New()
	b := img.Bounds()
	fmt.Fprintf(h, "%dx%d;", b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		h.Write(img.Pix[off : off+b.Dx()*4])
	}
	return hex.EncodeToString(h.Sum(nil))
}
