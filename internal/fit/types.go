package fit

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/cwbudde/circlemosaic/internal/opt"
)

// DefaultSize is the edge length of the square raster
const DefaultSize = 512

// Color is an 8-bit RGB color
type Color struct {
	R, G, B uint8
}

// NRGBA converts the color to an opaque standard library color
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

// Hex formats the color as #RRGGBB
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseHexColor parses a hex color string like "#000" or "#FF00FF"
func ParseHexColor(s string) (Color, error) {
	s = strings.TrimPrefix(s, "#")
	var r, g, b uint8
	switch len(s) {
	case 3:
		if _, err := fmt.Sscanf(s, "%1x%1x%1x", &r, &g, &b); err != nil {
			return Color{}, fmt.Errorf("invalid hex color %q: %w", s, err)
		}
		r = r*16 + r
		g = g*16 + g
		b = b*16 + b
	case 6:
		if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
			return Color{}, fmt.Errorf("invalid hex color %q: %w", s, err)
		}
	default:
		return Color{}, fmt.Errorf("invalid hex color %q: must be 3 or 6 hex digits", s)
	}
	return Color{R: r, G: g, B: b}, nil
}

// Circle is a solid disc. Position and radius are fixed at creation; the
// optimizer only ever replaces Color.
type Circle struct {
	Color  Color
	X, Y   int // Center, 0 <= X,Y < Size
	Radius int // 0 <= Radius < MaxRadius
}

// WithColor returns a copy of the circle with a different color
func (c Circle) WithColor(col Color) Circle {
	c.Color = col
	return c
}

// Config is the immutable run configuration shared by every component
type Config struct {
	Size       int // Raster edge length
	MaxRadius  int // Exclusive upper bound on circle radius
	Quality    int // Fitness threshold in [0,100]
	Background Color
	Seed       uint64
	Workers    int // Parallel optimizer goroutines (<=0 means 1)
	Budget     opt.Budget
}

// DefaultConfig returns a config with the given quality and radius bound
func DefaultConfig(quality, maxRadius int) Config {
	return Config{
		Size:       DefaultSize,
		MaxRadius:  maxRadius,
		Quality:    quality,
		Background: Color{0, 0, 0},
		Workers:    1,
		Budget:     opt.DefaultBudget(),
	}
}

// NumCircles returns the number of circles generated per run
func (c Config) NumCircles() int {
	return c.Size * c.Size
}

// Validate checks that all parameters are within range
func (c Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("size must be positive, got %d", c.Size)
	}
	if c.MaxRadius <= 0 {
		return fmt.Errorf("max radius must be positive, got %d", c.MaxRadius)
	}
	if c.Quality < 0 || c.Quality > 100 {
		return fmt.Errorf("quality must be between 0 and 100, got %d", c.Quality)
	}
	if c.Budget.MaxIterations < 0 {
		return fmt.Errorf("max iterations cannot be negative, got %d", c.Budget.MaxIterations)
	}
	if c.Budget.Patience < 0 {
		return fmt.Errorf("patience cannot be negative, got %d", c.Budget.Patience)
	}
	return nil
}

func (c Config) workers() int {
	if c.Workers <= 0 {
		return 1
	}
	return c.Workers
}
