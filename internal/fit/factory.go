package fit

// Rand is the random source consumed by the factory and the optimizer.
// *math/rand/v2.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

// RandomColor draws each channel uniformly from [0, 256)
func RandomColor(rng Rand) Color {
	return Color{
		R: uint8(rng.IntN(256)),
		G: uint8(rng.IntN(256)),
		B: uint8(rng.IntN(256)),
	}
}

// Factory generates circles with random position, color and radius
type Factory struct {
	size      int
	maxRadius int
	rng       Rand
}

// NewFactory creates a circle factory bounded by cfg.Size and cfg.MaxRadius
func NewFactory(cfg Config, rng Rand) *Factory {
	return &Factory{
		size:      cfg.Size,
		maxRadius: cfg.MaxRadius,
		rng:       rng,
	}
}

// Next draws a single circle: position first, then color, then radius
func (f *Factory) Next() Circle {
	x := f.rng.IntN(f.size)
	y := f.rng.IntN(f.size)
	col := RandomColor(f.rng)
	radius := f.rng.IntN(f.maxRadius)

	return Circle{Color: col, X: x, Y: y, Radius: radius}
}

// Generate returns count circles in generation order. The order is the
// composition order on the canvas.
func (f *Factory) Generate(count int) []Circle {
	circles := make([]Circle, count)
	for i := range circles {
		circles[i] = f.Next()
	}
	return circles
}
