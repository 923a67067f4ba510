package fit

import "math"

// MaxDistance normalizes Euclidean RGB distance into a fitness percentage.
// It is the truncated distance between black and white (sqrt(3*255^2) ≈ 441.67).
const MaxDistance = 441

// Distance returns the Euclidean distance between two colors
func Distance(a, b Color) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// Score rates how close candidate is to target: 100 for an exact match,
// decreasing with distance and slightly negative for the most distant pairs.
func Score(target, candidate Color) float64 {
	return (1 - Distance(target, candidate)/MaxDistance) * 100
}
