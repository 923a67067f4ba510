package fit

import (
	"image"
	"math"
	"testing"
)

func TestMSECost(t *testing.T) {
	white := Color{255, 255, 255}
	red := Color{255, 0, 0}

	redCorner := NewCanvas(2, white)
	redCorner.DrawCircle(Circle{Color: red, X: 0, Y: 0, Radius: 0})

	tests := []struct {
		name     string
		current  *Canvas
		ref      *Canvas
		expected float64
	}{
		{"identical", NewCanvas(2, white), NewCanvas(2, white), 0},
		// 255² on every channel of every pixel
		{"white vs black", NewCanvas(2, white), NewCanvas(2, Color{}), 65025},
		// G and B differ by 255 on one of 4 pixels: 2*65025 / 12
		{"one red pixel", redCorner, NewCanvas(2, white), 10837.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cost := MSECost(tt.current.Image(), tt.ref.Image())
			if cost != tt.expected {
				t.Errorf("Expected cost %f, got %f", tt.expected, cost)
			}
			if sym := MSECost(tt.ref.Image(), tt.current.Image()); sym != cost {
				t.Errorf("MSECost not symmetric: %f vs %f", cost, sym)
			}
		})
	}
}

func TestMSECostSubImage(t *testing.T) {
	big := NewCanvas(4, Color{10, 20, 30}).Image()
	sub := big.SubImage(big.Rect.Inset(1)).(*image.NRGBA)

	if cost := MSECost(sub, NewCanvas(2, Color{10, 20, 30}).Image()); cost != 0 {
		t.Errorf("Offset sub-image should compare by position, got %f", cost)
	}
}

func TestPSNR(t *testing.T) {
	if PSNR(0) != MaxPSNR {
		t.Errorf("PSNR of identical images should be %f, got %f", MaxPSNR, PSNR(0))
	}

	// White vs black
	if got := PSNR(65025); math.Abs(got) > 1e-9 {
		t.Errorf("Expected 0 dB, got %f", got)
	}

	if PSNR(10) <= PSNR(100) {
		t.Error("Lower error should give higher PSNR")
	}

	if PSNR(1e-30) != MaxPSNR {
		t.Errorf("Tiny errors should be capped at %f, got %f", MaxPSNR, PSNR(1e-30))
	}
}
