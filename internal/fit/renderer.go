package fit

import (
	"image"
)

// Canvas is the output raster circles are composited onto
type Canvas struct {
	img  *image.NRGBA
	size int
}

// NewCanvas creates a size×size canvas filled with the background color
func NewCanvas(size int, background Color) *Canvas {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	bg := background.NRGBA()
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = bg.R
		img.Pix[i+1] = bg.G
		img.Pix[i+2] = bg.B
		img.Pix[i+3] = bg.A
	}

	return &Canvas{img: img, size: size}
}

// DrawCircle fills the disc of c onto the canvas. Pixels outside the canvas
// are skipped. Later draws overwrite earlier ones.
func (cv *Canvas) DrawCircle(c Circle) {
	// Compute bounding box
	minX := max(0, c.X-c.Radius)
	maxX := min(cv.size-1, c.X+c.Radius)
	minY := max(0, c.Y-c.Radius)
	maxY := min(cv.size-1, c.Y+c.Radius)

	r2 := c.Radius * c.Radius

	// Scan bounding box
	for y := minY; y <= maxY; y++ {
		dy := y - c.Y
		for x := minX; x <= maxX; x++ {
			dx := x - c.X
			if dx*dx+dy*dy > r2 {
				continue
			}

			i := cv.img.PixOffset(x, y)
			cv.img.Pix[i+0] = c.Color.R
			cv.img.Pix[i+1] = c.Color.G
			cv.img.Pix[i+2] = c.Color.B
			cv.img.Pix[i+3] = 255
		}
	}
}

// Image returns the underlying raster
func (cv *Canvas) Image() *image.NRGBA {
	return cv.img
}

// Size returns the canvas edge length
func (cv *Canvas) Size() int {
	return cv.size
}
