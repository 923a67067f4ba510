package fit

import (
	"image"
	"math"
)

// MSECost is the mean squared error over the RGB channels of two equally
// sized rasters. Alpha is ignored.
func MSECost(current, reference *image.NRGBA) float64 {
	bounds := current.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width != reference.Bounds().Dx() || height != reference.Bounds().Dy() {
		panic("image dimensions must match")
	}

	numPixels := width * height
	if numPixels == 0 {
		return 0
	}

	var sum float64
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := current.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
			j := reference.PixOffset(reference.Bounds().Min.X+x, reference.Bounds().Min.Y+y)

			dr := float64(current.Pix[i+0]) - float64(reference.Pix[j+0])
			dg := float64(current.Pix[i+1]) - float64(reference.Pix[j+1])
			db := float64(current.Pix[i+2]) - float64(reference.Pix[j+2])

			sum += dr*dr + dg*dg + db*db
		}
	}

	return sum / float64(numPixels*3)
}

// MaxPSNR is reported for identical images, keeping the value JSON-encodable
const MaxPSNR = 200.0

// PSNR converts a mean squared error into peak signal-to-noise ratio in dB,
// capped at MaxPSNR.
func PSNR(mse float64) float64 {
	if mse <= 0 {
		return MaxPSNR
	}
	return min(10*math.Log10(255*255/mse), MaxPSNR)
}
