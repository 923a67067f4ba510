package fit

import "image"

// AverageColor returns the mean color of the 3x3 neighborhood centered at
// (x, y). Neighbors outside the image are left out of the average rather than
// clamped or wrapped. Each channel is floor-divided by the number of pixels used.
func AverageColor(img *image.NRGBA, x, y int) Color {
	bounds := img.Bounds()

	var sumR, sumG, sumB, count int
	for dy := -1; dy <= 1; dy++ {
		py := y + dy
		if py < bounds.Min.Y || py >= bounds.Max.Y {
			continue
		}
		for dx := -1; dx <= 1; dx++ {
			px := x + dx
			if px < bounds.Min.X || px >= bounds.Max.X {
				continue
			}
			i := img.PixOffset(px, py)
			sumR += int(img.Pix[i+0])
			sumG += int(img.Pix[i+1])
			sumB += int(img.Pix[i+2])
			count++
		}
	}

	// (x, y) outside the image
	if count == 0 {
		return Color{}
	}

	return Color{
		R: uint8(sumR / count),
		G: uint8(sumG / count),
		B: uint8(sumB / count),
	}
}
