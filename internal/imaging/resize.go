package imaging

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	xdraw "golang.org/x/image/draw"
)

// Scale returns img resampled to width×height. The aspect ratio is not preserved.
func Scale(img image.Image, width, height int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}

// Resize decodes the image at path, resamples it to width×height and
// overwrites the file in place using the encoder matching its extension.
func Resize(path string, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid target size %dx%d", width, height)
	}

	img, err := Load(path)
	if err != nil {
		return err
	}
	scaled := Scale(img, width, height)

	path = ExpandPath(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return SavePNG(path, scaled)
	case ".jpg", ".jpeg":
		return saveJPEG(path, scaled)
	default:
		// x/image only decodes WEBP
		return fmt.Errorf("cannot re-encode %q in place (supported: png, jpg, jpeg)", filepath.Ext(path))
	}
}

func saveJPEG(path string, img image.Image) error {
	tempPath := path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 95}); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("encoding JPEG: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("closing output file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming output file: %w", err)
	}
	return nil
}
