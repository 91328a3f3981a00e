package screen

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

const (
	// DefaultDownscale is the linear downscale factor applied before
	// compression. A third of the linear resolution keeps HUD text
	// legible while cutting payload size by roughly 9x.
	DefaultDownscale = 3

	// DefaultJPEGQuality bounds the compressed frame size.
	DefaultJPEGQuality = 60
)

// Downscale shrinks img by the given integer linear factor.
func Downscale(img image.Image, factor int) image.Image {
	if factor <= 1 {
		return img
	}
	bounds := img.Bounds()
	w := bounds.Dx() / factor
	h := bounds.Dy() / factor
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}

// Compress downscales and JPEG-encodes a captured frame for transport.
func Compress(img image.Image, factor, quality int) ([]byte, error) {
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	scaled := Downscale(img, factor)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}
