package icon

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// rawImage is a dense, top-down, 32 bits per pixel dump in the platform's
// BGRA byte order, optionally with the icon's AND mask dumped the same way.
type rawImage struct {
	width  int
	height int
	pix    []byte
	mask   []byte
}

// swapRedBlue converts BGRA pixels to RGBA in place.
func swapRedBlue(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
	}
}

// hasAlpha reports whether any pixel carries a non-zero alpha byte.
func hasAlpha(pix []byte) bool {
	for i := 3; i < len(pix); i += 4 {
		if pix[i] != 0 {
			return true
		}
	}
	return false
}

// applyMask derives alpha for icons without an alpha channel. Set mask bits
// (dumped as white) are transparent, clear bits opaque. Without a usable
// mask every pixel becomes opaque.
func applyMask(pix, mask []byte) {
	if len(mask) != len(pix) {
		for i := 3; i < len(pix); i += 4 {
			pix[i] = 0xFF
		}
		return
	}
	for i := 3; i < len(pix); i += 4 {
		if mask[i-3] != 0 {
			pix[i] = 0
		} else {
			pix[i] = 0xFF
		}
	}
}

// toNRGBA validates the dump and reinterprets it as an image. The buffer is
// taken over, not copied.
func (r rawImage) toNRGBA() (*image.NRGBA, error) {
	if r.width <= 0 || r.height <= 0 {
		return nil, fmt.Errorf("invalid size %dx%d", r.width, r.height)
	}
	want := r.width * r.height * 4
	if len(r.pix) != want {
		return nil, fmt.Errorf("got %d bytes for %dx%d, want %d", len(r.pix), r.width, r.height, want)
	}

	swapRedBlue(r.pix)
	if !hasAlpha(r.pix) {
		applyMask(r.pix, r.mask)
	}

	return &image.NRGBA{
		Pix:    r.pix,
		Stride: r.width * 4,
		Rect:   image.Rect(0, 0, r.width, r.height),
	}, nil
}

// encodePNG fits img within maxEdge (when positive and exceeded) and encodes
// it. Output is deterministic for identical input.
func encodePNG(img image.Image, maxEdge int) ([]byte, error) {
	b := img.Bounds()
	if maxEdge > 0 && (b.Dx() > maxEdge || b.Dy() > maxEdge) {
		img = imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// convert is the shared tail of both extraction strategies.
func convert(path string, raw rawImage, opts Options) ([]byte, error) {
	img, err := raw.toNRGBA()
	if err != nil {
		return nil, newError(ErrDimension, path, "reinterpret pixels", err)
	}
	data, err := encodePNG(img, opts.MaxEdge)
	if err != nil {
		return nil, newError(ErrEncode, path, "encode png", err)
	}
	return data, nil
}
