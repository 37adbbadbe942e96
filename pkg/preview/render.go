package preview

import (
	"bytes"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/blacktop/go-termimg"
	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
)

// Renderer turns PNG bytes into terminal escape strings.
type Renderer struct {
	protocol Protocol
}

// NewRenderer returns a Renderer using proto.
func NewRenderer(proto Protocol) *Renderer {
	return &Renderer{protocol: proto}
}

// Protocol returns the active rendering protocol.
func (r *Renderer) Protocol() Protocol {
	return r.protocol
}

// Render decodes a PNG and renders it within widthCells x heightCells.
func (r *Renderer) Render(data []byte, widthCells, heightCells int) (string, error) {
	if r.protocol == ProtocolNone {
		return "", fmt.Errorf("preview: rendering disabled (protocol=none)")
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("preview: decode: %w", err)
	}
	if widthCells <= 0 {
		widthCells = 1
	}
	if heightCells <= 0 {
		heightCells = 1
	}

	switch r.protocol {
	case ProtocolKitty:
		return renderTermimg(img, termimg.Kitty, widthCells, heightCells)
	case ProtocolITerm2:
		return renderTermimg(img, termimg.ITerm2, widthCells, heightCells)
	case ProtocolSixel:
		return renderTermimg(img, termimg.Sixel, widthCells, heightCells)
	default:
		// Each half-block cell shows one pixel column and two pixel rows.
		return renderHalfblocks(resizeToFit(img, widthCells, heightCells*2)), nil
	}
}

func renderTermimg(img image.Image, proto termimg.Protocol, widthCells, heightCells int) (string, error) {
	ti := termimg.New(img)
	if ti == nil {
		return "", fmt.Errorf("preview: go-termimg: failed to create image wrapper")
	}
	ti.Protocol(proto).Size(widthCells, heightCells).Scale(termimg.ScaleFit)

	out, err := ti.Render()
	if err != nil {
		return "", fmt.Errorf("preview: termimg render: %w", err)
	}
	return out, nil
}

// resizeToFit scales img down to fit maxW x maxH pixels, preserving aspect
// ratio. It never upscales.
func resizeToFit(img image.Image, maxW, maxH int) *image.NRGBA {
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()

	if srcW <= maxW && srcH <= maxH {
		return imaging.Clone(img)
	}

	scale := math.Min(float64(maxW)/float64(srcW), float64(maxH)/float64(srcH))
	dstW := max(1, int(math.Round(float64(srcW)*scale)))
	dstH := max(1, int(math.Round(float64(srcH)*scale)))

	dst := image.NewNRGBA(image.Rect(0, 0, dstW, dstH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// renderHalfblocks renders using upper-half-block characters with 24-bit
// color: the top pixel is the foreground, the bottom pixel the background.
// Fully transparent pixels show the terminal default.
func renderHalfblocks(img *image.NRGBA) string {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w == 0 || h == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(w * (h/2 + 1) * 30)

	for y := 0; y < h; y += 2 {
		if y > 0 {
			b.WriteString("\x1b[0m\n")
		}
		for x := 0; x < w; x++ {
			top := img.NRGBAAt(x, y)
			bot := img.NRGBAAt(x, y+1) // zero value past the last row

			switch {
			case top.A == 0 && bot.A == 0:
				b.WriteString("\x1b[0m ")
			case top.A == 0:
				fmt.Fprintf(&b, "\x1b[38;2;%d;%d;%dm\x1b[49m▄", bot.R, bot.G, bot.B)
			case bot.A == 0:
				fmt.Fprintf(&b, "\x1b[38;2;%d;%d;%dm\x1b[49m▀", top.R, top.G, top.B)
			default:
				fmt.Fprintf(&b, "\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm▀",
					top.R, top.G, top.B, bot.R, bot.G, bot.B)
			}
		}
	}

	b.WriteString("\x1b[0m")
	return b.String()
}
