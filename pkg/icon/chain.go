package icon

import (
	"errors"

	"gitlab.com/tinyland/lab/iconpulse/pkg/handle"
)

// Native handle types. Zero is never a valid handle.
type (
	hicon   uintptr
	hbitmap uintptr
	hdc     uintptr
	hgdiobj uintptr
)

// extractFileMissing is the icon count the platform reports when a resource
// container does not exist.
const extractFileMissing = 0xFFFFFFFF

// platform is the set of native calls the extraction chain makes. Every call
// that hands out a handle has a matching release entry, and the chain pairs
// them through a handle.Scope. Release entries ignore zero handles.
type platform struct {
	// shellIcon returns the shell's large icon for path. ok is false when
	// the shell cannot produce one.
	shellIcon func(path string) (h hicon, ok bool, err error)
	// resourceIcon pulls icon index out of the container at path at the
	// requested edge size. n is the count the platform reported.
	resourceIcon func(path string, index, size int) (h hicon, n uint32, err error)
	destroyIcon  func(hicon)

	// iconInfo hands over the icon's color and mask bitmaps.
	iconInfo     func(hicon) (color, mask hbitmap, err error)
	deleteBitmap func(hbitmap)

	screenDC     func() hdc
	releaseDC    func(hdc)
	compatibleDC func(hdc) hdc
	deleteDC     func(hdc)

	// selectObject selects obj into dc and returns the object it replaced.
	selectObject func(dc hdc, obj hgdiobj) hgdiobj
	bitmapSize   func(hbitmap) (width, height int, ok bool)
	// dumpBits copies an unselected bitmap as top-down 32bpp BGRA rows.
	dumpBits func(dc hdc, bmp hbitmap, width, height int) ([]byte, error)
}

func extractDefaultWith(api platform, path string, opts Options) ([]byte, error) {
	var s handle.Scope
	defer s.Close()

	h, ok, err := api.shellIcon(path)
	if !ok {
		return nil, newError(ErrNotFound, path, "SHGetFileInfoW", err)
	}
	icon := handle.Push(&s, h, api.destroyIcon)
	if icon.Value() == 0 {
		return nil, newError(ErrInvalidHandle, path, "SHGetFileInfoW", nil)
	}

	return iconToPNG(api, icon.Value(), path, opts)
}

func extractFromResourceWith(api platform, path string, index int, opts Options) ([]byte, error) {
	var s handle.Scope
	defer s.Close()

	h, n, err := api.resourceIcon(path, index, opts.ResourceSize)
	// Whatever came back is ours to destroy, even on a partial failure.
	icon := handle.Push(&s, h, api.destroyIcon)

	switch {
	case n == extractFileMissing:
		return nil, newError(ErrNotFound, path, "PrivateExtractIconsW", err)
	case n == 0:
		if err == nil {
			err = errors.New("no icon at requested index")
		}
		return nil, newError(ErrNoIcon, path, "PrivateExtractIconsW", err)
	case icon.Value() == 0:
		return nil, newError(ErrInvalidHandle, path, "PrivateExtractIconsW", nil)
	}

	return iconToPNG(api, icon.Value(), path, opts)
}

// iconToPNG resolves an icon handle to its bitmaps, dumps them as top-down
// 32bpp pixels and encodes the result. Every GDI object it acquires is
// released before it returns; the icon itself belongs to the caller.
func iconToPNG(api platform, h hicon, path string, opts Options) ([]byte, error) {
	var s handle.Scope
	defer s.Close()

	colorBmp, maskBmp, err := api.iconInfo(h)
	if err != nil {
		return nil, newError(ErrBitmapInfo, path, "GetIconInfo", err)
	}
	// GetIconInfo transfers ownership of both bitmaps to us.
	color := handle.Push(&s, colorBmp, api.deleteBitmap)
	mask := handle.Push(&s, maskBmp, api.deleteBitmap)
	if color.Value() == 0 {
		return nil, newError(ErrInvalidHandle, path, "GetIconInfo", errors.New("monochrome icon has no color bitmap"))
	}

	screen := handle.Push(&s, api.screenDC(), api.releaseDC)
	if screen.Value() == 0 {
		return nil, newError(ErrBitmapInfo, path, "GetDC", nil)
	}
	mem := handle.Push(&s, api.compatibleDC(screen.Value()), api.deleteDC)
	if mem.Value() == 0 {
		return nil, newError(ErrBitmapInfo, path, "CreateCompatibleDC", nil)
	}

	prev := api.selectObject(mem.Value(), hgdiobj(color.Value()))
	selected := handle.Push(&s, prev, func(old hgdiobj) {
		api.selectObject(mem.Value(), old)
	})

	width, height, ok := api.bitmapSize(color.Value())
	if !ok {
		return nil, newError(ErrBitmapInfo, path, "GetObjectW", nil)
	}

	// GetDIBits requires the bitmap to be deselected.
	selected.Release()

	pix, err := api.dumpBits(mem.Value(), color.Value(), width, height)
	if err != nil {
		return nil, newError(ErrPixelDump, path, "GetDIBits", err)
	}

	raw := rawImage{width: width, height: height, pix: pix}
	if !hasAlpha(pix) {
		// Legacy icon: transparency lives only in the AND mask.
		raw.mask, _ = api.dumpBits(mem.Value(), mask.Value(), width, height)
	}

	return convert(path, raw, opts)
}
