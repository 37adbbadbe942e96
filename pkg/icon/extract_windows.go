//go:build windows

package icon

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modShell32 = windows.NewLazySystemDLL("shell32.dll")
	modUser32  = windows.NewLazySystemDLL("user32.dll")
	modGdi32   = windows.NewLazySystemDLL("gdi32.dll")

	procSHGetFileInfoW       = modShell32.NewProc("SHGetFileInfoW")
	procPrivateExtractIconsW = modUser32.NewProc("PrivateExtractIconsW")
	procGetIconInfo          = modUser32.NewProc("GetIconInfo")
	procDestroyIcon          = modUser32.NewProc("DestroyIcon")
	procGetDC                = modUser32.NewProc("GetDC")
	procReleaseDC            = modUser32.NewProc("ReleaseDC")
	procCreateCompatibleDC   = modGdi32.NewProc("CreateCompatibleDC")
	procDeleteDC             = modGdi32.NewProc("DeleteDC")
	procSelectObject         = modGdi32.NewProc("SelectObject")
	procGetObjectW           = modGdi32.NewProc("GetObjectW")
	procGetDIBits            = modGdi32.NewProc("GetDIBits")
	procDeleteObject         = modGdi32.NewProc("DeleteObject")
)

const (
	fileAttributeNormal = 0x80
	shgfiIcon           = 0x100
	shgfiLargeIcon      = 0x0
	biRGB               = 0
	dibRGBColors        = 0
	expandBufLen        = 32768
)

type shFileInfoW struct {
	hIcon         hicon
	iIcon         int32
	dwAttributes  uint32
	szDisplayName [windows.MAX_PATH]uint16
	szTypeName    [80]uint16
}

type iconInfo struct {
	fIcon    int32
	xHotspot uint32
	yHotspot uint32
	hbmMask  hbitmap
	hbmColor hbitmap
}

type bitmap struct {
	bmType       int32
	bmWidth      int32
	bmHeight     int32
	bmWidthBytes int32
	bmPlanes     uint16
	bmBitsPixel  uint16
	bmBits       uintptr
}

type bitmapInfoHeader struct {
	biSize          uint32
	biWidth         int32
	biHeight        int32
	biPlanes        uint16
	biBitCount      uint16
	biCompression   uint32
	biSizeImage     uint32
	biXPelsPerMeter int32
	biYPelsPerMeter int32
	biClrUsed       uint32
	biClrImportant  uint32
}

type bitmapInfo struct {
	header bitmapInfoHeader
	colors [1]uint32
}

// native backs the extraction chain with the real Win32 calls.
var native = platform{
	shellIcon:    shellIcon,
	resourceIcon: resourceIcon,
	destroyIcon:  destroyIcon,
	iconInfo:     getIconInfo,
	deleteBitmap: deleteBitmap,
	screenDC:     screenDC,
	releaseDC:    releaseScreenDC,
	compatibleDC: compatibleDC,
	deleteDC:     deleteDC,
	selectObject: selectObject,
	bitmapSize:   bitmapSize,
	dumpBits:     dumpBits,
}

func extractDefault(path string, opts Options) ([]byte, error) {
	// DCs are owned by the creating thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	return extractDefaultWith(native, path, opts)
}

func extractFromResource(path string, index int, opts Options) ([]byte, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	return extractFromResourceWith(native, path, index, opts)
}

func shellIcon(path string) (hicon, bool, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, false, err
	}
	var sfi shFileInfoW
	r, _, callErr := procSHGetFileInfoW.Call(
		uintptr(unsafe.Pointer(p)),
		fileAttributeNormal,
		uintptr(unsafe.Pointer(&sfi)),
		unsafe.Sizeof(sfi),
		shgfiIcon|shgfiLargeIcon,
	)
	if r == 0 {
		return 0, false, errnoOrNil(callErr)
	}
	return sfi.hIcon, true, nil
}

func resourceIcon(path string, index, size int) (hicon, uint32, error) {
	path = expandEnv(path)
	// Report a missing absolute path as missing, not as an empty container.
	if filepath.IsAbs(path) {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return 0, extractFileMissing, err
		}
	}
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, extractFileMissing, err
	}

	var (
		h  hicon
		id uint32
	)
	n, _, callErr := procPrivateExtractIconsW.Call(
		uintptr(unsafe.Pointer(p)),
		uintptr(index),
		uintptr(size),
		uintptr(size),
		uintptr(unsafe.Pointer(&h)),
		uintptr(unsafe.Pointer(&id)),
		1,
		0,
	)
	return h, uint32(n), errnoOrNil(callErr)
}

func destroyIcon(h hicon) {
	if h != 0 {
		procDestroyIcon.Call(uintptr(h))
	}
}

func getIconInfo(h hicon) (hbitmap, hbitmap, error) {
	var ii iconInfo
	if r, _, callErr := procGetIconInfo.Call(uintptr(h), uintptr(unsafe.Pointer(&ii))); r == 0 {
		return 0, 0, errnoOrGeneric(callErr)
	}
	return ii.hbmColor, ii.hbmMask, nil
}

func deleteBitmap(h hbitmap) {
	if h != 0 {
		procDeleteObject.Call(uintptr(h))
	}
}

func screenDC() hdc {
	r, _, _ := procGetDC.Call(0)
	return hdc(r)
}

func releaseScreenDC(h hdc) {
	if h != 0 {
		procReleaseDC.Call(0, uintptr(h))
	}
}

func compatibleDC(screen hdc) hdc {
	r, _, _ := procCreateCompatibleDC.Call(uintptr(screen))
	return hdc(r)
}

func deleteDC(h hdc) {
	if h != 0 {
		procDeleteDC.Call(uintptr(h))
	}
}

func selectObject(dc hdc, obj hgdiobj) hgdiobj {
	r, _, _ := procSelectObject.Call(uintptr(dc), uintptr(obj))
	return hgdiobj(r)
}

func bitmapSize(bmp hbitmap) (int, int, bool) {
	var bm bitmap
	if r, _, _ := procGetObjectW.Call(uintptr(bmp), unsafe.Sizeof(bm), uintptr(unsafe.Pointer(&bm))); r == 0 {
		return 0, 0, false
	}
	return int(bm.bmWidth), int(bm.bmHeight), true
}

// dumpBits copies bmp as a top-down 32bpp DIB.
func dumpBits(dc hdc, bmp hbitmap, width, height int) ([]byte, error) {
	if bmp == 0 {
		return nil, errors.New("no bitmap")
	}
	if width <= 0 || height <= 0 {
		return nil, errors.New("empty bitmap")
	}

	var bi bitmapInfo
	bi.header = bitmapInfoHeader{
		biSize:        uint32(unsafe.Sizeof(bi.header)),
		biWidth:       int32(width),
		biHeight:      -int32(height), // negative height = top-down rows
		biPlanes:      1,
		biBitCount:    32,
		biCompression: biRGB,
	}

	pix := make([]byte, width*height*4)
	lines, _, callErr := procGetDIBits.Call(
		uintptr(dc),
		uintptr(bmp),
		0,
		uintptr(height),
		uintptr(unsafe.Pointer(&pix[0])),
		uintptr(unsafe.Pointer(&bi)),
		dibRGBColors,
	)
	if lines == 0 {
		return nil, errnoOrGeneric(callErr)
	}
	if int(lines) != height {
		return nil, errors.New("partial scan line copy")
	}
	return pix, nil
}

// expandEnv expands %VAR% references, which shell links commonly store in
// their icon location.
func expandEnv(path string) string {
	if !strings.Contains(path, "%") {
		return path
	}
	src, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return path
	}
	buf := make([]uint16, expandBufLen)
	n, err := windows.ExpandEnvironmentStrings(src, &buf[0], uint32(len(buf)))
	if err != nil || n == 0 || int(n) > len(buf) {
		return path
	}
	return windows.UTF16ToString(buf[:n])
}

func errnoOrNil(err error) error {
	var errno syscall.Errno
	if errors.As(err, &errno) && errno == 0 {
		return nil
	}
	return err
}

func errnoOrGeneric(err error) error {
	if e := errnoOrNil(err); e != nil {
		return e
	}
	return errors.New("call returned zero")
}
