//go:build windows

package shortcut

import (
	"errors"
	"fmt"
	"runtime"
	"syscall"
	"unsafe"

	ole "github.com/go-ole/go-ole"
	"golang.org/x/sys/windows"

	"gitlab.com/tinyland/lab/iconpulse/pkg/handle"
)

const (
	sFalse          = 0x00000001
	rpcEChangedMode = 0x80010106
	stgmRead        = 0x00000000
)

var (
	clsidShellLink  = ole.NewGUID("{00021401-0000-0000-C000-000000000046}")
	iidIShellLinkW  = ole.NewGUID("{000214F9-0000-0000-C000-000000000046}")
	iidIPersistFile = ole.NewGUID("{0000010B-0000-0000-C000-000000000046}")
)

// COM entry points used by resolve, replaceable for fault injection.
var (
	comInit         = initCOM
	createShellLink = func() (*ole.IUnknown, error) {
		return ole.CreateInstance(clsidShellLink, iidIShellLinkW)
	}
)

// iShellLinkW mirrors the COM IShellLinkW interface layout.
type iShellLinkW struct {
	ole.IUnknown
}

type iShellLinkWVtbl struct {
	ole.IUnknownVtbl
	GetPath             uintptr
	GetIDList           uintptr
	SetIDList           uintptr
	GetDescription      uintptr
	SetDescription      uintptr
	GetWorkingDirectory uintptr
	SetWorkingDirectory uintptr
	GetArguments        uintptr
	SetArguments        uintptr
	GetHotkey           uintptr
	SetHotkey           uintptr
	GetShowCmd          uintptr
	SetShowCmd          uintptr
	GetIconLocation     uintptr
	SetIconLocation     uintptr
	SetRelativePath     uintptr
	Resolve             uintptr
	SetPath             uintptr
}

func (v *iShellLinkW) vtbl() *iShellLinkWVtbl {
	return (*iShellLinkWVtbl)(unsafe.Pointer(v.RawVTable))
}

// iPersistFile mirrors the COM IPersistFile interface layout.
type iPersistFile struct {
	ole.IUnknown
}

type iPersistFileVtbl struct {
	ole.IUnknownVtbl
	GetClassID    uintptr
	IsDirty       uintptr
	Load          uintptr
	Save          uintptr
	SaveCompleted uintptr
	GetCurFile    uintptr
}

func (v *iPersistFile) vtbl() *iPersistFileVtbl {
	return (*iPersistFileVtbl)(unsafe.Pointer(v.RawVTable))
}

func (v *iPersistFile) load(path string) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	hr, _, _ := syscall.SyscallN(v.vtbl().Load,
		uintptr(unsafe.Pointer(v)),
		uintptr(unsafe.Pointer(p)),
		stgmRead,
	)
	return hresult(hr)
}

func (v *iShellLinkW) path() (string, error) {
	buf := make([]uint16, pathBufLen)
	hr, _, _ := syscall.SyscallN(v.vtbl().GetPath,
		uintptr(unsafe.Pointer(v)),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
		0, // WIN32_FIND_DATAW is not needed
		0,
	)
	if err := hresult(hr); err != nil {
		return "", err
	}
	return utf16BufToString(buf), nil
}

func (v *iShellLinkW) stringField(method uintptr, size int) (string, error) {
	buf := make([]uint16, size)
	hr, _, _ := syscall.SyscallN(method,
		uintptr(unsafe.Pointer(v)),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
	)
	if err := hresult(hr); err != nil {
		return "", err
	}
	return utf16BufToString(buf), nil
}

func (v *iShellLinkW) iconLocation() (string, int, error) {
	buf := make([]uint16, pathBufLen)
	var index int32
	hr, _, _ := syscall.SyscallN(v.vtbl().GetIconLocation,
		uintptr(unsafe.Pointer(v)),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
		uintptr(unsafe.Pointer(&index)),
	)
	if err := hresult(hr); err != nil {
		return "", 0, err
	}
	return utf16BufToString(buf), int(index), nil
}

// resolve loads path into a ShellLink COM object and reads its fields. The
// COM apartment and both interfaces are released before returning on every
// path.
func resolve(path string) (Info, error) {
	// COM apartments are per OS thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var s handle.Scope
	defer s.Close()

	uninit, err := comInit()
	if err != nil {
		return Info{}, &Error{Kind: ErrUnavailable, Path: path, Cause: fmt.Errorf("initialise COM: %w", err)}
	}
	s.Defer(uninit)

	unk, err := createShellLink()
	if err != nil {
		return Info{}, &Error{Kind: ErrUnavailable, Path: path, Cause: fmt.Errorf("create ShellLink: %w", err)}
	}
	link := handle.Push(&s, (*iShellLinkW)(unsafe.Pointer(unk)), func(l *iShellLinkW) { l.Release() })

	disp, err := link.Value().QueryInterface(iidIPersistFile)
	if err != nil {
		return Info{}, &Error{Kind: ErrUnavailable, Path: path, Cause: fmt.Errorf("query IPersistFile: %w", err)}
	}
	persist := handle.Push(&s, (*iPersistFile)(unsafe.Pointer(disp)), func(p *iPersistFile) { p.Release() })

	if err := persist.Value().load(path); err != nil {
		return Info{}, &Error{Kind: ErrInvalidLink, Path: path, Cause: err}
	}

	// Individual getters fail only for broken links; an empty value is
	// simply "not set", so read errors degrade to empty strings.
	sl := link.Value()
	var info Info
	info.Target, _ = sl.path()
	info.Arguments, _ = sl.stringField(sl.vtbl().GetArguments, argsBufLen)
	info.WorkingDir, _ = sl.stringField(sl.vtbl().GetWorkingDirectory, pathBufLen)
	info.IconPath, info.IconIndex, _ = sl.iconLocation()

	return info, nil
}

// initCOM enters a single-threaded apartment and returns the matching
// uninitialise call. A thread already in an apartment of the other kind is
// usable as is and must not be uninitialised by us.
func initCOM() (func(), error) {
	err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED)
	if err == nil {
		return ole.CoUninitialize, nil
	}
	var oleErr *ole.OleError
	if errors.As(err, &oleErr) {
		switch oleErr.Code() {
		case sFalse:
			return ole.CoUninitialize, nil
		case rpcEChangedMode:
			return func() {}, nil
		}
	}
	return nil, err
}

func hresult(hr uintptr) error {
	if int32(hr) < 0 {
		return ole.NewError(hr)
	}
	return nil
}
