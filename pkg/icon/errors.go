package icon

import (
	"errors"
	"fmt"
)

// Failure kinds. Every error returned by this package matches exactly one
// of these with errors.Is.
var (
	ErrNotFound      = errors.New("icon: source not found")
	ErrNoIcon        = errors.New("icon: no icon available")
	ErrInvalidHandle = errors.New("icon: invalid icon handle")
	ErrBitmapInfo    = errors.New("icon: bitmap query failed")
	ErrPixelDump     = errors.New("icon: pixel dump failed")
	ErrDimension     = errors.New("icon: pixel buffer does not match dimensions")
	ErrEncode        = errors.New("icon: png encoding failed")
	ErrUnsupported   = errors.New("icon: extraction not supported on this platform")
)

// Error records which step of an extraction failed.
type Error struct {
	Kind error  // one of the Err* sentinels
	Path string // source file or resource container
	Op   string // native call or conversion step
	Err  error  // underlying cause, may be nil
}

func newError(kind error, path, op string, err error) *Error {
	return &Error{Kind: kind, Path: path, Op: op, Err: err}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%v: %s", e.Kind, e.Path)
	if e.Op != "" {
		msg += " (" + e.Op + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
