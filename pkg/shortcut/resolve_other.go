//go:build !windows

package shortcut

import "runtime"

// resolve is a stub for platforms without shell links.
func resolve(path string) (Info, error) {
	return Info{}, &Error{Kind: ErrUnavailable, Path: path, Cause: errUnsupported}
}

var errUnsupported = unsupportedError(runtime.GOOS)

type unsupportedError string

func (e unsupportedError) Error() string {
	return "not supported on " + string(e)
}
