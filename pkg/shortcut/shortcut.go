// Package shortcut reads Windows shell links (.lnk files) into plain Go
// values: target, arguments, working directory and icon location.
package shortcut

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf16"
)

// Buffer sizes, in UTF-16 code units, used to receive strings from the
// shell-link object. Paths get twice MAX_PATH so long UNC targets survive.
const (
	pathBufLen = 520
	argsBufLen = 1024
)

// Info is the resolved content of a shell link. Any field may be empty:
// an empty IconPath means "use the target's own icon".
type Info struct {
	Target     string `json:"target"`
	Arguments  string `json:"arguments"`
	WorkingDir string `json:"working_dir"`
	IconPath   string `json:"icon_path"`
	IconIndex  int    `json:"icon_index"`
}

// HasIconResource reports whether the link names an explicit icon resource.
func (i Info) HasIconResource() bool {
	return i.IconPath != ""
}

var (
	// ErrNotFound means the link file does not exist or cannot be stat'ed.
	ErrNotFound = errors.New("shortcut: link file not found")
	// ErrInvalidLink means the file exists but is not a loadable shell link.
	ErrInvalidLink = errors.New("shortcut: not a valid shell link")
	// ErrUnavailable means the shell-link parser could not be instantiated,
	// including on platforms that have none.
	ErrUnavailable = errors.New("shortcut: shell link support unavailable")
)

// Error describes a failed resolution. It matches one of the package
// sentinels with errors.Is and carries the underlying cause.
type Error struct {
	Kind  error
	Path  string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%v: %s", e.Kind, e.Path)
	}
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Path, e.Cause)
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// IsLink reports whether path names a shell link, by its .lnk suffix.
func IsLink(path string) bool {
	return strings.EqualFold(extOf(path), ".lnk")
}

// Resolve reads the shell link at path. It is only meaningful for .lnk
// files; callers decide when to call it (see IsLink).
func Resolve(path string) (Info, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Info{}, &Error{Kind: ErrNotFound, Path: path, Cause: err}
	}
	if info.IsDir() {
		return Info{}, &Error{Kind: ErrInvalidLink, Path: path, Cause: errors.New("is a directory")}
	}
	return resolve(path)
}

// extOf returns the extension of path treating both '/' and '\' as
// separators, so Windows paths classify correctly on any host.
func extOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		switch path[i] {
		case '.':
			return path[i:]
		case '/', '\\':
			return ""
		}
	}
	return ""
}

// utf16BufToString converts a NUL-padded UTF-16 receive buffer into a Go
// string, stopping at the first NUL.
func utf16BufToString(buf []uint16) string {
	for i, c := range buf {
		if c == 0 {
			buf = buf[:i]
			break
		}
	}
	return string(utf16.Decode(buf))
}
