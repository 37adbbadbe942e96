//go:build !windows

package icon

import (
	"errors"
	"testing"
)

func TestExtractionUnsupportedOffWindows(t *testing.T) {
	e := NewExtractor(Options{})

	if _, err := e.ExtractDefault(`C:\apps\tool.exe`); !errors.Is(err, ErrUnsupported) {
		t.Errorf("ExtractDefault err = %v, want ErrUnsupported", err)
	}
	if _, err := e.ExtractFromResource(`C:\apps\res.dll`, 3); !errors.Is(err, ErrUnsupported) {
		t.Errorf("ExtractFromResource err = %v, want ErrUnsupported", err)
	}
}
