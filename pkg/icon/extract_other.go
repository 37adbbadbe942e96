//go:build !windows

package icon

import "runtime"

func extractDefault(path string, _ Options) ([]byte, error) {
	return nil, newError(ErrUnsupported, path, runtime.GOOS, nil)
}

func extractFromResource(path string, _ int, _ Options) ([]byte, error) {
	return nil, newError(ErrUnsupported, path, runtime.GOOS, nil)
}
