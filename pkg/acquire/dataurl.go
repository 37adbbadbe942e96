package acquire

import "encoding/base64"

// DataURLPrefix precedes the base64 payload of every data URL.
const DataURLPrefix = "data:image/png;base64,"

// DataURL wraps PNG bytes for direct use as an image source.
func DataURL(png []byte) string {
	return DataURLPrefix + base64.StdEncoding.EncodeToString(png)
}

// GetIcon returns the default icon for path as a data URL, without link
// resolution.
func (a *Acquirer) GetIcon(path string) (string, error) {
	return a.GetIconResolved(path, false)
}

// GetIconResolved runs the full pipeline and returns a data URL.
func (a *Acquirer) GetIconResolved(path string, tryResolveLink bool) (string, error) {
	data, err := a.Acquire(path, tryResolveLink)
	if err != nil {
		return "", err
	}
	return DataURL(data), nil
}

// GetIconByResource returns icon index of resourcePath, cached under
// cacheKey, as a data URL. Use it when the resource identity is already
// known, typically from a prior shortcut.Resolve.
func (a *Acquirer) GetIconByResource(cacheKey, resourcePath string, index int) (string, error) {
	data, err := a.AcquireResource(cacheKey, resourcePath, index)
	if err != nil {
		return "", err
	}
	return DataURL(data), nil
}
