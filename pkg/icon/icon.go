// Package icon extracts shell icons as PNG bytes.
//
// Two strategies are supported: the icon the shell associates with a path
// (its file-type icon, or the embedded icon of an executable), and a
// specific icon pulled out of a resource container (DLL/EXE) by index. Both
// obtain a native icon handle and share one conversion path from handle to
// top-down 32-bit pixels to PNG.
//
// Extraction is implemented on Windows only. On other platforms both entry
// points fail immediately with ErrUnsupported.
package icon

// Default sizes in pixels.
const (
	DefaultResourceSize = 256
	DefaultMaxEdge      = 256
)

// Options tunes extraction.
type Options struct {
	// ResourceSize is the edge length requested from a resource container.
	// The platform returns its closest available size. Default: 256.
	ResourceSize int

	// MaxEdge caps the longest edge of the encoded PNG; larger icons are
	// downscaled preserving aspect ratio. 0 uses DefaultMaxEdge, a negative
	// value disables downscaling.
	MaxEdge int
}

func (o Options) withDefaults() Options {
	if o.ResourceSize <= 0 {
		o.ResourceSize = DefaultResourceSize
	}
	if o.MaxEdge == 0 {
		o.MaxEdge = DefaultMaxEdge
	}
	return o
}

// Extractor produces PNG icons for paths and resource references. It holds
// no native state and is safe for concurrent use.
type Extractor struct {
	opts Options
}

// NewExtractor returns an Extractor using opts.
func NewExtractor(opts Options) *Extractor {
	return &Extractor{opts: opts.withDefaults()}
}

// ExtractDefault returns the icon the shell shows for path, at the large
// icon size.
func (e *Extractor) ExtractDefault(path string) ([]byte, error) {
	return extractDefault(path, e.opts)
}

// ExtractFromResource returns icon number index from the resource container
// at path. Negative indexes address icons by resource ID, as in the shell.
func (e *Extractor) ExtractFromResource(path string, index int) ([]byte, error) {
	return extractFromResource(path, index, e.opts)
}
