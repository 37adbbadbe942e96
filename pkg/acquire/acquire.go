// Package acquire turns a filesystem path into PNG icon bytes, consulting a
// content-addressed cache before running native extraction.
//
// For shell links the cache key is derived from what the link points at
// rather than the link file itself: a link naming an icon resource is keyed
// by "{resource}:{index}", and a link without one by its target. Many
// shortcuts into the same application therefore share one cache entry.
package acquire

import (
	"fmt"
	"log/slog"
	"strconv"

	"gitlab.com/tinyland/lab/iconpulse/pkg/cache"
	"gitlab.com/tinyland/lab/iconpulse/pkg/shortcut"
)

// Resolver reads shell links.
type Resolver interface {
	Resolve(path string) (shortcut.Info, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(path string) (shortcut.Info, error)

// Resolve calls f(path).
func (f ResolverFunc) Resolve(path string) (shortcut.Info, error) {
	return f(path)
}

// Extractor produces PNG bytes. *icon.Extractor satisfies it.
type Extractor interface {
	ExtractDefault(path string) ([]byte, error)
	ExtractFromResource(path string, index int) ([]byte, error)
}

// Config wires an Acquirer.
type Config struct {
	// Resolver reads .lnk files. Default: shortcut.Resolve.
	Resolver Resolver

	// Extractor is required.
	Extractor Extractor

	// Store caches PNG bytes by fingerprint. Nil disables caching.
	Store cache.Backend

	// Workers bounds Warm concurrency. Default: 4.
	Workers int

	Logger *slog.Logger
}

// Acquirer is safe for concurrent use. Concurrent acquisitions of the same
// key may both extract; the results are identical.
type Acquirer struct {
	resolver  Resolver
	extractor Extractor
	store     cache.Backend
	workers   int
	logger    *slog.Logger
}

// New returns an Acquirer for cfg. It panics if cfg.Extractor is nil.
func New(cfg Config) *Acquirer {
	if cfg.Extractor == nil {
		panic("acquire: Config.Extractor is nil")
	}
	if cfg.Resolver == nil {
		cfg.Resolver = ResolverFunc(shortcut.Resolve)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Acquirer{
		resolver:  cfg.Resolver,
		extractor: cfg.Extractor,
		store:     cfg.Store,
		workers:   cfg.Workers,
		logger:    cfg.Logger.With("component", "acquire"),
	}
}

// ResourceKey is the cache key of icon index inside the resource container
// at path.
func ResourceKey(path string, index int) string {
	return path + ":" + strconv.Itoa(index)
}

// plan is a cache key paired with the extraction that fills it.
type plan struct {
	key      string
	source   string
	index    int
	resource bool
}

func (p plan) extract(e Extractor) ([]byte, error) {
	if p.resource {
		return e.ExtractFromResource(p.source, p.index)
	}
	return e.ExtractDefault(p.source)
}

func literalPlan(path string) plan {
	return plan{key: path, source: path}
}

// planFor picks the cache key and extraction strategy for path. Resolution
// failures degrade to treating path literally.
func (a *Acquirer) planFor(path string, tryResolveLink bool) plan {
	if !tryResolveLink || !shortcut.IsLink(path) {
		return literalPlan(path)
	}

	info, err := a.resolver.Resolve(path)
	if err != nil {
		a.logger.Debug("link resolution failed, using literal path", "path", path, "error", err)
		return literalPlan(path)
	}

	switch {
	case info.HasIconResource():
		return plan{
			key:      ResourceKey(info.IconPath, info.IconIndex),
			source:   info.IconPath,
			index:    info.IconIndex,
			resource: true,
		}
	case info.Target != "":
		return plan{key: info.Target, source: info.Target}
	default:
		a.logger.Debug("link names neither icon nor target", "path", path)
		return literalPlan(path)
	}
}

// Acquire returns PNG bytes for path. With tryResolveLink set, .lnk files are
// resolved first so the icon comes from what they point at.
func (a *Acquirer) Acquire(path string, tryResolveLink bool) ([]byte, error) {
	data, _, err := a.run(a.planFor(path, tryResolveLink))
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", path, err)
	}
	return data, nil
}

// AcquireResource returns icon index from the resource container at path,
// cached under key. Link resolution is skipped.
func (a *Acquirer) AcquireResource(key, path string, index int) ([]byte, error) {
	data, _, err := a.run(plan{key: key, source: path, index: index, resource: true})
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	return data, nil
}

// run serves p from the store or extracts and stores it. hit reports a cache
// hit. Extraction failures are returned and leave the store untouched.
func (a *Acquirer) run(p plan) (data []byte, hit bool, err error) {
	fp := cache.Fingerprint(p.key)

	if a.store != nil {
		if data, ok := a.store.Get(fp); ok {
			a.logger.Debug("cache hit", "key", p.key)
			return data, true, nil
		}
		a.logger.Debug("cache miss", "key", p.key)
	}

	data, err = p.extract(a.extractor)
	if err != nil {
		return nil, false, err
	}

	if a.store != nil {
		a.store.Put(fp, data)
	}
	return data, false, nil
}
