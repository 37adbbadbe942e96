// iconpulse extracts Windows shell icons as PNG and caches them on disk.
//
// Each path is looked up in a content-addressed cache under the data
// directory and extracted on a miss. Shortcuts are resolved so that many
// .lnk files pointing at the same icon resource share one cache entry.
//
// Usage:
//
//	iconpulse [flags] path...
//
// Flags:
//
//	-resolve-link     Resolve .lnk files and use the icon they point at
//	-resource string  Extract from this resource container (DLL/EXE) instead
//	-index int        Icon index within -resource
//	-key string       Cache key for -resource (default "{resource}:{index}")
//	-out string       Write the PNG to this file (single path only)
//	-data-url         Print a data:image/png;base64 URL (default output)
//	-preview          Render the icon inline when stdout is a terminal
//	-protocol string  Preview protocol override (kitty|iterm2|sixel|halfblocks)
//	-warm             Prefetch every path into the cache and print a summary
//	-stats            Print cache statistics
//	-clear-cache      Remove every cached icon
//	-config string    Path to configuration file
//	-verbose          Enable verbose logging
//	-version          Print version and exit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/mattn/go-isatty"

	"gitlab.com/tinyland/lab/iconpulse/pkg/acquire"
	"gitlab.com/tinyland/lab/iconpulse/pkg/cache"
	"gitlab.com/tinyland/lab/iconpulse/pkg/config"
	"gitlab.com/tinyland/lab/iconpulse/pkg/icon"
	"gitlab.com/tinyland/lab/iconpulse/pkg/preview"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

// Preview size in terminal cells.
const (
	previewCols = 16
	previewRows = 8
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		resolveLink = flag.Bool("resolve-link", false, "Resolve .lnk files and use the icon they point at")
		resource    = flag.String("resource", "", "Extract from this resource container (DLL/EXE)")
		index       = flag.Int("index", 0, "Icon index within -resource")
		key         = flag.String("key", "", "Cache key for -resource (default \"{resource}:{index}\")")
		outPath     = flag.String("out", "", "Write the PNG to this file (single path only)")
		dataURL     = flag.Bool("data-url", false, "Print a data:image/png;base64 URL")
		showPreview = flag.Bool("preview", false, "Render the icon inline when stdout is a terminal")
		protocol    = flag.String("protocol", "", "Preview protocol override (kitty|iterm2|sixel|halfblocks)")
		warm        = flag.Bool("warm", false, "Prefetch every path into the cache and print a summary")
		showStats   = flag.Bool("stats", false, "Print cache statistics")
		clearCache  = flag.Bool("clear-cache", false, "Remove every cached icon")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("iconpulse %s (%s) built %s\n", version, commit, date)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logLevel, _ := config.ParseLogLevel(cfg.General.LogLevel)
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	store := cache.NewStore(cache.StoreConfig{Dir: cfg.CacheDir(), Logger: logger})

	switch {
	case *clearCache:
		if err := store.Clear(); err != nil {
			logger.Error("clear cache failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("cleared %s\n", store.Dir())
		return

	case *showStats:
		report, err := statsReport(store)
		if err != nil {
			logger.Error("stats failed", "error", err)
			os.Exit(1)
		}
		fmt.Println(report)
		return
	}

	paths := flag.Args()
	if err := checkArgs(*resource, paths, *outPath, *warm); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errNoPaths) {
			flag.PrintDefaults()
		}
		os.Exit(2)
	}

	var (
		backend cache.Backend
		mem     *cache.Memory
	)
	if !cfg.Cache.Disabled {
		// A cache directory that cannot be created only costs us caching.
		if err := store.EnsureReady(); err != nil {
			logger.Warn("icon cache unavailable", "error", err)
		}
		if cfg.Cache.MemoryEntries > 0 {
			mem = cache.NewMemory(cfg.Cache.MemoryEntries)
		}
		backend = cache.NewTiered(mem, store)
	}

	maxEdge := cfg.Icon.MaxEdge
	if maxEdge == 0 {
		maxEdge = -1
	}
	acq := acquire.New(acquire.Config{
		Extractor: icon.NewExtractor(icon.Options{
			ResourceSize: cfg.Icon.ResourceSize,
			MaxEdge:      maxEdge,
		}),
		Store:   backend,
		Workers: cfg.Warm.Workers,
		Logger:  logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *warm {
		if cfg.Warm.Timeout.Duration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.Warm.Timeout.Duration)
			defer cancel()
		}
		results := acq.Warm(ctx, paths, *resolveLink)
		var counters *cacheCounters
		if backend != nil {
			counters = &cacheCounters{disk: store.Stats()}
			if mem != nil {
				ms := mem.Stats()
				counters.mem = &ms
			}
		}
		fmt.Println(warmReport(results, counters))
		if err := acquire.Failed(results); err != nil {
			logger.Debug("warm failures", "error", err)
			os.Exit(1)
		}
		return
	}

	out := output{
		file:    *outPath,
		dataURL: *dataURL,
		w:       os.Stdout,
	}
	if *showPreview && isTerminal(os.Stdout) {
		out.preview = preview.NewRenderer(preview.SelectWithOverride(*protocol))
	}

	if *resource != "" {
		k := *key
		if k == "" {
			k = acquire.ResourceKey(*resource, *index)
		}
		data, err := acq.AcquireResource(k, *resource, *index)
		if err != nil {
			logger.Error("extraction failed", "error", err)
			os.Exit(1)
		}
		if err := out.write(*resource, data); err != nil {
			logger.Error("write failed", "error", err)
			os.Exit(1)
		}
		return
	}

	failed := false
	for _, p := range paths {
		data, err := acq.Acquire(p, *resolveLink)
		if err != nil {
			logger.Error("extraction failed", "error", err)
			failed = true
			continue
		}
		if err := out.write(p, data); err != nil {
			logger.Error("write failed", "path", p, "error", err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

var errNoPaths = errors.New("usage: iconpulse [flags] path...")

// checkArgs rejects flag and argument combinations that would otherwise
// silently drop input.
func checkArgs(resource string, paths []string, out string, warm bool) error {
	switch {
	case resource == "" && len(paths) == 0:
		return errNoPaths
	case resource != "" && len(paths) > 0:
		return fmt.Errorf("-resource takes no paths, got %d", len(paths))
	case resource != "" && warm:
		return errors.New("-warm does not apply to -resource")
	case out != "" && len(paths) > 1:
		return errors.New("-out takes a single path")
	}
	return nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// loadConfig reads path if given, otherwise searches the standard locations.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// output decides where acquired PNG bytes go.
type output struct {
	file    string
	dataURL bool
	preview *preview.Renderer
	w       io.Writer
}

// write emits data for path: to a file, as an inline preview, and/or as a
// data URL. With no other output selected the data URL is printed.
func (o output) write(path string, data []byte) error {
	wrote := false
	if o.file != "" {
		if err := os.WriteFile(o.file, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", o.file, err)
		}
		wrote = true
	}
	if o.preview != nil {
		rendered, err := o.preview.Render(data, previewCols, previewRows)
		if err != nil {
			return err
		}
		fmt.Fprintf(o.w, "%s\n%s\n", path, rendered)
		wrote = true
	}
	if o.dataURL || !wrote {
		fmt.Fprintln(o.w, acquire.DataURL(data))
	}
	return nil
}
