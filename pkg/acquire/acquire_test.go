package acquire

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"sync"
	"testing"

	"gitlab.com/tinyland/lab/iconpulse/pkg/cache"
	"gitlab.com/tinyland/lab/iconpulse/pkg/icon"
	"gitlab.com/tinyland/lab/iconpulse/pkg/shortcut"
)

type extractCall struct {
	path     string
	index    int
	resource bool
}

// fakeExtractor returns a small PNG unique to each source and records calls.
type fakeExtractor struct {
	mu    sync.Mutex
	calls []extractCall
	fail  map[string]error
}

func (f *fakeExtractor) record(c extractCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeExtractor) ExtractDefault(path string) ([]byte, error) {
	f.record(extractCall{path: path})
	if err := f.fail[path]; err != nil {
		return nil, err
	}
	return pngFor(path), nil
}

func (f *fakeExtractor) ExtractFromResource(path string, index int) ([]byte, error) {
	f.record(extractCall{path: path, index: index, resource: true})
	if err := f.fail[path]; err != nil {
		return nil, err
	}
	return pngFor(fmt.Sprintf("%s#%d", path, index)), nil
}

func (f *fakeExtractor) Calls() []extractCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]extractCall(nil), f.calls...)
}

// pngFor encodes a 2x2 image whose color depends on seed.
func pngFor(seed string) []byte {
	var sum byte
	for i := 0; i < len(seed); i++ {
		sum += seed[i]
	}
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, color.NRGBA{R: sum, G: byte(len(seed)), B: 0x80, A: 0xFF})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// fakeResolver returns canned results per link path.
type fakeResolver struct {
	mu    sync.Mutex
	links map[string]shortcut.Info
	calls int
}

func (r *fakeResolver) Resolve(path string) (shortcut.Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	info, ok := r.links[path]
	if !ok {
		return shortcut.Info{}, &shortcut.Error{Kind: shortcut.ErrInvalidLink, Path: path}
	}
	return info, nil
}

// brokenStore never finds anything, as if every read failed, and counts puts.
type brokenStore struct {
	mu   sync.Mutex
	puts int
}

func (s *brokenStore) Get(string) ([]byte, bool) { return nil, false }

func (s *brokenStore) Put(string, []byte) {
	s.mu.Lock()
	s.puts++
	s.mu.Unlock()
}

func newTestStore(t *testing.T) *cache.Store {
	t.Helper()
	s := cache.NewStore(cache.StoreConfig{Dir: t.TempDir()})
	if err := s.EnsureReady(); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	return s
}

func entries(t *testing.T, s *cache.Store) int {
	t.Helper()
	n, _, err := s.Usage()
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	return n
}

func TestScenarioLiteralPath(t *testing.T) {
	const path = `C:\apps\tool.exe`
	store := newTestStore(t)
	ext := &fakeExtractor{}
	a := New(Config{Extractor: ext, Store: store, Resolver: &fakeResolver{}})

	first, err := a.Acquire(path, false)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if got := len(ext.Calls()); got != 1 {
		t.Fatalf("extractions after first call = %d, want 1", got)
	}
	if _, err := os.Stat(store.Path(cache.Fingerprint(path))); err != nil {
		t.Fatalf("cache entry not created: %v", err)
	}

	second, err := a.Acquire(path, false)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if got := len(ext.Calls()); got != 1 {
		t.Errorf("extractions after second call = %d, want 1", got)
	}
	if !bytes.Equal(first, second) {
		t.Error("second call returned different bytes")
	}
}

func TestScenarioLinkWithTarget(t *testing.T) {
	const (
		link   = `C:\Users\x\Desktop\App.lnk`
		target = `C:\apps\app.exe`
	)
	store := newTestStore(t)
	ext := &fakeExtractor{}
	res := &fakeResolver{links: map[string]shortcut.Info{link: {Target: target}}}
	a := New(Config{Extractor: ext, Store: store, Resolver: res})

	if _, err := a.Acquire(link, true); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	calls := ext.Calls()
	if len(calls) != 1 || calls[0] != (extractCall{path: target}) {
		t.Fatalf("calls = %+v, want one default extraction of %s", calls, target)
	}
	if _, ok := store.Get(cache.Fingerprint(target)); !ok {
		t.Error("entry not keyed by target")
	}
	if _, ok := store.Get(cache.Fingerprint(link)); ok {
		t.Error("entry unexpectedly keyed by link path")
	}
}

func TestScenarioLinkWithIconResource(t *testing.T) {
	const link = `C:\Users\x\Desktop\Res.lnk`
	store := newTestStore(t)
	ext := &fakeExtractor{}
	res := &fakeResolver{links: map[string]shortcut.Info{
		link: {Target: `C:\apps\app.exe`, IconPath: `C:\apps\res.dll`, IconIndex: 3},
	}}
	a := New(Config{Extractor: ext, Store: store, Resolver: res})

	if _, err := a.Acquire(link, true); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	calls := ext.Calls()
	want := extractCall{path: `C:\apps\res.dll`, index: 3, resource: true}
	if len(calls) != 1 || calls[0] != want {
		t.Fatalf("calls = %+v, want %+v", calls, want)
	}
	if _, ok := store.Get(cache.Fingerprint(`C:\apps\res.dll:3`)); !ok {
		t.Error(`entry not keyed by "C:\apps\res.dll:3"`)
	}
}

func TestResourceKeyCollapsesShortcuts(t *testing.T) {
	store := newTestStore(t)
	ext := &fakeExtractor{}
	res := &fakeResolver{links: map[string]shortcut.Info{
		`C:\a\One.lnk`: {Target: `C:\apps\one.exe`, IconPath: "icons.dll", IconIndex: 0},
		`C:\b\Two.lnk`: {Target: `C:\apps\two.exe`, IconPath: "icons.dll", IconIndex: 0},
	}}
	a := New(Config{Extractor: ext, Store: store, Resolver: res})

	one, err := a.Acquire(`C:\a\One.lnk`, true)
	if err != nil {
		t.Fatal(err)
	}
	two, err := a.Acquire(`C:\b\Two.lnk`, true)
	if err != nil {
		t.Fatal(err)
	}

	if ResourceKey("icons.dll", 0) != "icons.dll:0" {
		t.Errorf("ResourceKey = %q", ResourceKey("icons.dll", 0))
	}
	if len(ext.Calls()) != 1 {
		t.Errorf("extractions = %d, want 1 shared", len(ext.Calls()))
	}
	if got := entries(t, store); got != 1 {
		t.Errorf("cache entries = %d, want 1", got)
	}
	if !bytes.Equal(one, two) {
		t.Error("shortcuts sharing a resource returned different bytes")
	}
}

func TestIdempotentLinkAcquisition(t *testing.T) {
	const link = `C:\Desktop\Tool.lnk`
	ext := &fakeExtractor{}
	res := &fakeResolver{links: map[string]shortcut.Info{link: {Target: `C:\tool.exe`}}}
	a := New(Config{Extractor: ext, Store: newTestStore(t), Resolver: res})

	first, err := a.Acquire(link, true)
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.Acquire(link, true)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("outputs differ")
	}
	if len(ext.Calls()) != 1 {
		t.Errorf("extractions = %d, want 1", len(ext.Calls()))
	}
}

func TestExtractionFailureWritesNothing(t *testing.T) {
	const path = `C:\missing\nothing.exe`
	store := newTestStore(t)
	ext := &fakeExtractor{fail: map[string]error{path: icon.ErrNotFound}}
	a := New(Config{Extractor: ext, Store: store})

	data, err := a.Acquire(path, false)
	if err == nil {
		t.Fatal("expected error")
	}
	if data != nil {
		t.Error("expected no data on failure")
	}
	if !errors.Is(err, icon.ErrNotFound) {
		t.Errorf("err = %v, want icon.ErrNotFound in chain", err)
	}
	if !strings.HasPrefix(err.Error(), "acquire "+path+": ") {
		t.Errorf("err = %q, want acquire prefix", err)
	}
	if got := entries(t, store); got != 0 {
		t.Errorf("cache entries = %d, want 0", got)
	}
}

func TestCorruptEntryIsRegenerated(t *testing.T) {
	const path = `C:\apps\tool.exe`
	store := newTestStore(t)
	fp := cache.Fingerprint(path)
	if err := os.WriteFile(store.Path(fp), []byte("not a png"), 0o644); err != nil {
		t.Fatal(err)
	}
	ext := &fakeExtractor{}
	a := New(Config{Extractor: ext, Store: store})

	data, err := a.Acquire(path, false)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(ext.Calls()) != 1 {
		t.Errorf("extractions = %d, want 1", len(ext.Calls()))
	}
	onDisk, ok := store.Get(fp)
	if !ok || !bytes.Equal(onDisk, data) {
		t.Error("corrupt entry was not replaced")
	}
}

func TestReturnedBytesDoNotAliasCache(t *testing.T) {
	const path = `C:\apps\tool.exe`
	a := New(Config{
		Extractor: &fakeExtractor{},
		Store:     cache.NewTiered(cache.NewMemory(8), newTestStore(t)),
	})

	first, err := a.Acquire(path, false)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	for i := range first {
		first[i] = 0
	}

	for i := 0; i < 2; i++ {
		got, err := a.Acquire(path, false)
		if err != nil {
			t.Fatalf("Acquire #%d: %v", i, err)
		}
		if !bytes.Equal(got, pngFor(path)) {
			t.Fatalf("Acquire #%d returned bytes altered by an earlier caller", i)
		}
		got[0] = 0
	}
}

func TestFailingStoreDegradesToMiss(t *testing.T) {
	store := &brokenStore{}
	ext := &fakeExtractor{}
	a := New(Config{Extractor: ext, Store: store})

	for i := 0; i < 2; i++ {
		if _, err := a.Acquire(`C:\apps\tool.exe`, false); err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
	}
	if len(ext.Calls()) != 2 {
		t.Errorf("extractions = %d, want 2", len(ext.Calls()))
	}
	if store.puts != 2 {
		t.Errorf("puts = %d, want 2", store.puts)
	}
}

func TestCacheWriteFailureNotPropagated(t *testing.T) {
	dir := t.TempDir()
	blocked := dir + "/file"
	if err := os.WriteFile(blocked, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	// The store directory is a regular file, so every write fails.
	store := cache.NewStore(cache.StoreConfig{Dir: blocked})
	a := New(Config{Extractor: &fakeExtractor{}, Store: store})

	if _, err := a.Acquire(`C:\apps\tool.exe`, false); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if st := store.Stats(); st.WriteFailures != 1 {
		t.Errorf("WriteFailures = %d, want 1", st.WriteFailures)
	}
}

func TestBrokenLinkFallsBackToLiteralPath(t *testing.T) {
	const link = `C:\Desktop\Broken.lnk`
	ext := &fakeExtractor{}
	res := &fakeResolver{}
	a := New(Config{Extractor: ext, Store: newTestStore(t), Resolver: res})

	if _, err := a.Acquire(link, true); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	calls := ext.Calls()
	if len(calls) != 1 || calls[0] != (extractCall{path: link}) {
		t.Errorf("calls = %+v, want default extraction of the link itself", calls)
	}
}

func TestEmptyLinkFallsThrough(t *testing.T) {
	const link = `C:\Desktop\Empty.lnk`
	ext := &fakeExtractor{}
	res := &fakeResolver{links: map[string]shortcut.Info{link: {}}}
	a := New(Config{Extractor: ext, Resolver: res})

	if _, err := a.Acquire(link, true); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if calls := ext.Calls(); len(calls) != 1 || calls[0].path != link {
		t.Errorf("calls = %+v", calls)
	}
}

func TestResolverSkipped(t *testing.T) {
	tests := []struct {
		name string
		path string
		try  bool
	}{
		{"not requested", `C:\Desktop\App.lnk`, false},
		{"not a link", `C:\apps\app.exe`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &fakeResolver{}
			a := New(Config{Extractor: &fakeExtractor{}, Resolver: res})
			if _, err := a.Acquire(tt.path, tt.try); err != nil {
				t.Fatal(err)
			}
			if res.calls != 0 {
				t.Errorf("resolver calls = %d, want 0", res.calls)
			}
		})
	}
}

func TestGetIconByResource(t *testing.T) {
	store := newTestStore(t)
	ext := &fakeExtractor{}
	a := New(Config{Extractor: ext, Store: store})

	key := ResourceKey(`C:\apps\res.dll`, 7)
	url, err := a.GetIconByResource(key, `C:\apps\res.dll`, 7)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(url, DataURLPrefix) {
		t.Errorf("url = %q", url)
	}
	calls := ext.Calls()
	if len(calls) != 1 || calls[0] != (extractCall{path: `C:\apps\res.dll`, index: 7, resource: true}) {
		t.Errorf("calls = %+v", calls)
	}
	if _, ok := store.Get(cache.Fingerprint(key)); !ok {
		t.Error("entry not stored under the given key")
	}
}

func TestGetIconDataURL(t *testing.T) {
	a := New(Config{Extractor: &fakeExtractor{}})
	url, err := a.GetIcon(`C:\apps\tool.exe`)
	if err != nil {
		t.Fatal(err)
	}
	payload, ok := strings.CutPrefix(url, "data:image/png;base64,")
	if !ok {
		t.Fatalf("url = %q, missing prefix", url)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if !bytes.Equal(raw, pngFor(`C:\apps\tool.exe`)) {
		t.Error("payload does not match extracted bytes")
	}
}

func TestGetIconResolvedPropagatesError(t *testing.T) {
	a := New(Config{Extractor: &fakeExtractor{fail: map[string]error{"x.exe": icon.ErrNoIcon}}})
	url, err := a.GetIconResolved("x.exe", true)
	if !errors.Is(err, icon.ErrNoIcon) || url != "" {
		t.Errorf("url = %q, err = %v", url, err)
	}
}

func TestWarm(t *testing.T) {
	store := newTestStore(t)
	ext := &fakeExtractor{fail: map[string]error{"bad.exe": icon.ErrNoIcon}}
	res := &fakeResolver{links: map[string]shortcut.Info{
		"a.lnk": {IconPath: "shared.dll", IconIndex: 1},
		"b.lnk": {IconPath: "shared.dll", IconIndex: 1},
	}}
	a := New(Config{Extractor: ext, Store: store, Resolver: res, Workers: 2})

	if _, err := a.Acquire("cached.exe", false); err != nil {
		t.Fatal(err)
	}

	paths := []string{"cached.exe", "a.lnk", "bad.exe", "b.lnk", "fresh.exe"}
	results := a.Warm(context.Background(), paths, true)
	if len(results) != len(paths) {
		t.Fatalf("results = %d, want %d", len(results), len(paths))
	}
	for i, r := range results {
		if r.Path != paths[i] {
			t.Errorf("results[%d].Path = %q, want %q", i, r.Path, paths[i])
		}
	}
	if !results[0].FromCache {
		t.Error("pre-acquired path not reported as cached")
	}
	if results[1].Key != "shared.dll:1" || results[3].Key != "shared.dll:1" {
		t.Errorf("link keys = %q, %q", results[1].Key, results[3].Key)
	}
	if !errors.Is(results[2].Err, icon.ErrNoIcon) {
		t.Errorf("bad.exe err = %v", results[2].Err)
	}
	if results[4].Err != nil || results[4].FromCache {
		t.Errorf("fresh.exe = %+v", results[4])
	}

	err := Failed(results)
	if err == nil || !errors.Is(err, icon.ErrNoIcon) {
		t.Errorf("Failed = %v", err)
	}

	// Every successful path is now a cache hit.
	before := len(ext.Calls())
	for _, p := range []string{"a.lnk", "b.lnk", "fresh.exe"} {
		if _, err := a.Acquire(p, true); err != nil {
			t.Fatal(err)
		}
	}
	if after := len(ext.Calls()); after != before {
		t.Errorf("extractions after warm = %d, want %d", after, before)
	}
}

func TestWarmCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ext := &fakeExtractor{}
	a := New(Config{Extractor: ext})
	results := a.Warm(ctx, []string{"a.exe", "b.exe"}, false)

	for _, r := range results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("%s err = %v, want context.Canceled", r.Path, r.Err)
		}
	}
	if len(ext.Calls()) != 0 {
		t.Errorf("extractions = %d, want 0", len(ext.Calls()))
	}
}

func TestFailedNil(t *testing.T) {
	if err := Failed([]WarmResult{{Path: "a"}}); err != nil {
		t.Errorf("Failed = %v, want nil", err)
	}
}

func TestNewRequiresExtractor(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	New(Config{})
}
