// Package handle provides scoped ownership for native resources that must be
// released manually (GDI objects, icon handles, COM interfaces).
//
// A Guard pairs a raw value with its release function at the moment of
// acquisition. A Scope collects guards and releases them in reverse order
// when the scope closes, so a function with several sequential acquisitions
// and many early returns needs only a single deferred Close:
//
//	var s handle.Scope
//	defer s.Close()
//	dc := handle.Push(&s, createDC(), deleteDC)
//	bmp := handle.Push(&s, createBitmap(dc.Value()), deleteObject)
package handle

import "sync"

// Guard owns a single native value and runs its release function exactly
// once.
type Guard[T any] struct {
	value   T
	release func(T)
	once    sync.Once
}

// New wraps value with its release function. A nil release makes the guard
// a no-op owner.
func New[T any](value T, release func(T)) *Guard[T] {
	return &Guard[T]{value: value, release: release}
}

// Value returns the guarded value. It remains readable after Release; using
// it at that point is the caller's bug.
func (g *Guard[T]) Value() T {
	return g.value
}

// Release runs the release function. Subsequent calls do nothing.
func (g *Guard[T]) Release() {
	if g == nil {
		return
	}
	g.once.Do(func() {
		if g.release != nil {
			g.release(g.value)
		}
	})
}

// Releaser is anything a Scope can close.
type Releaser interface {
	Release()
}

// Scope releases everything pushed onto it in LIFO order. The zero value is
// ready to use. A Scope is not safe for concurrent use.
type Scope struct {
	stack  []Releaser
	closed bool
}

// Add registers r for release when the scope closes. Adding to a closed
// scope releases r immediately.
func (s *Scope) Add(r Releaser) {
	if s.closed {
		r.Release()
		return
	}
	s.stack = append(s.stack, r)
}

// Defer registers a plain function, for cleanups that are not tied to a
// single value (restoring a selected GDI object, uninitialising COM).
func (s *Scope) Defer(fn func()) {
	s.Add(funcReleaser(fn))
}

// Close releases every registered resource, most recent first. It is safe to
// call more than once.
func (s *Scope) Close() {
	for i := len(s.stack) - 1; i >= 0; i-- {
		s.stack[i].Release()
		s.stack[i] = nil
	}
	s.stack = nil
	s.closed = true
}

// Len reports how many resources are still pending release.
func (s *Scope) Len() int {
	return len(s.stack)
}

// Push creates a guard for value, registers it with s and returns it.
func Push[T any](s *Scope, value T, release func(T)) *Guard[T] {
	g := New(value, release)
	s.Add(g)
	return g
}

type funcReleaser func()

func (f funcReleaser) Release() { f() }
