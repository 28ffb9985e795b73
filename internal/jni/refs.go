package jni

import (
	"errors"
	"fmt"
)

// ErrNullRef is returned when a reference that must be non-null is null.
var ErrNullRef = errors.New("jni: null reference")

// Local owns a local reference returned by a JNI call. It is either released
// before the native call returns or handed off with Transfer.
type Local struct {
	env Env
	ref Ref
}

// NewLocal adopts ref as a local reference owned by the caller.
func NewLocal(env Env, ref Ref) *Local {
	return &Local{env: env, ref: ref}
}

// Ref returns the underlying reference, or 0 once released or transferred.
func (l *Local) Ref() Ref {
	if l == nil {
		return 0
	}
	return l.ref
}

// IsNull reports whether the local holds the null reference.
func (l *Local) IsNull() bool { return l.Ref() == 0 }

// Release deletes the local reference. Safe to call more than once.
func (l *Local) Release() {
	if l == nil || l.ref == 0 {
		return
	}
	l.env.DeleteLocalRef(l.ref)
	l.ref = 0
}

// Transfer gives up ownership and returns the reference. The receiver of the
// reference becomes responsible for deleting it.
func (l *Local) Transfer() Ref {
	if l == nil {
		return 0
	}
	r := l.ref
	l.ref = 0
	return r
}

// Global pins an object across native calls. It is released exactly once.
type Global struct {
	env Env
	ref Ref
}

// Pin creates a global reference to obj.
func Pin(env Env, obj Ref) (*Global, error) {
	if obj == 0 {
		return nil, ErrNullRef
	}
	g := env.NewGlobalRef(obj)
	if g == 0 {
		return nil, fmt.Errorf("jni: NewGlobalRef failed: %w", ErrNullRef)
	}
	return &Global{env: env, ref: g}, nil
}

// Ref returns the pinned reference, or 0 after Release.
func (g *Global) Ref() Ref {
	if g == nil {
		return 0
	}
	return g.ref
}

// Released reports whether Release has run.
func (g *Global) Released() bool { return g == nil || g.ref == 0 }

// Release deletes the global reference. Later calls are no-ops.
func (g *Global) Release() {
	if g == nil || g.ref == 0 {
		return
	}
	g.env.DeleteGlobalRef(g.ref)
	g.ref = 0
}

// WithLocalFrame runs fn inside a local reference frame of the given
// capacity. Every local created inside fn is freed when fn returns, whether
// or not it failed.
func WithLocalFrame(env Env, capacity int32, fn func() error) error {
	if rc := env.PushLocalFrame(capacity); rc != JNI_OK {
		// PushLocalFrame leaves an OutOfMemoryError pending on failure.
		env.ExceptionClear()
		return fmt.Errorf("jni: PushLocalFrame(%d) returned %d", capacity, rc)
	}
	defer env.PopLocalFrame(0)
	return fn()
}
