// Package bridge binds one goja runtime to one JNI env. Java objects and
// classes are published to scripts as proxies whose properties are their
// public fields.
package bridge

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zboralski/jbridge/internal/jni"
	"github.com/zboralski/jbridge/internal/jvm"
	glog "github.com/zboralski/jbridge/internal/log"
	"github.com/zboralski/jbridge/internal/proxy"
)

// ErrClosed is returned by every Session method after Close.
var ErrClosed = errors.New("bridge: session closed")

// Session is one script runtime attached to a JVM thread. It is not safe for
// concurrent use.
type Session struct {
	ID uuid.UUID

	env     jni.Env
	rt      *goja.Runtime
	factory *proxy.Factory
	log     *glog.Logger
	out     io.Writer
	names   map[string]bool
	closed  bool
}

// Option configures a Session.
type Option func(*Session)

// WithOutput sets where the script's print function writes. Defaults to
// stdout.
func WithOutput(w io.Writer) Option {
	return func(s *Session) { s.out = w }
}

// WithLogger sets the session logger.
func WithLogger(l *glog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// New creates a session. cache is the method-id cache of the JVM behind env;
// sessions on the same JVM should share it.
func New(env jni.Env, cache *jni.MethodCache, opts ...Option) *Session {
	s := &Session{
		ID:    uuid.New(),
		env:   env,
		rt:    goja.New(),
		out:   os.Stdout,
		names: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	root := glog.Or(s.log)
	s.log = root.WithCategory("bridge").With(zap.String("session", s.ID.String()))
	s.factory = proxy.NewFactory(env, s.rt, cache, root)
	s.rt.Set("print", s.print)
	s.log.Debug("session created")
	return s
}

func (s *Session) print(call goja.FunctionCall) goja.Value {
	parts := make([]string, len(call.Arguments))
	for i, a := range call.Arguments {
		parts[i] = a.String()
	}
	fmt.Fprintln(s.out, strings.Join(parts, " "))
	return goja.Undefined()
}

// Runtime returns the script runtime.
func (s *Session) Runtime() *goja.Runtime { return s.rt }

// Proxies returns the proxy factory of the session.
func (s *Session) Proxies() *proxy.Factory { return s.factory }

func (s *Session) bind(name string, v goja.Value) error {
	if s.names[name] {
		return fmt.Errorf("bridge: %q is already bound", name)
	}
	if err := s.rt.Set(name, v); err != nil {
		return fmt.Errorf("bridge: bind %q: %w", name, err)
	}
	s.names[name] = true
	return nil
}

// BindObject publishes obj to scripts as a global named name. obj stays
// owned by the caller; the session pins its own reference.
func (s *Session) BindObject(name string, obj jni.Ref) (*proxy.Object, error) {
	if s.closed {
		return nil, ErrClosed
	}
	o, err := s.factory.Object(obj)
	if err != nil {
		return nil, fmt.Errorf("bridge: bind %q: %w", name, err)
	}
	if err := s.bind(name, o.Value()); err != nil {
		return nil, err
	}
	s.log.Debug("bound object", zap.String("name", name), glog.Class(o.ClassName()))
	return o, nil
}

// BindClass publishes the class with the given binary name as a global.
// Its fields are accessed statically.
func (s *Session) BindClass(name, className string) (*proxy.Class, error) {
	if s.closed {
		return nil, ErrClosed
	}
	c, err := s.factory.FindClass(className)
	if err != nil {
		return nil, fmt.Errorf("bridge: bind %q: %w", name, err)
	}
	if err := s.bind(name, c.Value()); err != nil {
		return nil, err
	}
	s.log.Debug("bound class", zap.String("name", name), glog.Class(className))
	return c, nil
}

// BindHeap publishes every class of heap under its simple name and every
// object under its id.
func (s *Session) BindHeap(vm *jvm.VM, heap *jvm.Heap) error {
	for _, name := range heap.Classes {
		if _, err := s.BindClass(SimpleName(name), name); err != nil {
			return err
		}
	}
	for _, id := range heap.IDs {
		obj, ok := heap.Object(id)
		if !ok || obj == nil {
			return fmt.Errorf("bridge: bind %q: no such object in heap", id)
		}
		ref := vm.NewLocal(obj)
		_, err := s.BindObject(id, ref)
		s.env.DeleteLocalRef(ref)
		if err != nil {
			return err
		}
	}
	return nil
}

// SimpleName returns the last segment of a binary class name, without any
// enclosing class prefix.
func SimpleName(className string) string {
	if i := strings.LastIndexByte(className, '.'); i >= 0 {
		className = className[i+1:]
	}
	if i := strings.LastIndexByte(className, '$'); i >= 0 {
		className = className[i+1:]
	}
	return className
}

// Run executes src. name labels the script in stack traces. A script
// exception is returned as a *goja.Exception wrapped with name.
func (s *Session) Run(name, src string) (goja.Value, error) {
	if s.closed {
		return nil, ErrClosed
	}
	s.factory.Reap()
	v, err := s.rt.RunScript(name, src)
	if err != nil {
		s.log.Debug("script failed", zap.String("script", name), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

// Close releases every Java reference held by the session's proxies. Proxies
// still reachable from scripts fail on access afterwards.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.factory.Close()
	s.log.Debug("session closed")
	return err
}
