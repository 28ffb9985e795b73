// Package jvm is an in-process Java heap that implements jni.Env.
//
// It models just enough of the JVM for reflective field access: classes with
// fields and Go-backed methods, objects, strings, reference arrays, the
// java.lang.reflect.Field and java.lang.reflect.Modifier surface, throwables,
// local reference frames and global references. Every JNI call is traced and
// counted, and reference misuse is recorded instead of crashing, so tests can
// assert exact reference accounting.
package jvm

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/zboralski/jbridge/internal/jni"
	glog "github.com/zboralski/jbridge/internal/log"
)

type refKind uint8

const (
	localRef refKind = iota + 1
	globalRef
)

type refEntry struct {
	obj   *Object
	kind  refKind
	frame int
}

type fault struct {
	exClass string
	msg     string
}

// VM is an in-process JVM. All methods are safe for concurrent use; the Env
// methods take the VM lock for the duration of the call.
type VM struct {
	mu sync.Mutex

	classes   map[string]*Class
	fieldIDs  map[jni.FieldID]*Field
	methodIDs map[jni.MethodID]*Method

	refs    map[jni.Ref]*refEntry
	frames  []frame
	nextRef uint64

	nextFieldID  uint64
	nextMethodID uint64
	nextHash     uint32

	pending *Object

	seq    uint64
	calls  map[string]int
	faults map[string][]fault
	misuse int

	log *glog.Logger

	// OnCall is invoked for every JNI call and Java method invocation, with
	// the VM lock held. It must not call back into the VM.
	OnCall func(seq uint64, category, name, detail string)
}

type frame struct {
	capacity int
	refs     []jni.Ref
}

// Option configures a VM.
type Option func(*VM)

// WithLogger sets the logger used for trace and misuse reports.
func WithLogger(l *glog.Logger) Option {
	return func(vm *VM) { vm.log = l }
}

// New creates a VM with the java.lang bootstrap classes loaded.
func New(opts ...Option) *VM {
	vm := &VM{
		classes:   make(map[string]*Class),
		fieldIDs:  make(map[jni.FieldID]*Field),
		methodIDs: make(map[jni.MethodID]*Method),
		refs:      make(map[jni.Ref]*refEntry),
		frames:    []frame{{capacity: 16}},
		nextRef:   0x1000,
		calls:     make(map[string]int),
		faults:    make(map[string][]fault),
	}
	for _, opt := range opts {
		opt(vm)
	}
	vm.log = glog.Or(vm.log)
	vm.bootstrap()
	return vm
}

// Env returns the VM as a jni.Env for the calling thread.
func (vm *VM) Env() jni.Env { return vm }

// record counts and traces a call. Caller holds vm.mu.
func (vm *VM) record(category, name, detail string) {
	vm.seq++
	vm.calls[name]++
	if vm.OnCall != nil {
		vm.OnCall(vm.seq, category, name, detail)
	}
	vm.log.Trace(vm.seq, category, name, detail)
}

// Calls returns how many times a JNI function or Java method (by binary
// class name and method name, e.g. "java.lang.reflect.Field.getType") ran.
func (vm *VM) Calls(name string) int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.calls[name]
}

// ResetCalls clears call counters.
func (vm *VM) ResetCalls() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.calls = make(map[string]int)
}

// FailNext makes the next call to the named JNI function or Java method raise
// an exception of exClass instead of running.
func (vm *VM) FailNext(name, exClass, msg string) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.faults[name] = append(vm.faults[name], fault{exClass: exClass, msg: msg})
}

// injected reports whether a fault was armed for name and raises it if so.
// Caller holds vm.mu.
func (vm *VM) injected(name string) bool {
	q := vm.faults[name]
	if len(q) == 0 {
		return false
	}
	f := q[0]
	if len(q) == 1 {
		delete(vm.faults, name)
	} else {
		vm.faults[name] = q[1:]
	}
	vm.throwNew(f.exClass, f.msg)
	return true
}

// Misuse returns the number of JNI protocol violations seen: invalid or
// double-deleted references, unbalanced frames, calls with an exception
// pending.
func (vm *VM) Misuse() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.misuse
}

func (vm *VM) misused(fn, what string, fields ...zap.Field) {
	vm.misuse++
	vm.log.Misuse(fn, what, fields...)
	if vm.OnCall != nil {
		vm.OnCall(vm.seq, "misuse", fn, what)
	}
}

// LocalRefs returns the number of live local references across all frames.
func (vm *VM) LocalRefs() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	n := 0
	for _, e := range vm.refs {
		if e.kind == localRef {
			n++
		}
	}
	return n
}

// GlobalRefs returns the number of live global references.
func (vm *VM) GlobalRefs() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	n := 0
	for _, e := range vm.refs {
		if e.kind == globalRef {
			n++
		}
	}
	return n
}

// FrameDepth returns the number of pushed local frames above the base frame.
func (vm *VM) FrameDepth() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return len(vm.frames) - 1
}

// NewLocal creates a local reference to obj in the current frame, as the JVM
// does for arguments of a native method.
func (vm *VM) NewLocal(obj *Object) jni.Ref {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.newLocal(obj)
}

// Deref resolves a reference to its object.
func (vm *VM) Deref(r jni.Ref) (*Object, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	e, ok := vm.refs[r]
	if !ok {
		return nil, false
	}
	return e.obj, true
}

// ReflectedField returns the java.lang.reflect.Field object for a field.
func (vm *VM) ReflectedField(className, name string) (*Object, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	c, ok := vm.classes[className]
	if !ok {
		return nil, fmt.Errorf("jvm: class %s not defined", className)
	}
	f := c.lookupField(name)
	if f == nil {
		return nil, fmt.Errorf("jvm: %s has no field %s", className, name)
	}
	return f.reflected, nil
}

func (vm *VM) newLocal(obj *Object) jni.Ref {
	if obj == nil {
		return 0
	}
	vm.nextRef += 8
	r := jni.Ref(vm.nextRef)
	top := len(vm.frames) - 1
	vm.refs[r] = &refEntry{obj: obj, kind: localRef, frame: top}
	vm.frames[top].refs = append(vm.frames[top].refs, r)
	if c := vm.frames[top].capacity; c > 0 && len(vm.frames[top].refs) > c {
		vm.log.Debug("local frame over capacity",
			zap.Int("capacity", c),
			zap.Int("live", len(vm.frames[top].refs)),
		)
	}
	return r
}

func (vm *VM) newGlobal(obj *Object) jni.Ref {
	vm.nextRef += 8
	r := jni.Ref(vm.nextRef)
	vm.refs[r] = &refEntry{obj: obj, kind: globalRef, frame: -1}
	return r
}

// deref resolves r. A null reference yields (nil, true); a dangling one is
// recorded as misuse and yields (nil, false).
func (vm *VM) deref(fn string, r jni.Ref) (*Object, bool) {
	if r == 0 {
		return nil, true
	}
	e, ok := vm.refs[r]
	if !ok {
		vm.misused(fn, "invalid reference", glog.Ref("ref", uint64(r)))
		return nil, false
	}
	return e.obj, true
}

func (vm *VM) deleteLocal(r jni.Ref) {
	e, ok := vm.refs[r]
	if !ok || e.kind != localRef {
		vm.misused("DeleteLocalRef", "not a live local reference", glog.Ref("ref", uint64(r)))
		return
	}
	delete(vm.refs, r)
	fr := &vm.frames[e.frame]
	for i, x := range fr.refs {
		if x == r {
			fr.refs = append(fr.refs[:i], fr.refs[i+1:]...)
			break
		}
	}
}

// enter records a JNI call and reports whether it may proceed. Calls made
// with an exception pending are flagged; calls with an injected fault raise.
// Caller holds vm.mu.
func (vm *VM) enter(name, detail string) bool {
	vm.record("jni", name, detail)
	if vm.pending != nil && !exceptionSafe[name] {
		vm.misused(name, "called with exception pending",
			zap.String("pending", vm.pending.class.Name))
	}
	return !vm.injected(name)
}

// exceptionSafe lists the functions JNI allows while an exception is pending.
var exceptionSafe = map[string]bool{
	"ExceptionOccurred": true,
	"ExceptionCheck":    true,
	"ExceptionClear":    true,
	"DeleteLocalRef":    true,
	"DeleteGlobalRef":   true,
	"PopLocalFrame":     true,
	"PushLocalFrame":    true,
}

func (vm *VM) throw(obj *Object) {
	if vm.pending == nil {
		vm.pending = obj
	}
}

// throwNew raises a new throwable of the named class. Unknown classes fall
// back to java.lang.RuntimeException.
func (vm *VM) throwNew(className, msg string) {
	c, ok := vm.classes[className]
	if !ok || !c.IsSubclassOf(vm.classes["java.lang.Throwable"]) {
		c = vm.classes["java.lang.RuntimeException"]
		msg = className + ": " + msg
	}
	vm.throw(vm.newThrowable(c, msg))
}

func (vm *VM) newThrowable(c *Class, msg string) *Object {
	t := vm.allocate(c)
	if msg != "" {
		f := c.lookupField("detailMessage")
		t.fields[f].o = vm.newString(msg)
	}
	return t
}

// Pending returns the class name of the pending exception, or "".
func (vm *VM) Pending() string {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.pending == nil {
		return ""
	}
	return vm.pending.class.Name
}
