// Package proxy exposes Java objects and classes to goja as dynamic objects
// whose properties are the public Java fields.
package proxy

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"weak"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/zboralski/jbridge/internal/convert"
	"github.com/zboralski/jbridge/internal/field"
	"github.com/zboralski/jbridge/internal/jni"
	"github.com/zboralski/jbridge/internal/jtype"
	glog "github.com/zboralski/jbridge/internal/log"
)

// discoverFrameCapacity bounds the locals live at once during discovery:
// the class, the Field[] array and one element.
const discoverFrameCapacity = 16

// Factory creates proxies bound to one runtime and one JVM env. It
// implements field.Host.
//
// There is at most one live object proxy per Java object. The factory holds
// object proxies weakly: once the script and Go code drop a proxy, the
// garbage collector queues its references and the next Reap, run on the
// goroutine that owns env, releases them. Class proxies stay pinned until
// Close.
type Factory struct {
	env   jni.Env
	rt    *goja.Runtime
	cache *jni.MethodCache
	root  *glog.Logger // passed on to fields
	log   *glog.Logger

	classes []*Class
	objects map[int32][]*tracked // by System.identityHashCode
	closed  bool

	mu   sync.Mutex
	dead []*pins // collected proxies awaiting Reap
}

// tracked is the factory's record of one object proxy.
type tracked struct {
	proxy   weak.Pointer[Object]
	pins    *pins
	cleanup runtime.Cleanup
}

// pins holds the references of one object proxy. Fields use it as their
// owner, so nothing in it reaches back to the proxy and the proxy can be
// collected while the references are still pinned.
type pins struct {
	hash     int32
	obj, cls *jni.Global
	fields   []*field.Field
	released bool
}

func (p *pins) JavaObject() jni.Ref { return p.obj.Ref() }
func (p *pins) JavaClass() jni.Ref  { return p.cls.Ref() }

func (p *pins) release() {
	if p.released {
		return
	}
	p.released = true
	for _, fld := range p.fields {
		fld.Close()
	}
	p.obj.Release()
	p.cls.Release()
}

var _ field.Host = (*Factory)(nil)

// NewFactory returns a factory. cache must be the method cache of the JVM
// behind env.
func NewFactory(env jni.Env, rt *goja.Runtime, cache *jni.MethodCache, log *glog.Logger) *Factory {
	root := glog.Or(log)
	return &Factory{
		env:     env,
		rt:      rt,
		cache:   cache,
		root:    root,
		log:     root.WithCategory("proxy"),
		objects: make(map[int32][]*tracked),
	}
}

// Methods returns the shared method-id cache.
func (f *Factory) Methods() *jni.MethodCache { return f.cache }

// ToValue converts a Go value with the factory's runtime.
func (f *Factory) ToValue(v any) goja.Value { return f.rt.ToValue(v) }

// Wrap converts an object reference read from a field. Strings become
// script strings, java.lang.Class instances become class proxies and other
// objects become object proxies. obj is released in every case.
func (f *Factory) Wrap(obj *jni.Local) (goja.Value, error) {
	defer obj.Release()
	if obj.IsNull() {
		return goja.Null(), nil
	}

	if f.isInstance(obj.Ref(), "java/lang/String") {
		s := f.env.GetStringUTFChars(obj.Ref())
		if err := jni.CheckException(f.env, f.cache); err != nil {
			return nil, err
		}
		return convert.FromJava(s), nil
	}
	if f.isInstance(obj.Ref(), "java/lang/Class") {
		c, err := f.Class(obj.Ref())
		if err != nil {
			return nil, err
		}
		return c.Value(), nil
	}
	o, err := f.Object(obj.Ref())
	if err != nil {
		return nil, err
	}
	return o.Value(), nil
}

func (f *Factory) isInstance(obj jni.Ref, className string) bool {
	cls := jni.NewLocal(f.env, f.env.FindClass(className))
	defer cls.Release()
	if jni.CheckException(f.env, f.cache) != nil || cls.IsNull() {
		return false
	}
	ok := f.env.IsInstanceOf(obj, cls.Ref())
	if jni.CheckException(f.env, f.cache) != nil {
		return false
	}
	return ok
}

// Object returns the proxy for obj, building one that pins obj and exposes
// the public fields of its runtime class if none is live.
func (f *Factory) Object(obj jni.Ref) (*Object, error) {
	if f.closed {
		return nil, errClosed
	}
	f.Reap()
	hash, err := f.identityHash(obj)
	if err != nil {
		return nil, err
	}
	if p := f.lookup(hash, obj); p != nil {
		return p, nil
	}

	pn := &pins{hash: hash}
	if pn.obj, err = jni.Pin(f.env, obj); err != nil {
		return nil, fmt.Errorf("pin object: %w", err)
	}
	cls := jni.NewLocal(f.env, f.env.GetObjectClass(pn.obj.Ref()))
	defer cls.Release()
	if err := jni.CheckException(f.env, f.cache); err != nil {
		pn.release()
		return nil, err
	}
	if pn.cls, err = jni.Pin(f.env, cls.Ref()); err != nil {
		pn.release()
		return nil, fmt.Errorf("pin class: %w", err)
	}

	p := &Object{base: base{factory: f, obj: pn.obj}, pins: pn}
	if err := p.init(cls.Ref(), pn); err != nil {
		pn.release()
		return nil, err
	}
	for _, name := range p.order {
		pn.fields = append(pn.fields, p.fields[name])
	}
	p.value = f.rt.NewDynamicObject(p)

	f.objects[hash] = append(f.objects[hash], &tracked{
		proxy:   weak.Make(p),
		pins:    pn,
		cleanup: runtime.AddCleanup(p, f.collected, pn),
	})
	return p, nil
}

// identityHash buckets obj by System.identityHashCode, which runs no user
// code.
func (f *Factory) identityHash(obj jni.Ref) (int32, error) {
	m, err := f.cache.StaticMethod(f.env, "java/lang/System", "identityHashCode", "(Ljava/lang/Object;)I")
	if err != nil {
		return 0, err
	}
	system := jni.NewLocal(f.env, f.env.FindClass("java/lang/System"))
	defer system.Release()
	if err := jni.CheckException(f.env, f.cache); err != nil {
		return 0, err
	}
	h := f.env.CallStaticIntMethod(system.Ref(), m, jni.Object(obj))
	if err := jni.CheckException(f.env, f.cache); err != nil {
		return 0, err
	}
	return h, nil
}

// lookup returns the live proxy for obj, if any.
func (f *Factory) lookup(hash int32, obj jni.Ref) *Object {
	for _, t := range f.objects[hash] {
		p := t.proxy.Value()
		if p == nil || t.pins.released {
			continue
		}
		if f.env.IsSameObject(t.pins.obj.Ref(), obj) {
			return p
		}
	}
	return nil
}

// collected runs on the runtime's cleanup goroutine and must not touch env.
func (f *Factory) collected(pn *pins) {
	f.mu.Lock()
	f.dead = append(f.dead, pn)
	f.mu.Unlock()
}

// Reap releases the references of object proxies the garbage collector has
// reclaimed and returns how many were released. It must run on the
// goroutine that uses env; the factory calls it on every proxy access.
func (f *Factory) Reap() int {
	f.mu.Lock()
	dead := f.dead
	f.dead = nil
	f.mu.Unlock()

	for _, pn := range dead {
		f.forget(pn)
		pn.release()
	}
	if len(dead) > 0 {
		f.log.Debug("reaped", zap.Int("proxies", len(dead)))
	}
	return len(dead)
}

func (f *Factory) forget(pn *pins) {
	list := f.objects[pn.hash]
	for i, t := range list {
		if t.pins == pn {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(f.objects, pn.hash)
	} else {
		f.objects[pn.hash] = list
	}
}

// Class pins a java.lang.Class reference and builds a proxy exposing its
// public fields. Fields reached through a class are accessed statically.
func (f *Factory) Class(class jni.Ref) (*Class, error) {
	if f.closed {
		return nil, errClosed
	}
	for _, c := range f.classes {
		if f.env.IsSameObject(c.obj.Ref(), class) {
			return c, nil
		}
	}
	pinned, err := jni.Pin(f.env, class)
	if err != nil {
		return nil, fmt.Errorf("pin class: %w", err)
	}
	p := &Class{base: base{factory: f, obj: pinned, class: true}}
	if err := p.init(pinned.Ref(), p, field.ForceStatic()); err != nil {
		pinned.Release()
		return nil, err
	}
	p.value = f.rt.NewDynamicObject(p)
	f.classes = append(f.classes, p)
	return p, nil
}

// FindClass looks up a class by binary name and returns its proxy.
func (f *Factory) FindClass(binaryName string) (*Class, error) {
	cls := jni.NewLocal(f.env, f.env.FindClass(jni.InternalName(binaryName)))
	defer cls.Release()
	if err := jni.CheckException(f.env, f.cache); err != nil {
		return nil, err
	}
	if cls.IsNull() {
		return nil, fmt.Errorf("class %s not found", binaryName)
	}
	return f.Class(cls.Ref())
}

// Live returns the number of proxies whose references are still pinned.
func (f *Factory) Live() int {
	n := 0
	for _, c := range f.classes {
		if !c.closed {
			n++
		}
	}
	for _, list := range f.objects {
		for _, t := range list {
			if !t.pins.released {
				n++
			}
		}
	}
	return n
}

// Close releases every proxy the factory created, reachable or not. Later
// calls are no-ops.
func (f *Factory) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	n := f.Live()
	for _, list := range f.objects {
		for _, t := range list {
			t.cleanup.Stop()
			if p := t.proxy.Value(); p != nil {
				p.closed = true
			}
			t.pins.release()
		}
	}
	f.objects = nil
	f.mu.Lock()
	f.dead = nil
	f.mu.Unlock()

	var errs []error
	for i := len(f.classes) - 1; i >= 0; i-- {
		if err := f.classes[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	f.classes = nil
	f.log.Debug("closed", zap.Int("proxies", n))
	return errors.Join(errs...)
}

var errClosed = errors.New("proxy: factory closed")

// Discover lists the public fields of class as field proxies owned by
// owner. The caller closes the returned fields. A field hidden by a
// subclass field of the same name is skipped.
func (f *Factory) Discover(class jni.Ref, owner field.Owner, opts ...field.Option) ([]*field.Field, error) {
	opts = append([]field.Option{field.WithLogger(f.root)}, opts...)

	var out []*field.Field
	seen := make(map[string]bool)
	fail := func(err error) error {
		for _, fld := range out {
			fld.Close()
		}
		out = nil
		return err
	}

	err := jni.WithLocalFrame(f.env, discoverFrameCapacity, func() error {
		getFields, err := f.cache.Method(f.env, "java/lang/Class", "getFields", "()[Ljava/lang/reflect/Field;")
		if err != nil {
			return fail(err)
		}
		arr := jni.NewLocal(f.env, f.env.CallObjectMethod(class, getFields))
		defer arr.Release()
		if err := jni.CheckException(f.env, f.cache); err != nil {
			return fail(err)
		}
		n := f.env.GetArrayLength(arr.Ref())
		if err := jni.CheckException(f.env, f.cache); err != nil {
			return fail(err)
		}
		for i := int32(0); i < n; i++ {
			elem := jni.NewLocal(f.env, f.env.GetObjectArrayElement(arr.Ref(), i))
			if err := jni.CheckException(f.env, f.cache); err != nil {
				return fail(err)
			}
			fld, err := field.New(f.env, f, owner, elem.Ref(), opts...)
			elem.Release()
			if err != nil {
				return fail(err)
			}
			if seen[fld.Name()] {
				fld.Close()
				continue
			}
			seen[fld.Name()] = true
			out = append(out, fld)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FieldInfo describes one public field of a class.
type FieldInfo struct {
	Name   string
	Tag    jtype.Tag
	Static bool
}

// classOnly owns fields for Describe. It has no receiver and does not force
// static, so staticness comes from the field modifiers.
type classOnly jni.Ref

func (c classOnly) JavaObject() jni.Ref { return 0 }
func (c classOnly) JavaClass() jni.Ref  { return jni.Ref(c) }

// Describe lists the public fields of the class with the given binary name,
// resolving each field's type and modifiers.
func (f *Factory) Describe(binaryName string) ([]FieldInfo, error) {
	cls := jni.NewLocal(f.env, f.env.FindClass(jni.InternalName(binaryName)))
	defer cls.Release()
	if err := jni.CheckException(f.env, f.cache); err != nil {
		return nil, err
	}
	if cls.IsNull() {
		return nil, fmt.Errorf("class %s not found", binaryName)
	}
	fields, err := f.Discover(cls.Ref(), classOnly(cls.Ref()))
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, fld := range fields {
			fld.Close()
		}
	}()

	out := make([]FieldInfo, 0, len(fields))
	for _, fld := range fields {
		tag, err := fld.Tag()
		if err != nil {
			return nil, err
		}
		static, err := fld.IsStatic()
		if err != nil {
			return nil, err
		}
		out = append(out, FieldInfo{Name: fld.Name(), Tag: tag, Static: static})
	}
	return out, nil
}

// base holds what object and class proxies share.
type base struct {
	factory *Factory
	obj     *jni.Global
	name    string // binary class name
	fields  map[string]*field.Field
	order   []string
	value   *goja.Object
	class   bool
	closed  bool
}

func (b *base) init(class jni.Ref, owner field.Owner, opts ...field.Option) error {
	name, err := className(b.factory.env, b.factory.cache, class)
	if err != nil {
		return err
	}
	b.name = name
	fields, err := b.factory.Discover(class, owner, opts...)
	if err != nil {
		return err
	}
	b.fields = make(map[string]*field.Field, len(fields))
	for _, fld := range fields {
		b.fields[fld.Name()] = fld
		b.order = append(b.order, fld.Name())
	}
	b.factory.log.Debug("proxy created", glog.Class(name), zap.Int("fields", len(fields)))
	return nil
}

func className(env jni.Env, cache *jni.MethodCache, class jni.Ref) (string, error) {
	getName, err := cache.Method(env, "java/lang/Class", "getName", "()Ljava/lang/String;")
	if err != nil {
		return "", err
	}
	str := jni.NewLocal(env, env.CallObjectMethod(class, getName))
	defer str.Release()
	if err := jni.CheckException(env, cache); err != nil {
		return "", err
	}
	if str.IsNull() {
		return "", errors.New("Class.getName returned null")
	}
	return env.GetStringUTFChars(str.Ref()), nil
}

// ClassName returns the binary name of the proxied class.
func (b *base) ClassName() string { return b.name }

// Value returns the script object for the proxy.
func (b *base) Value() *goja.Object { return b.value }

// Field returns a field proxy by name.
func (b *base) Field(name string) (*field.Field, bool) {
	fld, ok := b.fields[name]
	return fld, ok
}

// FieldNames returns the field names in discovery order.
func (b *base) FieldNames() []string {
	return append([]string(nil), b.order...)
}

// JavaRef returns the pinned reference, or 0 once closed.
func (b *base) JavaRef() jni.Ref { return b.obj.Ref() }

// Close closes every field and unpins the Java object.
func (b *base) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	for _, name := range b.order {
		b.fields[name].Close()
	}
	b.obj.Release()
	return nil
}

// get and set implement goja.DynamicObject for both proxy kinds. Errors
// are thrown into the script as GoError exceptions.
func (b *base) get(key string) goja.Value {
	b.factory.Reap()
	rt := b.factory.rt
	if fld, ok := b.fields[key]; ok {
		v, err := fld.Get()
		if err != nil {
			panic(rt.NewGoError(err))
		}
		return v
	}
	if key == "toString" {
		return rt.ToValue(func() string { return b.String() })
	}
	// nil defers to the prototype chain.
	return nil
}

func (b *base) set(key string, val goja.Value) bool {
	b.factory.Reap()
	fld, ok := b.fields[key]
	if !ok {
		panic(b.factory.rt.NewTypeError("%s has no public field %s", b.name, key))
	}
	if err := fld.Set(val); err != nil {
		panic(b.factory.rt.NewGoError(err))
	}
	return true
}

func (b *base) has(key string) bool {
	_, ok := b.fields[key]
	return ok
}

func (b *base) keys() []string {
	keys := b.FieldNames()
	sort.Strings(keys)
	return keys
}

// String describes the proxy: "class <name>" for classes and the result of
// Object.toString() for objects.
func (b *base) String() string {
	if b.class {
		return "class " + b.name
	}
	f := b.factory
	if b.obj.Released() {
		return b.name + " (closed)"
	}
	m, err := f.cache.Method(f.env, "java/lang/Object", "toString", "()Ljava/lang/String;")
	if err != nil {
		return b.name
	}
	str := jni.NewLocal(f.env, f.env.CallObjectMethod(b.obj.Ref(), m))
	defer str.Release()
	if jni.CheckException(f.env, f.cache) != nil || str.IsNull() {
		return b.name
	}
	return jni.GoString(f.env.GetStringUTFChars(str.Ref()))
}

// Object proxies a Java object.
type Object struct {
	base
	pins *pins
}

var (
	_ goja.DynamicObject = (*Object)(nil)
	_ field.Owner        = (*Object)(nil)
)

// JavaObject implements field.Owner.
func (o *Object) JavaObject() jni.Ref { return o.obj.Ref() }

// JavaClass implements field.Owner.
func (o *Object) JavaClass() jni.Ref { return o.pins.JavaClass() }

// Close closes the fields and unpins the object and its class. A later
// read of the same Java object builds a new proxy.
func (o *Object) Close() error {
	o.closed = true
	o.pins.release()
	return nil
}

func (o *Object) Get(key string) goja.Value          { return o.get(key) }
func (o *Object) Set(key string, val goja.Value) bool { return o.set(key, val) }
func (o *Object) Has(key string) bool                 { return o.has(key) }
func (o *Object) Delete(key string) bool              { return false }
func (o *Object) Keys() []string                      { return o.keys() }

// Class proxies a java.lang.Class.
type Class struct {
	base
}

var (
	_ goja.DynamicObject = (*Class)(nil)
	_ field.Owner        = (*Class)(nil)
)

// JavaObject implements field.Owner; class proxies have no receiver.
func (c *Class) JavaObject() jni.Ref { return 0 }

// JavaClass implements field.Owner.
func (c *Class) JavaClass() jni.Ref { return c.obj.Ref() }

func (c *Class) Get(key string) goja.Value          { return c.get(key) }
func (c *Class) Set(key string, val goja.Value) bool { return c.set(key, val) }
func (c *Class) Has(key string) bool                 { return c.has(key) }
func (c *Class) Delete(key string) bool              { return false }
func (c *Class) Keys() []string                      { return c.keys() }
