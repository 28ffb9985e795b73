// Package field implements the proxy for a single Java field seen from a
// script runtime.
//
// A Field is built from a java.lang.reflect.Field handle. Construction pins
// the handle and resolves the field name; the JNI field id, the type tag and
// whether the field is static are resolved on first access and cached for
// the life of the proxy. Get and Set convert between goja values and the
// Java representation of the field's type.
//
// A Field is not safe for concurrent use. It belongs to the session that
// created it, like the JNI env it calls through.
package field

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/zboralski/jbridge/internal/convert"
	"github.com/zboralski/jbridge/internal/jni"
	"github.com/zboralski/jbridge/internal/jtype"
	glog "github.com/zboralski/jbridge/internal/log"
)

// LocalFrameCapacity is the local reference frame pushed around lazy
// initialization. Every local created while resolving the id, type and
// modifiers is freed when the frame pops.
const LocalFrameCapacity = 20

const reflectField = "java/lang/reflect/Field"

// Owner is the object or class proxy a field belongs to. It is not owned by
// the field; the field only reads it to pick the receiver of accessors.
type Owner interface {
	// JavaObject returns the receiver of instance accessors, or 0 for a
	// class proxy.
	JavaObject() jni.Ref
	// JavaClass returns the receiver of static accessors.
	JavaClass() jni.Ref
}

// Host is the script side of the bridge.
type Host interface {
	// Wrap takes ownership of a non-null local object reference and returns
	// the script value standing for it. Wrap releases obj on failure.
	Wrap(obj *jni.Local) (goja.Value, error)
	// ToValue converts a Go string, int64, float64 or bool to a script value.
	ToValue(v any) goja.Value
	// Methods returns the method-id cache of the JVM behind the env.
	Methods() *jni.MethodCache
}

type staticness uint8

const (
	staticUnknown staticness = iota
	staticNo
	staticYes
)

type options struct {
	static bool
	log    *glog.Logger
}

// Option configures New.
type Option func(*options)

// ForceStatic marks the field static without asking Java. Class proxies use
// it: every field reachable from a class object is accessed statically.
func ForceStatic() Option {
	return func(o *options) { o.static = true }
}

// WithLogger sets the logger; the global logger is used otherwise.
func WithLogger(l *glog.Logger) Option {
	return func(o *options) { o.log = l }
}

// Field proxies one Java field.
type Field struct {
	env   jni.Env
	host  Host
	owner Owner
	cache *jni.MethodCache
	log   *glog.Logger

	rfield *jni.Global
	name   string

	// Written together, once, by a successful init.
	ready  bool
	tag    jtype.Tag
	static staticness
	id     jni.FieldID
}

// New pins rawField, a java.lang.reflect.Field reference, and resolves the
// field name. The caller keeps ownership of rawField. On failure nothing
// stays pinned and the error has KindBinding.
func New(env jni.Env, host Host, owner Owner, rawField jni.Ref, opts ...Option) (*Field, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	f := &Field{
		env:   env,
		host:  host,
		owner: owner,
		cache: host.Methods(),
		log:   glog.Or(o.log).WithCategory("field"),
	}
	if o.static {
		f.static = staticYes
	}

	rfield, err := jni.Pin(env, rawField)
	if err != nil {
		if jerr := jni.CheckException(env, f.cache); jerr != nil {
			err = jerr
		}
		return nil, &Error{Kind: KindBinding, Msg: "cannot pin reflected field", Err: err}
	}
	f.rfield = rfield

	name, err := f.resolveName()
	if err != nil {
		rfield.Release()
		return nil, &Error{Kind: KindBinding, Msg: "cannot resolve field name", Err: err}
	}
	f.name = name

	f.log.Debug("bound", glog.Field(name), glog.Ref("rfield", uint64(rfield.Ref())))
	return f, nil
}

func (f *Field) resolveName() (string, error) {
	cls := jni.NewLocal(f.env, f.env.GetObjectClass(f.rfield.Ref()))
	defer cls.Release()
	if err := jni.CheckException(f.env, f.cache); err != nil {
		return "", err
	}
	if cls.IsNull() {
		return "", ErrUnknownCause
	}

	getName, err := f.cache.MethodIn(f.env, cls.Ref(), reflectField, "getName", "()Ljava/lang/String;")
	if err != nil {
		return "", err
	}
	str := jni.NewLocal(f.env, f.env.CallObjectMethod(f.rfield.Ref(), getName))
	defer str.Release()
	if err := jni.CheckException(f.env, f.cache); err != nil {
		return "", err
	}
	if str.IsNull() {
		return "", errors.New("Field.getName returned null")
	}
	name := jni.GoString(f.env.GetStringUTFChars(str.Ref()))
	if err := jni.CheckException(f.env, f.cache); err != nil {
		return "", err
	}
	if name == "" {
		return "", errors.New("Field.getName returned an empty name")
	}
	return name, nil
}

// ensureInit resolves the field id, type tag and staticness. A failed init
// leaves the proxy uninitialized so the next access retries.
func (f *Field) ensureInit() error {
	if f.ready {
		return nil
	}
	if f.rfield.Released() {
		return &Error{Kind: KindInitialization, Field: f.name, Err: ErrClosed}
	}

	var (
		id     jni.FieldID
		tag    jtype.Tag
		static = f.static
	)
	err := jni.WithLocalFrame(f.env, LocalFrameCapacity, func() error {
		env, rfield := f.env, f.rfield.Ref()

		id = env.FromReflectedField(rfield)
		if err := jni.CheckException(env, f.cache); err != nil {
			return err
		}
		if id == 0 {
			return ErrUnknownCause
		}

		getType, err := f.cache.Method(env, reflectField, "getType", "()Ljava/lang/Class;")
		if err != nil {
			return err
		}
		typ := env.CallObjectMethod(rfield, getType)
		if err := jni.CheckException(env, f.cache); err != nil {
			return err
		}
		if typ == 0 {
			return ErrUnknownCause
		}
		if tag, err = jtype.Classify(env, f.cache, typ); err != nil {
			return err
		}

		if static != staticUnknown {
			return nil
		}
		getModifiers, err := f.cache.Method(env, reflectField, "getModifiers", "()I")
		if err != nil {
			return err
		}
		mods := env.CallIntMethod(rfield, getModifiers)
		if err := jni.CheckException(env, f.cache); err != nil {
			return err
		}
		isStatic, err := f.cache.StaticMethod(env, "java/lang/reflect/Modifier", "isStatic", "(I)Z")
		if err != nil {
			return err
		}
		modifier := env.FindClass("java/lang/reflect/Modifier")
		if err := jni.CheckException(env, f.cache); err != nil {
			return err
		}
		s := env.CallStaticBooleanMethod(modifier, isStatic, jni.Int(mods))
		if err := jni.CheckException(env, f.cache); err != nil {
			return err
		}
		static = staticNo
		if s {
			static = staticYes
		}
		return nil
	})
	if err != nil {
		f.log.Debug("init failed", glog.Field(f.name), zap.Error(err))
		return &Error{Kind: KindInitialization, Field: f.name, Err: err}
	}

	f.id, f.tag, f.static, f.ready = id, tag, static, true
	f.log.Debug("initialized",
		glog.Field(f.name),
		zap.Stringer("tag", tag),
		zap.Bool("static", static == staticYes),
	)
	return nil
}

// Name returns the Java field name.
func (f *Field) Name() string { return f.name }

// Initialized reports whether the id, type and staticness are resolved.
func (f *Field) Initialized() bool { return f.ready }

// Tag returns the field's type tag, initializing the proxy if needed.
func (f *Field) Tag() (jtype.Tag, error) {
	if err := f.ensureInit(); err != nil {
		return jtype.Unknown, err
	}
	return f.tag, nil
}

// IsStatic reports whether the field is accessed statically, initializing
// the proxy if needed.
func (f *Field) IsStatic() (bool, error) {
	if err := f.ensureInit(); err != nil {
		return false, err
	}
	return f.static == staticYes, nil
}

// Close unpins the reflected field. Safe to call more than once.
func (f *Field) Close() error {
	if f == nil {
		return nil
	}
	f.rfield.Release()
	return nil
}

func (f *Field) String() string {
	return fmt.Sprintf("Field(%s)", f.name)
}

// IsField reports whether v is a field proxy.
func IsField(v any) bool {
	_, ok := v.(*Field)
	return ok
}

// javaErr turns a pending Java exception into a KindJavaException error.
func (f *Field) javaErr() error {
	if err := jni.CheckException(f.env, f.cache); err != nil {
		return &Error{Kind: KindJavaException, Field: f.name, Err: err}
	}
	return nil
}

func (f *Field) unsupported() error {
	return &Error{Kind: KindUnsupportedType, Field: f.name, Msg: "unknown field type"}
}

// Get reads the field. Strings and primitives are copied into script
// values; objects are handed to the host to wrap. Java null reads as null.
func (f *Field) Get() (goja.Value, error) {
	if f.rfield.Released() {
		return nil, &Error{Kind: KindBinding, Field: f.name, Err: ErrClosed}
	}
	if err := f.ensureInit(); err != nil {
		return nil, err
	}

	env, id := f.env, f.id
	static := f.static == staticYes
	obj, cls := f.owner.JavaObject(), f.owner.JavaClass()

	switch f.tag {
	case jtype.String, jtype.Object:
		var r jni.Ref
		if static {
			r = env.GetStaticObjectField(cls, id)
		} else {
			r = env.GetObjectField(obj, id)
		}
		l := jni.NewLocal(env, r)
		if err := f.javaErr(); err != nil {
			l.Release()
			return nil, err
		}
		if l.IsNull() {
			return goja.Null(), nil
		}
		if f.tag == jtype.Object {
			return f.host.Wrap(l)
		}
		defer l.Release()
		s := env.GetStringUTFChars(l.Ref())
		if err := f.javaErr(); err != nil {
			return nil, err
		}
		return convert.FromJava(s), nil

	case jtype.Int:
		var v int32
		if static {
			v = env.GetStaticIntField(cls, id)
		} else {
			v = env.GetIntField(obj, id)
		}
		if err := f.javaErr(); err != nil {
			return nil, err
		}
		return f.host.ToValue(int64(v)), nil

	case jtype.Short:
		var v int16
		if static {
			v = env.GetStaticShortField(cls, id)
		} else {
			v = env.GetShortField(obj, id)
		}
		if err := f.javaErr(); err != nil {
			return nil, err
		}
		return f.host.ToValue(int64(v)), nil

	case jtype.Long:
		var v int64
		if static {
			v = env.GetStaticLongField(cls, id)
		} else {
			v = env.GetLongField(obj, id)
		}
		if err := f.javaErr(); err != nil {
			return nil, err
		}
		return f.host.ToValue(v), nil

	case jtype.Double:
		var v float64
		if static {
			v = env.GetStaticDoubleField(cls, id)
		} else {
			v = env.GetDoubleField(obj, id)
		}
		if err := f.javaErr(); err != nil {
			return nil, err
		}
		return f.host.ToValue(v), nil

	case jtype.Float:
		var v float32
		if static {
			v = env.GetStaticFloatField(cls, id)
		} else {
			v = env.GetFloatField(obj, id)
		}
		if err := f.javaErr(); err != nil {
			return nil, err
		}
		return f.host.ToValue(float64(v)), nil

	case jtype.Boolean:
		var v bool
		if static {
			v = env.GetStaticBooleanField(cls, id)
		} else {
			v = env.GetBooleanField(obj, id)
		}
		if err := f.javaErr(); err != nil {
			return nil, err
		}
		return f.host.ToValue(v), nil

	case jtype.Unknown:
		return nil, f.unsupported()
	}
	return nil, f.unsupported()
}

// Set writes v to the field. A value of the wrong type is rejected before
// any JNI mutator runs.
func (f *Field) Set(v goja.Value) error {
	if f.rfield.Released() {
		return &Error{Kind: KindBinding, Field: f.name, Err: ErrClosed}
	}
	if err := f.ensureInit(); err != nil {
		return err
	}
	if f.tag == jtype.Unknown {
		return f.unsupported()
	}
	if !convert.Matches(v, f.tag) {
		return &Error{Kind: KindTypeMismatch, Field: f.name, Msg: "expected " + f.tag.Expected()}
	}
	arg, err := convert.ToJava(f.env, v, f.tag)
	if err != nil {
		return &Error{Kind: KindConversion, Field: f.name, Err: err}
	}
	defer arg.Release()

	env, id, jv := f.env, f.id, arg.Value
	static := f.static == staticYes
	obj, cls := f.owner.JavaObject(), f.owner.JavaClass()

	switch f.tag {
	case jtype.String, jtype.Object:
		if static {
			env.SetStaticObjectField(cls, id, jv.L)
		} else {
			env.SetObjectField(obj, id, jv.L)
		}
	case jtype.Int:
		if static {
			env.SetStaticIntField(cls, id, jv.I)
		} else {
			env.SetIntField(obj, id, jv.I)
		}
	case jtype.Short:
		if static {
			env.SetStaticShortField(cls, id, jv.S)
		} else {
			env.SetShortField(obj, id, jv.S)
		}
	case jtype.Long:
		if static {
			env.SetStaticLongField(cls, id, jv.J)
		} else {
			env.SetLongField(obj, id, jv.J)
		}
	case jtype.Double:
		if static {
			env.SetStaticDoubleField(cls, id, jv.D)
		} else {
			env.SetDoubleField(obj, id, jv.D)
		}
	case jtype.Float:
		if static {
			env.SetStaticFloatField(cls, id, jv.F)
		} else {
			env.SetFloatField(obj, id, jv.F)
		}
	case jtype.Boolean:
		if static {
			env.SetStaticBooleanField(cls, id, jv.Z)
		} else {
			env.SetBooleanField(obj, id, jv.Z)
		}
	default:
		return f.unsupported()
	}
	return f.javaErr()
}
