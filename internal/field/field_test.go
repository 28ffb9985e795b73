package field_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/dop251/goja"

	"github.com/zboralski/jbridge/internal/convert"
	"github.com/zboralski/jbridge/internal/field"
	"github.com/zboralski/jbridge/internal/jni"
	"github.com/zboralski/jbridge/internal/jtype"
	"github.com/zboralski/jbridge/internal/jvm"
	glog "github.com/zboralski/jbridge/internal/log"
)

// testHost wraps objects as *javaObject values holding a global reference.
type testHost struct {
	rt      *goja.Runtime
	env     jni.Env
	cache   *jni.MethodCache
	wrapped []*jni.Global
}

type javaObject struct{ g *jni.Global }

func (o *javaObject) JavaRef() jni.Ref { return o.g.Ref() }

func (h *testHost) Wrap(l *jni.Local) (goja.Value, error) {
	defer l.Release()
	g, err := jni.Pin(h.env, l.Ref())
	if err != nil {
		return nil, err
	}
	h.wrapped = append(h.wrapped, g)
	return h.rt.ToValue(&javaObject{g}), nil
}

func (h *testHost) ToValue(v any) goja.Value   { return h.rt.ToValue(v) }
func (h *testHost) Methods() *jni.MethodCache { return h.cache }

type testOwner struct{ obj, cls jni.Ref }

func (o testOwner) JavaObject() jni.Ref { return o.obj }
func (o testOwner) JavaClass() jni.Ref  { return o.cls }

type fixture struct {
	t     *testing.T
	vm    *jvm.VM
	env   jni.Env
	rt    *goja.Runtime
	host  *testHost
	point *jvm.Object
	other *jvm.Object
	owner testOwner
	// reference counts once the fixture is built
	locals, globals int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	vm := jvm.New(jvm.WithLogger(glog.NewNop()))
	pub := jvm.AccPublic
	_, err := vm.DefineClass("com.example.Point", "",
		jvm.FieldSpec{Name: "x", Type: "int", Modifiers: pub},
		jvm.FieldSpec{Name: "s", Type: "short", Modifiers: pub},
		jvm.FieldSpec{Name: "big", Type: "long", Modifiers: pub},
		jvm.FieldSpec{Name: "weight", Type: "double", Modifiers: pub},
		jvm.FieldSpec{Name: "ratio", Type: "float", Modifiers: pub},
		jvm.FieldSpec{Name: "visible", Type: "boolean", Modifiers: pub},
		jvm.FieldSpec{Name: "label", Type: "java.lang.String", Modifiers: pub},
		jvm.FieldSpec{Name: "next", Type: "com.example.Point", Modifiers: pub},
		jvm.FieldSpec{Name: "initial", Type: "char", Modifiers: pub},
		jvm.FieldSpec{Name: "COUNT", Type: "int", Modifiers: pub | jvm.AccStatic},
	)
	if err != nil {
		t.Fatalf("DefineClass: %v", err)
	}
	_, err = vm.DefineClass("com.example.Config", "",
		jvm.FieldSpec{Name: "NAME", Type: "java.lang.String", Modifiers: pub | jvm.AccStatic},
	)
	if err != nil {
		t.Fatalf("DefineClass: %v", err)
	}
	if err := vm.SetStatic("com.example.Config", "NAME", "jbridge"); err != nil {
		t.Fatal(err)
	}

	point, _ := vm.NewObject("com.example.Point")
	other, _ := vm.NewObject("com.example.Point")
	if err := vm.SetField(point, "x", 1); err != nil {
		t.Fatal(err)
	}

	fx := &fixture{
		t:     t,
		vm:    vm,
		env:   vm.Env(),
		rt:    goja.New(),
		point: point,
		other: other,
	}
	fx.host = &testHost{rt: fx.rt, env: fx.env, cache: jni.NewMethodCache()}
	cls, _ := vm.Class("com.example.Point")
	fx.owner = testOwner{obj: fx.pin(point), cls: fx.pin(cls.Mirror())}
	fx.locals, fx.globals = vm.LocalRefs(), vm.GlobalRefs()
	return fx
}

func (fx *fixture) pin(o *jvm.Object) jni.Ref {
	l := fx.vm.NewLocal(o)
	g := fx.env.NewGlobalRef(l)
	fx.env.DeleteLocalRef(l)
	return g
}

func (fx *fixture) field(className, name string, owner field.Owner, opts ...field.Option) (*field.Field, error) {
	fx.t.Helper()
	rf, err := fx.vm.ReflectedField(className, name)
	if err != nil {
		fx.t.Fatal(err)
	}
	raw := fx.vm.NewLocal(rf)
	defer fx.env.DeleteLocalRef(raw)
	return field.New(fx.env, fx.host, owner, raw, opts...)
}

func (fx *fixture) mustField(name string, opts ...field.Option) *field.Field {
	fx.t.Helper()
	f, err := fx.field("com.example.Point", name, fx.owner, opts...)
	if err != nil {
		fx.t.Fatalf("field.New(%s): %v", name, err)
	}
	return f
}

// checkRefs fails when the JNI reference counts moved since the fixture
// was built, ignoring extra globals the caller expects to be pinned.
func (fx *fixture) checkRefs(extraGlobals int) {
	fx.t.Helper()
	if got := fx.vm.LocalRefs(); got != fx.locals {
		fx.t.Errorf("LocalRefs = %d, want %d", got, fx.locals)
	}
	if got := fx.vm.GlobalRefs(); got != fx.globals+extraGlobals {
		fx.t.Errorf("GlobalRefs = %d, want %d", got, fx.globals+extraGlobals)
	}
	if got := fx.vm.FrameDepth(); got != 0 {
		fx.t.Errorf("FrameDepth = %d, want 0", got)
	}
	if got := fx.vm.Misuse(); got != 0 {
		fx.t.Errorf("Misuse = %d, want 0", got)
	}
	if p := fx.vm.Pending(); p != "" {
		fx.t.Errorf("exception left pending: %s", p)
	}
}

func kindOf(err error) field.Kind {
	var fe *field.Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

func TestNewResolvesNameOnly(t *testing.T) {
	fx := newFixture(t)
	f := fx.mustField("x")
	defer f.Close()

	if f.Name() != "x" {
		t.Errorf("Name = %q, want x", f.Name())
	}
	if f.Initialized() {
		t.Error("field should not be initialized before first access")
	}
	if n := fx.vm.Calls("java.lang.reflect.Field.getName"); n != 1 {
		t.Errorf("getName calls = %d, want 1", n)
	}
	if n := fx.vm.Calls("java.lang.reflect.Field.getType"); n != 0 {
		t.Errorf("getType calls = %d, want 0", n)
	}
	fx.checkRefs(1)
	if !field.IsField(f) || field.IsField("x") {
		t.Error("IsField misclassifies")
	}
}

func TestInitRunsOnce(t *testing.T) {
	fx := newFixture(t)
	f := fx.mustField("x")
	defer f.Close()

	for i := 0; i < 3; i++ {
		if _, err := f.Get(); err != nil {
			t.Fatalf("Get: %v", err)
		}
	}
	if err := f.Set(fx.rt.ToValue(2)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	for _, m := range []string{"getType", "getModifiers"} {
		if n := fx.vm.Calls("java.lang.reflect.Field." + m); n != 1 {
			t.Errorf("%s calls = %d, want 1", m, n)
		}
	}
	if n := fx.vm.Calls("java.lang.reflect.Modifier.isStatic"); n != 1 {
		t.Errorf("isStatic calls = %d, want 1", n)
	}
	if n := fx.vm.Calls("PushLocalFrame"); n != 1 {
		t.Errorf("PushLocalFrame calls = %d, want 1", n)
	}
	tag, _ := f.Tag()
	static, _ := f.IsStatic()
	if tag != jtype.Int || static {
		t.Errorf("tag = %v static = %v, want int instance", tag, static)
	}
	fx.checkRefs(1)
}

func TestRoundTrip(t *testing.T) {
	fx := newFixture(t)
	tests := []struct {
		name  string
		tag   jtype.Tag
		in    any
		check func(goja.Value) bool
	}{
		{"x", jtype.Int, int64(-42), func(v goja.Value) bool { return v.Export() == int64(-42) }},
		{"s", jtype.Short, int64(-300), func(v goja.Value) bool { return v.Export() == int64(-300) }},
		{"big", jtype.Long, int64(1) << 40, func(v goja.Value) bool { return v.Export() == int64(1)<<40 }},
		{"weight", jtype.Double, 2.5, func(v goja.Value) bool { return v.ToFloat() == 2.5 }},
		{"ratio", jtype.Float, 0.1, func(v goja.Value) bool { return v.ToFloat() == float64(float32(0.1)) }},
		{"visible", jtype.Boolean, true, func(v goja.Value) bool { return v.Export() == true }},
		{"label", jtype.String, "héllo wörld", func(v goja.Value) bool { return v.Export() == "héllo wörld" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx.t = t
			f := fx.mustField(tt.name)
			defer f.Close()

			if err := f.Set(fx.rt.ToValue(tt.in)); err != nil {
				t.Fatalf("Set(%v): %v", tt.in, err)
			}
			v, err := f.Get()
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if !tt.check(v) {
				t.Errorf("Get = %v (%T), want %v", v, v.Export(), tt.in)
			}
			if tag, _ := f.Tag(); tag != tt.tag {
				t.Errorf("Tag = %v, want %v", tag, tt.tag)
			}
			fx.checkRefs(1)
		})
	}
}

func TestRoundTripStatic(t *testing.T) {
	fx := newFixture(t)
	pub := jvm.AccPublic | jvm.AccStatic
	_, err := fx.vm.DefineClass("com.example.Limits", "",
		jvm.FieldSpec{Name: "I", Type: "int", Modifiers: pub},
		jvm.FieldSpec{Name: "S", Type: "short", Modifiers: pub},
		jvm.FieldSpec{Name: "J", Type: "long", Modifiers: pub},
		jvm.FieldSpec{Name: "D", Type: "double", Modifiers: pub},
		jvm.FieldSpec{Name: "F", Type: "float", Modifiers: pub},
		jvm.FieldSpec{Name: "Z", Type: "boolean", Modifiers: pub},
		jvm.FieldSpec{Name: "STR", Type: "java.lang.String", Modifiers: pub},
		jvm.FieldSpec{Name: "OBJ", Type: "java.lang.Object", Modifiers: pub},
	)
	if err != nil {
		t.Fatalf("DefineClass: %v", err)
	}
	cls, _ := fx.vm.Class("com.example.Limits")
	owner := testOwner{cls: fx.pin(cls.Mirror())}
	other := &javaObject{g: mustPin(t, fx.env, fx.pin(fx.other))}
	fx.locals, fx.globals = fx.vm.LocalRefs(), fx.vm.GlobalRefs()

	tests := []struct {
		name  string
		tag   jtype.Tag
		in    any
		check func(goja.Value) bool
	}{
		{"I", jtype.Int, int64(-42), func(v goja.Value) bool { return v.Export() == int64(-42) }},
		{"S", jtype.Short, int64(-300), func(v goja.Value) bool { return v.Export() == int64(-300) }},
		{"J", jtype.Long, int64(1) << 40, func(v goja.Value) bool { return v.Export() == int64(1)<<40 }},
		{"D", jtype.Double, 2.5, func(v goja.Value) bool { return v.ToFloat() == 2.5 }},
		{"F", jtype.Float, 0.1, func(v goja.Value) bool { return v.ToFloat() == float64(float32(0.1)) }},
		{"Z", jtype.Boolean, true, func(v goja.Value) bool { return v.Export() == true }},
		{"STR", jtype.String, "static ✓", func(v goja.Value) bool { return v.Export() == "static ✓" }},
		{"OBJ", jtype.Object, other, func(v goja.Value) bool {
			jo, ok := v.Export().(*javaObject)
			return ok && fx.env.IsSameObject(jo.JavaRef(), other.JavaRef())
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx.t = t
			f, err := fx.field("com.example.Limits", tt.name, owner)
			if err != nil {
				t.Fatalf("field.New(%s): %v", tt.name, err)
			}
			defer f.Close()

			if err := f.Set(fx.rt.ToValue(tt.in)); err != nil {
				t.Fatalf("Set(%v): %v", tt.in, err)
			}
			v, err := f.Get()
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if !tt.check(v) {
				t.Errorf("Get = %v (%T), want %v", v, v.Export(), tt.in)
			}
			if tag, _ := f.Tag(); tag != tt.tag {
				t.Errorf("Tag = %v, want %v", tag, tt.tag)
			}
			if static, _ := f.IsStatic(); !static {
				t.Error("static field detected as instance")
			}
			// The field pin plus every object the host wrapped.
			fx.checkRefs(1 + len(fx.host.wrapped))
		})
	}
	if v, _ := fx.vm.StaticValue("com.example.Limits", "J"); v != int64(1)<<40 {
		t.Errorf("heap J = %v", v)
	}
	if v, _ := fx.vm.StaticValue("com.example.Limits", "OBJ"); v != fx.other {
		t.Errorf("heap OBJ = %v, want %v", v, fx.other)
	}
}

func TestPointScenario(t *testing.T) {
	fx := newFixture(t)
	f := fx.mustField("x")
	defer f.Close()

	v, err := f.Get()
	if err != nil || v.ToInteger() != 1 {
		t.Fatalf("point.x = %v, %v; want 1", v, err)
	}
	if err := f.Set(fx.rt.ToValue(5)); err != nil {
		t.Fatal(err)
	}
	if got, _ := fx.vm.FieldValue(fx.point, "x"); got != int32(5) {
		t.Errorf("Java side x = %v, want 5", got)
	}
}

func TestStaticThroughClass(t *testing.T) {
	fx := newFixture(t)
	cls, _ := fx.vm.Class("com.example.Config")
	owner := testOwner{cls: fx.pin(cls.Mirror())}
	fx.globals++

	f, err := fx.field("com.example.Config", "NAME", owner, field.ForceStatic())
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	v, err := f.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v.String() != "jbridge" {
		t.Errorf("Config.NAME = %q, want jbridge", v.String())
	}
	if n := fx.vm.Calls("java.lang.reflect.Field.getModifiers"); n != 0 {
		t.Errorf("forced-static field asked for modifiers %d times", n)
	}
	if n := fx.vm.Calls("GetStaticObjectField"); n != 1 {
		t.Errorf("GetStaticObjectField calls = %d, want 1", n)
	}
	fx.checkRefs(1)
}

func TestStaticDetectedThroughObject(t *testing.T) {
	fx := newFixture(t)
	if err := fx.vm.SetStatic("com.example.Point", "COUNT", 9); err != nil {
		t.Fatal(err)
	}
	f := fx.mustField("COUNT")
	defer f.Close()

	v, err := f.Get()
	if err != nil {
		t.Fatal(err)
	}
	if v.ToInteger() != 9 {
		t.Errorf("COUNT = %v, want 9", v)
	}
	if static, _ := f.IsStatic(); !static {
		t.Error("COUNT should be detected static")
	}
	if n := fx.vm.Calls("GetStaticIntField"); n != 1 {
		t.Errorf("GetStaticIntField calls = %d, want 1", n)
	}
}

func TestTypeMismatchDoesNotMutate(t *testing.T) {
	fx := newFixture(t)
	tests := []struct {
		name string
		v    goja.Value
		want string
	}{
		{"visible", fx.rt.ToValue(1), "expected boolean"},
		{"x", fx.rt.ToValue("7"), "expected int"},
		{"x", fx.rt.ToValue(1.5), "expected int"},
		{"s", goja.Null(), "expected int"},
		{"big", fx.rt.ToValue(true), "expected long"},
		{"weight", fx.rt.ToValue("2.0"), "expected float (jdouble)"},
		{"ratio", goja.Undefined(), "expected float (jfloat)"},
		{"label", fx.rt.ToValue(3), "expected string"},
		{"next", fx.rt.ToValue(3), "expected object"},
	}
	for _, tt := range tests {
		f := fx.mustField(tt.name)
		before, _ := fx.vm.FieldValue(fx.point, tt.name)
		fx.vm.ResetCalls()

		err := f.Set(tt.v)
		if !errors.Is(err, field.ErrTypeMismatch) {
			t.Errorf("%s: Set(%v) = %v, want type mismatch", tt.name, tt.v, err)
		} else if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: error %q does not mention %q", tt.name, err, tt.want)
		}

		after, _ := fx.vm.FieldValue(fx.point, tt.name)
		if before != after {
			t.Errorf("%s: value changed from %v to %v", tt.name, before, after)
		}
		for _, m := range []string{"SetIntField", "SetShortField", "SetLongField", "SetDoubleField",
			"SetFloatField", "SetBooleanField", "SetObjectField", "NewStringUTF"} {
			if fx.vm.Calls(m) != 0 {
				t.Errorf("%s: mismatch still called %s", tt.name, m)
			}
		}
		f.Close()
	}
	fx.checkRefs(0)
}

func TestConversionError(t *testing.T) {
	fx := newFixture(t)
	f := fx.mustField("s")
	defer f.Close()

	err := f.Set(fx.rt.ToValue(40000))
	if kindOf(err) != field.KindConversion {
		t.Fatalf("Set(40000) = %v, want conversion error", err)
	}
	var ce *convert.Error
	if !errors.As(err, &ce) {
		t.Errorf("cause should be *convert.Error, got %v", err)
	}
	if got, _ := fx.vm.FieldValue(fx.point, "s"); got != int16(0) {
		t.Errorf("s = %v, want 0", got)
	}
}

func TestNulls(t *testing.T) {
	fx := newFixture(t)
	for _, name := range []string{"label", "next"} {
		f := fx.mustField(name)
		v, err := f.Get()
		if err != nil {
			t.Fatalf("%s: Get: %v", name, err)
		}
		if !goja.IsNull(v) {
			t.Errorf("%s: Get of null = %v, want null", name, v)
		}
		if err := f.Set(goja.Null()); err != nil {
			t.Errorf("%s: Set(null): %v", name, err)
		}
		f.Close()
	}
	if len(fx.host.wrapped) != 0 {
		t.Error("null must not be wrapped")
	}
	fx.checkRefs(0)
}

func TestStringSetReleasesTransient(t *testing.T) {
	fx := newFixture(t)
	f := fx.mustField("label")
	defer f.Close()

	if err := f.Set(fx.rt.ToValue("hi")); err != nil {
		t.Fatal(err)
	}
	if got, _ := fx.vm.FieldValue(fx.point, "label"); got != "hi" {
		t.Errorf("label = %v", got)
	}
	if err := f.Set(goja.Null()); err != nil {
		t.Fatal(err)
	}
	if got, _ := fx.vm.FieldValue(fx.point, "label"); got != nil {
		t.Errorf("label = %v, want nil", got)
	}
	fx.checkRefs(1)
}

func TestObjectField(t *testing.T) {
	fx := newFixture(t)
	f := fx.mustField("next")
	defer f.Close()

	otherRef := fx.pin(fx.other)
	target := fx.rt.ToValue(&javaObject{g: mustPin(t, fx.env, otherRef)})
	if err := f.Set(target); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, _ := fx.vm.FieldValue(fx.point, "next"); got != fx.other {
		t.Errorf("next = %v, want %v", got, fx.other)
	}

	v, err := f.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	jo, ok := v.Export().(*javaObject)
	if !ok {
		t.Fatalf("Get returned %T, want wrapped object", v.Export())
	}
	if o, _ := fx.vm.Deref(jo.JavaRef()); o != fx.other {
		t.Errorf("wrapped %v, want %v", o, fx.other)
	}
	// field pin, otherRef, the javaObject pin and the wrapped pin.
	fx.checkRefs(4)
}

func TestObjectFieldRejectsWrongClass(t *testing.T) {
	fx := newFixture(t)
	f := fx.mustField("next")
	defer f.Close()

	// A string is acceptable for Object fields in general, but not for a
	// field of type Point; Java raises.
	err := f.Set(fx.rt.ToValue("not a point"))
	if kindOf(err) != field.KindJavaException {
		t.Fatalf("Set = %v, want Java exception", err)
	}
	var je *jni.JavaException
	if !errors.As(err, &je) || je.Class != "java.lang.IllegalArgumentException" {
		t.Errorf("cause = %v", err)
	}
	fx.checkRefs(1)
}

func TestAccessorExceptionDoesNotLeak(t *testing.T) {
	fx := newFixture(t)
	f := fx.mustField("label")
	defer f.Close()
	if _, err := f.Get(); err != nil {
		t.Fatal(err)
	}

	fx.vm.FailNext("GetObjectField", "java.lang.IllegalStateException", "boom")
	v, err := f.Get()
	if v != nil {
		t.Errorf("Get returned %v alongside an error", v)
	}
	if !errors.Is(err, field.ErrJavaException) {
		t.Fatalf("err = %v, want Java exception", err)
	}
	if !errors.Is(err, &jni.JavaException{Class: "java.lang.IllegalStateException", Message: "boom"}) {
		t.Errorf("cause = %v", err)
	}

	fx.vm.FailNext("SetObjectField", "java.lang.IllegalStateException", "boom")
	if err := f.Set(fx.rt.ToValue("x")); !errors.Is(err, field.ErrJavaException) {
		t.Errorf("Set err = %v", err)
	}
	fx.checkRefs(1)
}

func TestConstructionFailure(t *testing.T) {
	fx := newFixture(t)
	fx.vm.FailNext("java.lang.reflect.Field.getName", "java.lang.IllegalStateException", "no name")

	f, err := fx.field("com.example.Point", "x", fx.owner)
	if f != nil {
		t.Error("New returned a field on failure")
	}
	if !errors.Is(err, field.ErrBinding) {
		t.Fatalf("err = %v, want binding error", err)
	}
	var je *jni.JavaException
	if !errors.As(err, &je) || je.Message != "no name" {
		t.Errorf("cause = %v", err)
	}
	fx.checkRefs(0)
}

func TestConstructionFailureNullHandle(t *testing.T) {
	fx := newFixture(t)
	_, err := field.New(fx.env, fx.host, fx.owner, 0)
	if !errors.Is(err, field.ErrBinding) || !errors.Is(err, jni.ErrNullRef) {
		t.Errorf("err = %v", err)
	}
	fx.checkRefs(0)
}

func TestInitFailureRetries(t *testing.T) {
	fx := newFixture(t)
	f := fx.mustField("x")
	defer f.Close()

	fx.vm.FailNext("java.lang.reflect.Field.getType", "java.lang.LinkageError", "type")
	_, err := f.Get()
	if !errors.Is(err, field.ErrInitialization) {
		t.Fatalf("err = %v, want initialization error", err)
	}
	if !errors.Is(err, &jni.JavaException{Class: "java.lang.LinkageError"}) {
		t.Errorf("cause = %v", err)
	}
	if f.Initialized() {
		t.Error("failed init must leave the field uninitialized")
	}
	fx.checkRefs(1)

	fx.vm.FailNext("java.lang.reflect.Modifier.isStatic", "java.lang.LinkageError", "mods")
	if err := f.Set(fx.rt.ToValue(3)); !errors.Is(err, field.ErrInitialization) {
		t.Fatalf("Set err = %v, want initialization error", err)
	}
	if got, _ := fx.vm.FieldValue(fx.point, "x"); got != int32(1) {
		t.Errorf("x = %v after failed init, want 1", got)
	}
	fx.checkRefs(1)

	v, err := f.Get()
	if err != nil || v.ToInteger() != 1 {
		t.Fatalf("retry Get = %v, %v", v, err)
	}
	if !f.Initialized() {
		t.Error("successful retry should initialize")
	}
	fx.checkRefs(1)
}

func TestUnsupportedType(t *testing.T) {
	fx := newFixture(t)
	f := fx.mustField("initial")
	defer f.Close()

	v, err := f.Get()
	if v != nil {
		t.Errorf("Get returned placeholder %v", v)
	}
	if !errors.Is(err, field.ErrUnsupportedType) {
		t.Errorf("Get err = %v", err)
	}
	if err := f.Set(fx.rt.ToValue(65)); !errors.Is(err, field.ErrUnsupportedType) {
		t.Errorf("Set err = %v", err)
	}
	if got, _ := fx.vm.FieldValue(fx.point, "initial"); got != uint16(0) {
		t.Errorf("initial = %v, want 0", got)
	}
	if tag, err := f.Tag(); err != nil || tag != jtype.Unknown {
		t.Errorf("Tag = %v, %v", tag, err)
	}
	fx.checkRefs(1)
}

func TestClose(t *testing.T) {
	fx := newFixture(t)
	f := fx.mustField("x")
	if _, err := f.Get(); err != nil {
		t.Fatal(err)
	}
	f.Close()
	f.Close()
	fx.checkRefs(0)

	if _, err := f.Get(); !errors.Is(err, field.ErrClosed) {
		t.Errorf("Get after Close = %v", err)
	}
	if err := f.Set(fx.rt.ToValue(1)); !errors.Is(err, field.ErrClosed) {
		t.Errorf("Set after Close = %v", err)
	}
	if fx.vm.Misuse() != 0 {
		t.Errorf("Misuse = %d", fx.vm.Misuse())
	}
}

func TestMethodCacheShared(t *testing.T) {
	fx := newFixture(t)
	a := fx.mustField("x")
	b := fx.mustField("big")
	defer a.Close()
	defer b.Close()

	a.Get()
	b.Get()
	misses := fx.host.cache.Misses()
	c := fx.mustField("s")
	defer c.Close()
	c.Get()
	if fx.host.cache.Misses() != misses {
		t.Errorf("third field missed the cache: %d -> %d", misses, fx.host.cache.Misses())
	}
}

func TestErrorMessage(t *testing.T) {
	err := &field.Error{Kind: field.KindTypeMismatch, Field: "x", Msg: "expected boolean"}
	if got := err.Error(); got != "field x: expected boolean" {
		t.Errorf("Error() = %q", got)
	}
	err = &field.Error{Kind: field.KindJavaException, Field: "x",
		Err: &jni.JavaException{Class: "java.lang.NullPointerException"}}
	if got := err.Error(); got != "field x: java exception: java.lang.NullPointerException" {
		t.Errorf("Error() = %q", got)
	}
	if errors.Is(err, field.ErrBinding) {
		t.Error("kinds must not cross-match")
	}
}

func mustPin(t *testing.T, env jni.Env, ref jni.Ref) *jni.Global {
	t.Helper()
	g, err := jni.Pin(env, ref)
	if err != nil {
		t.Fatal(err)
	}
	return g
}
