// Package convert checks and converts script values for storage into Java
// fields.
package convert

import (
	"fmt"
	"math"

	"github.com/dop251/goja"

	"github.com/zboralski/jbridge/internal/jni"
	"github.com/zboralski/jbridge/internal/jtype"
)

// Referent is implemented by script-side values that stand for a Java
// object. JavaRef returns 0 once the value has been released.
type Referent interface {
	JavaRef() jni.Ref
}

// Error reports a value that passed Matches but cannot be represented in
// the target Java type.
type Error struct {
	Tag   jtype.Tag
	Value string
	Msg   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("convert %s to %s: %s", e.Value, e.Tag, e.Msg)
}

// Arg is a converted value ready to pass to a JNI mutator. String and object
// conversions own a transient local reference that Release deletes.
type Arg struct {
	Value jni.Value
	local *jni.Local
}

// Release deletes the transient local reference, if any. Safe to call more
// than once and on a nil Arg.
func (a *Arg) Release() {
	if a == nil {
		return
	}
	a.local.Release()
}

// Matches reports whether v is acceptable for a field of the given tag.
// null is accepted only by String and Object; undefined is never accepted.
func Matches(v goja.Value, tag jtype.Tag) bool {
	if v == nil || goja.IsUndefined(v) {
		return false
	}
	if goja.IsNull(v) {
		return tag == jtype.String || tag == jtype.Object
	}
	x := v.Export()
	switch tag {
	case jtype.String:
		_, ok := x.(string)
		return ok
	case jtype.Object:
		switch r := x.(type) {
		case string:
			return true
		case Referent:
			return r != nil
		}
		return false
	case jtype.Int, jtype.Short, jtype.Long:
		_, ok := integral(x)
		return ok
	case jtype.Double, jtype.Float:
		_, ok := number(x)
		return ok
	case jtype.Boolean:
		_, ok := x.(bool)
		return ok
	}
	return false
}

// ToJava converts v for a field of the given tag. Callers check Matches
// first; ToJava reports values that match but do not fit, such as an
// integer outside the range of a Java short.
func ToJava(env jni.Env, v goja.Value, tag jtype.Tag) (*Arg, error) {
	if v == nil || goja.IsUndefined(v) {
		return nil, &Error{Tag: tag, Value: "undefined", Msg: "no value"}
	}
	if goja.IsNull(v) {
		if tag == jtype.String || tag == jtype.Object {
			return &Arg{}, nil
		}
		return nil, &Error{Tag: tag, Value: "null", Msg: "primitive fields cannot hold null"}
	}

	x := v.Export()
	fail := func(msg string) (*Arg, error) {
		return nil, &Error{Tag: tag, Value: v.String(), Msg: msg}
	}

	switch tag {
	case jtype.String:
		if _, ok := x.(string); !ok {
			return fail("not a string")
		}
		return newString(env, v)

	case jtype.Object:
		switch r := x.(type) {
		case string:
			return newString(env, v)
		case Referent:
			ref := r.JavaRef()
			if ref == 0 {
				return fail("object has been released")
			}
			l := jni.NewLocal(env, env.NewLocalRef(ref))
			if l.IsNull() {
				return fail("NewLocalRef failed")
			}
			return &Arg{Value: jni.Object(l.Ref()), local: l}, nil
		}
		return fail("not a Java object")

	case jtype.Int:
		n, ok := integral(x)
		if !ok {
			return fail("not an integer")
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return fail("out of range for int")
		}
		return &Arg{Value: jni.Value{I: int32(n)}}, nil

	case jtype.Short:
		n, ok := integral(x)
		if !ok {
			return fail("not an integer")
		}
		if n < math.MinInt16 || n > math.MaxInt16 {
			return fail("out of range for short")
		}
		return &Arg{Value: jni.Value{S: int16(n)}}, nil

	case jtype.Long:
		n, ok := integral(x)
		if !ok {
			return fail("not an integer")
		}
		return &Arg{Value: jni.Value{J: n}}, nil

	case jtype.Double:
		d, ok := number(x)
		if !ok {
			return fail("not a number")
		}
		return &Arg{Value: jni.Value{D: d}}, nil

	case jtype.Float:
		d, ok := number(x)
		if !ok {
			return fail("not a number")
		}
		if !math.IsInf(d, 0) && !math.IsNaN(d) && math.Abs(d) > math.MaxFloat32 {
			return fail("out of range for float")
		}
		return &Arg{Value: jni.Value{F: float32(d)}}, nil

	case jtype.Boolean:
		b, ok := x.(bool)
		if !ok {
			return fail("not a boolean")
		}
		return &Arg{Value: jni.Value{Z: b}}, nil
	}
	return fail("unsupported type")
}

func newString(env jni.Env, v goja.Value) (*Arg, error) {
	l := jni.NewLocal(env, env.NewStringUTF(javaString(v)))
	if l.IsNull() {
		// NewStringUTF leaves an OutOfMemoryError pending when it fails.
		env.ExceptionClear()
		return nil, &Error{Tag: jtype.String, Value: fmt.Sprintf("%q", v.String()), Msg: "NewStringUTF failed"}
	}
	return &Arg{Value: jni.Object(l.Ref()), local: l}, nil
}

// javaString encodes a script string for NewStringUTF from its UTF-16 code
// units, so unpaired surrogates survive.
func javaString(v goja.Value) string {
	gs, ok := v.(goja.String)
	if !ok {
		return jni.ModifiedUTF8(v.String())
	}
	units := make([]uint16, gs.Length())
	for i := range units {
		units[i] = gs.CharAt(i)
	}
	return jni.EncodeModifiedUTF8(units)
}

// FromJava turns modified UTF-8 from GetStringUTFChars into a script string.
func FromJava(s string) goja.Value {
	return goja.StringFromUTF16(jni.DecodeModifiedUTF8(s))
}

// integral returns x as an int64 when it is a whole number that fits.
func integral(x any) (int64, bool) {
	switch n := x.(type) {
	case int64:
		return n, true
	case float64:
		// 2^63 itself is not representable as int64.
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func number(x any) (float64, bool) {
	switch n := x.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
