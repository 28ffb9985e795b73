// Package jni describes the slice of the Java Native Interface that jbridge
// drives: references, reflective method and field ids, typed field
// accessors and the pending-exception protocol.
//
// Env mirrors the JNIEnv function table one method per slot. Implementations
// follow JNI rules: a call that raises leaves a pending exception and returns
// a zero value, and the caller must check for it before the next call.
package jni

// Return codes of the frame and reference functions.
const (
	JNI_OK     = 0
	JNI_ERR    = -1
	JNI_ENOMEM = -4
)

// Ref is an opaque object reference (jobject). Zero is the null reference.
type Ref uint64

// IsNull reports whether r is the null reference.
func (r Ref) IsNull() bool { return r == 0 }

// FieldID identifies a field for direct (non-reflective) access.
type FieldID uint64

// MethodID identifies a method for Call*Method.
type MethodID uint64

// Value is the jvalue union used for method arguments.
type Value struct {
	Z bool
	B int8
	C uint16
	S int16
	I int32
	J int64
	F float32
	D float64
	L Ref
}

// Int returns a jvalue holding an int.
func Int(v int32) Value { return Value{I: v} }

// Object returns a jvalue holding a reference.
func Object(r Ref) Value { return Value{L: r} }

// Env is the JNI function table bound to one attached thread.
type Env interface {
	FindClass(name string) Ref
	GetObjectClass(obj Ref) Ref
	IsInstanceOf(obj, class Ref) bool
	IsSameObject(a, b Ref) bool

	NewGlobalRef(obj Ref) Ref
	DeleteGlobalRef(ref Ref)
	NewLocalRef(obj Ref) Ref
	DeleteLocalRef(ref Ref)
	PushLocalFrame(capacity int32) int32
	PopLocalFrame(result Ref) Ref

	ExceptionOccurred() Ref
	ExceptionCheck() bool
	ExceptionClear()

	GetMethodID(class Ref, name, sig string) MethodID
	GetStaticMethodID(class Ref, name, sig string) MethodID
	CallObjectMethod(obj Ref, m MethodID, args ...Value) Ref
	CallIntMethod(obj Ref, m MethodID, args ...Value) int32
	CallStaticBooleanMethod(class Ref, m MethodID, args ...Value) bool
	CallStaticIntMethod(class Ref, m MethodID, args ...Value) int32

	FromReflectedField(field Ref) FieldID

	GetObjectField(obj Ref, f FieldID) Ref
	GetBooleanField(obj Ref, f FieldID) bool
	GetShortField(obj Ref, f FieldID) int16
	GetIntField(obj Ref, f FieldID) int32
	GetLongField(obj Ref, f FieldID) int64
	GetFloatField(obj Ref, f FieldID) float32
	GetDoubleField(obj Ref, f FieldID) float64

	SetObjectField(obj Ref, f FieldID, v Ref)
	SetBooleanField(obj Ref, f FieldID, v bool)
	SetShortField(obj Ref, f FieldID, v int16)
	SetIntField(obj Ref, f FieldID, v int32)
	SetLongField(obj Ref, f FieldID, v int64)
	SetFloatField(obj Ref, f FieldID, v float32)
	SetDoubleField(obj Ref, f FieldID, v float64)

	GetStaticObjectField(class Ref, f FieldID) Ref
	GetStaticBooleanField(class Ref, f FieldID) bool
	GetStaticShortField(class Ref, f FieldID) int16
	GetStaticIntField(class Ref, f FieldID) int32
	GetStaticLongField(class Ref, f FieldID) int64
	GetStaticFloatField(class Ref, f FieldID) float32
	GetStaticDoubleField(class Ref, f FieldID) float64

	SetStaticObjectField(class Ref, f FieldID, v Ref)
	SetStaticBooleanField(class Ref, f FieldID, v bool)
	SetStaticShortField(class Ref, f FieldID, v int16)
	SetStaticIntField(class Ref, f FieldID, v int32)
	SetStaticLongField(class Ref, f FieldID, v int64)
	SetStaticFloatField(class Ref, f FieldID, v float32)
	SetStaticDoubleField(class Ref, f FieldID, v float64)

	NewStringUTF(s string) Ref
	GetStringUTFChars(str Ref) string

	GetArrayLength(arr Ref) int32
	GetObjectArrayElement(arr Ref, index int32) Ref
}
