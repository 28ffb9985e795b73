package jni

import "strings"

// JavaException is a Java throwable translated into a Go error. The
// throwable itself has already been cleared from the JVM.
type JavaException struct {
	Class   string // binary name, e.g. "java.lang.NullPointerException"
	Message string
}

func (e *JavaException) Error() string {
	if e.Message == "" {
		return e.Class
	}
	return e.Class + ": " + e.Message
}

// Is matches another *JavaException of the same class, so callers can write
// errors.Is(err, &jni.JavaException{Class: "java.lang.NullPointerException"}).
func (e *JavaException) Is(target error) bool {
	t, ok := target.(*JavaException)
	if !ok {
		return false
	}
	return t.Class == e.Class && (t.Message == "" || t.Message == e.Message)
}

// CheckException must follow every JNI call that can raise. When an
// exception is pending it is cleared and returned as a *JavaException;
// otherwise CheckException returns nil.
func CheckException(env Env, cache *MethodCache) error {
	if !env.ExceptionCheck() {
		return nil
	}
	thr := NewLocal(env, env.ExceptionOccurred())
	env.ExceptionClear()
	defer thr.Release()
	return Describe(env, cache, thr.Ref())
}

// Describe builds a JavaException for a throwable reference. Failures while
// describing degrade to less detail and never leave an exception pending.
func Describe(env Env, cache *MethodCache, throwable Ref) *JavaException {
	ex := &JavaException{Class: "java.lang.Throwable"}
	if throwable == 0 {
		return ex
	}

	cls := NewLocal(env, env.GetObjectClass(throwable))
	defer cls.Release()
	if env.ExceptionCheck() || cls.IsNull() {
		env.ExceptionClear()
		return ex
	}

	if name, ok := callString(env, cache, cls.Ref(), "java/lang/Class", "getName"); ok {
		ex.Class = name
	}
	if msg, ok := callString(env, cache, throwable, "java/lang/Throwable", "getMessage"); ok {
		ex.Message = msg
	}
	return ex
}

// callString invokes a no-arg String method without raising further
// exceptions.
func callString(env Env, cache *MethodCache, obj Ref, className, method string) (string, bool) {
	id, err := cache.resolve(env, 0, methodKey{className, method, "()Ljava/lang/String;", false}, false)
	if err != nil {
		return "", false
	}
	str := NewLocal(env, env.CallObjectMethod(obj, id))
	defer str.Release()
	if env.ExceptionCheck() {
		env.ExceptionClear()
		return "", false
	}
	if str.IsNull() {
		return "", false
	}
	return GoString(env.GetStringUTFChars(str.Ref())), true
}

// InternalName converts a binary class name to the slash form FindClass
// expects.
func InternalName(binary string) string {
	return strings.ReplaceAll(binary, ".", "/")
}

// BinaryName converts an internal class name to dotted form.
func BinaryName(internal string) string {
	return strings.ReplaceAll(internal, "/", ".")
}
