package field

import (
	"errors"
	"fmt"
)

// Kind classifies a field failure.
type Kind uint8

const (
	// KindBinding: the reflective handle could not be pinned or named.
	KindBinding Kind = iota + 1
	// KindInitialization: resolving the field id, type or modifiers failed.
	KindInitialization
	// KindTypeMismatch: the value is not acceptable for the field type.
	KindTypeMismatch
	// KindConversion: the value matched but does not fit the Java type.
	KindConversion
	// KindUnsupportedType: the field type has no tag (byte, char, arrays).
	KindUnsupportedType
	// KindJavaException: the accessor or mutator raised in Java.
	KindJavaException
)

// Sentinels for errors.Is. Each matches every *Error of its kind.
var (
	ErrBinding         = errors.New("field binding failed")
	ErrInitialization  = errors.New("field initialization failed")
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrConversion      = errors.New("conversion failed")
	ErrUnsupportedType = errors.New("unsupported field type")
	ErrJavaException   = errors.New("java exception")

	// ErrClosed is returned by Get and Set after Close.
	ErrClosed = errors.New("field: closed")

	// ErrUnknownCause stands in when the JVM reports failure without
	// raising anything.
	ErrUnknownCause = errors.New("Unknown")
)

func (k Kind) sentinel() error {
	switch k {
	case KindBinding:
		return ErrBinding
	case KindInitialization:
		return ErrInitialization
	case KindTypeMismatch:
		return ErrTypeMismatch
	case KindConversion:
		return ErrConversion
	case KindUnsupportedType:
		return ErrUnsupportedType
	case KindJavaException:
		return ErrJavaException
	}
	return nil
}

func (k Kind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Error is returned by every Field operation. Err holds the cause; a Java
// throwable is reachable with errors.As(err, new(*jni.JavaException)).
type Error struct {
	Kind  Kind
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Field == "" {
		return "field: " + msg
	}
	return "field " + e.Field + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of e's kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}
