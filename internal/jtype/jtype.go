// Package jtype classifies Java field types into the closed set of tags the
// field proxy knows how to read and write.
package jtype

import (
	"fmt"
	"strings"

	"github.com/zboralski/jbridge/internal/jni"
)

// Tag is the Java-type category of a field.
type Tag uint8

const (
	Unknown Tag = iota
	String
	Object
	Int
	Short
	Double
	Float
	Long
	Boolean
)

// Tags lists every supported tag, excluding Unknown.
var Tags = []Tag{String, Object, Int, Short, Double, Float, Long, Boolean}

func (t Tag) String() string {
	switch t {
	case String:
		return "String"
	case Object:
		return "Object"
	case Int:
		return "int"
	case Short:
		return "short"
	case Double:
		return "double"
	case Float:
		return "float"
	case Long:
		return "long"
	case Boolean:
		return "boolean"
	}
	return "unknown"
}

// Expected names the script-side type a tag accepts, for mismatch errors.
func (t Tag) Expected() string {
	switch t {
	case String:
		return "string"
	case Object:
		return "object"
	case Int, Short:
		return "int"
	case Double:
		return "float (jdouble)"
	case Float:
		return "float (jfloat)"
	case Long:
		return "long"
	case Boolean:
		return "boolean"
	}
	return "unknown"
}

// FromName maps a binary class name, as returned by Class.getName(), to its
// tag. byte, char, void and arrays have no tag.
func FromName(name string) Tag {
	switch name {
	case "java.lang.String":
		return String
	case "int":
		return Int
	case "short":
		return Short
	case "double":
		return Double
	case "float":
		return Float
	case "long":
		return Long
	case "boolean":
		return Boolean
	case "byte", "char", "void", "":
		return Unknown
	}
	if strings.HasPrefix(name, "[") {
		return Unknown
	}
	return Object
}

// Classify returns the tag for a java.lang.Class reference. A Java exception
// raised while asking the class for its name is cleared and returned.
func Classify(env jni.Env, cache *jni.MethodCache, class jni.Ref) (Tag, error) {
	if class == 0 {
		return Unknown, fmt.Errorf("jtype: classify: %w", jni.ErrNullRef)
	}
	getName, err := cache.Method(env, "java/lang/Class", "getName", "()Ljava/lang/String;")
	if err != nil {
		return Unknown, err
	}
	name := jni.NewLocal(env, env.CallObjectMethod(class, getName))
	defer name.Release()
	if err := jni.CheckException(env, cache); err != nil {
		return Unknown, err
	}
	if name.IsNull() {
		return Unknown, fmt.Errorf("jtype: Class.getName returned null")
	}
	return FromName(env.GetStringUTFChars(name.Ref())), nil
}
