// Package trace provides types for JNI call trace collection.
package trace

import (
	"strings"
	"time"
)

// Tag represents a trace event category.
// Tags are stored without # prefix; the prefix is added on rendering.
type Tag string

// Standard tags for trace events.
const (
	JniCall   Tag = "jni-call"
	Reflect   Tag = "reflect"
	FieldGet  Tag = "field-get"
	FieldSet  Tag = "field-set"
	Static    Tag = "static"
	LocalRef  Tag = "local-ref"
	GlobalRef Tag = "global-ref"
	Frame     Tag = "frame"
	String    Tag = "string"
	Exception Tag = "exception"
	Misuse    Tag = "misuse"
)

// Tags is a collection of tags with helper methods.
type Tags []Tag

// Has returns true if the tag collection contains the given tag.
func (t Tags) Has(tag Tag) bool {
	for _, x := range t {
		if x == tag {
			return true
		}
	}
	return false
}

// Add adds a tag if not already present.
func (t *Tags) Add(tag Tag) {
	if !t.Has(tag) {
		*t = append(*t, tag)
	}
}

// Strings returns tags as strings with # prefix for display.
func (t Tags) Strings() []string {
	out := make([]string, len(t))
	for i, tag := range t {
		out[i] = "#" + string(tag)
	}
	return out
}

// Event is one JNI call observed by the JVM.
type Event struct {
	Seq       uint64 // Monotonic call number within one JVM
	Tags      Tags   // First is primary
	Name      string // JNI function or Java method, e.g. "GetIntField"
	Detail    string // e.g. "field=x"
	Timestamp time.Time
}

// NewEvent creates a new trace event with the given parameters.
func NewEvent(seq uint64, category, name, detail string) *Event {
	return &Event{
		Seq:       seq,
		Tags:      Tags{Tag(category)},
		Name:      name,
		Detail:    detail,
		Timestamp: time.Now(),
	}
}

// AddTag adds a tag to the event.
func (e *Event) AddTag(tag Tag) {
	e.Tags.Add(tag)
}

// DefaultEnricher adds secondary tags from the JNI function name.
func DefaultEnricher(e *Event) {
	if len(e.Tags) == 0 {
		return
	}

	switch e.Tags[0] {
	case "jni":
		e.AddTag(JniCall)
	case "java":
		e.AddTag(Reflect)
		return
	}

	name := e.Name
	switch {
	case strings.HasPrefix(name, "GetStatic") && strings.HasSuffix(name, "Field"):
		e.AddTag(FieldGet)
		e.AddTag(Static)
	case strings.HasPrefix(name, "SetStatic") && strings.HasSuffix(name, "Field"):
		e.AddTag(FieldSet)
		e.AddTag(Static)
	case strings.HasPrefix(name, "Get") && strings.HasSuffix(name, "Field") && name != "GetFieldID":
		e.AddTag(FieldGet)
	case strings.HasPrefix(name, "Set") && strings.HasSuffix(name, "Field"):
		e.AddTag(FieldSet)
	}

	switch name {
	case "NewLocalRef", "DeleteLocalRef":
		e.AddTag(LocalRef)
	case "NewGlobalRef", "DeleteGlobalRef":
		e.AddTag(GlobalRef)
	case "PushLocalFrame", "PopLocalFrame":
		e.AddTag(Frame)
	case "NewStringUTF", "GetStringUTFChars":
		e.AddTag(String)
	case "ExceptionOccurred", "ExceptionCheck", "ExceptionClear":
		e.AddTag(Exception)
	case "FromReflectedField", "GetMethodID", "GetStaticMethodID":
		e.AddTag(Reflect)
	}
}
