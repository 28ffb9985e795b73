package jvm

import (
	"fmt"
	"math"

	"github.com/zboralski/jbridge/internal/jni"
)

// value is a field or return slot: a primitive in p, or a reference in o.
type value struct {
	p jni.Value
	o *Object
}

// Object is a heap object.
type Object struct {
	class  *Class
	hash   uint32
	fields map[*Field]*value

	str    string    // java.lang.String contents
	elems  []*Object // reference array elements
	mirror *Class    // set on java.lang.Class instances
	field  *Field    // set on java.lang.reflect.Field instances
}

// Class returns the runtime class of o.
func (o *Object) Class() *Class { return o.class }

// StringValue returns the contents of a java.lang.String object.
func (o *Object) StringValue() string { return o.str }

// Len returns the length of an array object.
func (o *Object) Len() int { return len(o.elems) }

func (o *Object) String() string {
	if o == nil {
		return "null"
	}
	if o.class != nil && o.class.Name == "java.lang.String" {
		return o.str
	}
	return fmt.Sprintf("%s@%x", o.class.Name, o.hash)
}

// allocate creates an object with every instance field at its default value.
func (vm *VM) allocate(c *Class) *Object {
	vm.nextHash++
	o := &Object{class: c, hash: vm.nextHash}
	for k := c; k != nil; k = k.Super {
		for _, f := range k.fields {
			if f.IsStatic() {
				continue
			}
			if o.fields == nil {
				o.fields = make(map[*Field]*value)
			}
			o.fields[f] = &value{}
		}
	}
	return o
}

func (vm *VM) newString(s string) *Object {
	o := vm.allocate(vm.classes["java.lang.String"])
	o.str = s
	return o
}

func (vm *VM) newArray(elem *Class, elems []*Object) *Object {
	o := vm.allocate(vm.arrayOf(elem))
	o.elems = elems
	return o
}

// NewObject allocates an instance of the named class.
func (vm *VM) NewObject(className string) (*Object, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	c, ok := vm.classes[className]
	if !ok {
		return nil, fmt.Errorf("jvm: class %s not defined", className)
	}
	if c.Primitive || c.IsArray() {
		return nil, fmt.Errorf("jvm: cannot instantiate %s", className)
	}
	return vm.allocate(c), nil
}

// SetField stores a Go value into an instance field, for heap setup. Ints,
// floats, bools, strings, *Object and nil are accepted when they fit the
// field type.
func (vm *VM) SetField(obj *Object, name string, v any) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	f := obj.class.lookupField(name)
	if f == nil || f.IsStatic() {
		return fmt.Errorf("jvm: %s has no instance field %s", obj.class.Name, name)
	}
	return vm.store(obj.fields[f], f, v)
}

// SetStatic stores a Go value into a static field.
func (vm *VM) SetStatic(className, name string, v any) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	c, ok := vm.classes[className]
	if !ok {
		return fmt.Errorf("jvm: class %s not defined", className)
	}
	f := c.lookupField(name)
	if f == nil || !f.IsStatic() {
		return fmt.Errorf("jvm: %s has no static field %s", className, name)
	}
	return vm.store(f.Declaring.statics[f], f, v)
}

// FieldValue reads an instance field as a Go value.
func (vm *VM) FieldValue(obj *Object, name string) (any, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	f := obj.class.lookupField(name)
	if f == nil || f.IsStatic() {
		return nil, fmt.Errorf("jvm: %s has no instance field %s", obj.class.Name, name)
	}
	return load(obj.fields[f], f), nil
}

// StaticValue reads a static field as a Go value.
func (vm *VM) StaticValue(className, name string) (any, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	c, ok := vm.classes[className]
	if !ok {
		return nil, fmt.Errorf("jvm: class %s not defined", className)
	}
	f := c.lookupField(name)
	if f == nil || !f.IsStatic() {
		return nil, fmt.Errorf("jvm: %s has no static field %s", className, name)
	}
	return load(f.Declaring.statics[f], f), nil
}

// load converts a slot to a Go value: int32, int16, int64, float32, float64,
// bool, int8, uint16, string (for String objects), *Object or nil.
func load(s *value, f *Field) any {
	switch f.Type.kind() {
	case "boolean":
		return s.p.Z
	case "byte":
		return s.p.B
	case "char":
		return s.p.C
	case "short":
		return s.p.S
	case "int":
		return s.p.I
	case "long":
		return s.p.J
	case "float":
		return s.p.F
	case "double":
		return s.p.D
	}
	if s.o == nil {
		return nil
	}
	if s.o.class.Name == "java.lang.String" {
		return s.o.str
	}
	return s.o
}

func (vm *VM) store(s *value, f *Field, v any) error {
	bad := func() error {
		return fmt.Errorf("jvm: cannot store %T in %s field %s.%s", v, f.Type.Name, f.Declaring.Name, f.Name)
	}
	kind := f.Type.kind()
	if kind == "L" {
		switch x := v.(type) {
		case nil:
			s.o = nil
		case *Object:
			if !x.class.IsSubclassOf(f.Type) {
				return bad()
			}
			s.o = x
		case string:
			sc := vm.classes["java.lang.String"]
			if !sc.IsSubclassOf(f.Type) {
				return bad()
			}
			s.o = vm.newString(x)
		default:
			return bad()
		}
		return nil
	}

	if kind == "boolean" {
		b, ok := v.(bool)
		if !ok {
			return bad()
		}
		s.p.Z = b
		return nil
	}

	if kind == "float" || kind == "double" {
		var d float64
		switch x := v.(type) {
		case float64:
			d = x
		case float32:
			d = float64(x)
		default:
			n, ok := asInt64(v)
			if !ok {
				return bad()
			}
			d = float64(n)
		}
		if kind == "float" {
			s.p.F = float32(d)
		} else {
			s.p.D = d
		}
		return nil
	}

	n, ok := asInt64(v)
	if !ok {
		if d, isFloat := v.(float64); isFloat && d == math.Trunc(d) {
			n, ok = int64(d), true
		}
	}
	if !ok {
		return bad()
	}
	switch kind {
	case "byte":
		if n < math.MinInt8 || n > math.MaxInt8 {
			return bad()
		}
		s.p.B = int8(n)
	case "char":
		if n < 0 || n > math.MaxUint16 {
			return bad()
		}
		s.p.C = uint16(n)
	case "short":
		if n < math.MinInt16 || n > math.MaxInt16 {
			return bad()
		}
		s.p.S = int16(n)
	case "int":
		if n < math.MinInt32 || n > math.MaxInt32 {
			return bad()
		}
		s.p.I = int32(n)
	case "long":
		s.p.J = n
	default:
		return bad()
	}
	return nil
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint16:
		return int64(x), true
	}
	return 0, false
}
