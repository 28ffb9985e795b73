package jvm

import (
	"fmt"
	"strings"

	"github.com/zboralski/jbridge/internal/jni"
)

// Access flags, as returned by java.lang.reflect.Field.getModifiers().
const (
	AccPublic    int32 = 0x0001
	AccPrivate   int32 = 0x0002
	AccProtected int32 = 0x0004
	AccStatic    int32 = 0x0008
	AccFinal     int32 = 0x0010
	AccVolatile  int32 = 0x0040
	AccTransient int32 = 0x0080
)

// Class is a loaded class. Name is the binary name ("com.example.Point",
// "int", "[Ljava.lang.String;").
type Class struct {
	Name      string
	Super     *Class
	Primitive bool
	Component *Class // element type for array classes

	fields  []*Field
	methods map[string]*Method // name + sig
	statics map[*Field]*value
	mirror  *Object // the java.lang.Class instance
	array   *Class  // cached array-of-this class
}

// Field is a declared field.
type Field struct {
	Name      string
	Type      *Class
	Modifiers int32
	Declaring *Class

	id        jni.FieldID
	reflected *Object // java.lang.reflect.Field instance
}

// IsStatic reports whether the field is static.
func (f *Field) IsStatic() bool { return f.Modifiers&AccStatic != 0 }

// IsPublic reports whether the field is public.
func (f *Field) IsPublic() bool { return f.Modifiers&AccPublic != 0 }

// Native implements a Java method in Go. It runs with the VM lock held and
// must not call back into the Env. A non-nil thrown object raises.
type Native func(vm *VM, this *Object, args []jni.Value) (ret value, thrown *Object)

// Method is a declared method with a Go implementation.
type Method struct {
	Name      string
	Sig       string
	Static    bool
	Declaring *Class

	id   jni.MethodID
	impl Native
}

// FieldSpec describes a field for DefineClass.
type FieldSpec struct {
	Name      string
	Type      string // binary name or primitive keyword
	Modifiers int32
}

// Fields returns the declared fields in declaration order.
func (c *Class) Fields() []*Field {
	return append([]*Field(nil), c.fields...)
}

// IsArray reports whether c is an array class.
func (c *Class) IsArray() bool { return c.Component != nil }

// IsSubclassOf reports whether c is other or extends it.
func (c *Class) IsSubclassOf(other *Class) bool {
	for k := c; k != nil; k = k.Super {
		if k == other {
			return true
		}
	}
	return false
}

// Mirror returns the java.lang.Class object for c.
func (c *Class) Mirror() *Object { return c.mirror }

func (c *Class) String() string { return c.Name }

// lookupField finds a field by name in c and its superclasses.
func (c *Class) lookupField(name string) *Field {
	for k := c; k != nil; k = k.Super {
		for _, f := range k.fields {
			if f.Name == name {
				return f
			}
		}
	}
	return nil
}

// lookupMethod finds a method by name and signature in c and its superclasses.
func (c *Class) lookupMethod(name, sig string) *Method {
	for k := c; k != nil; k = k.Super {
		if m, ok := k.methods[name+sig]; ok {
			return m
		}
	}
	return nil
}

// publicFields returns public fields of c and its superclasses, most derived
// first, the way Class.getFields() reports them.
func (c *Class) publicFields() []*Field {
	var out []*Field
	for k := c; k != nil; k = k.Super {
		for _, f := range k.fields {
			if f.IsPublic() {
				out = append(out, f)
			}
		}
	}
	return out
}

// kind returns the accessor family used for fields of this type: a primitive
// keyword, or "L" for references.
func (c *Class) kind() string {
	if c.Primitive {
		return c.Name
	}
	return "L"
}

// descriptor returns the JVM type descriptor of c.
func (c *Class) descriptor() string {
	if c.IsArray() {
		return "[" + c.Component.descriptor()
	}
	if c.Primitive {
		return primitiveDescriptors[c.Name]
	}
	return "L" + jni.InternalName(c.Name) + ";"
}

var primitiveDescriptors = map[string]string{
	"boolean": "Z",
	"byte":    "B",
	"char":    "C",
	"short":   "S",
	"int":     "I",
	"long":    "J",
	"float":   "F",
	"double":  "D",
	"void":    "V",
}

// classNameFromInternal maps a FindClass argument to a binary name. Array
// descriptors keep their leading brackets; element class names are dotted.
func classNameFromInternal(name string) string {
	if strings.HasPrefix(name, "[") {
		return strings.ReplaceAll(name, "/", ".")
	}
	return jni.BinaryName(name)
}

// DefineClass creates a class extending super (defaults to java.lang.Object).
func (vm *VM) DefineClass(name, super string, fields ...FieldSpec) (*Class, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.defineClass(name, super, fields...)
}

func (vm *VM) defineClass(name, super string, fields ...FieldSpec) (*Class, error) {
	if name == "" {
		return nil, fmt.Errorf("jvm: empty class name")
	}
	if _, exists := vm.classes[name]; exists {
		return nil, fmt.Errorf("jvm: class %s already defined", name)
	}
	var sc *Class
	if name != "java.lang.Object" {
		if super == "" {
			super = "java.lang.Object"
		}
		var ok bool
		if sc, ok = vm.classes[super]; !ok {
			return nil, fmt.Errorf("jvm: superclass %s of %s not defined", super, name)
		}
	}

	c := &Class{
		Name:    name,
		Super:   sc,
		methods: make(map[string]*Method),
		statics: make(map[*Field]*value),
	}
	vm.classes[name] = c
	vm.attachMirror(c)

	for _, spec := range fields {
		if _, err := vm.addField(c, spec); err != nil {
			delete(vm.classes, name)
			return nil, err
		}
	}
	return c, nil
}

// DefineField adds a field to an already defined class. Objects allocated
// earlier do not get the new field.
func (vm *VM) DefineField(className string, spec FieldSpec) (*Field, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	c, ok := vm.classes[className]
	if !ok {
		return nil, fmt.Errorf("jvm: class %s not defined", className)
	}
	if c.Primitive || c.IsArray() {
		return nil, fmt.Errorf("jvm: cannot add fields to %s", className)
	}
	return vm.addField(c, spec)
}

func (vm *VM) addField(c *Class, spec FieldSpec) (*Field, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("jvm: %s: field with empty name", c.Name)
	}
	for _, f := range c.fields {
		if f.Name == spec.Name {
			return nil, fmt.Errorf("jvm: %s.%s declared twice", c.Name, spec.Name)
		}
	}
	typ, err := vm.resolveType(spec.Type)
	if err != nil {
		return nil, fmt.Errorf("jvm: %s.%s: %w", c.Name, spec.Name, err)
	}
	if typ.Name == "void" {
		return nil, fmt.Errorf("jvm: %s.%s: field of type void", c.Name, spec.Name)
	}

	vm.nextFieldID++
	f := &Field{
		Name:      spec.Name,
		Type:      typ,
		Modifiers: spec.Modifiers,
		Declaring: c,
		id:        jni.FieldID(vm.nextFieldID),
	}
	c.fields = append(c.fields, f)
	vm.fieldIDs[f.id] = f

	if f.IsStatic() {
		c.statics[f] = &value{}
	}

	// Reflective Field objects exist once java.lang.reflect.Field is loaded.
	if fc := vm.classes["java.lang.reflect.Field"]; fc != nil {
		f.reflected = vm.allocate(fc)
		f.reflected.field = f
	}
	return f, nil
}

// resolveType finds a class by binary name, creating array classes on demand.
func (vm *VM) resolveType(name string) (*Class, error) {
	if name == "" {
		return nil, fmt.Errorf("missing type")
	}
	if c, ok := vm.classes[name]; ok {
		return c, nil
	}
	if strings.HasSuffix(name, "[]") {
		elem, err := vm.resolveType(strings.TrimSuffix(name, "[]"))
		if err != nil {
			return nil, err
		}
		return vm.arrayOf(elem), nil
	}
	if strings.HasPrefix(name, "[") {
		elem, err := vm.resolveDescriptor(name[1:])
		if err != nil {
			return nil, err
		}
		return vm.arrayOf(elem), nil
	}
	return nil, fmt.Errorf("unknown type %s", name)
}

func (vm *VM) resolveDescriptor(desc string) (*Class, error) {
	if desc == "" {
		return nil, fmt.Errorf("empty descriptor")
	}
	switch desc[0] {
	case '[':
		elem, err := vm.resolveDescriptor(desc[1:])
		if err != nil {
			return nil, err
		}
		return vm.arrayOf(elem), nil
	case 'L':
		if !strings.HasSuffix(desc, ";") {
			return nil, fmt.Errorf("bad descriptor %s", desc)
		}
		return vm.resolveType(jni.BinaryName(desc[1 : len(desc)-1]))
	}
	for prim, d := range primitiveDescriptors {
		if d == desc {
			return vm.classes[prim], nil
		}
	}
	return nil, fmt.Errorf("bad descriptor %s", desc)
}

// arrayOf returns the array class with the given component type.
func (vm *VM) arrayOf(elem *Class) *Class {
	if elem.array != nil {
		return elem.array
	}
	a := &Class{
		Name:      "[" + arrayElementName(elem),
		Super:     vm.classes["java.lang.Object"],
		Component: elem,
		methods:   make(map[string]*Method),
		statics:   make(map[*Field]*value),
	}
	elem.array = a
	vm.classes[a.Name] = a
	vm.attachMirror(a)
	return a
}

func arrayElementName(elem *Class) string {
	switch {
	case elem.IsArray():
		return elem.Name
	case elem.Primitive:
		return primitiveDescriptors[elem.Name]
	default:
		return "L" + elem.Name + ";"
	}
}

func (vm *VM) attachMirror(c *Class) {
	cc := vm.classes["java.lang.Class"]
	if cc == nil {
		return
	}
	c.mirror = vm.allocate(cc)
	c.mirror.mirror = c
}

// DefineNative registers a Go implementation for a Java method.
func (vm *VM) DefineNative(className, name, sig string, static bool, impl Native) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	c, ok := vm.classes[className]
	if !ok {
		return fmt.Errorf("jvm: class %s not defined", className)
	}
	vm.addMethod(c, name, sig, static, impl)
	return nil
}

func (vm *VM) addMethod(c *Class, name, sig string, static bool, impl Native) *Method {
	vm.nextMethodID++
	m := &Method{
		Name:      name,
		Sig:       sig,
		Static:    static,
		Declaring: c,
		id:        jni.MethodID(vm.nextMethodID),
		impl:      impl,
	}
	c.methods[name+sig] = m
	vm.methodIDs[m.id] = m
	return m
}

// Class returns a loaded class by binary name.
func (vm *VM) Class(name string) (*Class, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	c, ok := vm.classes[name]
	return c, ok
}
