package jvm

import (
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/zboralski/jbridge/internal/jni"
	glog "github.com/zboralski/jbridge/internal/log"
)

var _ jni.Env = (*VM)(nil)

// Classes

func (vm *VM) FindClass(name string) jni.Ref {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if !vm.enter("FindClass", name) {
		return 0
	}
	c, ok := vm.classes[classNameFromInternal(name)]
	if !ok {
		vm.throwNew("java.lang.NoClassDefFoundError", name)
		return 0
	}
	return vm.newLocal(c.mirror)
}

func (vm *VM) GetObjectClass(obj jni.Ref) jni.Ref {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if !vm.enter("GetObjectClass", glog.Hex(uint64(obj))) {
		return 0
	}
	o, ok := vm.deref("GetObjectClass", obj)
	if !ok || o == nil {
		vm.throwNew("java.lang.NullPointerException", "GetObjectClass on null")
		return 0
	}
	return vm.newLocal(o.class.mirror)
}

func (vm *VM) IsInstanceOf(obj, class jni.Ref) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if !vm.enter("IsInstanceOf", "") {
		return false
	}
	o, _ := vm.deref("IsInstanceOf", obj)
	c, ok := vm.classOf("IsInstanceOf", class)
	if !ok {
		return false
	}
	return o == nil || o.class.IsSubclassOf(c)
}

func (vm *VM) IsSameObject(a, b jni.Ref) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.record("jni", "IsSameObject", "")
	oa, _ := vm.deref("IsSameObject", a)
	ob, _ := vm.deref("IsSameObject", b)
	return oa == ob
}

// classOf resolves a reference to a java.lang.Class object. Caller holds vm.mu.
func (vm *VM) classOf(fn string, class jni.Ref) (*Class, bool) {
	o, ok := vm.deref(fn, class)
	if !ok || o == nil {
		vm.throwNew("java.lang.NullPointerException", fn+": null class")
		return nil, false
	}
	if o.mirror == nil {
		vm.throwNew("java.lang.IllegalArgumentException", fn+": not a class: "+o.class.Name)
		return nil, false
	}
	return o.mirror, true
}

// References

func (vm *VM) NewGlobalRef(obj jni.Ref) jni.Ref {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.record("jni", "NewGlobalRef", glog.Hex(uint64(obj)))
	o, ok := vm.deref("NewGlobalRef", obj)
	if !ok || o == nil {
		return 0
	}
	return vm.newGlobal(o)
}

func (vm *VM) DeleteGlobalRef(ref jni.Ref) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.record("jni", "DeleteGlobalRef", glog.Hex(uint64(ref)))
	if ref == 0 {
		return
	}
	e, ok := vm.refs[ref]
	if !ok || e.kind != globalRef {
		vm.misused("DeleteGlobalRef", "not a live global reference", glog.Ref("ref", uint64(ref)))
		return
	}
	delete(vm.refs, ref)
}

func (vm *VM) NewLocalRef(obj jni.Ref) jni.Ref {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.record("jni", "NewLocalRef", glog.Hex(uint64(obj)))
	o, ok := vm.deref("NewLocalRef", obj)
	if !ok {
		return 0
	}
	return vm.newLocal(o)
}

func (vm *VM) DeleteLocalRef(ref jni.Ref) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.record("jni", "DeleteLocalRef", glog.Hex(uint64(ref)))
	if ref == 0 {
		return
	}
	vm.deleteLocal(ref)
}

func (vm *VM) PushLocalFrame(capacity int32) int32 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if !vm.enter("PushLocalFrame", fmt.Sprintf("capacity=%d", capacity)) {
		return jni.JNI_ENOMEM
	}
	if capacity < 0 {
		vm.throwNew("java.lang.OutOfMemoryError", "negative local frame capacity")
		return jni.JNI_ERR
	}
	vm.frames = append(vm.frames, frame{capacity: int(capacity)})
	return jni.JNI_OK
}

func (vm *VM) PopLocalFrame(result jni.Ref) jni.Ref {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.record("jni", "PopLocalFrame", glog.Hex(uint64(result)))
	if len(vm.frames) == 1 {
		vm.misused("PopLocalFrame", "no frame to pop")
		return 0
	}
	keep, _ := vm.deref("PopLocalFrame", result)
	top := vm.frames[len(vm.frames)-1]
	for _, r := range top.refs {
		delete(vm.refs, r)
	}
	vm.frames = vm.frames[:len(vm.frames)-1]
	return vm.newLocal(keep)
}

// Exceptions

func (vm *VM) ExceptionOccurred() jni.Ref {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.record("jni", "ExceptionOccurred", "")
	return vm.newLocal(vm.pending)
}

func (vm *VM) ExceptionCheck() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.pending != nil
}

func (vm *VM) ExceptionClear() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.record("jni", "ExceptionClear", "")
	vm.pending = nil
}

// Methods

func (vm *VM) GetMethodID(class jni.Ref, name, sig string) jni.MethodID {
	return vm.getMethodID("GetMethodID", class, name, sig, false)
}

func (vm *VM) GetStaticMethodID(class jni.Ref, name, sig string) jni.MethodID {
	return vm.getMethodID("GetStaticMethodID", class, name, sig, true)
}

func (vm *VM) getMethodID(fn string, class jni.Ref, name, sig string, static bool) jni.MethodID {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if !vm.enter(fn, name+sig) {
		return 0
	}
	c, ok := vm.classOf(fn, class)
	if !ok {
		return 0
	}
	m := c.lookupMethod(name, sig)
	if m == nil || m.Static != static {
		vm.throwNew("java.lang.NoSuchMethodError", name+sig)
		return 0
	}
	return m.id
}

func (vm *VM) CallObjectMethod(obj jni.Ref, m jni.MethodID, args ...jni.Value) jni.Ref {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	ret, ok := vm.callInstance("CallObjectMethod", obj, m, args)
	if !ok {
		return 0
	}
	return vm.newLocal(ret.o)
}

func (vm *VM) CallIntMethod(obj jni.Ref, m jni.MethodID, args ...jni.Value) int32 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	ret, ok := vm.callInstance("CallIntMethod", obj, m, args)
	if !ok {
		return 0
	}
	return ret.p.I
}

func (vm *VM) CallStaticBooleanMethod(class jni.Ref, m jni.MethodID, args ...jni.Value) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	ret, ok := vm.callStatic("CallStaticBooleanMethod", class, m, args)
	return ok && ret.p.Z
}

func (vm *VM) CallStaticIntMethod(class jni.Ref, m jni.MethodID, args ...jni.Value) int32 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	ret, ok := vm.callStatic("CallStaticIntMethod", class, m, args)
	if !ok {
		return 0
	}
	return ret.p.I
}

func (vm *VM) callStatic(fn string, class jni.Ref, m jni.MethodID, args []jni.Value) (value, bool) {
	if !vm.enter(fn, "") {
		return value{}, false
	}
	c, ok := vm.classOf(fn, class)
	if !ok {
		return value{}, false
	}
	method, ok := vm.methodIDs[m]
	if !ok || !method.Static || !c.IsSubclassOf(method.Declaring) {
		vm.throwNew("java.lang.NoSuchMethodError", "invalid static method id")
		return value{}, false
	}
	return vm.invoke(method, nil, args)
}

func (vm *VM) callInstance(fn string, obj jni.Ref, m jni.MethodID, args []jni.Value) (value, bool) {
	if !vm.enter(fn, "") {
		return value{}, false
	}
	method, ok := vm.methodIDs[m]
	if !ok || method.Static {
		vm.throwNew("java.lang.NoSuchMethodError", "invalid instance method id")
		return value{}, false
	}
	o, ok := vm.deref(fn, obj)
	if !ok || o == nil {
		vm.throwNew("java.lang.NullPointerException", method.Name+" on null")
		return value{}, false
	}
	if !o.class.IsSubclassOf(method.Declaring) {
		vm.throwNew("java.lang.IllegalArgumentException",
			fmt.Sprintf("%s is not a %s", o.class.Name, method.Declaring.Name))
		return value{}, false
	}
	// Instance calls are virtual: an override in the receiver's class wins.
	if impl := o.class.lookupMethod(method.Name, method.Sig); impl != nil && !impl.Static {
		method = impl
	}
	return vm.invoke(method, o, args)
}

// invoke runs a method body. Caller holds vm.mu.
func (vm *VM) invoke(m *Method, this *Object, args []jni.Value) (value, bool) {
	name := m.Declaring.Name + "." + m.Name
	vm.record("java", name, m.Sig)
	if vm.injected(name) {
		return value{}, false
	}
	ret, thrown := m.impl(vm, this, args)
	if thrown != nil {
		vm.throw(thrown)
		return value{}, false
	}
	return ret, true
}

// Fields

func (vm *VM) FromReflectedField(field jni.Ref) jni.FieldID {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if !vm.enter("FromReflectedField", glog.Hex(uint64(field))) {
		return 0
	}
	o, ok := vm.deref("FromReflectedField", field)
	if !ok || o == nil {
		vm.throwNew("java.lang.NullPointerException", "FromReflectedField on null")
		return 0
	}
	if o.field == nil {
		vm.throwNew("java.lang.IllegalArgumentException", o.class.Name+" is not a java.lang.reflect.Field")
		return 0
	}
	return o.field.id
}

// instanceSlot validates an instance field access and returns its slot.
// Caller holds vm.mu.
func (vm *VM) instanceSlot(fn string, obj jni.Ref, id jni.FieldID, kind string) (*value, *Field, bool) {
	if !vm.enter(fn, "") {
		return nil, nil, false
	}
	f, ok := vm.fieldIDs[id]
	if !ok {
		vm.throwNew("java.lang.NoSuchFieldError", fmt.Sprintf("invalid field id %d", id))
		return nil, nil, false
	}
	if f.IsStatic() {
		vm.throwNew("java.lang.IncompatibleClassChangeError", "expected non-static field "+f.Name)
		return nil, nil, false
	}
	if f.Type.kind() != kind {
		vm.throwNew("java.lang.IllegalArgumentException",
			fmt.Sprintf("field %s is %s, accessed as %s", f.Name, f.Type.Name, kindName(kind)))
		return nil, nil, false
	}
	o, ok := vm.deref(fn, obj)
	if !ok || o == nil {
		vm.throwNew("java.lang.NullPointerException", "field "+f.Name+" of null object")
		return nil, nil, false
	}
	if !o.class.IsSubclassOf(f.Declaring) {
		vm.throwNew("java.lang.IllegalArgumentException",
			fmt.Sprintf("%s has no field %s.%s", o.class.Name, f.Declaring.Name, f.Name))
		return nil, nil, false
	}
	return o.fields[f], f, true
}

// staticSlot validates a static field access and returns its slot.
// Caller holds vm.mu.
func (vm *VM) staticSlot(fn string, class jni.Ref, id jni.FieldID, kind string) (*value, *Field, bool) {
	if !vm.enter(fn, "") {
		return nil, nil, false
	}
	f, ok := vm.fieldIDs[id]
	if !ok {
		vm.throwNew("java.lang.NoSuchFieldError", fmt.Sprintf("invalid field id %d", id))
		return nil, nil, false
	}
	if !f.IsStatic() {
		vm.throwNew("java.lang.IncompatibleClassChangeError", "expected static field "+f.Name)
		return nil, nil, false
	}
	if f.Type.kind() != kind {
		vm.throwNew("java.lang.IllegalArgumentException",
			fmt.Sprintf("field %s is %s, accessed as %s", f.Name, f.Type.Name, kindName(kind)))
		return nil, nil, false
	}
	c, ok := vm.classOf(fn, class)
	if !ok {
		return nil, nil, false
	}
	if !c.IsSubclassOf(f.Declaring) {
		vm.throwNew("java.lang.IllegalArgumentException",
			fmt.Sprintf("%s has no field %s.%s", c.Name, f.Declaring.Name, f.Name))
		return nil, nil, false
	}
	return f.Declaring.statics[f], f, true
}

func kindName(kind string) string {
	if kind == "L" {
		return "object"
	}
	return kind
}

// storeRef validates and performs a reference store. Caller holds vm.mu.
func (vm *VM) storeRef(fn string, s *value, f *Field, v jni.Ref) {
	o, ok := vm.deref(fn, v)
	if !ok {
		vm.throwNew("java.lang.IllegalArgumentException", "invalid reference stored in "+f.Name)
		return
	}
	if o != nil && !o.class.IsSubclassOf(f.Type) {
		vm.throwNew("java.lang.IllegalArgumentException",
			fmt.Sprintf("Can not set %s field %s.%s to %s", f.Type.Name, f.Declaring.Name, f.Name, o.class.Name))
		return
	}
	s.o = o
}

func (vm *VM) GetObjectField(obj jni.Ref, id jni.FieldID) jni.Ref {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	s, _, ok := vm.instanceSlot("GetObjectField", obj, id, "L")
	if !ok {
		return 0
	}
	return vm.newLocal(s.o)
}

func (vm *VM) GetBooleanField(obj jni.Ref, id jni.FieldID) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	s, _, ok := vm.instanceSlot("GetBooleanField", obj, id, "boolean")
	return ok && s.p.Z
}

func (vm *VM) GetShortField(obj jni.Ref, id jni.FieldID) int16 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	s, _, ok := vm.instanceSlot("GetShortField", obj, id, "short")
	if !ok {
		return 0
	}
	return s.p.S
}

func (vm *VM) GetIntField(obj jni.Ref, id jni.FieldID) int32 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	s, _, ok := vm.instanceSlot("GetIntField", obj, id, "int")
	if !ok {
		return 0
	}
	return s.p.I
}

func (vm *VM) GetLongField(obj jni.Ref, id jni.FieldID) int64 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	s, _, ok := vm.instanceSlot("GetLongField", obj, id, "long")
	if !ok {
		return 0
	}
	return s.p.J
}

func (vm *VM) GetFloatField(obj jni.Ref, id jni.FieldID) float32 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	s, _, ok := vm.instanceSlot("GetFloatField", obj, id, "float")
	if !ok {
		return 0
	}
	return s.p.F
}

func (vm *VM) GetDoubleField(obj jni.Ref, id jni.FieldID) float64 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	s, _, ok := vm.instanceSlot("GetDoubleField", obj, id, "double")
	if !ok {
		return 0
	}
	return s.p.D
}

func (vm *VM) SetObjectField(obj jni.Ref, id jni.FieldID, v jni.Ref) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if s, f, ok := vm.instanceSlot("SetObjectField", obj, id, "L"); ok {
		vm.storeRef("SetObjectField", s, f, v)
	}
}

func (vm *VM) SetBooleanField(obj jni.Ref, id jni.FieldID, v bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if s, _, ok := vm.instanceSlot("SetBooleanField", obj, id, "boolean"); ok {
		s.p.Z = v
	}
}

func (vm *VM) SetShortField(obj jni.Ref, id jni.FieldID, v int16) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if s, _, ok := vm.instanceSlot("SetShortField", obj, id, "short"); ok {
		s.p.S = v
	}
}

func (vm *VM) SetIntField(obj jni.Ref, id jni.FieldID, v int32) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if s, _, ok := vm.instanceSlot("SetIntField", obj, id, "int"); ok {
		s.p.I = v
	}
}

func (vm *VM) SetLongField(obj jni.Ref, id jni.FieldID, v int64) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if s, _, ok := vm.instanceSlot("SetLongField", obj, id, "long"); ok {
		s.p.J = v
	}
}

func (vm *VM) SetFloatField(obj jni.Ref, id jni.FieldID, v float32) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if s, _, ok := vm.instanceSlot("SetFloatField", obj, id, "float"); ok {
		s.p.F = v
	}
}

func (vm *VM) SetDoubleField(obj jni.Ref, id jni.FieldID, v float64) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if s, _, ok := vm.instanceSlot("SetDoubleField", obj, id, "double"); ok {
		s.p.D = v
	}
}

func (vm *VM) GetStaticObjectField(class jni.Ref, id jni.FieldID) jni.Ref {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	s, _, ok := vm.staticSlot("GetStaticObjectField", class, id, "L")
	if !ok {
		return 0
	}
	return vm.newLocal(s.o)
}

func (vm *VM) GetStaticBooleanField(class jni.Ref, id jni.FieldID) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	s, _, ok := vm.staticSlot("GetStaticBooleanField", class, id, "boolean")
	return ok && s.p.Z
}

func (vm *VM) GetStaticShortField(class jni.Ref, id jni.FieldID) int16 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	s, _, ok := vm.staticSlot("GetStaticShortField", class, id, "short")
	if !ok {
		return 0
	}
	return s.p.S
}

func (vm *VM) GetStaticIntField(class jni.Ref, id jni.FieldID) int32 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	s, _, ok := vm.staticSlot("GetStaticIntField", class, id, "int")
	if !ok {
		return 0
	}
	return s.p.I
}

func (vm *VM) GetStaticLongField(class jni.Ref, id jni.FieldID) int64 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	s, _, ok := vm.staticSlot("GetStaticLongField", class, id, "long")
	if !ok {
		return 0
	}
	return s.p.J
}

func (vm *VM) GetStaticFloatField(class jni.Ref, id jni.FieldID) float32 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	s, _, ok := vm.staticSlot("GetStaticFloatField", class, id, "float")
	if !ok {
		return 0
	}
	return s.p.F
}

func (vm *VM) GetStaticDoubleField(class jni.Ref, id jni.FieldID) float64 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	s, _, ok := vm.staticSlot("GetStaticDoubleField", class, id, "double")
	if !ok {
		return 0
	}
	return s.p.D
}

func (vm *VM) SetStaticObjectField(class jni.Ref, id jni.FieldID, v jni.Ref) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if s, f, ok := vm.staticSlot("SetStaticObjectField", class, id, "L"); ok {
		vm.storeRef("SetStaticObjectField", s, f, v)
	}
}

func (vm *VM) SetStaticBooleanField(class jni.Ref, id jni.FieldID, v bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if s, _, ok := vm.staticSlot("SetStaticBooleanField", class, id, "boolean"); ok {
		s.p.Z = v
	}
}

func (vm *VM) SetStaticShortField(class jni.Ref, id jni.FieldID, v int16) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if s, _, ok := vm.staticSlot("SetStaticShortField", class, id, "short"); ok {
		s.p.S = v
	}
}

func (vm *VM) SetStaticIntField(class jni.Ref, id jni.FieldID, v int32) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if s, _, ok := vm.staticSlot("SetStaticIntField", class, id, "int"); ok {
		s.p.I = v
	}
}

func (vm *VM) SetStaticLongField(class jni.Ref, id jni.FieldID, v int64) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if s, _, ok := vm.staticSlot("SetStaticLongField", class, id, "long"); ok {
		s.p.J = v
	}
}

func (vm *VM) SetStaticFloatField(class jni.Ref, id jni.FieldID, v float32) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if s, _, ok := vm.staticSlot("SetStaticFloatField", class, id, "float"); ok {
		s.p.F = v
	}
}

func (vm *VM) SetStaticDoubleField(class jni.Ref, id jni.FieldID, v float64) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if s, _, ok := vm.staticSlot("SetStaticDoubleField", class, id, "double"); ok {
		s.p.D = v
	}
}

// Strings and arrays

func (vm *VM) NewStringUTF(s string) jni.Ref {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if !vm.enter("NewStringUTF", "\""+clip(s, 40)+"\"") {
		return 0
	}
	return vm.newLocal(vm.newString(fromModifiedUTF8(s)))
}

func (vm *VM) GetStringUTFChars(str jni.Ref) string {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if !vm.enter("GetStringUTFChars", glog.Hex(uint64(str))) {
		return ""
	}
	o, ok := vm.deref("GetStringUTFChars", str)
	if !ok || o == nil {
		vm.throwNew("java.lang.NullPointerException", "GetStringUTFChars on null")
		return ""
	}
	if o.class.Name != "java.lang.String" {
		vm.throwNew("java.lang.IllegalArgumentException", o.class.Name+" is not a String")
		return ""
	}
	return jni.EncodeModifiedUTF8(jni.DecodeModifiedUTF8(o.str))
}

func (vm *VM) GetArrayLength(arr jni.Ref) int32 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if !vm.enter("GetArrayLength", glog.Hex(uint64(arr))) {
		return 0
	}
	o, ok := vm.deref("GetArrayLength", arr)
	if !ok || o == nil || !o.class.IsArray() {
		vm.throwNew("java.lang.IllegalArgumentException", "not an array")
		return 0
	}
	return int32(len(o.elems))
}

func (vm *VM) GetObjectArrayElement(arr jni.Ref, index int32) jni.Ref {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if !vm.enter("GetObjectArrayElement", fmt.Sprintf("index=%d", index)) {
		return 0
	}
	o, ok := vm.deref("GetObjectArrayElement", arr)
	if !ok || o == nil || !o.class.IsArray() {
		vm.throwNew("java.lang.IllegalArgumentException", "not an array")
		return 0
	}
	if index < 0 || int(index) >= len(o.elems) {
		vm.throwNew("java.lang.ArrayIndexOutOfBoundsException", fmt.Sprintf("index %d", index))
		return 0
	}
	return vm.newLocal(o.elems[index])
}

// clip shortens s to at most n bytes for trace details, cutting on a rune
// boundary.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// Strings are held as UTF-8 with unpaired surrogates kept as three-byte
// sequences, and cross JNI as modified UTF-8.
func fromModifiedUTF8(s string) string {
	units := jni.DecodeModifiedUTF8(s)
	b := make([]byte, 0, len(s))
	for i := 0; i < len(units); i++ {
		u := rune(units[i])
		if utf16.IsSurrogate(u) && i+1 < len(units) {
			if r := utf16.DecodeRune(u, rune(units[i+1])); r != utf8.RuneError {
				b = utf8.AppendRune(b, r)
				i++
				continue
			}
		}
		if utf16.IsSurrogate(u) {
			b = append(b, 0xE0|byte(u>>12), 0x80|byte(u>>6&0x3F), 0x80|byte(u&0x3F))
			continue
		}
		b = utf8.AppendRune(b, u)
	}
	return string(b)
}
