package jvm

import (
	"fmt"
	"strings"

	"github.com/zboralski/jbridge/internal/jni"
)

var primitiveNames = []string{"boolean", "byte", "char", "short", "int", "long", "float", "double", "void"}

// bootstrap loads java.lang.Object, java.lang.Class, java.lang.String, the
// reflection classes and the throwable hierarchy.
func (vm *VM) bootstrap() {
	must := func(c *Class, err error) *Class {
		if err != nil {
			panic("jvm: bootstrap: " + err.Error())
		}
		return c
	}

	object := must(vm.defineClass("java.lang.Object", ""))
	class := must(vm.defineClass("java.lang.Class", ""))
	field := must(vm.defineClass("java.lang.reflect.Field", ""))
	// Object was defined before java.lang.Class existed.
	vm.attachMirror(object)

	for _, name := range primitiveNames {
		p := &Class{
			Name:      name,
			Primitive: true,
			methods:   make(map[string]*Method),
			statics:   make(map[*Field]*value),
		}
		vm.classes[name] = p
		vm.attachMirror(p)
	}

	str := must(vm.defineClass("java.lang.String", ""))
	modifier := must(vm.defineClass("java.lang.reflect.Modifier", ""))
	system := must(vm.defineClass("java.lang.System", ""))
	throwable := must(vm.defineClass("java.lang.Throwable", "",
		FieldSpec{Name: "detailMessage", Type: "java.lang.String", Modifiers: AccPrivate}))

	for _, h := range [][2]string{
		{"java.lang.Exception", "java.lang.Throwable"},
		{"java.lang.Error", "java.lang.Throwable"},
		{"java.lang.RuntimeException", "java.lang.Exception"},
		{"java.lang.NullPointerException", "java.lang.RuntimeException"},
		{"java.lang.IllegalArgumentException", "java.lang.RuntimeException"},
		{"java.lang.IllegalStateException", "java.lang.RuntimeException"},
		{"java.lang.ClassCastException", "java.lang.RuntimeException"},
		{"java.lang.ArrayIndexOutOfBoundsException", "java.lang.RuntimeException"},
		{"java.lang.LinkageError", "java.lang.Error"},
		{"java.lang.NoClassDefFoundError", "java.lang.LinkageError"},
		{"java.lang.IncompatibleClassChangeError", "java.lang.LinkageError"},
		{"java.lang.NoSuchFieldError", "java.lang.IncompatibleClassChangeError"},
		{"java.lang.NoSuchMethodError", "java.lang.IncompatibleClassChangeError"},
		{"java.lang.OutOfMemoryError", "java.lang.Error"},
	} {
		must(vm.defineClass(h[0], h[1]))
	}

	vm.addMethod(object, "toString", "()Ljava/lang/String;", false, nativeObjectToString)
	vm.addMethod(object, "hashCode", "()I", false, func(vm *VM, this *Object, _ []jni.Value) (value, *Object) {
		return value{p: jni.Int(int32(this.hash))}, nil
	})
	vm.addMethod(object, "getClass", "()Ljava/lang/Class;", false, func(vm *VM, this *Object, _ []jni.Value) (value, *Object) {
		return value{o: this.class.mirror}, nil
	})

	vm.addMethod(system, "identityHashCode", "(Ljava/lang/Object;)I", true, func(vm *VM, _ *Object, args []jni.Value) (value, *Object) {
		if len(args) < 1 {
			return value{}, vm.exception("java.lang.IllegalArgumentException", "missing argument")
		}
		o, _ := vm.deref("identityHashCode", args[0].L)
		if o == nil {
			return value{p: jni.Int(0)}, nil
		}
		return value{p: jni.Int(int32(o.hash))}, nil
	})

	vm.addMethod(class, "getName", "()Ljava/lang/String;", false, func(vm *VM, this *Object, _ []jni.Value) (value, *Object) {
		return value{o: vm.newString(this.mirror.Name)}, nil
	})
	vm.addMethod(class, "isPrimitive", "()Z", false, func(vm *VM, this *Object, _ []jni.Value) (value, *Object) {
		return value{p: jni.Value{Z: this.mirror.Primitive}}, nil
	})
	vm.addMethod(class, "isArray", "()Z", false, func(vm *VM, this *Object, _ []jni.Value) (value, *Object) {
		return value{p: jni.Value{Z: this.mirror.IsArray()}}, nil
	})
	vm.addMethod(class, "getSuperclass", "()Ljava/lang/Class;", false, func(vm *VM, this *Object, _ []jni.Value) (value, *Object) {
		if s := this.mirror.Super; s != nil {
			return value{o: s.mirror}, nil
		}
		return value{}, nil
	})
	vm.addMethod(class, "getFields", "()[Ljava/lang/reflect/Field;", false, func(vm *VM, this *Object, _ []jni.Value) (value, *Object) {
		return value{o: vm.reflectedArray(this.mirror.publicFields())}, nil
	})
	vm.addMethod(class, "getDeclaredFields", "()[Ljava/lang/reflect/Field;", false, func(vm *VM, this *Object, _ []jni.Value) (value, *Object) {
		return value{o: vm.reflectedArray(this.mirror.fields)}, nil
	})

	vm.addMethod(field, "getName", "()Ljava/lang/String;", false, func(vm *VM, this *Object, _ []jni.Value) (value, *Object) {
		return value{o: vm.newString(this.field.Name)}, nil
	})
	vm.addMethod(field, "getType", "()Ljava/lang/Class;", false, func(vm *VM, this *Object, _ []jni.Value) (value, *Object) {
		return value{o: this.field.Type.mirror}, nil
	})
	vm.addMethod(field, "getModifiers", "()I", false, func(vm *VM, this *Object, _ []jni.Value) (value, *Object) {
		return value{p: jni.Int(this.field.Modifiers)}, nil
	})
	vm.addMethod(field, "getDeclaringClass", "()Ljava/lang/Class;", false, func(vm *VM, this *Object, _ []jni.Value) (value, *Object) {
		return value{o: this.field.Declaring.mirror}, nil
	})
	vm.addMethod(field, "toString", "()Ljava/lang/String;", false, func(vm *VM, this *Object, _ []jni.Value) (value, *Object) {
		f := this.field
		s := fmt.Sprintf("%s%s %s.%s", modifierString(f.Modifiers), f.Type.Name, f.Declaring.Name, f.Name)
		return value{o: vm.newString(s)}, nil
	})

	vm.addMethod(modifier, "isStatic", "(I)Z", true, modifierTest(AccStatic))
	vm.addMethod(modifier, "isPublic", "(I)Z", true, modifierTest(AccPublic))
	vm.addMethod(modifier, "isFinal", "(I)Z", true, modifierTest(AccFinal))
	vm.addMethod(modifier, "toString", "(I)Ljava/lang/String;", true, func(vm *VM, _ *Object, args []jni.Value) (value, *Object) {
		if len(args) < 1 {
			return value{}, vm.exception("java.lang.IllegalArgumentException", "missing argument")
		}
		return value{o: vm.newString(strings.TrimSpace(modifierString(args[0].I)))}, nil
	})

	vm.addMethod(str, "length", "()I", false, func(vm *VM, this *Object, _ []jni.Value) (value, *Object) {
		return value{p: jni.Int(int32(len(jni.DecodeModifiedUTF8(this.str))))}, nil
	})
	vm.addMethod(str, "toString", "()Ljava/lang/String;", false, func(vm *VM, this *Object, _ []jni.Value) (value, *Object) {
		return value{o: this}, nil
	})

	vm.addMethod(throwable, "getMessage", "()Ljava/lang/String;", false, func(vm *VM, this *Object, _ []jni.Value) (value, *Object) {
		return value{o: this.fields[throwable.fields[0]].o}, nil
	})
	vm.addMethod(throwable, "toString", "()Ljava/lang/String;", false, func(vm *VM, this *Object, _ []jni.Value) (value, *Object) {
		s := this.class.Name
		if m := this.fields[throwable.fields[0]].o; m != nil {
			s += ": " + m.str
		}
		return value{o: vm.newString(s)}, nil
	})
}

func nativeObjectToString(vm *VM, this *Object, _ []jni.Value) (value, *Object) {
	return value{o: vm.newString(this.String())}, nil
}

func modifierTest(flag int32) Native {
	return func(vm *VM, _ *Object, args []jni.Value) (value, *Object) {
		if len(args) < 1 {
			return value{}, vm.exception("java.lang.IllegalArgumentException", "missing argument")
		}
		return value{p: jni.Value{Z: args[0].I&flag != 0}}, nil
	}
}

func modifierString(mod int32) string {
	var b strings.Builder
	for _, m := range []struct {
		flag int32
		name string
	}{
		{AccPublic, "public"},
		{AccProtected, "protected"},
		{AccPrivate, "private"},
		{AccStatic, "static"},
		{AccFinal, "final"},
		{AccTransient, "transient"},
		{AccVolatile, "volatile"},
	} {
		if mod&m.flag != 0 {
			b.WriteString(m.name)
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func (vm *VM) reflectedArray(fields []*Field) *Object {
	elems := make([]*Object, 0, len(fields))
	for _, f := range fields {
		elems = append(elems, f.reflected)
	}
	return vm.newArray(vm.classes["java.lang.reflect.Field"], elems)
}

// exception builds (but does not raise) a throwable for a native to return.
func (vm *VM) exception(className, msg string) *Object {
	c, ok := vm.classes[className]
	if !ok {
		c = vm.classes["java.lang.RuntimeException"]
	}
	return vm.newThrowable(c, msg)
}
