package jtype_test

import (
	"errors"
	"testing"

	"github.com/zboralski/jbridge/internal/jni"
	"github.com/zboralski/jbridge/internal/jtype"
	"github.com/zboralski/jbridge/internal/jvm"
	glog "github.com/zboralski/jbridge/internal/log"
)

func TestFromName(t *testing.T) {
	tests := []struct {
		name string
		want jtype.Tag
	}{
		{"java.lang.String", jtype.String},
		{"java.lang.Object", jtype.Object},
		{"com.example.Point", jtype.Object},
		{"java.lang.Integer", jtype.Object},
		{"int", jtype.Int},
		{"short", jtype.Short},
		{"double", jtype.Double},
		{"float", jtype.Float},
		{"long", jtype.Long},
		{"boolean", jtype.Boolean},
		{"byte", jtype.Unknown},
		{"char", jtype.Unknown},
		{"void", jtype.Unknown},
		{"[I", jtype.Unknown},
		{"[Ljava.lang.String;", jtype.Unknown},
	}
	for _, tt := range tests {
		if got := jtype.FromName(tt.name); got != tt.want {
			t.Errorf("FromName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestExpected(t *testing.T) {
	want := map[jtype.Tag]string{
		jtype.String:  "string",
		jtype.Object:  "object",
		jtype.Int:     "int",
		jtype.Short:   "int",
		jtype.Double:  "float (jdouble)",
		jtype.Float:   "float (jfloat)",
		jtype.Long:    "long",
		jtype.Boolean: "boolean",
	}
	for _, tag := range jtype.Tags {
		if got := tag.Expected(); got != want[tag] {
			t.Errorf("%v.Expected() = %q, want %q", tag, got, want[tag])
		}
	}
}

func TestClassify(t *testing.T) {
	vm := jvm.New(jvm.WithLogger(glog.NewNop()))
	env := vm.Env()
	cache := jni.NewMethodCache()

	for name, want := range map[string]jtype.Tag{
		"java/lang/String": jtype.String,
		"java/lang/Object": jtype.Object,
		"int":              jtype.Int,
		"boolean":          jtype.Boolean,
		"char":             jtype.Unknown,
	} {
		cls := jni.NewLocal(env, env.FindClass(name))
		got, err := jtype.Classify(env, cache, cls.Ref())
		cls.Release()
		if err != nil {
			t.Errorf("Classify(%s): %v", name, err)
			continue
		}
		if got != want {
			t.Errorf("Classify(%s) = %v, want %v", name, got, want)
		}
	}
	if vm.LocalRefs() != 0 {
		t.Errorf("LocalRefs = %d, want 0", vm.LocalRefs())
	}
}

func TestClassifyException(t *testing.T) {
	vm := jvm.New(jvm.WithLogger(glog.NewNop()))
	env := vm.Env()
	cache := jni.NewMethodCache()

	cls := jni.NewLocal(env, env.FindClass("java/lang/String"))
	defer cls.Release()

	vm.FailNext("java.lang.Class.getName", "java.lang.IllegalStateException", "gone")
	_, err := jtype.Classify(env, cache, cls.Ref())
	if !errors.Is(err, &jni.JavaException{Class: "java.lang.IllegalStateException"}) {
		t.Fatalf("err = %v", err)
	}
	if env.ExceptionCheck() {
		t.Error("exception left pending")
	}
}
