package bridge

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/dop251/goja"
	"github.com/google/go-cmp/cmp"

	"github.com/zboralski/jbridge/internal/field"
	"github.com/zboralski/jbridge/internal/jni"
	"github.com/zboralski/jbridge/internal/jvm"
	glog "github.com/zboralski/jbridge/internal/log"
)

const heapYAML = `
classes:
  - name: com.example.Config
    fields:
      - {name: NAME, type: java.lang.String, static: true, value: jbridge}
      - {name: LIMIT, type: long, static: true, value: 10}
  - name: com.example.Point
    fields:
      - {name: x, type: int}
      - {name: y, type: int}
      - {name: label, type: java.lang.String}
      - {name: next, type: com.example.Point}
      - {name: tag, type: char}
      - {name: COUNT, type: int, static: true, value: 2}
objects:
  - id: p
    class: com.example.Point
    values: {x: 1, y: 2, label: origin, next: "@q"}
  - id: q
    class: com.example.Point
    values: {x: 10, y: 20}
`

type harness struct {
	vm   *jvm.VM
	heap *jvm.Heap
	s    *Session
	out  *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	vm := jvm.New(jvm.WithLogger(glog.NewNop()))
	heap, err := jvm.LoadHeap(vm, strings.NewReader(heapYAML))
	if err != nil {
		t.Fatalf("LoadHeap: %v", err)
	}
	var out bytes.Buffer
	s := New(vm.Env(), jni.NewMethodCache(), WithOutput(&out), WithLogger(glog.NewNop()))
	if err := s.BindHeap(vm, heap); err != nil {
		t.Fatalf("BindHeap: %v", err)
	}
	return &harness{vm: vm, heap: heap, s: s, out: &out}
}

func (h *harness) run(t *testing.T, src string) goja.Value {
	t.Helper()
	v, err := h.s.Run("test.js", src)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return v
}

func TestPointScenario(t *testing.T) {
	h := newHarness(t)
	defer h.s.Close()

	h.run(t, `
		print(p.x, p.y, p.label);
		p.x = p.x + p.next.x;
		p.label = "moved";
		print(p.x, p.label, p.next.y);
	`)
	want := "1 2 origin\n11 moved 20\n"
	if diff := cmp.Diff(want, h.out.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	p, _ := h.heap.Object("p")
	if v, _ := h.vm.FieldValue(p, "x"); v != int32(11) {
		t.Errorf("heap x = %v, want 11", v)
	}
	if n := h.vm.LocalRefs(); n != 0 {
		t.Errorf("LocalRefs = %d after script", n)
	}
}

func TestStaticThroughClass(t *testing.T) {
	h := newHarness(t)
	defer h.s.Close()

	if got := h.run(t, `Config.NAME`).String(); got != "jbridge" {
		t.Errorf("Config.NAME = %q", got)
	}
	h.run(t, `Config.LIMIT = Config.LIMIT * 3; Point.COUNT++`)
	if v, _ := h.vm.StaticValue("com.example.Config", "LIMIT"); v != int64(30) {
		t.Errorf("LIMIT = %v, want 30", v)
	}
	if got := h.run(t, `p.COUNT`).ToInteger(); got != 3 {
		t.Errorf("p.COUNT = %d, want 3", got)
	}
}

func TestScriptErrorsCarryFieldErrors(t *testing.T) {
	h := newHarness(t)
	defer h.s.Close()

	tests := []struct {
		src  string
		want error
	}{
		{`p.x = "one"`, field.ErrTypeMismatch},
		{`p.x = undefined`, field.ErrTypeMismatch},
		{`p.x = 1e12`, field.ErrConversion},
		{`p.tag`, field.ErrUnsupportedType},
		{`p.tag = 1`, field.ErrUnsupportedType},
		{`Point.x`, field.ErrJavaException},
	}
	for _, tt := range tests {
		_, err := h.s.Run("err.js", tt.src)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.src, err, tt.want)
		}
		var ex *goja.Exception
		if !errors.As(err, &ex) {
			t.Errorf("%s: err is not a script exception", tt.src)
		}
	}

	_, err := h.s.Run("err.js", `p.nope = 1`)
	if err == nil || !strings.Contains(err.Error(), "TypeError") {
		t.Errorf("unknown field: err = %v, want TypeError", err)
	}

	p, _ := h.heap.Object("p")
	if v, _ := h.vm.FieldValue(p, "x"); v != int32(1) {
		t.Errorf("failed assignments changed x to %v", v)
	}
	if n := h.vm.LocalRefs(); n != 0 {
		t.Errorf("LocalRefs = %d", n)
	}
	if p := h.vm.Pending(); p != "" {
		t.Errorf("exception left pending: %s", p)
	}
}

func TestBindConflicts(t *testing.T) {
	h := newHarness(t)
	defer h.s.Close()

	p, _ := h.heap.Object("p")
	ref := h.vm.NewLocal(p)
	defer h.vm.Env().DeleteLocalRef(ref)
	if _, err := h.s.BindObject("q", ref); err == nil {
		t.Error("rebinding q should fail")
	}
	if _, err := h.s.BindClass("Missing", "com.example.Missing"); err == nil {
		t.Error("binding a missing class should fail")
	}
	o, err := h.s.BindObject("alias", ref)
	if err != nil {
		t.Fatal(err)
	}
	if got := h.run(t, `alias.label`).String(); got != "origin" {
		t.Errorf("alias.label = %q", got)
	}
	if o.ClassName() != "com.example.Point" {
		t.Errorf("ClassName = %q", o.ClassName())
	}
}

func TestCloseReleasesReferences(t *testing.T) {
	vm := jvm.New(jvm.WithLogger(glog.NewNop()))
	heap, err := jvm.LoadHeap(vm, strings.NewReader(heapYAML))
	if err != nil {
		t.Fatal(err)
	}
	globals := vm.GlobalRefs()

	s := New(vm.Env(), jni.NewMethodCache(), WithOutput(&bytes.Buffer{}))
	if err := s.BindHeap(vm, heap); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Run("touch.js", `p.next.next; Config.NAME`); err != nil {
		t.Fatal(err)
	}
	if vm.GlobalRefs() == globals {
		t.Fatal("bound proxies should pin references")
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if n := vm.GlobalRefs(); n != globals {
		t.Errorf("GlobalRefs = %d, want %d", n, globals)
	}
	if _, err := s.Run("late.js", `1`); !errors.Is(err, ErrClosed) {
		t.Errorf("Run after Close: err = %v, want ErrClosed", err)
	}
	if _, err := s.BindClass("Point2", "com.example.Point"); !errors.Is(err, ErrClosed) {
		t.Errorf("BindClass after Close: err = %v", err)
	}
	if vm.Misuse() != 0 {
		t.Errorf("Misuse = %d", vm.Misuse())
	}
}

func TestSessionsShareMethodCache(t *testing.T) {
	vm := jvm.New(jvm.WithLogger(glog.NewNop()))
	heap, err := jvm.LoadHeap(vm, strings.NewReader(heapYAML))
	if err != nil {
		t.Fatal(err)
	}
	cache := jni.NewMethodCache()
	var lookups []int
	for i := 0; i < 2; i++ {
		s := New(vm.Env(), cache, WithOutput(&bytes.Buffer{}))
		if err := s.BindHeap(vm, heap); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Run("read.js", `p.x + q.y`); err != nil {
			t.Fatal(err)
		}
		s.Close()
		lookups = append(lookups, vm.Calls("GetMethodID")+vm.Calls("GetStaticMethodID"))
	}
	if lookups[1] != lookups[0] {
		t.Errorf("second session resolved methods again: %v", lookups)
	}
	if s1 := New(vm.Env(), cache); s1.ID == New(vm.Env(), cache).ID {
		t.Error("session ids should be unique")
	}
}

func TestSimpleName(t *testing.T) {
	tests := map[string]string{
		"com.example.Point":       "Point",
		"com.example.Outer$Inner": "Inner",
		"Top":                     "Top",
	}
	for in, want := range tests {
		if got := SimpleName(in); got != want {
			t.Errorf("SimpleName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBindHeapMissingObject(t *testing.T) {
	vm := jvm.New(jvm.WithLogger(glog.NewNop()))
	heap, err := jvm.LoadHeap(vm, strings.NewReader(heapYAML))
	if err != nil {
		t.Fatal(err)
	}
	heap.IDs = append(heap.IDs, "ghost")

	s := New(vm.Env(), jni.NewMethodCache(), WithOutput(&bytes.Buffer{}), WithLogger(glog.NewNop()))
	defer s.Close()
	err = s.BindHeap(vm, heap)
	if err == nil || !strings.Contains(err.Error(), `"ghost"`) {
		t.Fatalf("BindHeap err = %v, want missing ghost", err)
	}
	if n := vm.LocalRefs(); n != 0 {
		t.Errorf("LocalRefs = %d, want 0", n)
	}
	if n := vm.Misuse(); n != 0 {
		t.Errorf("Misuse = %d, want 0", n)
	}
}
