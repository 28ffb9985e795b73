package jvm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// HeapFile is the YAML layout of a heap description.
type HeapFile struct {
	Classes []ClassDecl  `yaml:"classes"`
	Objects []ObjectDecl `yaml:"objects"`
}

// ClassDecl declares a class. Super defaults to java.lang.Object.
type ClassDecl struct {
	Name   string      `yaml:"name"`
	Super  string      `yaml:"super"`
	Fields []FieldDecl `yaml:"fields"`
}

// FieldDecl declares a field. Fields are public unless Private is set.
// Value initializes static fields only.
type FieldDecl struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Static  bool   `yaml:"static"`
	Final   bool   `yaml:"final"`
	Private bool   `yaml:"private"`
	Value   any    `yaml:"value"`
}

// ObjectDecl allocates an object and fills its instance fields. A string
// value of the form "@id" refers to another object; "@@" escapes a literal
// leading "@".
type ObjectDecl struct {
	ID     string         `yaml:"id"`
	Class  string         `yaml:"class"`
	Values map[string]any `yaml:"values"`
}

// Heap is the result of loading a heap file into a VM.
type Heap struct {
	Objects map[string]*Object
	// IDs lists object ids in file order.
	IDs []string
	// Classes lists the declared class names in definition order.
	Classes []string
}

// Object returns a loaded object by id.
func (h *Heap) Object(id string) (*Object, bool) {
	o, ok := h.Objects[id]
	return o, ok
}

// LoadHeapFile reads a YAML heap description from path into vm.
func LoadHeapFile(vm *VM, path string) (*Heap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open heap file: %w", err)
	}
	defer f.Close()
	h, err := LoadHeap(vm, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

// LoadHeap reads a YAML heap description into vm. Classes may be listed in
// any order as long as every superclass is declared or already loaded.
// Loading is not transactional: on error the VM keeps whatever was defined.
func LoadHeap(vm *VM, r io.Reader) (*Heap, error) {
	var hf HeapFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&hf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse heap: %w", err)
	}
	return hf.Load(vm)
}

// Load defines the classes, allocates the objects, then stores every static
// and instance value.
func (hf *HeapFile) Load(vm *VM) (*Heap, error) {
	h := &Heap{Objects: make(map[string]*Object)}

	order, err := hf.classOrder(vm)
	if err != nil {
		return nil, err
	}
	// Fields are added once every class exists so field types may refer to
	// classes declared later in the file, or to the declaring class itself.
	for _, cd := range order {
		if _, err := vm.DefineClass(cd.Name, cd.Super); err != nil {
			return nil, err
		}
		h.Classes = append(h.Classes, cd.Name)
	}
	for _, cd := range order {
		for _, fd := range cd.Fields {
			spec := FieldSpec{Name: fd.Name, Type: fd.Type, Modifiers: fd.modifiers()}
			if _, err := vm.DefineField(cd.Name, spec); err != nil {
				return nil, err
			}
		}
	}

	for _, od := range hf.Objects {
		if od.ID == "" {
			return nil, fmt.Errorf("object of class %s has no id", od.Class)
		}
		if _, dup := h.Objects[od.ID]; dup {
			return nil, fmt.Errorf("object id %q used twice", od.ID)
		}
		o, err := vm.NewObject(od.Class)
		if err != nil {
			return nil, fmt.Errorf("object %s: %w", od.ID, err)
		}
		h.Objects[od.ID] = o
		h.IDs = append(h.IDs, od.ID)
	}

	for _, cd := range hf.Classes {
		for _, fd := range cd.Fields {
			if fd.Value == nil {
				continue
			}
			if !fd.Static {
				return nil, fmt.Errorf("%s.%s: value is only allowed on static fields", cd.Name, fd.Name)
			}
			v, err := h.resolve(fd.Value)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", cd.Name, fd.Name, err)
			}
			if err := vm.SetStatic(cd.Name, fd.Name, v); err != nil {
				return nil, err
			}
		}
	}

	for _, od := range hf.Objects {
		o := h.Objects[od.ID]
		// Map order is random; sort for stable error reporting.
		names := make([]string, 0, len(od.Values))
		for name := range od.Values {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			v, err := h.resolve(od.Values[name])
			if err != nil {
				return nil, fmt.Errorf("object %s field %s: %w", od.ID, name, err)
			}
			if err := vm.SetField(o, name, v); err != nil {
				return nil, fmt.Errorf("object %s: %w", od.ID, err)
			}
		}
	}
	return h, nil
}

// classOrder sorts declarations so every superclass precedes its subclasses.
func (hf *HeapFile) classOrder(vm *VM) ([]ClassDecl, error) {
	declared := make(map[string]bool, len(hf.Classes))
	for _, cd := range hf.Classes {
		if cd.Name == "" {
			return nil, fmt.Errorf("class with empty name")
		}
		if declared[cd.Name] {
			return nil, fmt.Errorf("class %s declared twice", cd.Name)
		}
		declared[cd.Name] = true
	}

	done := make(map[string]bool, len(hf.Classes))
	out := make([]ClassDecl, 0, len(hf.Classes))
	for len(out) < len(hf.Classes) {
		progress := false
		for _, cd := range hf.Classes {
			if done[cd.Name] {
				continue
			}
			if cd.Super != "" && declared[cd.Super] && !done[cd.Super] {
				continue
			}
			if cd.Super != "" && !declared[cd.Super] {
				if _, ok := vm.Class(cd.Super); !ok {
					return nil, fmt.Errorf("class %s: superclass %s not declared", cd.Name, cd.Super)
				}
			}
			out = append(out, cd)
			done[cd.Name] = true
			progress = true
		}
		if !progress {
			return nil, fmt.Errorf("class hierarchy has a cycle")
		}
	}
	return out, nil
}

func (fd FieldDecl) modifiers() int32 {
	var m int32
	if fd.Private {
		m |= AccPrivate
	} else {
		m |= AccPublic
	}
	if fd.Static {
		m |= AccStatic
	}
	if fd.Final {
		m |= AccFinal
	}
	return m
}

// resolve turns "@id" strings into objects and leaves other values as the
// YAML decoder produced them.
func (h *Heap) resolve(v any) (any, error) {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, "@") {
		return v, nil
	}
	if strings.HasPrefix(s, "@@") {
		return s[1:], nil
	}
	o, ok := h.Objects[s[1:]]
	if !ok {
		return nil, fmt.Errorf("reference to unknown object %q", s[1:])
	}
	return o, nil
}
