package jni

import (
	"fmt"
	"sync"
)

type methodKey struct {
	class  string
	name   string
	sig    string
	static bool
}

// MethodCache remembers method ids resolved against one JVM. Ids stay valid
// for as long as the defining class loader lives, so the cache is shared by
// every proxy bound to that JVM.
//
// The mutex is never held across a JNI call: two goroutines racing on the
// same first lookup both resolve it and store the same id.
type MethodCache struct {
	mu     sync.Mutex
	ids    map[methodKey]MethodID
	misses int
}

// NewMethodCache returns an empty cache.
func NewMethodCache() *MethodCache {
	return &MethodCache{ids: make(map[methodKey]MethodID)}
}

// Method resolves an instance method of the class with the given internal
// name (e.g. "java/lang/reflect/Field").
func (c *MethodCache) Method(env Env, className, name, sig string) (MethodID, error) {
	return c.resolve(env, 0, methodKey{className, name, sig, false}, true)
}

// MethodIn is Method for a caller that already holds a reference to the
// class; a miss resolves against class instead of calling FindClass.
func (c *MethodCache) MethodIn(env Env, class Ref, className, name, sig string) (MethodID, error) {
	return c.resolve(env, class, methodKey{className, name, sig, false}, true)
}

// StaticMethod resolves a static method.
func (c *MethodCache) StaticMethod(env Env, className, name, sig string) (MethodID, error) {
	return c.resolve(env, 0, methodKey{className, name, sig, true}, true)
}

// Misses returns how many lookups went to the JVM.
func (c *MethodCache) Misses() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.misses
}

// Len returns the number of cached ids.
func (c *MethodCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ids)
}

func (c *MethodCache) resolve(env Env, class Ref, key methodKey, describe bool) (MethodID, error) {
	c.mu.Lock()
	if id, ok := c.ids[key]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.misses++
	c.mu.Unlock()

	fail := func() error {
		if !describe {
			env.ExceptionClear()
			return fmt.Errorf("jni: cannot resolve %s.%s%s", key.class, key.name, key.sig)
		}
		if err := CheckException(env, c); err != nil {
			return err
		}
		return fmt.Errorf("jni: cannot resolve %s.%s%s", key.class, key.name, key.sig)
	}

	if class == 0 {
		found := NewLocal(env, env.FindClass(key.class))
		defer found.Release()
		if env.ExceptionCheck() || found.IsNull() {
			return 0, fail()
		}
		class = found.Ref()
	}

	var id MethodID
	if key.static {
		id = env.GetStaticMethodID(class, key.name, key.sig)
	} else {
		id = env.GetMethodID(class, key.name, key.sig)
	}
	if env.ExceptionCheck() || id == 0 {
		return 0, fail()
	}

	c.mu.Lock()
	if prev, ok := c.ids[key]; ok {
		id = prev
	} else {
		c.ids[key] = id
	}
	c.mu.Unlock()
	return id, nil
}
