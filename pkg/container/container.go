// Package container is a small typed binding registry. Applications bind a
// factory per type and resolve instances by type, the way a generated
// providers file wires repositories, services and handlers together.
package container

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// ErrNotBound is returned when resolving a type with no binding
var ErrNotBound = errors.New("no binding registered")

// ErrCircular is returned when a factory resolves its own type
var ErrCircular = errors.New("circular binding")

type binding struct {
	factory   func(*Container) (any, error)
	singleton bool
	instance  any
	resolved  bool
}

// Container holds bindings keyed by type
type Container struct {
	bindings  map[reflect.Type]*binding
	resolving map[reflect.Type]bool
	mu        sync.Mutex
}

// New creates an empty container
func New() *Container {
	return &Container{
		bindings:  make(map[reflect.Type]*binding),
		resolving: make(map[reflect.Type]bool),
	}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func register[T any](c *Container, factory func(*Container) (T, error), singleton bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings[typeOf[T]()] = &binding{
		factory: func(c *Container) (any, error) {
			return factory(c)
		},
		singleton: singleton,
	}
}

// Bind registers a factory that runs on every Resolve. A later binding for
// the same type replaces the earlier one.
func Bind[T any](c *Container, factory func(*Container) (T, error)) {
	register(c, factory, false)
}

// Singleton registers a factory that runs once; later resolves share the
// instance
func Singleton[T any](c *Container, factory func(*Container) (T, error)) {
	register(c, factory, true)
}

// Instance binds an existing value
func Instance[T any](c *Container, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings[typeOf[T]()] = &binding{singleton: true, instance: value, resolved: true}
}

// Bound reports whether T has a binding
func Bound[T any](c *Container) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.bindings[typeOf[T]()]
	return ok
}

// Resolve builds or returns the instance bound to T
func Resolve[T any](c *Container) (T, error) {
	var zero T
	t := typeOf[T]()

	c.mu.Lock()
	b, ok := c.bindings[t]
	if !ok {
		c.mu.Unlock()
		return zero, fmt.Errorf("%w for %s", ErrNotBound, t)
	}
	if b.resolved {
		instance, _ := b.instance.(T)
		c.mu.Unlock()
		return instance, nil
	}
	if c.resolving[t] {
		c.mu.Unlock()
		return zero, fmt.Errorf("%w: %s", ErrCircular, t)
	}
	c.resolving[t] = true
	c.mu.Unlock()

	// factories may resolve their own dependencies, so run them unlocked
	value, err := b.factory(c)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.resolving, t)
	if err != nil {
		return zero, fmt.Errorf("failed to resolve %s: %w", t, err)
	}
	if b.singleton {
		b.instance = value
		b.resolved = true
	}
	instance, _ := value.(T)
	return instance, nil
}

// MustResolve is Resolve for bootstrap code; it panics on error
func MustResolve[T any](c *Container) T {
	value, err := Resolve[T](c)
	if err != nil {
		panic(err)
	}
	return value
}
