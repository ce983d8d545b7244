// Package di provides a minimal service container for module wiring.
// Services register under typed tokens with lazy, memoized factories;
// shared infrastructure registers eagerly under plain names.
package di

import (
	"sync"
)

// ServiceRegistry is the read side of the container.
type ServiceRegistry interface {
	// Get returns a registered service by name, or nil when absent.
	// Token-registered services resolve through GetToken instead.
	Get(name string) any
}

// Container is the full container surface handed to modules.
type Container interface {
	ServiceRegistry

	// Register stores a service instance under a name, replacing any
	// previous registration.
	Register(name string, service any)
}

type container struct {
	mu       sync.RWMutex
	services map[string]any
}

// NewContainer creates an empty container.
func NewContainer() Container {
	return &container{services: make(map[string]any)}
}

func (c *container) Register(name string, service any) {
	c.mu.Lock()
	c.services[name] = service
	c.mu.Unlock()
}

func (c *container) Get(name string) any {
	c.mu.RLock()
	s := c.services[name]
	c.mu.RUnlock()
	return s
}

// Token is a typed handle to a lazily constructed service.
type Token[T any] struct {
	name string
}

// NewToken creates a token. The name must be unique per container.
func NewToken[T any](name string) Token[T] {
	return Token[T]{name: name}
}

// Name returns the token's registration name.
func (t Token[T]) Name() string {
	return t.name
}

// provider defers construction until first resolution and memoizes
// the result so every consumer shares one instance.
type provider[T any] struct {
	once    sync.Once
	factory func(ServiceRegistry) T
	value   T
}

func (p *provider[T]) resolve(sr ServiceRegistry) T {
	p.once.Do(func() {
		p.value = p.factory(sr)
	})
	return p.value
}

// RegisterToken registers a lazy factory under a typed token.
func RegisterToken[T any](c Container, token Token[T], factory func(ServiceRegistry) T) {
	c.Register(token.name, &provider[T]{factory: factory})
}

// GetToken resolves a token-registered service, constructing it on
// first use. Panics when the token was never registered; wiring bugs
// surface at startup, not at trade time.
func GetToken[T any](c ServiceRegistry, token Token[T]) T {
	v := c.Get(token.name)
	if v == nil {
		panic("di: service not registered: " + token.name)
	}

	p, ok := v.(*provider[T])
	if !ok {
		panic("di: token type mismatch: " + token.name)
	}
	return p.resolve(c)
}
