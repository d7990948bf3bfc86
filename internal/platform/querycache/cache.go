// Package querycache guarda por clave (p.ej. userID) la última versión conocida
// de una consulta al backend. Los valores se reemplazan completos; nunca se
// mutan en sitio, así que un lector siempre ve una lista consistente.
package querycache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Fetcher trae el valor autoritativo para una clave.
type Fetcher[V any] func(ctx context.Context, key string) (V, error)

// Event se emite en cada publicación o invalidación.
type Event[V any] struct {
	Key         string
	Version     uint64
	Value       V
	Invalidated bool
}

type Cache[V any] struct {
	fetch Fetcher[V]
	group singleflight.Group

	mu       sync.RWMutex
	values   map[string]V
	versions map[string]uint64 // sobrevive a Invalidate para que el CAS siga siendo válido

	subMu   sync.RWMutex
	subs    map[int]func(Event[V])
	nextSub int
}

func New[V any](fetch Fetcher[V]) *Cache[V] {
	return &Cache[V]{
		fetch:    fetch,
		values:   make(map[string]V),
		versions: make(map[string]uint64),
		subs:     make(map[int]func(Event[V])),
	}
}

// Get devuelve el valor cacheado y su versión.
func (c *Cache[V]) Get(key string) (V, uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.values[key]
	return v, c.versions[key], ok
}

func (c *Cache[V]) Version(key string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.versions[key]
}

// Set publica v como nuevo estado de la clave.
func (c *Cache[V]) Set(key string, v V) uint64 {
	c.mu.Lock()
	c.versions[key]++
	ver := c.versions[key]
	c.values[key] = v
	c.mu.Unlock()

	c.notify(Event[V]{Key: key, Version: ver, Value: v})
	return ver
}

// CompareAndSet publica v solo si la versión actual sigue siendo expected.
func (c *Cache[V]) CompareAndSet(key string, expected uint64, v V) (uint64, bool) {
	c.mu.Lock()
	if c.versions[key] != expected {
		cur := c.versions[key]
		c.mu.Unlock()
		return cur, false
	}
	c.versions[key]++
	ver := c.versions[key]
	c.values[key] = v
	c.mu.Unlock()

	c.notify(Event[V]{Key: key, Version: ver, Value: v})
	return ver, true
}

// Invalidate descarta el valor; la próxima lectura irá al backend.
func (c *Cache[V]) Invalidate(key string) uint64 {
	c.mu.Lock()
	c.versions[key]++
	ver := c.versions[key]
	delete(c.values, key)
	c.mu.Unlock()

	c.notify(Event[V]{Key: key, Version: ver, Invalidated: true})
	return ver
}

// Load devuelve el valor cacheado o lo trae (una sola llamada por clave en vuelo).
func (c *Cache[V]) Load(ctx context.Context, key string) (V, error) {
	if v, _, ok := c.Get(key); ok {
		return v, nil
	}

	// El vuelo es compartido: cancelar al primer llamador no debe cortar a los demás.
	flightCtx := context.WithoutCancel(ctx)
	res, err, _ := c.group.Do(key, func() (any, error) {
		return c.fill(flightCtx, key)
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Refetch ignora lo cacheado y vuelve a traer el valor autoritativo.
func (c *Cache[V]) Refetch(ctx context.Context, key string) (V, error) {
	return c.fill(ctx, key)
}

func (c *Cache[V]) fill(ctx context.Context, key string) (V, error) {
	start := c.Version(key)

	v, err := c.fetch(ctx, key)
	if err != nil {
		var zero V
		return zero, err
	}

	if _, ok := c.CompareAndSet(key, start, v); !ok {
		// Alguien publicó mientras traíamos: gana lo más nuevo.
		if cur, _, cached := c.Get(key); cached {
			return cur, nil
		}
	}
	return v, nil
}

// Subscribe registra fn para cada evento. Devuelve la función para darse de baja.
func (c *Cache[V]) Subscribe(fn func(Event[V])) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Cache[V]) notify(ev Event[V]) {
	c.subMu.RLock()
	fns := make([]func(Event[V]), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
