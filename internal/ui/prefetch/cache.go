package prefetch

import (
	"context"
	"sync"

	"github.com/bigkaa/jobboard/internal/query"
)

// entry: успешно полученный результат именованного запроса.
type entry struct {
	name   string
	params query.Params
	data   any
}

// Cache: кэш результатов prefetch в пределах одного запроса страницы.
// Между запросами не разделяется. Содержит только успешные результаты:
// отсутствие записи означает «данные получит клиент».
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	order   []string
}

// NewCache создаёт пустой кэш.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]entry)}
}

// Get возвращает данные запроса name с параметрами params.
func (c *Cache) Get(name string, params query.Params) (any, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[query.Key(name, params)]
	return e.data, ok
}

// Len: количество записей.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) put(name string, params query.Params, data any) {
	key := query.Key(name, params)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = entry{name: name, params: params, data: data}
}

// snapshot: записи в порядке добавления.
func (c *Cache) snapshot() []entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]entry, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.entries[key])
	}
	return out
}

// Lookup: типизированное чтение из кэша, переданного через контекст.
// Отсутствие кэша, записи или несовпадение типа - ok=false.
func Lookup[T any](ctx context.Context, name string, params query.Params) (T, bool) {
	var zero T
	data, ok := CacheFromContext(ctx).Get(name, params)
	if !ok {
		return zero, false
	}
	typed, ok := data.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

type cacheKey struct{}

type resultKey struct{}

// WithCache помещает кэш в контекст рендеринга.
func WithCache(ctx context.Context, c *Cache) context.Context {
	return context.WithValue(ctx, cacheKey{}, c)
}

// CacheFromContext возвращает кэш из контекста (nil, если его нет).
func CacheFromContext(ctx context.Context) *Cache {
	c, _ := ctx.Value(cacheKey{}).(*Cache)
	return c
}

// WithResult помещает итог prefetch в контекст рендеринга.
func WithResult(ctx context.Context, r Result) context.Context {
	return context.WithValue(ctx, resultKey{}, r)
}

// ResultFromContext возвращает итог prefetch из контекста.
func ResultFromContext(ctx context.Context) Result {
	r, _ := ctx.Value(resultKey{}).(Result)
	return r
}
