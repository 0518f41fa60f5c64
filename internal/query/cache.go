package query

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jb_query_cache_hits_total",
		Help: "Общее количество попаданий в кэш результатов запросов.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jb_query_cache_misses_total",
		Help: "Общее количество промахов кэша результатов запросов.",
	})
)

// ResultCache: LRU-кэш результатов запросов с TTL, общий для всех запросов
// процесса. Ключ: каноническая форма Key(name, params).
//
// Для каждого запроса хранится поколение: RemoveQuery его увеличивает,
// и результат, вычисленный до сброса, в кэш уже не попадает.
type ResultCache struct {
	cache *expirable.LRU[string, any]

	mu          sync.Mutex
	generations map[string]uint64
}

// NewResultCache создаёт кэш. maxSize <= 0 - кэш не нужен, возвращается nil.
func NewResultCache(maxSize int, ttl time.Duration) *ResultCache {
	if maxSize <= 0 {
		return nil
	}
	return &ResultCache{
		cache:       expirable.NewLRU[string, any](maxSize, nil, ttl),
		generations: make(map[string]uint64),
	}
}

// Get возвращает результат по ключу и обновляет метрики hit/miss.
func (c *ResultCache) Get(key string) (any, bool) {
	v, ok := c.cache.Get(key)
	if ok {
		cacheHitsTotal.Inc()
		return v, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись.
func (c *ResultCache) Set(key string, v any) {
	c.cache.Add(key, v)
}

// Generation: текущее поколение запроса name. Читается до выполнения
// запроса и передаётся в SetIfCurrent.
func (c *ResultCache) Generation(name string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[name]
}

// SetIfCurrent сохраняет результат запроса name, только если с момента
// чтения gen кэш этого запроса не сбрасывался.
func (c *ResultCache) SetIfCurrent(name, key string, v any, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[name] != gen {
		return false
	}
	c.cache.Add(key, v)
	return true
}

// RemoveQuery удаляет все записи запроса name и начинает новое поколение.
// Возвращает число удалённых.
func (c *ResultCache) RemoveQuery(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[name]++
	removed := 0
	for _, key := range c.cache.Keys() {
		if key == name || strings.HasPrefix(key, name+"?") {
			if c.cache.Remove(key) {
				removed++
			}
		}
	}
	return removed
}

// Len: текущее количество записей.
func (c *ResultCache) Len() int {
	return c.cache.Len()
}
