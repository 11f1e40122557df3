package noise

import "math"

// keyPrecision quantizes coordinates before they are used as cache keys.
const keyPrecision = 1e5

type cacheKey struct {
	kind        uint8
	x, y        int64
	octaves     int
	persistence float64
	lacunarity  float64
}

func quantize(v float64) int64 { return int64(math.Round(v * keyPrecision)) }

func sampleKey(x, y float64) cacheKey {
	return cacheKey{kind: 1, x: quantize(x), y: quantize(y)}
}

func fractalKey(x, y float64, octaves int, persistence, lacunarity float64) cacheKey {
	return cacheKey{
		kind:        2,
		x:           quantize(x),
		y:           quantize(y),
		octaves:     octaves,
		persistence: persistence,
		lacunarity:  lacunarity,
	}
}

// Cache memoizes noise values. It is cleared wholesale once it grows past its
// limit; entries are never evicted individually. Not safe for concurrent use.
type Cache struct {
	entries map[cacheKey]float64
	limit   int

	hits   uint64
	misses uint64
	clears uint64
}

type CacheStats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Clears  uint64 `json:"clears"`
}

// NewCache returns a cache that clears itself when it exceeds limit entries.
// limit <= 0 means unbounded.
func NewCache(limit int) *Cache {
	return &Cache{
		entries: map[cacheKey]float64{},
		limit:   limit,
	}
}

func (c *Cache) get(k cacheKey) (float64, bool) {
	v, ok := c.entries[k]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

func (c *Cache) put(k cacheKey, v float64) {
	if c.limit > 0 && len(c.entries) >= c.limit {
		c.Clear()
	}
	c.entries[k] = v
}

// Clear drops every entry.
func (c *Cache) Clear() {
	if c == nil {
		return
	}
	if len(c.entries) > 0 {
		c.clears++
	}
	c.entries = map[cacheKey]float64{}
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

func (c *Cache) Stats() CacheStats {
	if c == nil {
		return CacheStats{}
	}
	return CacheStats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses, Clears: c.clears}
}
