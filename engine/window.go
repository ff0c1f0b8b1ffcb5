package engine

import (
	"math"

	"github.com/viterin/vek/vek32"
)

// windowCache holds Hann window curves keyed by integer length. Grain
// durations cluster around a handful of lengths, so the cache almost always
// hits; the size cap with oldest-entry eviction keeps a parameter sweep
// from growing it without bound. Each engine instance owns its own cache,
// so concurrent test runs cannot interfere through shared state.
type windowCache struct {
	max     int
	entries map[int][]float32
	order   []int // insertion order, oldest first
}

const defaultWindowCacheSize = 32

func newWindowCache(max int) *windowCache {
	if max < 1 {
		max = 1
	}
	return &windowCache{max: max, entries: make(map[int][]float32)}
}

// Hann returns the cached Hann window of the given sample length,
// generating and caching it on a miss. Callers must treat the returned
// slice as immutable; it is shared between every grain of that length.
func (c *windowCache) Hann(length int) []float32 {
	if length < 2 {
		length = 2
	}
	if w, ok := c.entries[length]; ok {
		return w
	}
	w := hannCurve(length)
	if len(c.order) >= c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[length] = w
	c.order = append(c.order, length)
	return w
}

func (c *windowCache) Len() int { return len(c.entries) }

// hannCurve computes 0.5*(1-cos(2*pi*k/(n-1))) for k in [0, n).
func hannCurve(n int) []float32 {
	w := make([]float32, n)
	step := 2 * math.Pi / float64(n-1)
	for k := range w {
		w[k] = float32(math.Cos(step * float64(k)))
	}
	vek32.MulNumber_Inplace(w, -0.5)
	vek32.AddNumber_Inplace(w, 0.5)
	return w
}
