package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageCache(t *testing.T) {
	c := newPageCache[int, string](2)
	c.put(1, "one")
	c.put(2, "two")

	v, ok := c.get(1)
	assert.True(t, ok)
	assert.Equal(t, "one", v)

	// 2 is now least recently used.
	c.put(3, "three")
	_, ok = c.get(2)
	assert.False(t, ok)
	assert.Equal(t, 2, c.len())

	c.put(1, "uno")
	v, _ = c.get(1)
	assert.Equal(t, "uno", v)

	stats := c.stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 2, stats.Capacity)
}

func TestPageCacheDefaultCapacity(t *testing.T) {
	c := newPageCache[int, int](0)
	for i := 0; i < 20; i++ {
		c.put(i, i)
	}
	assert.Equal(t, 8, c.len())
}
