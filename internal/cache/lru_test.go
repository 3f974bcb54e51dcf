package cache

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLRU_EvictsOldest(t *testing.T) {
	c := New[string, int](2)
	c.Add("a", 1)
	c.Add("b", 2)
	_, _ = c.Get("a") // a becomes MRU
	c.Add("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b should be evicted")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Len())
}

func TestLRU_UpdateAndPurge(t *testing.T) {
	c := New[string, int](4)
	c.Add("a", 1)
	c.Add("a", 10)
	v, _ := c.Get("a")
	assert.Equal(t, 10, v)
	assert.Equal(t, 1, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestLRU_Concurrent(t *testing.T) {
	c := New[string, int](16)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				k := strconv.Itoa((i + j) % 32)
				c.Add(k, j)
				c.Get(k)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 16)
}

func TestNew_PanicsOnZeroCapacity(t *testing.T) {
	assert.Panics(t, func() { New[string, int](0) })
}
