package cache

import (
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShardedMap_Basics(t *testing.T) {
	m := NewShardedMap[int](4)

	_, ok := m.Load("a")
	assert.False(t, ok)

	m.Store("a", 1)
	v, ok := m.Load("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	actual, loaded := m.LoadOrStore("a", 2)
	assert.True(t, loaded)
	assert.Equal(t, 1, actual)

	actual, loaded = m.LoadOrStore("b", 2)
	assert.False(t, loaded)
	assert.Equal(t, 2, actual)
	assert.Equal(t, 2, m.Len())

	assert.True(t, m.Delete("a"))
	assert.False(t, m.Delete("a"))
	assert.Equal(t, 1, m.Len())
}

func TestShardedMap_DeleteIf(t *testing.T) {
	m := NewShardedMap[int](0)
	m.Store("k", 5)

	assert.False(t, m.DeleteIf("k", func(v int) bool { return v == 4 }))
	assert.True(t, m.DeleteIf("k", func(v int) bool { return v == 5 }))
	assert.False(t, m.DeleteIf("missing", func(int) bool { return true }))
}

func TestShardedMap_UpdateIsAtomicPerKey(t *testing.T) {
	m := NewShardedMap[int](8)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Update("counter", func(cur int, _ bool) (int, bool) { return cur + 1, true })
			}
		}()
	}
	wg.Wait()

	v, _ := m.Load("counter")
	assert.Equal(t, 5000, v)

	m.Update("counter", func(int, bool) (int, bool) { return 0, false })
	_, ok := m.Load("counter")
	assert.False(t, ok)
}

func TestShardedMap_LoadOrStoreSingleWinner(t *testing.T) {
	m := NewShardedMap[struct{}](16)
	var winners atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, loaded := m.LoadOrStore("same", struct{}{}); !loaded {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

func TestShardedMap_RangeStops(t *testing.T) {
	m := NewShardedMap[int](4)
	for i := 0; i < 20; i++ {
		m.Store(strconv.Itoa(i), i)
	}

	seen := 0
	m.Range(func(string, int) bool {
		seen++
		return seen < 5
	})
	assert.Equal(t, 5, seen)
}
