package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, size int) (*Store, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)}
	s, err := NewStore(size, WithClock(clock.Now))
	require.NoError(t, err)
	return s, clock
}

func TestStore_GetMissing(t *testing.T) {
	s, _ := newTestStore(t, 10)

	v, fresh, ok := s.Get("search:nothing")
	assert.Nil(t, v)
	assert.False(t, fresh)
	assert.False(t, ok)

	_, ok = s.GetEvenIfStale("search:nothing")
	assert.False(t, ok)
}

func TestStore_FreshThenStale(t *testing.T) {
	s, clock := newTestStore(t, 10)
	s.Put("parse:rust", "spec", time.Hour)

	v, fresh, ok := s.Get("parse:rust")
	assert.True(t, ok)
	assert.True(t, fresh)
	assert.Equal(t, "spec", v)

	clock.Advance(59 * time.Minute)
	_, fresh, _ = s.Get("parse:rust")
	assert.True(t, fresh)

	// 恰好到期即视为过期
	clock.Advance(time.Minute)
	v, fresh, ok = s.Get("parse:rust")
	assert.True(t, ok)
	assert.False(t, fresh)
	assert.Equal(t, "spec", v)

	stale, ok := s.GetEvenIfStale("parse:rust")
	assert.True(t, ok)
	assert.Equal(t, "spec", stale)
	assert.Equal(t, 1, s.Len(), "expired entries are not purged on read")
}

func TestStore_LastWriteWins(t *testing.T) {
	s, clock := newTestStore(t, 10)
	s.Put("search:k", "old", time.Minute)
	clock.Advance(2 * time.Minute)
	s.Put("search:k", "new", time.Minute)

	v, fresh, ok := s.Get("search:k")
	assert.True(t, ok)
	assert.True(t, fresh)
	assert.Equal(t, "new", v)

	// 新鲜度从第二次写入开始计算
	clock.Advance(59 * time.Second)
	_, fresh, _ = s.Get("search:k")
	assert.True(t, fresh)
	clock.Advance(time.Second)
	_, fresh, _ = s.Get("search:k")
	assert.False(t, fresh)
}

func TestStore_EvictsLeastRecentlyWritten(t *testing.T) {
	s, _ := newTestStore(t, 2)
	s.Put("a", 1, time.Hour)
	s.Put("b", 2, time.Hour)

	// 读取不影响淘汰顺序
	_, _, _ = s.Get("a")
	_, _ = s.GetEvenIfStale("a")

	s.Put("c", 3, time.Hour)

	_, _, ok := s.Get("a")
	assert.False(t, ok)
	_, _, ok = s.Get("b")
	assert.True(t, ok)
	_, _, ok = s.Get("c")
	assert.True(t, ok)
}

func TestStore_PrefixesDoNotCollide(t *testing.T) {
	s, _ := newTestStore(t, 10)
	s.Put("parse:x", "spec", time.Hour)
	s.Put("search:x", "repos", time.Hour)

	p, _, _ := s.Get("parse:x")
	r, _, _ := s.Get("search:x")
	assert.Equal(t, "spec", p)
	assert.Equal(t, "repos", r)

	s.Purge()
	assert.Zero(t, s.Len())
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s, _ := newTestStore(t, 1000)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("search:%d", i%20)
				s.Put(key, []int{w, i}, time.Minute)
				if v, _, ok := s.Get(key); ok {
					pair := v.([]int)
					assert.Len(t, pair, 2)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 20, s.Len())
}

func TestNewStore_DefaultCapacity(t *testing.T) {
	s, err := NewStore(0)
	require.NoError(t, err)
	assert.NotNil(t, s.nowFunc)
}
