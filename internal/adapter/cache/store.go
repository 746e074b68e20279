package cache

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxEntries 默认容量
const DefaultMaxEntries = 10000

// Entry 一条缓存记录，写入后不可修改
type Entry struct {
	Value    any
	CachedAt time.Time
	TTL      time.Duration
}

// Fresh now < CachedAt + TTL
func (e *Entry) Fresh(now time.Time) bool {
	return now.Before(e.CachedAt.Add(e.TTL))
}

// Store 进程级 TTL 缓存，实现了 port.CacheStore 接口
// 过期条目不会被主动清理，只在读取时视为 stale；容量满时淘汰最久未写入的条目
type Store struct {
	entries *lru.Cache[string, *Entry]
	nowFunc func() time.Time
}

// Option 配置 Store
type Option func(*Store)

// WithClock 替换时钟，测试用
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.nowFunc = now
	}
}

// NewStore 创建容量为 maxEntries 的缓存，<=0 时使用默认容量
func NewStore(maxEntries int, opts ...Option) (*Store, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	entries, err := lru.New[string, *Entry](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("创建缓存失败: %w", err)
	}

	s := &Store{entries: entries, nowFunc: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get 返回值及其新鲜度；Peek 不刷新 LRU 顺序
func (s *Store) Get(key string) (any, bool, bool) {
	e, ok := s.entries.Peek(key)
	if !ok {
		return nil, false, false
	}
	return e.Value, e.Fresh(s.nowFunc()), true
}

// Put 写入或覆盖，后写者胜
func (s *Store) Put(key string, value any, ttl time.Duration) {
	s.entries.Add(key, &Entry{
		Value:    value,
		CachedAt: s.nowFunc(),
		TTL:      ttl,
	})
}

// GetEvenIfStale 无视过期时间返回最后一次写入的值
func (s *Store) GetEvenIfStale(key string) (any, bool) {
	e, ok := s.entries.Peek(key)
	if !ok {
		return nil, false
	}
	return e.Value, true
}

func (s *Store) Len() int {
	return s.entries.Len()
}

// Purge 清空缓存
func (s *Store) Purge() {
	s.entries.Purge()
}
