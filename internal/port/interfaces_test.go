package port_test

import (
	"testing"

	"github-trend-scout/internal/adapter/cache"
	"github-trend-scout/internal/adapter/feishu"
	"github-trend-scout/internal/adapter/gemini"
	"github-trend-scout/internal/adapter/github"
	"github-trend-scout/internal/adapter/repository"
	"github-trend-scout/internal/adapter/webhook"
	"github-trend-scout/internal/port"

	"github.com/stretchr/testify/assert"
)

// 编译期确保每个适配器都实现了对应的接口
var (
	_ port.Parser        = (*gemini.Parser)(nil)
	_ port.Executor      = (*github.Executor)(nil)
	_ port.CacheStore    = (*cache.Store)(nil)
	_ port.Notifier      = (*webhook.Notifier)(nil)
	_ port.Notifier      = (*feishu.Notifier)(nil)
	_ port.DigestHistory = (*repository.PostgresRepo)(nil)
)

func TestCacheStoreContract(t *testing.T) {
	var store port.CacheStore
	s, err := cache.NewStore(8)
	assert.NoError(t, err)
	store = s

	_, _, ok := store.Get("parse:rust")
	assert.False(t, ok)

	store.Put("parse:rust", "value", 0)
	v, fresh, ok := store.Get("parse:rust")
	assert.True(t, ok)
	assert.False(t, fresh, "ttl 为 0 的条目写入即过期")
	assert.Equal(t, "value", v)

	stale, ok := store.GetEvenIfStale("parse:rust")
	assert.True(t, ok)
	assert.Equal(t, "value", stale)
	assert.Equal(t, 1, store.Len())
}
