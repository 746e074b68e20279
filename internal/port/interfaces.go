package port

import (
	"context"
	"time"

	"github-trend-scout/internal/domain"
)

// Parser (翻译官): 把自然语言提问翻译成结构化搜索参数
// 失败时返回 PARSE_FAILURE，不重试，也不感知缓存
type Parser interface {
	Parse(ctx context.Context, rawText string) (domain.SearchSpec, error)
}

// Executor (侦察兵): 按结构化参数去 GitHub 搜索
// 结果按 stars 降序并截断到 spec.Count，单次调用不重试
type Executor interface {
	Execute(ctx context.Context, spec domain.SearchSpec) ([]domain.RepositoryRecord, error)
}

// CacheStore (仓库管理员): 进程级 TTL 缓存，调用方无需加锁
type CacheStore interface {
	// Get 返回值、是否新鲜、是否存在
	Get(key string) (value any, fresh bool, ok bool)
	Put(key string, value any, ttl time.Duration)
	// GetEvenIfStale 无视过期返回最后一次写入的值
	GetEvenIfStale(key string) (any, bool)
	Len() int
}

// Notifier (信使): 把格式化后的文本推送到外部渠道，只尝试一次
type Notifier interface {
	Deliver(ctx context.Context, text string) error
}

// DigestHistory 定时推送的投递记录
type DigestHistory interface {
	Save(ctx context.Context, record *domain.DigestRecord) error
	Recent(ctx context.Context, limit int) ([]*domain.DigestRecord, error)
}
