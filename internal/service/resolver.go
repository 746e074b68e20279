package service

import (
	"context"
	"slices"
	"time"

	"github-trend-scout/internal/common"
	"github-trend-scout/internal/domain"
	"github-trend-scout/internal/port"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ResolverOptions 流水线的缓存时长与上游超时
type ResolverOptions struct {
	ParserTTL     time.Duration
	SearchTTL     time.Duration
	ParseTimeout  time.Duration
	SearchTimeout time.Duration
	// SingleFlight 打开后同一个 key 的并发未命中只调用一次上游
	SingleFlight bool
	Logger       *zerolog.Logger
}

// DefaultResolverOptions 默认配置：解析缓存 24h，搜索缓存 6h
func DefaultResolverOptions() ResolverOptions {
	return ResolverOptions{
		ParserTTL:     24 * time.Hour,
		SearchTTL:     6 * time.Hour,
		ParseTimeout:  15 * time.Second,
		SearchTimeout: 10 * time.Second,
		SingleFlight:  true,
	}
}

// Resolver 解析流水线: parse 缓存 -> parser -> search 缓存 -> executor -> 格式化
type Resolver struct {
	parser   port.Parser // 可以为 nil，此时总是走关键词兜底
	executor port.Executor
	store    port.CacheStore

	parserTTL     time.Duration
	searchTTL     time.Duration
	parseTimeout  time.Duration
	searchTimeout time.Duration

	flights *singleflight.Group
	log     *zerolog.Logger
}

// NewResolver 创建解析流水线
func NewResolver(parser port.Parser, executor port.Executor, store port.CacheStore, opts ResolverOptions) *Resolver {
	log := opts.Logger
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}

	r := &Resolver{
		parser:        parser,
		executor:      executor,
		store:         store,
		parserTTL:     opts.ParserTTL,
		searchTTL:     opts.SearchTTL,
		parseTimeout:  opts.ParseTimeout,
		searchTimeout: opts.SearchTimeout,
		log:           log,
	}
	if opts.SingleFlight {
		r.flights = &singleflight.Group{}
	}
	return r
}

// Resolve 处理一条自然语言提问
func (r *Resolver) Resolve(ctx context.Context, rawText string) (*domain.Outcome, error) {
	spec, parseSource := r.parse(ctx, rawText)

	out, err := r.ResolveSpec(ctx, spec)
	if err != nil {
		return nil, err
	}
	out.ParseSource = parseSource
	return out, nil
}

// ResolveSpec 跳过自然语言解析，直接按结构化参数搜索并格式化，定时推送走这里
func (r *Resolver) ResolveSpec(ctx context.Context, spec domain.SearchSpec) (*domain.Outcome, error) {
	spec = spec.Canonical()
	key := spec.SearchKey()
	out := &domain.Outcome{Spec: spec}

	if repos, ok := r.freshRepos(key); ok {
		out.Repos = repos
		out.SearchSource = domain.SourceCache
	} else {
		v, err := r.do(key, func() (any, error) {
			cctx, cancel := detach(ctx, r.searchTimeout)
			defer cancel()

			repos, err := r.executor.Execute(cctx, spec)
			if err != nil {
				return nil, err
			}
			r.store.Put(key, slices.Clone(repos), r.searchTTL)
			return repos, nil
		})

		switch {
		case err == nil:
			out.Repos = slices.Clone(v.([]domain.RepositoryRecord))
			out.SearchSource = domain.SourceUpstream
		case common.IsUpstreamFailure(err):
			stale, found := r.staleRepos(key)
			if !found {
				r.log.Warn().Err(err).Str("key", key).Msg("搜索失败且没有缓存可用")
				return nil, common.WrapError(common.ErrCodeNoDataAvailable, "GitHub 搜索不可用且没有缓存数据", err)
			}
			r.log.Warn().Err(err).Str("key", key).Msg("搜索失败，返回过期缓存")
			out.Repos = stale
			out.Degraded = true
			out.SearchSource = domain.SourceStale
		default:
			return nil, common.WrapError(common.ErrCodeInternal, "搜索失败", err)
		}
	}

	out.Text = FormatTrending(spec, out.Repos, out.Degraded)
	r.log.Debug().
		Str("key", key).
		Str("search_source", string(out.SearchSource)).
		Int("repos", len(out.Repos)).
		Bool("degraded", out.Degraded).
		Msg("解析完成")
	return out, nil
}

// parse 先查 parse 缓存，未命中再调用 parser；失败时用关键词兜底，兜底结果不写缓存
func (r *Resolver) parse(ctx context.Context, rawText string) (domain.SearchSpec, domain.Source) {
	key := domain.ParseKey(rawText)

	if v, fresh, ok := r.store.Get(key); ok && fresh {
		if spec, ok := v.(domain.SearchSpec); ok {
			return spec.Canonical(), domain.SourceCache
		}
	}

	if r.parser == nil {
		return FallbackSpec(rawText), domain.SourceFallback
	}

	v, err := r.do(key, func() (any, error) {
		cctx, cancel := detach(ctx, r.parseTimeout)
		defer cancel()

		spec, err := r.parser.Parse(cctx, rawText)
		if err != nil {
			return nil, err
		}
		spec = spec.Canonical()
		r.store.Put(key, spec, r.parserTTL)
		return spec, nil
	})
	if err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("解析失败，使用关键词兜底")
		return FallbackSpec(rawText), domain.SourceFallback
	}
	return v.(domain.SearchSpec).Canonical(), domain.SourceUpstream
}

func (r *Resolver) freshRepos(key string) ([]domain.RepositoryRecord, bool) {
	v, fresh, ok := r.store.Get(key)
	if !ok || !fresh {
		return nil, false
	}
	repos, ok := v.([]domain.RepositoryRecord)
	if !ok {
		return nil, false
	}
	return slices.Clone(repos), true
}

func (r *Resolver) staleRepos(key string) ([]domain.RepositoryRecord, bool) {
	v, ok := r.store.GetEvenIfStale(key)
	if !ok {
		return nil, false
	}
	repos, ok := v.([]domain.RepositoryRecord)
	if !ok {
		return nil, false
	}
	return slices.Clone(repos), true
}

// do 按 key 合并并发的上游调用，关闭 single-flight 时直接调用
func (r *Resolver) do(key string, fn func() (any, error)) (any, error) {
	if r.flights == nil {
		return fn()
	}
	v, err, _ := r.flights.Do(key, fn)
	return v, err
}

// detach 上游调用不跟随调用方取消，只受自身超时约束
// 调用方放弃请求时，进行中的上游调用和缓存写入照常完成
func detach(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
