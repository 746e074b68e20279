package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github-trend-scout/internal/common"
	"github-trend-scout/internal/domain"

	"github.com/google/go-github/v53/github"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

// Executor 实现了 port.Executor 接口
type Executor struct {
	client    *github.Client
	nowFunc   func() time.Time
	maxFanOut int // topic 拆分搜索时的最大并发数
	log       *zerolog.Logger
}

// NewExecutor 初始化 GitHub 客户端
// token 为空时匿名访问，限制 60 次/小时；baseURL 为空时使用 api.github.com
func NewExecutor(token, baseURL string, log *zerolog.Logger) (*Executor, error) {
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		httpClient = oauth2.NewClient(context.Background(), ts)
	}
	client := github.NewClient(httpClient)

	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("GitHub API 地址无效: %w", err)
		}
		client.BaseURL = u
	}

	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}

	return &Executor{
		client:    client,
		nowFunc:   time.Now,
		maxFanOut: 3,
		log:       log,
	}, nil
}

// SetMaxFanOut 设置 topic 拆分搜索的并发数
func (e *Executor) SetMaxFanOut(n int) {
	if n > 0 {
		e.maxFanOut = n
	}
}

// Execute 单次搜索，结果按 stars 降序并截断到 spec.Count
// 多个 topic 合并搜索没有结果时，逐个 topic 搜索后合并去重
func (e *Executor) Execute(ctx context.Context, spec domain.SearchSpec) ([]domain.RepositoryRecord, error) {
	spec = spec.Canonical()

	repos, err := e.search(ctx, spec)
	if err != nil {
		return nil, err
	}

	if len(repos) == 0 && len(spec.Topics) > 1 {
		e.log.Debug().Strs("topics", spec.Topics).Msg("组合 topic 无结果，改为逐个 topic 搜索")
		repos, err = e.searchEachTopic(ctx, spec)
		if err != nil {
			return nil, err
		}
	}

	return rankAndTrim(repos, spec.Count), nil
}

func (e *Executor) search(ctx context.Context, spec domain.SearchSpec) ([]domain.RepositoryRecord, error) {
	query := BuildQuery(spec, e.nowFunc())
	opts := &github.SearchOptions{
		Sort:  searchSort,
		Order: searchOrder,
		ListOptions: github.ListOptions{
			PerPage: spec.Count,
		},
	}

	result, _, err := e.client.Search.Repositories(ctx, query, opts)
	if err != nil {
		return nil, classifyError(err)
	}
	if result == nil {
		return nil, common.NewError(common.ErrCodeMalformedResponse, "GitHub 返回空响应")
	}

	e.log.Debug().Str("query", query).Int("total", result.GetTotal()).Msg("GitHub 搜索完成")

	repos := make([]domain.RepositoryRecord, 0, len(result.Repositories))
	for _, item := range result.Repositories {
		if item == nil {
			continue
		}
		repos = append(repos, domain.RepositoryRecord{
			FullName:    item.GetFullName(),
			Description: item.GetDescription(),
			URL:         item.GetHTMLURL(),
			Language:    item.GetLanguage(),
			Stars:       item.GetStargazersCount(),
		})
	}
	return repos, nil
}

// searchEachTopic 逐个 topic 搜索并合并；任意一个 topic 失败都返回该错误，不返回残缺结果
func (e *Executor) searchEachTopic(ctx context.Context, spec domain.SearchSpec) ([]domain.RepositoryRecord, error) {
	var (
		mu     sync.Mutex
		merged []domain.RepositoryRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxFanOut)
	for _, topic := range spec.Topics {
		topic := topic
		single := spec
		single.Topics = []string{topic}
		g.Go(func() error {
			repos, err := e.search(gctx, single)
			if err != nil {
				e.log.Warn().Err(err).Str("topic", topic).Msg("topic 搜索失败")
				return err
			}
			mu.Lock()
			merged = append(merged, repos...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return merged, nil
}

// rankAndTrim 按 full name 去重、stars 降序稳定排序并截断
func rankAndTrim(repos []domain.RepositoryRecord, count int) []domain.RepositoryRecord {
	seen := make(map[string]struct{}, len(repos))
	out := make([]domain.RepositoryRecord, 0, len(repos))
	for _, r := range repos {
		key := strings.ToLower(r.FullName)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Stars > out[j].Stars
	})

	if count > 0 && len(out) > count {
		out = out[:count]
	}
	return out
}

// classifyError 把 go-github 的错误映射为 RATE_LIMITED / MALFORMED_RESPONSE / UPSTREAM_UNAVAILABLE
func classifyError(err error) error {
	var (
		rateErr   *github.RateLimitError
		abuseErr  *github.AbuseRateLimitError
		respErr   *github.ErrorResponse
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)

	switch {
	case errors.As(err, &rateErr), errors.As(err, &abuseErr):
		return common.WrapError(common.ErrCodeRateLimited, "GitHub API 配额耗尽", err)
	case errors.As(err, &respErr) && respErr.Response != nil &&
		respErr.Response.StatusCode == http.StatusTooManyRequests:
		return common.WrapError(common.ErrCodeRateLimited, "GitHub API 配额耗尽", err)
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.Is(err, io.ErrUnexpectedEOF):
		return common.WrapError(common.ErrCodeMalformedResponse, "GitHub 响应无法解析", err)
	default:
		return common.WrapError(common.ErrCodeUpstreamUnavailable, "GitHub API 调用失败", err)
	}
}
