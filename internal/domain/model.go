package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Timeframe 趋势统计的时间窗口
type Timeframe string

const (
	TimeframeDay     Timeframe = "day"
	TimeframeWeek    Timeframe = "week"
	TimeframeMonth   Timeframe = "month"
	TimeframeQuarter Timeframe = "quarter"
	TimeframeYear    Timeframe = "year"
)

// 解析器给不出明确值时使用的默认参数
const (
	DefaultTimeframe = TimeframeWeek
	DefaultMinStars  = 10
	DefaultCount     = 5
	MaxCount         = 20
)

// ParseTimeframe 宽松解析时间窗口，无法识别时返回 false
func ParseTimeframe(s string) (Timeframe, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "daily", "today", "24h":
		return TimeframeDay, true
	case "week", "weekly":
		return TimeframeWeek, true
	case "month", "monthly":
		return TimeframeMonth, true
	case "quarter", "quarterly":
		return TimeframeQuarter, true
	case "year", "yearly", "annual":
		return TimeframeYear, true
	}
	return "", false
}

// Window 时间窗口对应的天数
func (t Timeframe) Window() time.Duration {
	day := 24 * time.Hour
	switch t {
	case TimeframeDay:
		return day
	case TimeframeMonth:
		return 30 * day
	case TimeframeQuarter:
		return 90 * day
	case TimeframeYear:
		return 365 * day
	default:
		return 7 * day
	}
}

// SearchSpec 结构化后的搜索参数
// Keyword / Language 为空表示未指定
type SearchSpec struct {
	Keyword   string    `json:"keyword,omitempty"`
	Language  string    `json:"language,omitempty"`
	Topics    []string  `json:"topics,omitempty"`
	Timeframe Timeframe `json:"timeframe"`
	MinStars  int       `json:"min_stars"`
	Count     int       `json:"count"`
}

// DefaultSearchSpec 只带默认值的搜索参数
func DefaultSearchSpec() SearchSpec {
	return SearchSpec{
		Timeframe: DefaultTimeframe,
		MinStars:  DefaultMinStars,
		Count:     DefaultCount,
	}
}

// Canonical 返回规范化后的副本：小写、去空白、topic 去重排序、补齐默认值
// 对结果再次调用结果不变
func (s SearchSpec) Canonical() SearchSpec {
	out := SearchSpec{
		Keyword:  strings.Join(strings.Fields(strings.ToLower(s.Keyword)), " "),
		Language: strings.ToLower(strings.TrimSpace(s.Language)),
		MinStars: s.MinStars,
		Count:    s.Count,
	}

	if tf, ok := ParseTimeframe(string(s.Timeframe)); ok {
		out.Timeframe = tf
	} else {
		out.Timeframe = DefaultTimeframe
	}

	if out.MinStars < 0 {
		out.MinStars = DefaultMinStars
	}

	switch {
	case out.Count == 0:
		out.Count = DefaultCount
	case out.Count < 1:
		out.Count = 1
	case out.Count > MaxCount:
		out.Count = MaxCount
	}

	for _, t := range s.Topics {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out.Topics = append(out.Topics, t)
		}
	}
	slices.Sort(out.Topics)
	out.Topics = slices.Compact(out.Topics)

	return out
}

// SearchKey search 命名空间下的缓存 key
func (s SearchSpec) SearchKey() string {
	c := s.Canonical()
	return fmt.Sprintf("%skw=%s|lang=%s|topics=%s|tf=%s|stars=%d|count=%d",
		SearchKeyPrefix, c.Keyword, c.Language, strings.Join(c.Topics, ","), c.Timeframe, c.MinStars, c.Count)
}

// Scope 格式化输出标题里的范围描述
func (s SearchSpec) Scope() string {
	var parts []string
	if s.Keyword != "" {
		parts = append(parts, "keyword: "+s.Keyword)
	}
	if s.Language != "" {
		parts = append(parts, "language: "+s.Language)
	}
	if len(s.Topics) > 0 {
		parts = append(parts, "topics: "+strings.Join(s.Topics, ", "))
	}
	parts = append(parts, string(s.Timeframe))
	return strings.Join(parts, ", ")
}

// 两个缓存命名空间的前缀
const (
	ParseKeyPrefix  = "parse:"
	SearchKeyPrefix = "search:"
)

// NormalizeQuery 原始提问的规范化形式：去首尾空白、小写、合并连续空白
func NormalizeQuery(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

// ParseKey parse 命名空间下的缓存 key
func ParseKey(raw string) string {
	return ParseKeyPrefix + NormalizeQuery(raw)
}

// RepositoryRecord GitHub 搜索返回的单个仓库
type RepositoryRecord struct {
	FullName    string `json:"full_name"` // 例如 "gohugoio/hugo"
	Description string `json:"description,omitempty"`
	URL         string `json:"url"`
	Language    string `json:"language,omitempty"`
	Stars       int    `json:"stars"`
}

// Source 结果来源，便于日志观察
type Source string

const (
	SourceCache    Source = "cache"
	SourceUpstream Source = "upstream"
	SourceFallback Source = "fallback"
	SourceStale    Source = "stale"
)

// Outcome 一次解析流水线的结果
type Outcome struct {
	Spec         SearchSpec
	Repos        []RepositoryRecord
	Degraded     bool // 来自过期缓存
	Text         string
	ParseSource  Source
	SearchSource Source
}
