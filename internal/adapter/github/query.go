package github

import (
	"fmt"
	"strings"
	"time"

	"github-trend-scout/internal/domain"
)

// 搜索结果固定按 stars 降序
const (
	searchSort  = "stars"
	searchOrder = "desc"
)

// BuildQuery 按固定顺序拼接 GitHub 搜索语句:
// keyword, language:, topic:..., created:>=, stars:>=
func BuildQuery(spec domain.SearchSpec, now time.Time) string {
	var terms []string

	if spec.Keyword != "" {
		terms = append(terms, spec.Keyword)
	}
	if spec.Language != "" {
		terms = append(terms, "language:"+quoteTerm(spec.Language))
	}
	for _, t := range spec.Topics {
		terms = append(terms, "topic:"+quoteTerm(t))
	}

	cutoff := now.Add(-spec.Timeframe.Window())
	terms = append(terms, "created:>="+cutoff.Format("2006-01-02"))
	terms = append(terms, fmt.Sprintf("stars:>=%d", spec.MinStars))

	return strings.Join(terms, " ")
}

// 带空格的限定值需要加引号，例如 language:"visual basic"
func quoteTerm(v string) string {
	if strings.ContainsAny(v, " \t") {
		return `"` + v + `"`
	}
	return v
}
