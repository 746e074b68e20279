package service

import (
	"fmt"
	"strings"

	"github-trend-scout/internal/domain"
)

const (
	staleMarker = " [cached, may be stale]"
	emptyResult = "No repositories matched this query."
)

// FormatTrending 渲染固定模板的结果文本，repos 需已按 stars 降序
func FormatTrending(spec domain.SearchSpec, repos []domain.RepositoryRecord, degraded bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Trending on GitHub (%s)", spec.Scope())
	if degraded {
		b.WriteString(staleMarker)
	}
	b.WriteString("\n\n")

	if len(repos) == 0 {
		b.WriteString(emptyResult)
		return b.String()
	}

	for i, r := range repos {
		if i > 0 {
			b.WriteString("\n\n")
		}
		lang := r.Language
		if lang == "" {
			lang = "Unknown"
		}
		fmt.Fprintf(&b, "%d. %s - %d stars\n", i+1, r.FullName, r.Stars)
		fmt.Fprintf(&b, "   %s - %s\n", lang, r.Description)
		fmt.Fprintf(&b, "   %s", r.URL)
	}
	return b.String()
}
