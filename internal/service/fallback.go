package service

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github-trend-scout/internal/domain"
)

// 兜底解析时丢弃的词
var stopWords = map[string]struct{}{
	"a": {}, "about": {}, "all": {}, "an": {}, "and": {}, "any": {}, "are": {}, "best": {},
	"by": {}, "can": {}, "find": {}, "for": {}, "from": {}, "get": {}, "github": {},
	"give": {}, "hot": {}, "i": {}, "in": {}, "is": {}, "last": {}, "latest": {},
	"list": {}, "me": {}, "most": {}, "new": {}, "of": {}, "on": {}, "or": {}, "past": {},
	"please": {}, "popular": {}, "project": {}, "projects": {}, "repo": {}, "repos": {},
	"repositories": {}, "repository": {}, "show": {}, "some": {}, "starred": {}, "stars": {},
	"that": {}, "the": {}, "this": {}, "to": {}, "top": {}, "trending": {}, "using": {},
	"what": {}, "which": {}, "with": {}, "written": {},
}

// 常见语言的别名，值是 GitHub language: 限定词使用的名字
var knownLanguages = map[string]string{
	"bash": "shell", "c": "c", "c#": "c#", "c++": "c++", "clojure": "clojure", "cpp": "c++",
	"csharp": "c#", "css": "css", "dart": "dart", "elixir": "elixir", "erlang": "erlang",
	"go": "go", "golang": "go", "haskell": "haskell", "html": "html", "java": "java",
	"javascript": "javascript", "js": "javascript", "julia": "julia", "kotlin": "kotlin",
	"lua": "lua", "nim": "nim", "nix": "nix", "ocaml": "ocaml", "perl": "perl", "php": "php",
	"python": "python", "ruby": "ruby", "rust": "rust", "scala": "scala", "shell": "shell",
	"solidity": "solidity", "swift": "swift", "ts": "typescript", "typescript": "typescript",
	"vue": "vue", "zig": "zig",
}

// FallbackSpec 不依赖 LLM 的关键词提取
// 去掉停用词后，第一个语言词作为 language，时间词决定 timeframe，"top N" 决定 count，
// 剩下的词（单个字母除外）用空格拼成 keyword
func FallbackSpec(rawText string) domain.SearchSpec {
	spec := domain.DefaultSearchSpec()

	tokens := strings.FieldsFunc(strings.ToLower(rawText), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#' && r != '-'
	})

	var keywords []string
	for i, tok := range tokens {
		tok = strings.Trim(tok, "-")
		if tok == "" {
			continue
		}

		if n, err := strconv.Atoi(tok); err == nil {
			if i > 0 && tokens[i-1] == "top" && n > 0 {
				spec.Count = n
			}
			continue
		}
		if tf, ok := domain.ParseTimeframe(tok); ok {
			spec.Timeframe = tf
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if lang, ok := knownLanguages[tok]; ok {
			if spec.Language == "" {
				spec.Language = lang
			}
			continue
		}
		if utf8.RuneCountInString(tok) == 1 {
			continue
		}
		keywords = append(keywords, tok)
	}

	spec.Keyword = strings.Join(keywords, " ")
	return spec.Canonical()
}
