package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github-trend-scout/internal/common"
	"github-trend-scout/internal/domain"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultSystemPrompt 没有配置提示词文件时使用
const DefaultSystemPrompt = `You convert questions about trending GitHub repositories into search parameters.
Reply with a single JSON object and nothing else. Fields:
- keyword: free-text search words that are not a language, topic or time range, or null
- language: the main programming language mentioned (lowercase, e.g. "rust", "go", "python"), or null
- topics: GitHub topics mentioned (lowercase, hyphenated, e.g. "machine-learning"), or []
- timeframe: one of "day", "week", "month", "quarter", "year"; "today" means "day"; default "week"
- min_stars: minimum stars if the user asks for one, default 10
- count: how many repositories the user wants, 1 to 20, default 5`

// contentGenerator 抽象出 genai 的调用，便于测试替换
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Parser 实现了 port.Parser 接口
type Parser struct {
	client *genai.Client
	model  contentGenerator
}

// llmParams 接收 LLM 返回的 JSON，指针字段用来区分"未给出"和零值
type llmParams struct {
	Keyword   *string  `json:"keyword"`
	Language  *string  `json:"language"`
	Topics    []string `json:"topics"`
	Timeframe *string  `json:"timeframe"`
	MinStars  *int     `json:"min_stars"`
	Count     *int     `json:"count"`
}

// NewParser 初始化 Gemini 客户端，systemPrompt 为空时使用默认提示词
func NewParser(ctx context.Context, apiKey, model, systemPrompt string) (*Parser, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("初始化 Gemini 客户端失败: %w", err)
	}

	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}

	m := client.GenerativeModel(model)
	// 强制要求返回 JSON，降低解析错误的概率
	m.ResponseMIMEType = "application/json"
	m.ResponseSchema = searchSpecSchema()
	m.SetTemperature(0)
	m.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))

	return &Parser{client: client, model: m}, nil
}

// LoadPrompt 读取提示词文件，path 为空时返回默认提示词
func LoadPrompt(path string) (string, error) {
	if path == "" {
		return DefaultSystemPrompt, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("读取提示词文件失败: %w", err)
	}
	return string(b), nil
}

func searchSpecSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"keyword":  {Type: genai.TypeString, Nullable: true},
			"language": {Type: genai.TypeString, Nullable: true},
			"topics": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
			"timeframe": {
				Type: genai.TypeString,
				Enum: []string{"day", "week", "month", "quarter", "year"},
			},
			"min_stars": {Type: genai.TypeInteger},
			"count":     {Type: genai.TypeInteger},
		},
		Required: []string{"timeframe"},
	}
}

// Close 释放底层连接
func (p *Parser) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

// Parse 调用 Gemini 把提问翻译成 SearchSpec，任何失败都归为 PARSE_FAILURE
func (p *Parser) Parse(ctx context.Context, rawText string) (domain.SearchSpec, error) {
	resp, err := p.model.GenerateContent(ctx, genai.Text(fmt.Sprintf("Query: %q", rawText)))
	if err != nil {
		return domain.SearchSpec{}, common.WrapError(common.ErrCodeParseFailure, "AI 调用失败", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return domain.SearchSpec{}, common.NewError(common.ErrCodeParseFailure, "AI 返回内容为空")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return domain.SearchSpec{}, common.NewError(common.ErrCodeParseFailure, "AI 返回格式错误")
	}

	return decodeSearchSpec(sb.String())
}

// decodeSearchSpec 从 LLM 原文中抠出 JSON 并补齐默认值
// 即使返回 "```json { ... } ```" 也能取出中间的 { ... }
func decodeSearchSpec(raw string) (domain.SearchSpec, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end <= start {
		return domain.SearchSpec{}, common.NewError(common.ErrCodeParseFailure,
			fmt.Sprintf("无法提取 JSON, AI 原文: %s", raw))
	}

	var res llmParams
	if err := json.Unmarshal([]byte(raw[start:end+1]), &res); err != nil {
		return domain.SearchSpec{}, common.WrapError(common.ErrCodeParseFailure, "JSON 解析失败", err)
	}

	spec := domain.DefaultSearchSpec()
	if res.Keyword != nil {
		spec.Keyword = *res.Keyword
	}
	if res.Language != nil {
		spec.Language = *res.Language
	}
	spec.Topics = res.Topics
	if res.Timeframe != nil {
		if tf, ok := domain.ParseTimeframe(*res.Timeframe); ok {
			spec.Timeframe = tf
		}
	}
	if res.MinStars != nil && *res.MinStars >= 0 {
		spec.MinStars = *res.MinStars
	}
	if res.Count != nil && *res.Count > 0 {
		spec.Count = *res.Count
	}

	// LLM 有时把 "none"/"any" 当作语言返回
	switch strings.ToLower(strings.TrimSpace(spec.Language)) {
	case "none", "any", "null", "all":
		spec.Language = ""
	}

	return spec.Canonical(), nil
}
