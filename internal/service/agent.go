package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github-trend-scout/internal/common"
	"github-trend-scout/internal/domain"
	"github-trend-scout/internal/platform/validate"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MaxQueryLength 单条提问的最大字符数
const MaxQueryLength = 1000

// queryResolver Agent 只依赖 Resolve
type queryResolver interface {
	Resolve(ctx context.Context, rawText string) (*domain.Outcome, error)
}

// Agent 把一次 message/send 请求包装成任务，驱动状态机并渲染 JSON-RPC 响应
type Agent struct {
	resolver queryResolver
	nowFunc  func() time.Time
	newID    func() string
	log      *zerolog.Logger
}

// NewAgent 创建 A2A 入口
func NewAgent(resolver queryResolver, log *zerolog.Logger) *Agent {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Agent{
		resolver: resolver,
		nowFunc:  time.Now,
		newID:    uuid.NewString,
		log:      log,
	}
}

// Handle 处理一个原始请求体，返回 HTTP 状态码和响应信封
func (a *Agent) Handle(ctx context.Context, body []byte) (int, *domain.Response) {
	req, rpcErr := decodeRequest(body)
	if rpcErr != nil {
		return StatusFor(rpcErr.Error.Code), rpcErr
	}

	msg := req.Params.Message
	taskID := msg.TaskID
	if taskID == "" {
		taskID = a.newID()
	}
	contextID := msg.ContextID
	if contextID == "" {
		contextID = a.newID()
	}
	if msg.MessageID == "" {
		msg.MessageID = a.newID()
	}

	task := domain.NewTask(taskID, contextID, msg, a.nowFunc())
	log := a.log.With().Str("task_id", taskID).Logger()

	text := msg.Text()
	switch {
	case text == "":
		return a.fail(req.ID, task, domain.CodeInvalidParams, "message has no text part")
	case utf8.RuneCountInString(text) > MaxQueryLength:
		return a.fail(req.ID, task, domain.CodeInvalidParams,
			fmt.Sprintf("query exceeds %d characters", MaxQueryLength))
	}

	if err := task.Start(a.nowFunc()); err != nil {
		return a.internal(req.ID, err)
	}

	outcome, err := a.resolver.Resolve(ctx, text)
	if err != nil {
		if common.IsCode(err, common.ErrCodeNoDataAvailable) {
			log.Warn().Err(err).Msg("没有可用数据")
			return a.fail(req.ID, task, domain.CodeNoDataAvailable, "no data available")
		}
		log.Error().Err(err).Msg("解析失败")
		return a.fail(req.ID, task, domain.CodeInternalError, "internal error")
	}

	reply := domain.NewTextMessage(domain.RoleAgent, outcome.Text, a.newID(), taskID, contextID)
	if err := task.Complete(reply, a.nowFunc()); err != nil {
		return a.internal(req.ID, err)
	}
	result, err := task.Result()
	if err != nil {
		return a.internal(req.ID, err)
	}

	log.Info().
		Str("parse_source", string(outcome.ParseSource)).
		Str("search_source", string(outcome.SearchSource)).
		Bool("degraded", outcome.Degraded).
		Int("repos", len(outcome.Repos)).
		Msg("任务完成")

	return http.StatusOK, &domain.Response{
		JSONRPC: domain.JSONRPCVersion,
		ID:      req.ID,
		Result:  result,
	}
}

func (a *Agent) fail(id json.RawMessage, task *domain.Task, code int, message string) (int, *domain.Response) {
	if err := task.Fail(code, message, a.nowFunc()); err != nil {
		return a.internal(id, err)
	}
	rpcErr, err := task.RPCError()
	if err != nil {
		return a.internal(id, err)
	}
	return StatusFor(code), &domain.Response{
		JSONRPC: domain.JSONRPCVersion,
		ID:      id,
		Error:   rpcErr,
	}
}

func (a *Agent) internal(id json.RawMessage, err error) (int, *domain.Response) {
	a.log.Error().Err(err).Msg("任务状态异常")
	return http.StatusInternalServerError, domain.NewErrorResponse(id, domain.CodeInternalError, "internal error")
}

// decodeRequest 按顺序校验请求体，失败时直接返回错误信封
func decodeRequest(body []byte) (*domain.Request, *domain.Response) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, domain.NewErrorResponse(nil, domain.CodeInvalidRequest, "empty request body")
	}
	if !json.Valid(body) {
		return nil, domain.NewErrorResponse(nil, domain.CodeParseError, "parse error")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || len(fields) == 0 {
		return nil, domain.NewErrorResponse(nil, domain.CodeInvalidRequest, "request must be a non-empty JSON object")
	}
	id := fields["id"]

	var req domain.Request
	if err := json.Unmarshal(body, &req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, domain.NewErrorResponse(id, domain.CodeInvalidParams,
				fmt.Sprintf("invalid type for field %q", typeErr.Field))
		}
		return nil, domain.NewErrorResponse(id, domain.CodeInvalidRequest, "invalid request")
	}
	req.ID = id

	if req.JSONRPC != domain.JSONRPCVersion {
		return nil, domain.NewErrorResponse(id, domain.CodeInvalidParams, `jsonrpc must be "2.0"`)
	}
	if req.Method != domain.MethodMessageSend {
		return nil, domain.NewErrorResponse(id, domain.CodeMethodNotFound,
			fmt.Sprintf("method %q not found", req.Method))
	}
	if _, message, err := validate.Struct(req.Params); err != nil {
		return nil, domain.NewErrorResponse(id, domain.CodeInvalidParams, message)
	}
	return &req, nil
}

// StatusFor JSON-RPC 错误码对应的 HTTP 状态码
func StatusFor(code int) int {
	switch code {
	case domain.CodeParseError, domain.CodeInvalidRequest, domain.CodeInvalidParams:
		return http.StatusBadRequest
	case domain.CodeMethodNotFound:
		return http.StatusNotFound
	case domain.CodeNoDataAvailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
