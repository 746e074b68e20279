package domain

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	JSONRPCVersion    = "2.0"
	MethodMessageSend = "message/send"

	RoleUser  = "user"
	RoleAgent = "agent"

	KindText    = "text"
	KindMessage = "message"
	KindTask    = "task"
)

// JSON-RPC 错误码，对调用方可见，版本间保持稳定
const (
	CodeParseError      = -32700
	CodeInvalidRequest  = -32600
	CodeMethodNotFound  = -32601
	CodeInvalidParams   = -32602
	CodeInternalError   = -32603
	CodeNoDataAvailable = -32000
)

// SuggestionFor 每个错误码附带的提示语
func SuggestionFor(code int) string {
	switch code {
	case CodeParseError:
		return "Send a valid JSON-RPC 2.0 request body."
	case CodeInvalidRequest:
		return "The request body must be a non-empty JSON-RPC 2.0 object."
	case CodeMethodNotFound:
		return "Use the \"message/send\" method."
	case CodeInvalidParams:
		return "Include a user message with at least one non-empty text part."
	case CodeNoDataAvailable:
		return "GitHub search is temporarily unavailable. Try again in a few minutes."
	default:
		return "Try again later."
	}
}

// Part 消息片段，目前只处理 text 类型
type Part struct {
	Kind string          `json:"kind" validate:"required"`
	Text string          `json:"text,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Message A2A 消息
type Message struct {
	Kind      string `json:"kind,omitempty"`
	Role      string `json:"role" validate:"required,oneof=user agent"`
	Parts     []Part `json:"parts" validate:"required,min=1,dive"`
	MessageID string `json:"messageId,omitempty"`
	TaskID    string `json:"taskId,omitempty"`
	ContextID string `json:"contextId,omitempty"`
}

// Text 拼接所有非空 text 片段
func (m Message) Text() string {
	var texts []string
	for _, p := range m.Parts {
		if p.Kind == KindText && strings.TrimSpace(p.Text) != "" {
			texts = append(texts, strings.TrimSpace(p.Text))
		}
	}
	return strings.Join(texts, "\n")
}

// NewTextMessage 构造只含一个 text 片段的消息
func NewTextMessage(role, text, messageID, taskID, contextID string) Message {
	return Message{
		Kind:      KindMessage,
		Role:      role,
		Parts:     []Part{{Kind: KindText, Text: text}},
		MessageID: messageID,
		TaskID:    taskID,
		ContextID: contextID,
	}
}

type Configuration struct {
	Blocking            bool     `json:"blocking"`
	AcceptedOutputModes []string `json:"acceptedOutputModes,omitempty"`
}

type MessageSendParams struct {
	Message       Message        `json:"message" validate:"required"`
	Configuration *Configuration `json:"configuration,omitempty"`
}

// Request 入站 JSON-RPC 请求
type Request struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method" validate:"required"`
	Params  MessageSendParams `json:"params" validate:"required"`
}

// Response 出站 JSON-RPC 响应，Result 与 Error 二选一
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  *TaskResult     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type TaskResult struct {
	Kind      string     `json:"kind"`
	ID        string     `json:"id"`
	ContextID string     `json:"contextId"`
	Status    TaskStatus `json:"status"`
	Artifacts []Artifact `json:"artifacts"`
	History   []Message  `json:"history"`
}

type TaskStatus struct {
	State     TaskState `json:"state"`
	Timestamp string    `json:"timestamp"`
	Message   *Message  `json:"message,omitempty"`
}

type Artifact struct {
	ArtifactID string `json:"artifactId"`
	Name       string `json:"name"`
	Parts      []Part `json:"parts"`
}

type RPCError struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

type ErrorData struct {
	Suggestion string `json:"suggestion"`
}

// NewErrorResponse 构造错误响应
func NewErrorResponse(id json.RawMessage, code int, message string) *Response {
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &RPCError{
			Code:    code,
			Message: message,
			Data:    &ErrorData{Suggestion: SuggestionFor(code)},
		},
	}
}

// FormatTimestamp RFC3339 毫秒精度 UTC 时间
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
