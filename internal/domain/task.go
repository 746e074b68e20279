package domain

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// TaskState 任务状态
type TaskState string

const (
	TaskSubmitted TaskState = "submitted"
	TaskWorking   TaskState = "working"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
)

// Terminal 是否为终态
func (s TaskState) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

var ErrInvalidTransition = errors.New("invalid task state transition")

// Task 单次请求的任务记录，请求结束即丢弃
// 状态只能 submitted -> working -> completed|failed，终态后不可再修改
type Task struct {
	ID            string
	ContextID     string
	State         TaskState
	ResultMessage string
	ErrorCode     int // 0 表示无错误
	ErrorMessage  string
	History       []Message
	UpdatedAt     time.Time
}

// NewTask 以入站消息创建 submitted 状态的任务
func NewTask(id, contextID string, request Message, now time.Time) *Task {
	request.TaskID = id
	request.ContextID = contextID
	if request.Kind == "" {
		request.Kind = KindMessage
	}
	return &Task{
		ID:        id,
		ContextID: contextID,
		State:     TaskSubmitted,
		History:   []Message{request},
		UpdatedAt: now,
	}
}

func (t *Task) transition(to TaskState, allowed ...TaskState) error {
	if !slices.Contains(allowed, t.State) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.State, to)
	}
	t.State = to
	return nil
}

// Start submitted -> working
func (t *Task) Start(now time.Time) error {
	if err := t.transition(TaskWorking, TaskSubmitted); err != nil {
		return err
	}
	t.UpdatedAt = now
	return nil
}

// Complete working -> completed，回复消息追加到 history
func (t *Task) Complete(reply Message, now time.Time) error {
	if err := t.transition(TaskCompleted, TaskWorking); err != nil {
		return err
	}
	reply.TaskID = t.ID
	reply.ContextID = t.ContextID
	t.ResultMessage = reply.Text()
	t.History = append(t.History, reply)
	t.UpdatedAt = now
	return nil
}

// Fail submitted|working -> failed
func (t *Task) Fail(code int, message string, now time.Time) error {
	if err := t.transition(TaskFailed, TaskSubmitted, TaskWorking); err != nil {
		return err
	}
	t.ErrorCode = code
	t.ErrorMessage = message
	t.UpdatedAt = now
	return nil
}

// Result 渲染已完成任务的 result 部分
func (t *Task) Result() (*TaskResult, error) {
	if t.State != TaskCompleted {
		return nil, fmt.Errorf("task %s is %s, not completed", t.ID, t.State)
	}
	reply := t.History[len(t.History)-1]
	return &TaskResult{
		Kind:      KindTask,
		ID:        t.ID,
		ContextID: t.ContextID,
		Status: TaskStatus{
			State:     t.State,
			Timestamp: FormatTimestamp(t.UpdatedAt),
			Message:   &reply,
		},
		Artifacts: []Artifact{},
		History:   slices.Clone(t.History),
	}, nil
}

// RPCError 渲染失败任务的 error 部分
func (t *Task) RPCError() (*RPCError, error) {
	if t.State != TaskFailed {
		return nil, fmt.Errorf("task %s is %s, not failed", t.ID, t.State)
	}
	return &RPCError{
		Code:    t.ErrorCode,
		Message: t.ErrorMessage,
		Data:    &ErrorData{Suggestion: SuggestionFor(t.ErrorCode)},
	}, nil
}
