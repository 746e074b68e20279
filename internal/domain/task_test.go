package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTask(now time.Time) *Task {
	req := NewTextMessage(RoleUser, "Trending Rust projects", "msg-1", "", "")
	return NewTask("task-1", "ctx-1", req, now)
}

func TestTask_HappyPath(t *testing.T) {
	now := time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)
	task := newTestTask(now)

	assert.Equal(t, TaskSubmitted, task.State)
	require.Len(t, task.History, 1)
	assert.Equal(t, "task-1", task.History[0].TaskID)

	require.NoError(t, task.Start(now))
	assert.Equal(t, TaskWorking, task.State)

	reply := NewTextMessage(RoleAgent, "Trending on GitHub (week)", "msg-2", "", "")
	require.NoError(t, task.Complete(reply, now.Add(time.Second)))
	assert.Equal(t, TaskCompleted, task.State)
	assert.Equal(t, "Trending on GitHub (week)", task.ResultMessage)
	assert.Zero(t, task.ErrorCode)

	require.Len(t, task.History, 2)
	assert.Equal(t, RoleUser, task.History[0].Role)
	assert.Equal(t, RoleAgent, task.History[1].Role)
	assert.Equal(t, "ctx-1", task.History[1].ContextID)

	res, err := task.Result()
	require.NoError(t, err)
	assert.Equal(t, KindTask, res.Kind)
	assert.Equal(t, "2025-10-01T09:00:01.000Z", res.Status.Timestamp)
	assert.Equal(t, "Trending on GitHub (week)", res.Status.Message.Text())
	assert.NotNil(t, res.Artifacts)
	assert.Len(t, res.History, 2)
}

func TestTask_InvalidTransitions(t *testing.T) {
	now := time.Now()
	reply := NewTextMessage(RoleAgent, "x", "m", "", "")

	tests := []struct {
		name  string
		setup func(*Task)
		act   func(*Task) error
	}{
		{"未开始就完成", func(*Task) {}, func(tk *Task) error { return tk.Complete(reply, now) }},
		{"重复开始", func(tk *Task) { _ = tk.Start(now) }, func(tk *Task) error { return tk.Start(now) }},
		{"完成后失败", func(tk *Task) { _ = tk.Start(now); _ = tk.Complete(reply, now) }, func(tk *Task) error { return tk.Fail(CodeInternalError, "x", now) }},
		{"失败后重启", func(tk *Task) { _ = tk.Fail(CodeInvalidParams, "x", now) }, func(tk *Task) error { return tk.Start(now) }},
		{"失败后完成", func(tk *Task) { _ = tk.Fail(CodeInvalidParams, "x", now) }, func(tk *Task) error { return tk.Complete(reply, now) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := newTestTask(now)
			tt.setup(task)
			before := *task
			historyLen := len(task.History)

			err := tt.act(task)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, before.State, task.State)
			assert.Len(t, task.History, historyLen)
		})
	}
}

func TestTask_FailRendersError(t *testing.T) {
	now := time.Now()
	task := newTestTask(now)
	require.NoError(t, task.Start(now))
	require.NoError(t, task.Fail(CodeNoDataAvailable, "No trending data available", now))

	assert.True(t, task.State.Terminal())
	assert.Len(t, task.History, 1)

	rpcErr, err := task.RPCError()
	require.NoError(t, err)
	assert.Equal(t, CodeNoDataAvailable, rpcErr.Code)
	assert.NotEmpty(t, rpcErr.Data.Suggestion)

	_, err = task.Result()
	assert.Error(t, err)
}

func TestRequest_Decode(t *testing.T) {
	body := `{
		"jsonrpc": "2.0",
		"id": "req-42",
		"method": "message/send",
		"params": {
			"message": {
				"kind": "message",
				"role": "user",
				"parts": [{"kind": "text", "text": " Trending Rust projects "}],
				"messageId": "m-1",
				"taskId": "t-1"
			},
			"configuration": {"blocking": true}
		}
	}`

	var req Request
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	assert.Equal(t, `"req-42"`, string(req.ID))
	assert.Equal(t, "Trending Rust projects", req.Params.Message.Text())
	assert.True(t, req.Params.Configuration.Blocking)
}

func TestErrorResponse_JSONShape(t *testing.T) {
	resp := NewErrorResponse(json.RawMessage(`7`), CodeNoDataAvailable, "No trending data available")
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "2.0", decoded["jsonrpc"])
	assert.EqualValues(t, 7, decoded["id"])
	assert.NotContains(t, decoded, "result")

	errObj := decoded["error"].(map[string]any)
	assert.EqualValues(t, CodeNoDataAvailable, errObj["code"])
	assert.Contains(t, errObj["data"].(map[string]any)["suggestion"], "Try again")
}
