package feishu

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github-trend-scout/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockFeishuServer 创建模拟的飞书 Webhook 服务器
func mockFeishuServer(t *testing.T, statusCode int, respBody string, calls *atomic.Int32, validatePayload func(*testing.T, map[string]interface{})) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		// 验证请求方法
		assert.Equal(t, http.MethodPost, r.Method)

		// 验证 Content-Type
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		// 读取并解析请求体
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)

		var payload map[string]interface{}
		err = json.Unmarshal(body, &payload)
		assert.NoError(t, err)

		// 如果提供了验证函数，执行验证
		if validatePayload != nil {
			validatePayload(t, payload)
		}

		// 返回指定的状态码
		w.WriteHeader(statusCode)
		_, _ = w.Write([]byte(respBody))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNotifier_Deliver(t *testing.T) {
	text := "Trending on GitHub (day)\n\n1. tokio-rs/axum - 5200 stars\n   Rust - Ergonomic web framework\n   https://github.com/tokio-rs/axum"

	tests := []struct {
		name            string
		statusCode      int
		respBody        string
		expectError     bool
		validatePayload func(*testing.T, map[string]interface{})
	}{
		{
			name:       "成功发送通知",
			statusCode: http.StatusOK,
			respBody:   `{"code": 0, "msg": "success"}`,
			validatePayload: func(t *testing.T, payload map[string]interface{}) {
				// 验证消息类型
				assert.Equal(t, "text", payload["msg_type"])

				content, ok := payload["content"].(map[string]interface{})
				require.True(t, ok)
				assert.Equal(t, text, content["text"])
			},
		},
		{
			name:        "服务器返回错误",
			statusCode:  http.StatusInternalServerError,
			respBody:    `{"code": 500, "msg": "internal error"}`,
			expectError: true,
		},
		{
			name:        "业务错误码",
			statusCode:  http.StatusOK,
			respBody:    `{"code": 19021, "msg": "sign match fail or timestamp is not within one hour from current time"}`,
			expectError: true,
		},
		{
			name:       "响应体不是 JSON",
			statusCode: http.StatusOK,
			respBody:   `ok`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := mockFeishuServer(t, tt.statusCode, tt.respBody, &calls, tt.validatePayload)

			notifier := NewNotifier(server.URL, time.Second)
			err := notifier.Deliver(context.Background(), text)

			if tt.expectError {
				require.Error(t, err)
				assert.Equal(t, common.ErrCodeDeliveryFailed, common.CodeOf(err))
			} else {
				assert.NoError(t, err)
			}
			// 不重试
			assert.EqualValues(t, 1, calls.Load())
		})
	}
}

func TestNotifier_EmptyWebhook(t *testing.T) {
	err := NewNotifier("", 0).Deliver(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, common.ErrCodeDeliveryFailed, common.CodeOf(err))
}

func TestNotifier_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	err := NewNotifier(server.URL, time.Second).Deliver(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, common.ErrCodeDeliveryFailed, common.CodeOf(err))
}
