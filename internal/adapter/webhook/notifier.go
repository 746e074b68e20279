// Package webhook 把推送内容包装成已完成的 A2A 任务，POST 到外部地址
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github-trend-scout/internal/common"
	"github-trend-scout/internal/domain"

	"github.com/google/uuid"
)

// digestPrompt 推送任务历史里补上的用户消息
const digestPrompt = "scheduled digest"

// Notifier 实现了 port.Notifier 接口
type Notifier struct {
	url     string
	client  *http.Client
	nowFunc func() time.Time
	newID   func() string
}

// NewNotifier 创建推送器，timeout <= 0 时使用 10 秒
func NewNotifier(url string, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		nowFunc: time.Now,
		newID:   uuid.NewString,
	}
}

// Deliver 把文本包装成任务响应后发送，只尝试一次
func (n *Notifier) Deliver(ctx context.Context, text string) error {
	if n.url == "" {
		return common.NewError(common.ErrCodeDeliveryFailed, "未配置 webhook 地址")
	}

	envelope, err := n.envelope(text)
	if err != nil {
		return common.WrapError(common.ErrCodeDeliveryFailed, "构造推送内容失败", err)
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return common.WrapError(common.ErrCodeDeliveryFailed, "序列化推送内容失败", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return common.WrapError(common.ErrCodeDeliveryFailed, "创建请求失败", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return common.WrapError(common.ErrCodeDeliveryFailed, "发送 webhook 请求失败", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return common.NewError(common.ErrCodeDeliveryFailed,
			fmt.Sprintf("webhook 返回异常状态码: %d", resp.StatusCode))
	}
	return nil
}

func (n *Notifier) envelope(text string) (*domain.Response, error) {
	now := n.nowFunc()
	taskID, contextID := n.newID(), n.newID()

	task := domain.NewTask(taskID, contextID,
		domain.NewTextMessage(domain.RoleUser, digestPrompt, n.newID(), taskID, contextID), now)
	if err := task.Start(now); err != nil {
		return nil, err
	}
	reply := domain.NewTextMessage(domain.RoleAgent, text, n.newID(), taskID, contextID)
	if err := task.Complete(reply, now); err != nil {
		return nil, err
	}
	result, err := task.Result()
	if err != nil {
		return nil, err
	}

	id, err := json.Marshal(taskID)
	if err != nil {
		return nil, err
	}
	return &domain.Response{
		JSONRPC: domain.JSONRPCVersion,
		ID:      id,
		Result:  result,
	}, nil
}
