package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github-trend-scout/internal/common"
)

// Notifier 实现了 port.Notifier 接口，通过飞书自定义机器人推送文本消息
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// textMessage 飞书自定义机器人的 text 消息
type textMessage struct {
	MsgType string      `json:"msg_type"`
	Content textContent `json:"content"`
}

type textContent struct {
	Text string `json:"text"`
}

// apiResponse 飞书返回 HTTP 200 时也可能带业务错误码
type apiResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// NewNotifier 创建飞书通知器，timeout <= 0 时使用 10 秒
func NewNotifier(webhook string, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		webhookURL: webhook,
		client:     &http.Client{Timeout: timeout},
	}
}

// Deliver 发送一条文本消息，只尝试一次
func (n *Notifier) Deliver(ctx context.Context, text string) error {
	if n.webhookURL == "" {
		return common.NewError(common.ErrCodeDeliveryFailed, "飞书 Webhook 为空")
	}

	body, err := json.Marshal(textMessage{MsgType: "text", Content: textContent{Text: text}})
	if err != nil {
		return common.WrapError(common.ErrCodeDeliveryFailed, "消息序列化失败", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return common.WrapError(common.ErrCodeDeliveryFailed, "创建请求失败", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return common.WrapError(common.ErrCodeDeliveryFailed, "发送请求失败", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return common.NewError(common.ErrCodeDeliveryFailed,
			fmt.Sprintf("飞书 API 报错: 状态码 %d", resp.StatusCode))
	}

	var result apiResponse
	if len(respBody) > 0 && json.Unmarshal(respBody, &result) == nil && result.Code != 0 {
		return common.NewError(common.ErrCodeDeliveryFailed,
			fmt.Sprintf("飞书 API 报错: code=%d msg=%s", result.Code, result.Msg))
	}
	return nil
}
