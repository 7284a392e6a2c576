package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	xerrors "AgentSwap/internal/errors"
	"AgentSwap/pkg/logger"
)

// Channel 表示通知渠道。
type Channel string

// 支持的通知渠道
const (
	ChannelLog     Channel = "log"
	ChannelWebhook Channel = "webhook"
)

// Event 描述一次需要告警的事件。
type Event struct {
	Code       xerrors.Code      `json:"code"`
	Message    string            `json:"message"`
	Severity   xerrors.Severity  `json:"severity"`
	AgentID    string            `json:"agent_id,omitempty"`
	TaskID     string            `json:"task_id,omitempty"`
	Attempts   int               `json:"attempts"`
	MaxRetries int               `json:"max_retries"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Summary 返回单行的告警描述。
func (e Event) Summary() string {
	return fmt.Sprintf("[%s] %s 任务 %s (重试 %d/%d): %s",
		e.Severity, e.Code, e.TaskID, e.Attempts, e.MaxRetries, e.Message)
}

// Notifier 负责将事件发送到指定渠道。
type Notifier interface {
	Channel() Channel
	Notify(ctx context.Context, event Event) error
}

// Dispatcher 将事件广播给多个通知器。
type Dispatcher interface {
	Notify(ctx context.Context, event Event) error
}

// FanoutDispatcher 实现将事件投递到多个通知器的逻辑。
type FanoutDispatcher struct {
	notifiers map[Channel]Notifier
}

// NewFanout 创建一个新的 FanoutDispatcher，同一渠道只保留最后一个通知器。
func NewFanout(notifiers ...Notifier) *FanoutDispatcher {
	set := make(map[Channel]Notifier, len(notifiers))
	for _, n := range notifiers {
		if n == nil {
			continue
		}
		set[n.Channel()] = n
	}
	return &FanoutDispatcher{notifiers: set}
}

// Notify 将事件广播至所有注册渠道。
func (d *FanoutDispatcher) Notify(ctx context.Context, event Event) error {
	if d == nil {
		return nil
	}
	var errs []error
	for _, notifier := range d.notifiers {
		if err := notifier.Notify(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", notifier.Channel(), err))
		}
	}
	return errors.Join(errs...)
}

// LogNotifier 将告警写入日志，严重级别映射为日志级别。
type LogNotifier struct {
	Logger *slog.Logger
}

// Channel 返回日志渠道。
func (n *LogNotifier) Channel() Channel { return ChannelLog }

// Notify 写入一条日志。
func (n *LogNotifier) Notify(ctx context.Context, event Event) error {
	l := logger.Named("alerting")
	if n != nil && n.Logger != nil {
		l = n.Logger
	}
	level := slog.LevelWarn
	switch event.Severity {
	case xerrors.SeverityInfo:
		level = slog.LevelInfo
	case xerrors.SeverityCritical:
		level = slog.LevelError
	}
	attrs := []slog.Attr{
		slog.String("code", string(event.Code)),
		slog.String("agent_id", event.AgentID),
		slog.String("task_id", event.TaskID),
		slog.Int("attempts", event.Attempts),
		slog.Int("max_retries", event.MaxRetries),
	}
	for k, v := range event.Metadata {
		attrs = append(attrs, slog.String(k, v))
	}
	l.LogAttrs(ctx, level, event.Message, attrs...)
	return nil
}

// WebhookNotifier 以 JSON 形式 POST 告警，兼容 Slack incoming webhook 的 text 字段。
type WebhookNotifier struct {
	URL    string
	Client *http.Client
}

// Channel 返回 webhook 渠道。
func (n *WebhookNotifier) Channel() Channel { return ChannelWebhook }

// Notify 发送 webhook 请求。
func (n *WebhookNotifier) Notify(ctx context.Context, event Event) error {
	if n == nil || strings.TrimSpace(n.URL) == "" {
		logger.L().Warn("WebhookNotifier 未正确配置，跳过发送", slog.String("task_id", event.TaskID))
		return nil
	}
	payload, err := json.Marshal(struct {
		Text  string `json:"text"`
		Event Event  `json:"event"`
	}{Text: event.Summary(), Event: event})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := n.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook 返回状态码 %d", resp.StatusCode)
	}
	return nil
}
