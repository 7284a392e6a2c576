package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	xerrors "AgentSwap/internal/errors"
	"AgentSwap/internal/llm"
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultModelName = "gpt-4o"
	defaultSmallName = "gpt-4o-mini"
	defaultTimeout   = 60 * time.Second
)

// 兼容 Chat Completions 协议的服务商入口。
var providerEndpoints = map[string]string{
	"openai":      defaultBaseURL,
	"groq":        "https://api.groq.com/openai/v1",
	"openrouter":  "https://openrouter.ai/api/v1",
	"grok":        "https://api.x.ai/v1",
	"redpill":     "https://api.red-pill.ai/v1",
	"heurist":     "https://llm-gateway.heurist.xyz",
	"together":    "https://api.together.xyz/v1",
	"llama_cloud": "https://api.together.xyz/v1",
	"anthropic":   "https://api.anthropic.com/v1",
}

// EndpointFor 返回服务商的默认 API 地址，未知服务商回退到 OpenAI。
func EndpointFor(provider string) string {
	if endpoint, ok := providerEndpoints[strings.ToLower(strings.TrimSpace(provider))]; ok {
		return endpoint
	}
	return defaultBaseURL
}

// Config 描述了调用 Chat Completions API 所需的信息。
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	SmallModel string
	Timeout    time.Duration
}

// Client 通过 HTTP 调用 OpenAI 兼容的大模型服务。
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	smallModel string
	httpClient *http.Client
}

var _ llm.Client = (*Client)(nil)

// NewClient 根据配置创建客户端。
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("未提供模型服务 API Key")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModelName
	}
	smallModel := strings.TrimSpace(cfg.SmallModel)
	if smallModel == "" {
		smallModel = defaultSmallName
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		smallModel: smallModel,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// GenerateText 返回模型的原始文本回复。
func (c *Client) GenerateText(ctx context.Context, req llm.Request) (string, error) {
	payload, err := c.buildPayload(req)
	if err != nil {
		return "", err
	}

	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("构建模型请求失败: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "请求模型服务失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", xerrors.New(xerrors.CodeUpstreamFailure,
			fmt.Sprintf("模型服务返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
			xerrors.WithRetryable(resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests))
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("解析模型响应失败: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("模型响应中没有有效的 choices")
	}

	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("模型响应内容为空")
	}
	return content, nil
}

// GenerateObject 要求模型输出 JSON 对象并将其截取出来。
func (c *Client) GenerateObject(ctx context.Context, req llm.Request) (json.RawMessage, error) {
	if strings.TrimSpace(req.System) == "" {
		req.System = objectSystemPrompt
	}
	text, err := c.GenerateText(ctx, req)
	if err != nil {
		return nil, err
	}
	obj, err := llm.ExtractObject(text)
	if err != nil {
		return nil, fmt.Errorf("解析模型输出失败: %w", err)
	}
	return obj, nil
}

func (c *Client) modelFor(class llm.ModelClass) string {
	if class == llm.ModelClassSmall {
		return c.smallModel
	}
	return c.model
}

func (c *Client) buildPayload(req llm.Request) ([]byte, error) {
	type message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	messages := make([]message, 0, 2)
	if system := strings.TrimSpace(req.System); system != "" {
		messages = append(messages, message{Role: "system", Content: system})
	}
	messages = append(messages, message{Role: "user", Content: req.Context})

	body := map[string]any{
		"model":       c.modelFor(req.ModelClass),
		"messages":    messages,
		"temperature": 0.2,
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("序列化模型请求失败: %w", err)
	}
	return encoded, nil
}

const objectSystemPrompt = "Respond only with a single JSON object inside a ```json code block. Do not add commentary."
