package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// ModelClass 选择同一服务商下不同规格的模型。
type ModelClass string

const (
	ModelClassSmall  ModelClass = "small"
	ModelClassMedium ModelClass = "medium"
	ModelClassLarge  ModelClass = "large"
)

// Request 描述一次推理调用。
type Request struct {
	System     string
	Context    string
	ModelClass ModelClass
}

// Client 定义了调用大模型的统一接口。
type Client interface {
	GenerateText(ctx context.Context, req Request) (string, error)
	GenerateObject(ctx context.Context, req Request) (json.RawMessage, error)
}

// ErrNoJSONObject 表示模型输出中找不到 JSON 对象。
var ErrNoJSONObject = errors.New("模型输出中没有 JSON 对象")

// ExtractObject 从模型输出中截取第一个 JSON 对象，兼容 ```json 代码块包裹。
func ExtractObject(output string) (json.RawMessage, error) {
	text := strings.TrimSpace(output)
	if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			text = strings.TrimSpace(rest[:end])
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, ErrNoJSONObject
	}
	candidate := text[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return nil, ErrNoJSONObject
	}
	return json.RawMessage(candidate), nil
}
