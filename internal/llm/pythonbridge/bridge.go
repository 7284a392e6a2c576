package pythonbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	xerrors "AgentSwap/internal/errors"
	"AgentSwap/internal/llm"
)

// Client 每次推理启动一个 Python 子进程，通过 stdin/stdout 交换一行 JSON。
type Client struct {
	pythonExec string
	scriptPath string
	workingDir string
}

var _ llm.Client = (*Client)(nil)

// bridgeRequest 写入脚本 stdin。mode 为 text 或 object。
type bridgeRequest struct {
	Mode       string `json:"mode"`
	System     string `json:"system"`
	Context    string `json:"context"`
	ModelClass string `json:"model_class"`
}

// bridgeResponse 由脚本写到 stdout；error 非空视为推理失败。
type bridgeResponse struct {
	Text   string          `json:"text"`
	Object json.RawMessage `json:"object,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// NewClient 创建 Python Bridge 客户端，pythonExec 为空时使用 python3。
func NewClient(pythonExec, scriptPath, workingDir string) (*Client, error) {
	if strings.TrimSpace(scriptPath) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "未指定 Python 脚本路径")
	}
	if pythonExec == "" {
		pythonExec = "python3"
	}
	return &Client{pythonExec: pythonExec, scriptPath: scriptPath, workingDir: workingDir}, nil
}

// GenerateText 返回脚本输出的 text 字段。
func (c *Client) GenerateText(ctx context.Context, req llm.Request) (string, error) {
	resp, err := c.call(ctx, "text", req)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// GenerateObject 优先使用脚本返回的 object 字段，否则从 text 中截取 JSON 对象。
func (c *Client) GenerateObject(ctx context.Context, req llm.Request) (json.RawMessage, error) {
	resp, err := c.call(ctx, "object", req)
	if err != nil {
		return nil, err
	}
	if len(resp.Object) > 0 && json.Valid(resp.Object) {
		return resp.Object, nil
	}
	return llm.ExtractObject(resp.Text)
}

func (c *Client) call(ctx context.Context, mode string, req llm.Request) (*bridgeResponse, error) {
	input, err := json.Marshal(bridgeRequest{
		Mode:       mode,
		System:     req.System,
		Context:    req.Context,
		ModelClass: string(req.ModelClass),
	})
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.pythonExec, c.scriptPath)
	cmd.Dir = c.workingDir
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, xerrors.Wrap(xerrors.CodeTimeout, ctx.Err(), "Python 脚本执行超时")
		}
		return nil, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "执行 Python 脚本失败",
			xerrors.WithMetadata("stderr", strings.TrimSpace(stderr.String())))
	}

	var resp bridgeResponse
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &resp); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "解析 Python 输出失败")
	}
	if resp.Error != "" {
		return nil, xerrors.New(xerrors.CodeUpstreamFailure, "Python 脚本返回错误: "+resp.Error)
	}
	return &resp, nil
}

// ResolveScriptPath 将相对脚本路径解析到工作目录下。
func ResolveScriptPath(baseDir, script string) string {
	if script == "" || baseDir == "" || filepath.IsAbs(script) {
		return script
	}
	return filepath.Join(baseDir, script)
}
