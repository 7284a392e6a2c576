// Package character 负责加载与校验代理角色配置。
package character

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	xerrors "AgentSwap/internal/errors"

	"github.com/google/uuid"
)

// CodeInvalidCharacter 表示角色配置不合法。
const CodeInvalidCharacter xerrors.Code = "INVALID_CHARACTER"

func init() {
	xerrors.Register(CodeInvalidCharacter, xerrors.Attributes{
		Message:  "invalid character configuration",
		Severity: xerrors.SeverityCritical,
	})
}

// Character 描述一个代理的人设、所用模型与启用的客户端/插件。
type Character struct {
	ID            string   `json:"id,omitempty"`
	Name          string   `json:"name"`
	Username      string   `json:"username,omitempty"`
	ModelProvider string   `json:"modelProvider"`
	Clients       []string `json:"clients"`
	Plugins       []string `json:"plugins"`
	Settings      Settings `json:"settings"`
	System        string   `json:"system,omitempty"`
	Bio           Lines    `json:"bio"`
	Lore          Lines    `json:"lore"`
	Knowledge     Lines    `json:"knowledge"`
	Topics        []string `json:"topics,omitempty"`
	Adjectives    []string `json:"adjectives,omitempty"`
}

// Settings 为角色级别的配置，secrets 优先于环境变量。
type Settings struct {
	Secrets map[string]string `json:"secrets,omitempty"`
	Model   string            `json:"model,omitempty"`
}

// Lines 兼容单个字符串或字符串数组两种写法。
type Lines []string

// UnmarshalJSON 实现 json.Unmarshaler。
func (l *Lines) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*l = nil
		} else {
			*l = Lines{single}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return errors.New("期望字符串或字符串数组")
	}
	*l = many
	return nil
}

// String 以换行拼接所有条目。
func (l Lines) String() string {
	return strings.Join(l, "\n")
}

// IDFromName 基于名称生成稳定的 UUIDv5。
func IDFromName(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// Normalize 填充缺省字段。
func (c *Character) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	if c.ID == "" {
		c.ID = IDFromName(c.Name)
	}
	if c.Username == "" {
		c.Username = c.Name
	}
	if c.ModelProvider == "" {
		c.ModelProvider = "openai"
	}
	c.ModelProvider = strings.ToLower(c.ModelProvider)
	for i, client := range c.Clients {
		c.Clients[i] = strings.ToLower(strings.TrimSpace(client))
	}
	if c.Settings.Secrets == nil {
		c.Settings.Secrets = map[string]string{}
	}
}

// Validate 检查角色配置的必填字段。
func (c *Character) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return xerrors.New(CodeInvalidCharacter, "角色缺少 name 字段")
	}
	if _, err := uuid.Parse(c.ID); c.ID != "" && err != nil {
		return xerrors.Wrap(CodeInvalidCharacter, err, fmt.Sprintf("角色 %s 的 id 不是合法 UUID", c.Name))
	}
	seen := make(map[string]struct{}, len(c.Plugins))
	for _, plugin := range c.Plugins {
		if strings.TrimSpace(plugin) == "" {
			return xerrors.New(CodeInvalidCharacter, fmt.Sprintf("角色 %s 含有空插件名", c.Name))
		}
		if _, ok := seen[plugin]; ok {
			return xerrors.New(CodeInvalidCharacter, fmt.Sprintf("角色 %s 重复声明插件 %s", c.Name, plugin))
		}
		seen[plugin] = struct{}{}
	}
	return nil
}

// Default 返回未指定角色文件时使用的默认角色。
func Default() Character {
	c := Character{
		Name:          "Swapper",
		ModelProvider: "openai",
		Clients:       []string{"direct"},
		Plugins:       []string{"evm"},
		System:        "You are an on-chain assistant that executes token swaps for the user.",
		Bio:           Lines{"A concise assistant that trades tokens on EVM chains."},
		Lore:          Lines{"Always confirms the chain before swapping."},
	}
	c.Normalize()
	return c
}
