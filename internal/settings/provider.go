package settings

import (
	"strings"

	xerrors "AgentSwap/internal/errors"
)

// 模型服务商标识。
const (
	ProviderOpenAI     = "openai"
	ProviderLlamaCloud = "llama_cloud"
	ProviderTogether   = "together"
	ProviderAnthropic  = "anthropic"
	ProviderRedPill    = "redpill"
	ProviderOpenRouter = "openrouter"
	ProviderGrok       = "grok"
	ProviderHeurist    = "heurist"
	ProviderGroq       = "groq"
)

// CodeTokenNotFound 表示角色所选服务商缺少访问令牌。
const CodeTokenNotFound xerrors.Code = "PROVIDER_TOKEN_NOT_FOUND"

func init() {
	xerrors.Register(CodeTokenNotFound, xerrors.Attributes{
		Message:  "token not found for character",
		Severity: xerrors.SeverityCritical,
	})
}

// ProviderCandidates 返回服务商令牌的查询顺序。character 为角色 secrets，settings 为环境来源。
func ProviderCandidates(provider string, character, settings Source) []Candidate {
	pair := func(keys ...string) []Candidate {
		out := make([]Candidate, 0, len(keys)*2)
		for _, key := range keys {
			out = append(out, Candidate{character, key}, Candidate{settings, key})
		}
		return out
	}

	switch strings.ToLower(strings.TrimSpace(provider)) {
	case ProviderOpenAI:
		return pair("OPENAI_API_KEY")
	case ProviderLlamaCloud, ProviderTogether:
		return pair("LLAMACLOUD_API_KEY", "TOGETHER_API_KEY", "XAI_API_KEY", "OPENAI_API_KEY")
	case ProviderAnthropic, "claude":
		return []Candidate{
			{character, "ANTHROPIC_API_KEY"},
			{character, "CLAUDE_API_KEY"},
			{settings, "ANTHROPIC_API_KEY"},
			{settings, "CLAUDE_API_KEY"},
		}
	case ProviderRedPill:
		return pair("REDPILL_API_KEY")
	case ProviderOpenRouter:
		return []Candidate{{character, "OPENROUTER"}, {settings, "OPENROUTER_API_KEY"}}
	case ProviderGrok:
		return pair("GROK_API_KEY")
	case ProviderHeurist:
		return pair("HEURIST_API_KEY")
	case ProviderGroq:
		return pair("GROQ_API_KEY")
	default:
		return nil
	}
}

// TokenForProvider 解析角色使用的大模型访问令牌。
func TokenForProvider(provider, characterName string, character, settings Source) (string, error) {
	if token, ok := FirstOf(ProviderCandidates(provider, character, settings)...); ok {
		return token, nil
	}
	return "", xerrors.New(CodeTokenNotFound, "token not found for character "+characterName,
		xerrors.WithMetadata("provider", provider))
}
