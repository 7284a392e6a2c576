package agent

import (
	"regexp"
	"strings"
)

// State 是提示词模板可引用的键值集合。
type State map[string]string

// 模板中可用的状态键。
const (
	KeyAgentName      = "agentName"
	KeySystem         = "system"
	KeyBio            = "bio"
	KeyLore           = "lore"
	KeyTopics         = "topics"
	KeyAdjectives     = "adjectives"
	KeyKnowledge      = "knowledge"
	KeyRecentMessages = "recentMessages"
	KeyActions        = "actions"
	KeyActionNames    = "actionNames"
	KeySenderName     = "senderName"
	KeyCurrentMessage = "currentMessage"
)

var placeholder = regexp.MustCompile(`{{\s*(\w+)\s*}}`)

// ComposeContext 将模板中的 {{key}} 替换为状态值，缺失的键替换为空串。
func ComposeContext(state State, template string) string {
	return placeholder.ReplaceAllStringFunc(template, func(match string) string {
		key := placeholder.FindStringSubmatch(match)[1]
		return state[key]
	})
}

// Clone 返回状态的浅拷贝。
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func bulletList(lines []string) string {
	var b strings.Builder
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(line)
	}
	return b.String()
}
