package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider 定义知识库检索的通用接口。
type Provider interface {
	Query(text string) []Snippet
}

// Snippet 描述可供大模型引用的一段知识。没有关键词与标签的条目视为常驻知识。
type Snippet struct {
	Title    string   `json:"title" yaml:"title"`
	Content  string   `json:"content" yaml:"content"`
	Keywords []string `json:"keywords" yaml:"keywords"`
	Tags     []string `json:"tags" yaml:"tags"`
}

// StaticProvider 基于关键词命中数对固定条目排序。
type StaticProvider struct {
	items      []Snippet
	terms      [][]string
	maxResults int
}

// NewStaticProvider 创建静态知识库，maxResults 不大于 0 时取 3。
func NewStaticProvider(items []Snippet, maxResults int) *StaticProvider {
	if maxResults <= 0 {
		maxResults = 3
	}
	p := &StaticProvider{items: items, terms: make([][]string, len(items)), maxResults: maxResults}
	for i, item := range items {
		for _, term := range slices.Concat(item.Keywords, item.Tags) {
			if term = strings.ToLower(strings.TrimSpace(term)); term != "" {
				p.terms[i] = append(p.terms[i], term)
			}
		}
	}
	return p
}

// FromLines 将角色配置中的 knowledge 行转换为常驻知识。
func FromLines(lines []string, maxResults int) *StaticProvider {
	items := make([]Snippet, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			items = append(items, Snippet{Content: line})
		}
	}
	return NewStaticProvider(items, maxResults)
}

// LoadStaticProvider 从 JSON 或 YAML 文件加载知识条目，格式由扩展名决定。
func LoadStaticProvider(path string, maxResults int) (*StaticProvider, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("知识库文件路径不能为空")
	}
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("读取知识库文件失败: %w", err)
	}

	var entries []Snippet
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &entries)
	default:
		err = json.Unmarshal(raw, &entries)
	}
	if err != nil {
		return nil, fmt.Errorf("解析知识库文件失败: %w", err)
	}
	return NewStaticProvider(entries, maxResults), nil
}

// Query 返回命中关键词最多的条目，常驻知识排在命中条目之后，同分保持原始顺序。
func (p *StaticProvider) Query(text string) []Snippet {
	if p == nil {
		return nil
	}
	text = strings.ToLower(text)

	type scored struct {
		idx   int
		score int
	}
	var hits []scored
	for i, terms := range p.terms {
		if len(terms) == 0 {
			hits = append(hits, scored{idx: i})
			continue
		}
		n := 0
		for _, term := range terms {
			if strings.Contains(text, term) {
				n++
			}
		}
		if n > 0 {
			hits = append(hits, scored{idx: i, score: n})
		}
	}
	slices.SortStableFunc(hits, func(a, b scored) int { return b.score - a.score })

	out := make([]Snippet, 0, min(len(hits), p.maxResults))
	for _, h := range hits[:min(len(hits), p.maxResults)] {
		out = append(out, p.items[h.idx])
	}
	return out
}

// Multi 依次查询多个 Provider 并拼接结果。
type Multi []Provider

// Query 合并全部 Provider 的检索结果。
func (m Multi) Query(text string) []Snippet {
	var out []Snippet
	for _, provider := range m {
		if provider != nil {
			out = append(out, provider.Query(text)...)
		}
	}
	return out
}

var (
	_ Provider = (*StaticProvider)(nil)
	_ Provider = Multi(nil)
)
