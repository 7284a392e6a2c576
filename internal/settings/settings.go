// Package settings 负责按显式顺序解析角色密钥、进程环境变量与 .env 文件中的配置项。
package settings

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Source 是一个只读的配置来源。
type Source interface {
	Name() string
	Lookup(key string) (string, bool)
}

type mapSource struct {
	name   string
	values map[string]string
}

func (m mapSource) Name() string { return m.name }

func (m mapSource) Lookup(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// FromMap 以给定名称包装一个键值表，常用于角色的 secrets。
func FromMap(name string, values map[string]string) Source {
	clone := make(map[string]string, len(values))
	for k, v := range values {
		clone[k] = v
	}
	return mapSource{name: name, values: clone}
}

// Secrets 返回角色 settings.secrets 对应的来源。
func Secrets(values map[string]string) Source {
	return FromMap("character", values)
}

type envSource struct{}

func (envSource) Name() string { return "env" }

func (envSource) Lookup(key string) (string, bool) { return os.LookupEnv(key) }

// Env 返回进程环境变量来源。
func Env() Source { return envSource{} }

// DotEnv 读取 .env 文件但不修改进程环境。文件不存在时返回空来源。
func DotEnv(path string) (Source, error) {
	if strings.TrimSpace(path) == "" {
		return FromMap("dotenv", nil), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return FromMap("dotenv", nil), nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("读取 .env 文件失败: %w", err)
	}
	return FromMap("dotenv", values), nil
}

type chainSource struct {
	name    string
	sources []Source
}

func (c chainSource) Name() string { return c.name }

func (c chainSource) Lookup(key string) (string, bool) {
	return Lookup(key, c.sources...)
}

// Chain 将多个来源按顺序合并为一个来源。
func Chain(name string, sources ...Source) Source {
	return chainSource{name: name, sources: append([]Source(nil), sources...)}
}

// Lookup 依次查询来源，返回第一个非空值。
func Lookup(key string, sources ...Source) (string, bool) {
	for _, src := range sources {
		if src == nil {
			continue
		}
		if v, ok := src.Lookup(key); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// Candidate 是一次 (来源, 键) 查询。
type Candidate struct {
	Source Source
	Key    string
}

// FirstOf 按顺序尝试候选项，返回第一个非空值。
func FirstOf(candidates ...Candidate) (string, bool) {
	for _, c := range candidates {
		if c.Source == nil {
			continue
		}
		if v, ok := c.Source.Lookup(c.Key); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

var falsish = map[string]struct{}{
	"false": {}, "0": {}, "no": {}, "n": {}, "off": {}, "null": {}, "undefined": {}, "": {}, "nan": {},
}

// IsFalsish 判断字符串是否表示“关闭”。
func IsFalsish(value string) bool {
	_, ok := falsish[strings.ToLower(strings.TrimSpace(value))]
	return ok
}
