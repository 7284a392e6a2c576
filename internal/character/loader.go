package character

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	xerrors "AgentSwap/internal/errors"
	"AgentSwap/pkg/logger"
)

// Loader 按候选路径顺序查找角色文件。
type Loader struct {
	WorkDir string
	BaseDir string
	Logger  *slog.Logger
}

// NewLoader 以当前工作目录与可执行文件所在目录构造 Loader。
func NewLoader() *Loader {
	wd, _ := os.Getwd()
	base := wd
	if exe, err := os.Executable(); err == nil {
		base = filepath.Dir(exe)
	}
	return &Loader{WorkDir: wd, BaseDir: base, Logger: logger.Named("character")}
}

// CandidatePaths 返回单个角色参数需要尝试的路径。
func (l *Loader) CandidatePaths(path string) []string {
	name := filepath.Base(path)
	candidates := []string{
		path,
		filepath.Join(l.WorkDir, path),
		filepath.Join(l.WorkDir, "agent", path),
		filepath.Join(l.BaseDir, path),
		filepath.Join(l.BaseDir, "characters", name),
		filepath.Join(l.BaseDir, "..", "characters", name),
		filepath.Join(l.BaseDir, "..", "..", "characters", name),
	}
	out := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Load 解析逗号分隔的角色路径列表。
func (l *Loader) Load(arg string) ([]Character, error) {
	var characters []Character
	for _, raw := range strings.Split(arg, ",") {
		path := strings.TrimSpace(raw)
		if path == "" {
			continue
		}
		c, err := l.loadOne(path)
		if err != nil {
			return nil, err
		}
		characters = append(characters, c)
	}
	return characters, nil
}

func (l *Loader) loadOne(path string) (Character, error) {
	candidates := l.CandidatePaths(path)
	var (
		content  []byte
		resolved string
	)
	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err == nil {
			content, resolved = data, candidate
			break
		}
	}
	if content == nil {
		return Character{}, xerrors.New(CodeInvalidCharacter,
			fmt.Sprintf("角色文件 %s 未找到，已尝试: %s", path, strings.Join(candidates, ", ")))
	}

	var c Character
	if err := json.Unmarshal(content, &c); err != nil {
		return Character{}, xerrors.Wrap(CodeInvalidCharacter, err, fmt.Sprintf("解析角色文件 %s 失败", resolved))
	}
	c.Normalize()
	if err := c.Validate(); err != nil {
		return Character{}, err
	}
	if l.Logger != nil {
		l.Logger.Info("角色加载完成", slog.String("name", c.Name), slog.String("path", resolved), slog.Any("plugins", c.Plugins))
	}
	return c, nil
}
