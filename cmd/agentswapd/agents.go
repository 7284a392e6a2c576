package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"AgentSwap/internal/agent"
	"AgentSwap/internal/cache"
	"AgentSwap/internal/character"
	"AgentSwap/internal/config"
	"AgentSwap/internal/llm"
	"AgentSwap/internal/llm/openai"
	"AgentSwap/internal/llm/pythonbridge"
	"AgentSwap/internal/settings"
	"AgentSwap/internal/storage/mysql"
	"AgentSwap/pkg/logger"
	"AgentSwap/pkg/plugin"
)

const (
	clientDirect  = "direct"
	clientTwitter = "twitter"
)

type agentDeps struct {
	process    settings.Source
	dotenv     settings.Source
	store      mysql.Store
	plugins    *plugin.Manager
	cache      cache.Deps
	cacheStore string
}

// actionProvider 由向代理贡献动作的插件实现。
type actionProvider interface {
	Actions() []agent.Action
}

// startAgent 为单个角色创建运行时，并返回其声明且受支持的客户端。
func startAgent(ctx context.Context, cfg *config.Config, char character.Character, deps agentDeps) (*agent.AgentRuntime, []string, error) {
	char.Normalize()
	if err := char.Validate(); err != nil {
		return nil, nil, err
	}
	log := logger.Named("agentswapd").With(slog.String("agent", char.Name))
	secrets := settings.Secrets(char.Settings.Secrets)

	client, err := createLLMClient(cfg, char, secrets, deps.process)
	if err != nil {
		return nil, nil, err
	}

	adapter, err := cache.Open(deps.cacheStore, char.ID, deps.cache)
	if err != nil {
		return nil, nil, err
	}

	actions := pluginActions(char, deps.plugins, log)

	rt, err := agent.New(char, client,
		agent.WithMemoryRepository(deps.store),
		agent.WithCache(cache.NewManager(adapter)),
		agent.WithSettingSources(secrets, settings.Env(), deps.dotenv),
		agent.WithMemoryDepth(cfg.Runtime.MemoryDepth),
		agent.WithLLMTimeout(time.Duration(cfg.LLM.OpenAI.TimeoutSeconds)*time.Second),
		agent.WithActions(actions...),
	)
	if err != nil {
		return nil, nil, err
	}

	clients := supportedClients(ctx, char.Clients, deps.process, log)
	log.Info("代理初始化完成",
		slog.String("agent_id", rt.AgentID()),
		slog.Int("actions", len(rt.Actions())),
		slog.Any("clients", clients))
	return rt, clients, nil
}

// supportedClients 过滤出当前进程能够启动的客户端，其余仅记录日志。
func supportedClients(ctx context.Context, declared []string, process settings.Source, log *slog.Logger) []string {
	var out []string
	for _, client := range declared {
		switch client {
		case clientDirect:
			out = append(out, client)
		case clientTwitter:
			search, _ := settings.Lookup("TWITTER_SEARCH_ENABLE", process)
			log.WarnContext(ctx, "客户端暂不支持",
				slog.String("client", client),
				slog.Bool("search_enabled", !settings.IsFalsish(search)))
		default:
			log.WarnContext(ctx, "客户端暂不支持", slog.String("client", client))
		}
	}
	return out
}

// pluginActions 收集角色启用的插件所提供的动作，未注册的插件仅记录日志。
func pluginActions(char character.Character, manager *plugin.Manager, log *slog.Logger) []agent.Action {
	var actions []agent.Action
	for _, id := range char.Plugins {
		p, ok := manager.Lookup(id)
		if !ok {
			log.Warn("插件未注册，已跳过", slog.String("plugin", id))
			continue
		}
		provider, ok := p.(actionProvider)
		if !ok {
			continue
		}
		actions = append(actions, provider.Actions()...)
	}
	return actions
}

func createLLMClient(cfg *config.Config, char character.Character, secrets, process settings.Source) (llm.Client, error) {
	if strings.EqualFold(cfg.LLM.Provider, "python_bridge") || cfg.LLM.Python.Enabled {
		scriptPath := pythonbridge.ResolveScriptPath(cfg.LLM.Python.WorkingDir, cfg.LLM.Python.ScriptPath)
		return pythonbridge.NewClient(cfg.LLM.Python.PythonExecutable, scriptPath, cfg.LLM.Python.WorkingDir)
	}

	token, err := settings.TokenForProvider(char.ModelProvider, char.Name, secrets, process)
	if err != nil {
		if cfg.LLM.OpenAI.APIKeyEnv == "" {
			return nil, err
		}
		fallback, ok := settings.Lookup(cfg.LLM.OpenAI.APIKeyEnv, process)
		if !ok {
			return nil, err
		}
		token = fallback
	}

	baseURL := openai.EndpointFor(char.ModelProvider)
	if cfg.LLM.OpenAI.BaseURL != "" && char.ModelProvider == settings.ProviderOpenAI {
		baseURL = cfg.LLM.OpenAI.BaseURL
	}
	model := char.Settings.Model
	if model == "" {
		model = cfg.LLM.OpenAI.Model
	}
	return openai.NewClient(openai.Config{
		APIKey:     token,
		BaseURL:    baseURL,
		Model:      model,
		SmallModel: cfg.LLM.OpenAI.SmallModel,
		Timeout:    time.Duration(cfg.LLM.OpenAI.TimeoutSeconds) * time.Second,
	})
}
