package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"AgentSwap/internal/agent"
	"AgentSwap/internal/api"
	"AgentSwap/internal/auth"
	"AgentSwap/internal/cache"
	"AgentSwap/internal/character"
	"AgentSwap/internal/config"
	"AgentSwap/internal/observability/alerting"
	"AgentSwap/internal/plugins/evm"
	"AgentSwap/internal/settings"
	"AgentSwap/internal/storage/mysql"
	"AgentSwap/internal/task"
	"AgentSwap/internal/web3"
	"AgentSwap/pkg/logger"
	"AgentSwap/pkg/plugin"

	"github.com/redis/go-redis/v9"
)

const defaultConfigPath = "configs/agentswap.json"

func run(ctx context.Context, opts options) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.Outputs,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
			MaxAgeDays: cfg.Logging.Audit.MaxAgeDays,
			Compress:   cfg.Logging.Audit.Compress,
		},
	}); err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Named("agentswapd")

	envFile := cfg.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	dotenv, err := settings.DotEnv(envFile)
	if err != nil {
		return err
	}
	process := settings.Chain("settings", settings.Env(), dotenv)

	characters, err := loadCharacters(opts)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return fmt.Errorf("创建数据目录失败: %w", err)
	}

	store, err := mysql.Open(ctx, storageConfig(cfg))
	if err != nil {
		return err
	}
	defer store.Close()
	log.Info("存储初始化完成", slog.String("driver", cfg.Storage.Driver))

	cacheStore := cfg.Cache.Store
	if v, ok := settings.Lookup("CACHE_STORE", process); ok {
		cacheStore = v
	}
	redisCfg := cfg.Cache.Redis
	if v, ok := settings.Lookup("REDIS_URL", process); ok {
		redisCfg.URL = v
	}

	var redisClient *redis.Client
	if strings.EqualFold(cacheStore, cache.StoreRedis) {
		redisClient, err = cache.NewRedisClient(ctx, cache.RedisConfig{
			Address:  redisCfg.Address,
			URL:      redisCfg.URL,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		})
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	chains, err := web3.LoadChainDefinitions(cfg.Web3.ChainConfig)
	if err != nil {
		return err
	}

	plugins, err := startPlugins(ctx, cfg, chains)
	if err != nil {
		return err
	}
	defer func() {
		if err := plugins.StopAll(context.Background()); err != nil {
			log.Warn("停止插件失败", slog.Any("error", err))
		}
	}()

	directory := agent.NewDirectory()
	direct := false
	for _, char := range characters {
		rt, clients, err := startAgent(ctx, cfg, char, agentDeps{
			process: process,
			dotenv:  dotenv,
			store:   store,
			plugins: plugins,
			cache: cache.Deps{
				Redis:    redisClient,
				Database: store,
				Dir:      cfg.Cache.Dir,
				Prefix:   redisCfg.Prefix,
			},
			cacheStore: cacheStore,
		})
		if err != nil {
			return err
		}
		if err := directory.Register(rt); err != nil {
			return err
		}
		for _, client := range clients {
			if client == clientDirect {
				direct = true
			}
		}
	}

	taskStore, err := openTaskStore(ctx, cfg)
	if err != nil {
		return err
	}
	queue, err := openQueue(ctx, cfg)
	if err != nil {
		_ = taskStore.Close()
		return err
	}
	service := task.NewService(taskStore, queue, cfg.Queue.MaxRetries)
	defer func() {
		if err := service.Close(); err != nil {
			log.Warn("关闭任务服务失败", slog.Any("error", err))
		}
	}()

	processor := task.NewProcessor(directory, taskStore, queue, queue,
		task.WithWorkerCount(cfg.Queue.Workers),
		task.WithAlertDispatcher(newAlertDispatcher(cfg, process)),
	)
	processorCtx, cancelProcessor := context.WithCancel(ctx)
	defer cancelProcessor()
	go func() {
		if err := processor.Start(processorCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("任务处理器异常退出", slog.Any("error", err))
		}
	}()

	log.Info("代理已启动", slog.Int("agents", len(characters)), slog.Bool("direct", direct))
	if !direct {
		<-ctx.Done()
		return ctx.Err()
	}
	apiKey, _ := settings.Lookup("DIRECT_API_KEY", process)
	guard := auth.NewService(apiKey)
	if !guard.Enabled() {
		log.Warn("未配置 DIRECT_API_KEY，direct 客户端接口不做认证")
	}
	return api.NewServer(cfg.Server.Address, service, directory, api.WithGuard(guard.Middleware)).Start(ctx)
}

func loadConfig(path string) (*config.Config, error) {
	explicit := path != ""
	if !explicit {
		path = os.Getenv("AGENTSWAP_CONFIG")
		explicit = path != ""
	}
	if !explicit {
		path = defaultConfigPath
	}
	if _, err := os.Stat(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		wd, _ := os.Getwd()
		return config.Default(filepath.Clean(wd)), nil
	}
	return config.Load(path)
}

// loadCharacters 解析 --characters 或 --character，未指定时使用默认角色。
func loadCharacters(opts options) ([]character.Character, error) {
	arg := strings.TrimSpace(opts.characters)
	if arg == "" {
		arg = strings.TrimSpace(opts.character)
	}
	if arg == "" {
		return []character.Character{character.Default()}, nil
	}
	chars, err := character.NewLoader().Load(arg)
	if err != nil {
		return nil, err
	}
	if len(chars) == 0 {
		return []character.Character{character.Default()}, nil
	}
	return chars, nil
}

func startPlugins(ctx context.Context, cfg *config.Config, chains web3.ChainDefinitions) (*plugin.Manager, error) {
	managerCfg := plugin.ManagerConfig{}
	if cfg.Plugins.Config != "" {
		loaded, err := plugin.LoadManagerConfig(cfg.Plugins.Config)
		if err != nil {
			return nil, err
		}
		managerCfg = loaded
	}
	manager, err := plugin.NewManager(managerCfg, plugin.WithResource(evm.ResourceChains, chains))
	if err != nil {
		return nil, err
	}

	defaults := map[string]any{
		"router_url":      cfg.Swap.RouterURL,
		"integrator":      cfg.Swap.Integrator,
		"fee":             cfg.Swap.Fee,
		"api_key_env":     cfg.Swap.APIKeyEnv,
		"timeout_seconds": cfg.Swap.TimeoutSeconds,
	}
	if err := manager.Register(evm.New(), defaults); err != nil {
		if !errors.Is(err, plugin.ErrDisabled) {
			return nil, err
		}
		logger.Named("agentswapd").Info("插件已禁用", slog.String("plugin", evm.ID))
	}
	if len(chains.Chains) == 0 {
		logger.Named("agentswapd").Warn("未配置任何链，evm 插件不可用")
		return manager, nil
	}
	if err := manager.StartAll(ctx); err != nil {
		return nil, err
	}
	return manager, nil
}

func storageConfig(cfg *config.Config) mysql.Config {
	return mysql.Config{
		Driver:          cfg.Storage.Driver,
		DSN:             cfg.Storage.DSN,
		DataDir:         cfg.Runtime.DataDir,
		MaxOpenConns:    cfg.Storage.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Storage.ConnMaxLifetime) * time.Second,
	}
}

func openTaskStore(ctx context.Context, cfg *config.Config) (task.Store, error) {
	switch cfg.Storage.Driver {
	case "mysql":
		return task.NewMySQLStore(ctx, storageConfig(cfg))
	default:
		return task.NewMemoryStore(), nil
	}
}

func openQueue(ctx context.Context, cfg *config.Config) (task.Queue, error) {
	switch cfg.Queue.Driver {
	case "redis":
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Address:  cfg.Queue.Redis.Address,
			URL:      cfg.Queue.Redis.URL,
			Password: cfg.Queue.Redis.Password,
			DB:       cfg.Queue.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		return task.NewRedisQueue(client, task.RedisQueueConfig{Key: cfg.Queue.Redis.Prefix})
	case "rabbitmq":
		return task.NewRabbitMQQueue(task.RabbitMQConfig{
			URL:      cfg.Queue.RabbitMQ.URL,
			Queue:    cfg.Queue.RabbitMQ.Queue,
			Prefetch: cfg.Queue.RabbitMQ.Prefetch,
			Durable:  true,
		})
	default:
		return task.NewMemoryQueue(cfg.Queue.BufferSize), nil
	}
}

func newAlertDispatcher(cfg *config.Config, process settings.Source) alerting.Dispatcher {
	notifiers := []alerting.Notifier{&alerting.LogNotifier{}}
	url := cfg.Alerting.WebhookURL
	if url == "" {
		url, _ = settings.Lookup(cfg.Alerting.WebhookURLEnv, process)
	}
	if url != "" {
		notifiers = append(notifiers, &alerting.WebhookNotifier{URL: url, Client: &http.Client{Timeout: 10 * time.Second}})
	}
	return alerting.NewFanout(notifiers...)
}
