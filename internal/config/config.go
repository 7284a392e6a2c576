package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Config 描述了 AgentSwap 在启动阶段需要加载的核心配置。
type Config struct {
	EnvFile  string         `json:"env_file"`
	Server   ServerConfig   `json:"server"`
	Storage  StorageConfig  `json:"storage"`
	Cache    CacheConfig    `json:"cache"`
	Queue    QueueConfig    `json:"queue"`
	LLM      LLMConfig      `json:"llm"`
	Web3     Web3Config     `json:"web3"`
	Swap     SwapConfig     `json:"swap"`
	Logging  LoggingConfig  `json:"logging"`
	Alerting AlertingConfig `json:"alerting"`
	Plugins  PluginsConfig  `json:"plugins"`
	Runtime  RuntimeConfig  `json:"runtime"`
}

// ServerConfig 控制 direct 客户端（HTTP API）的监听地址。
type ServerConfig struct {
	Address string `json:"address"`
}

// StorageConfig 描述记忆等持久化数据的存储后端。
type StorageConfig struct {
	Driver          string `json:"driver"`
	DSN             string `json:"dsn"`
	MaxOpenConns    int    `json:"max_open_conns"`
	MaxIdleConns    int    `json:"max_idle_conns"`
	ConnMaxLifetime int    `json:"conn_max_lifetime_seconds"`
}

// CacheConfig 选择缓存实现：redis、database 或 filesystem。
type CacheConfig struct {
	Store string      `json:"store"`
	Dir   string      `json:"dir"`
	Redis RedisConfig `json:"redis"`
}

// RedisConfig 为缓存与队列共享的 Redis 连接参数。
type RedisConfig struct {
	Address  string `json:"address"`
	URL      string `json:"url"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

// QueueConfig 控制消息任务的排队与消费方式。
type QueueConfig struct {
	Driver     string         `json:"driver"`
	Workers    int            `json:"workers"`
	MaxRetries int            `json:"max_retries"`
	BufferSize int            `json:"buffer_size"`
	Redis      RedisConfig    `json:"redis"`
	RabbitMQ   RabbitMQConfig `json:"rabbitmq"`
}

// RabbitMQConfig 描述 AMQP 队列参数。
type RabbitMQConfig struct {
	URL      string `json:"url"`
	Queue    string `json:"queue"`
	Prefetch int    `json:"prefetch"`
}

// LLMConfig 用于配置大模型推理的调用方式。
type LLMConfig struct {
	Provider string             `json:"provider"`
	OpenAI   OpenAIConfig       `json:"openai"`
	Python   PythonBridgeConfig `json:"python_bridge"`
}

// OpenAIConfig 适用于所有兼容 OpenAI Chat Completions 协议的服务。
type OpenAIConfig struct {
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	SmallModel     string `json:"small_model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	APIKeyEnv      string `json:"api_key_env"`
}

// PythonBridgeConfig 描述通过 Python 脚本完成推理时所需的信息。
type PythonBridgeConfig struct {
	Enabled          bool   `json:"enabled"`
	PythonExecutable string `json:"python_executable"`
	ScriptPath       string `json:"script_path"`
	WorkingDir       string `json:"working_dir"`
}

// Web3Config 指向链定义文件。
type Web3Config struct {
	ChainConfig string `json:"chain_config"`
}

// SwapConfig 描述 LI.FI 路由服务的访问方式。
type SwapConfig struct {
	RouterURL      string  `json:"router_url"`
	Integrator     string  `json:"integrator"`
	Fee            float64 `json:"fee"`
	APIKeyEnv      string  `json:"api_key_env"`
	TimeoutSeconds int     `json:"timeout_seconds"`
}

// LoggingConfig 对应 pkg/logger 的配置。
type LoggingConfig struct {
	Level   string      `json:"level"`
	Format  string      `json:"format"`
	Outputs []string    `json:"outputs"`
	Audit   AuditConfig `json:"audit"`
}

// AuditConfig 控制审计日志输出。
type AuditConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
}

// AlertingConfig 控制任务终态失败时的告警通道。
type AlertingConfig struct {
	WebhookURL    string `json:"webhook_url"`
	WebhookURLEnv string `json:"webhook_url_env"`
}

// PluginsConfig 指向插件的 YAML 配置文件，留空时所有内置插件使用默认配置。
type PluginsConfig struct {
	Config string `json:"config"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir     string `json:"data_dir"`
	MemoryDepth int    `json:"memory_depth"`
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default 返回未提供配置文件时使用的默认配置。
func Default(baseDir string) *Config {
	cfg := &Config{}
	cfg.applyDefaults(baseDir)
	return cfg
}

// Validate 检查互相依赖的配置项。
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory":
	case "mysql":
		if c.Storage.DSN == "" {
			return errors.New("mysql 存储需要配置 storage.dsn")
		}
	default:
		return fmt.Errorf("不支持的存储驱动: %s", c.Storage.Driver)
	}

	switch c.Queue.Driver {
	case "memory", "redis":
	case "rabbitmq":
		if c.Queue.RabbitMQ.URL == "" {
			return errors.New("rabbitmq 队列需要配置 queue.rabbitmq.url")
		}
	default:
		return fmt.Errorf("不支持的队列驱动: %s", c.Queue.Driver)
	}

	if c.Swap.Fee < 0 || c.Swap.Fee >= 1 {
		return fmt.Errorf("swap.fee 必须位于 [0, 1) 区间: %v", c.Swap.Fee)
	}
	return nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":3000"
	}

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}

	if c.Cache.Store == "" {
		c.Cache.Store = "database"
	}
	c.Cache.Dir = resolvePath(baseDir, c.Cache.Dir, "cache")
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "agentswap:cache:"
	}

	c.Queue.Driver = strings.ToLower(strings.TrimSpace(c.Queue.Driver))
	if c.Queue.Driver == "" {
		c.Queue.Driver = "memory"
	}
	if c.Queue.Workers <= 0 {
		c.Queue.Workers = 2
	}
	if c.Queue.MaxRetries <= 0 {
		c.Queue.MaxRetries = 3
	}
	if c.Queue.BufferSize <= 0 {
		c.Queue.BufferSize = 128
	}
	if c.Queue.Redis.Prefix == "" {
		c.Queue.Redis.Prefix = "agentswap:messages"
	}
	if c.Queue.RabbitMQ.Queue == "" {
		c.Queue.RabbitMQ.Queue = "agentswap.messages"
	}
	if c.Queue.RabbitMQ.Prefetch <= 0 {
		c.Queue.RabbitMQ.Prefetch = c.Queue.Workers
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.OpenAI.TimeoutSeconds <= 0 {
		c.LLM.OpenAI.TimeoutSeconds = 60
	}

	if c.LLM.Python.PythonExecutable == "" {
		c.LLM.Python.PythonExecutable = "python3"
	}
	if c.LLM.Python.WorkingDir == "" {
		c.LLM.Python.WorkingDir = baseDir
	} else if !filepath.IsAbs(c.LLM.Python.WorkingDir) {
		c.LLM.Python.WorkingDir = filepath.Join(baseDir, c.LLM.Python.WorkingDir)
	}

	c.Web3.ChainConfig = resolvePath(baseDir, c.Web3.ChainConfig, "chains.yaml")

	if c.Swap.RouterURL == "" {
		c.Swap.RouterURL = "https://li.quest/v1"
	}
	if c.Swap.Integrator == "" {
		c.Swap.Integrator = "agentswap"
	}
	if c.Swap.Fee == 0 {
		c.Swap.Fee = 0.02
	}
	if c.Swap.APIKeyEnv == "" {
		c.Swap.APIKeyEnv = "LIFI_API_KEY"
	}
	if c.Swap.TimeoutSeconds <= 0 {
		c.Swap.TimeoutSeconds = 120
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Audit.Enabled {
		c.Logging.Audit.Path = resolvePath(baseDir, c.Logging.Audit.Path, filepath.Join("logs", "audit.log"))
	}

	if c.Alerting.WebhookURLEnv == "" {
		c.Alerting.WebhookURLEnv = "ALERT_WEBHOOK_URL"
	}
	if c.Plugins.Config != "" && !filepath.IsAbs(c.Plugins.Config) {
		c.Plugins.Config = filepath.Join(baseDir, c.Plugins.Config)
	}

	c.Runtime.DataDir = resolvePath(baseDir, c.Runtime.DataDir, "data")
	if c.Runtime.MemoryDepth <= 0 {
		c.Runtime.MemoryDepth = 32
	}

	if c.EnvFile != "" && !filepath.IsAbs(c.EnvFile) {
		c.EnvFile = filepath.Join(baseDir, c.EnvFile)
	}
}

func resolvePath(baseDir, value, fallback string) string {
	if value == "" {
		value = fallback
	}
	if filepath.IsAbs(value) {
		return value
	}
	return filepath.Join(baseDir, value)
}
