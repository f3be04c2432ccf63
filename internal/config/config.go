package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"Snowz-Migrator/pkg/logger"
)

// EnvConfigPath 是指定配置文件路径的环境变量。
const EnvConfigPath = "SNOWZ_CONFIG"

// DefaultPath 是未显式指定时使用的配置文件位置。
var DefaultPath = filepath.Join("configs", "snowz.json")

// Config 描述了迁移工具在启动阶段需要加载的核心配置。
type Config struct {
	Server     ServerConfig     `json:"server"`
	Descriptor DescriptorConfig `json:"descriptor"`
	Database   DatabaseConfig   `json:"database"`
	History    HistoryConfig    `json:"history"`
	Lock       LockConfig       `json:"lock"`
	Events     EventsConfig     `json:"events"`
	Logging    logger.Config    `json:"logging"`
	Runtime    RuntimeConfig    `json:"runtime"`
}

// ServerConfig 控制 API 服务的监听地址。
type ServerConfig struct {
	Address string `json:"address"`
}

// DescriptorConfig 指定默认的构建描述文件与模型文件。
type DescriptorConfig struct {
	Path       string `json:"path"`
	ModelsPath string `json:"models_path"`
}

// DatabaseConfig 描述迁移目标数据库的连接方式。
type DatabaseConfig struct {
	URL                    string `json:"url"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
}

// ConnMaxLifetime 返回连接最大存活时间。
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeSeconds) * time.Second
}

// HistoryConfig 选择迁移历史的存储后端。
type HistoryConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// RedisConfig 是 Redis 连接参数。
type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Key      string `json:"key"`
}

// LockConfig 选择迁移锁的实现。
type LockConfig struct {
	Driver     string      `json:"driver"`
	Redis      RedisConfig `json:"redis"`
	TTLSeconds int         `json:"ttl_seconds"`
}

// TTL 返回锁的有效期。
func (c LockConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// RabbitMQConfig 是 RabbitMQ 连接参数。
type RabbitMQConfig struct {
	URL     string `json:"url"`
	Queue   string `json:"queue"`
	Durable bool   `json:"durable"`
}

// EventsConfig 选择事件发布的通道。
type EventsConfig struct {
	Driver   string         `json:"driver"`
	Redis    RedisConfig    `json:"redis"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir"`
}

// ResolvePath 按 显式参数 > 环境变量 > 默认路径 的顺序确定配置文件位置。
func ResolvePath(explicit string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p
	}
	return DefaultPath
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
	return &cfg, nil
}

// LoadOrDefault 与 Load 相同，但默认路径不存在时返回内置默认配置。
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if path == DefaultPath && errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return nil, err
}

// Default 返回以当前目录为基准的默认配置。
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults(".")
	return cfg
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Descriptor.Path != "" && !filepath.IsAbs(c.Descriptor.Path) {
		c.Descriptor.Path = filepath.Join(baseDir, c.Descriptor.Path)
	}
	if c.Descriptor.ModelsPath != "" && !filepath.IsAbs(c.Descriptor.ModelsPath) {
		c.Descriptor.ModelsPath = filepath.Join(baseDir, c.Descriptor.ModelsPath)
	}

	if c.History.Driver == "" {
		c.History.Driver = "memory"
	}
	if c.Lock.Driver == "" {
		c.Lock.Driver = "memory"
	}
	if c.Lock.TTLSeconds <= 0 {
		c.Lock.TTLSeconds = 300
	}
	if c.Events.Driver == "" {
		c.Events.Driver = "none"
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}

	if c.Logging.Audit.Enabled && c.Logging.Audit.Path == "" {
		c.Logging.Audit.Path = filepath.Join(c.Runtime.DataDir, "audit.log")
	}
}
