package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ==================== 应用配置 ====================

// Config 应用配置，yaml 文件为底，环境变量覆盖
type Config struct {
	App     AppConfig     `yaml:"app"`
	Server  ServerConfig  `yaml:"server"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Import  ImportConfig  `yaml:"import"`
	Storage StorageConfig `yaml:"storage"`
}

// AppConfig 应用基础信息
type AppConfig struct {
	Name         string `yaml:"name"`
	Debug        bool   `yaml:"debug"`
	LogVerbosity string `yaml:"log_verbosity"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// 同一客户端两次导入之间的冷却秒数，0 表示不限流
	ImportCooldownSec int `yaml:"import_cooldown_sec"`
}

// FetchConfig 抓取客户端配置
type FetchConfig struct {
	TimeoutSec int    `yaml:"timeout_sec"`
	RetryCount int    `yaml:"retry_count"`
	UserAgent  string `yaml:"user_agent"`
	Proxy      string `yaml:"proxy"`
}

// ImportConfig 导入管道配置
type ImportConfig struct {
	RapidAPIKey          string `yaml:"rapidapi_key"`
	AmazonDefaultCountry string `yaml:"amazon_default_country"`
}

// StorageConfig 导入历史存储配置
type StorageConfig struct {
	DBPath        string `yaml:"db_path"`
	RetentionDays int    `yaml:"retention_days"`
	RetentionCron string `yaml:"retention_cron"`
}

var verbosityLevels = map[string]bool{
	"low":       true,
	"medium":    true,
	"high":      true,
	"extrahigh": true,
}

// Default 默认配置，没有配置文件也能起服务
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:         "shelfshift",
			Debug:        false,
			LogVerbosity: "medium",
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
		Fetch: FetchConfig{
			TimeoutSec: 20,
			RetryCount: 0,
		},
		Import: ImportConfig{
			AmazonDefaultCountry: "US",
		},
		Storage: StorageConfig{
			DBPath:        "data/shelfshift.db",
			RetentionDays: 30,
			RetentionCron: "0 3 * * *",
		},
	}
}

// Load 读取 yaml 配置文件并叠加环境变量。
// path 为空或文件不存在时只用默认值加环境变量。
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// applyEnv 环境变量覆盖，键名沿用原服务的命名
func (c *Config) applyEnv() {
	if v := os.Getenv("APP_NAME"); v != "" {
		c.App.Name = v
	}
	if v := os.Getenv("DEBUG"); v != "" {
		c.App.Debug = envBool(v)
	}
	if v := os.Getenv("LOG_VERBOSITY"); v != "" {
		c.App.LogVerbosity = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("RAPIDAPI_KEY"); v != "" {
		c.Import.RapidAPIKey = v
	}
	if v := os.Getenv("AMAZON_DEFAULT_COUNTRY"); v != "" {
		c.Import.AmazonDefaultCountry = strings.ToUpper(strings.TrimSpace(v))
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("IMPORT_COOLDOWN_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.ImportCooldownSec = n
		}
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("FETCH_TIMEOUT_SEC"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			c.Fetch.TimeoutSec = parsed
		}
	}
	if v := os.Getenv("RETENTION_DAYS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			c.Storage.RetentionDays = parsed
		}
	}
}

// applyDefaults 非法值回落默认
func (c *Config) applyDefaults() {
	if !verbosityLevels[c.App.LogVerbosity] {
		c.App.LogVerbosity = "medium"
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.ImportCooldownSec < 0 {
		c.Server.ImportCooldownSec = 0
	}
	if c.Fetch.TimeoutSec <= 0 {
		c.Fetch.TimeoutSec = 20
	}
	if c.Fetch.RetryCount < 0 {
		c.Fetch.RetryCount = 0
	}
	if c.Import.AmazonDefaultCountry == "" {
		c.Import.AmazonDefaultCountry = "US"
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = "data/shelfshift.db"
	}
	if c.Storage.RetentionDays <= 0 {
		c.Storage.RetentionDays = 30
	}
	if c.Storage.RetentionCron == "" {
		c.Storage.RetentionCron = "0 3 * * *"
	}
}

// FetchTimeout 抓取超时时长
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSec) * time.Second
}

// ImportCooldown 导入接口冷却时长
func (c *Config) ImportCooldown() time.Duration {
	return time.Duration(c.Server.ImportCooldownSec) * time.Second
}

func envBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
