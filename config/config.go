package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	Trending  TrendingConfig  `mapstructure:"trending"`
	LLM       LLMConfig       `mapstructure:"llm"`
}

type ServerConfig struct {
	Port          string `mapstructure:"port"`
	Mode          string `mapstructure:"mode"` // debug, release
	TriggerSecret string `mapstructure:"trigger_secret"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // sqlite, mysql, postgres
	DSN      string `mapstructure:"dsn"`
	LogLevel string `mapstructure:"log_level"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"` // json, console
}

type IngestionConfig struct {
	Cron               string        `mapstructure:"cron"`
	MaxConcurrentFeeds int           `mapstructure:"max_concurrent_feeds"`
	FetchTimeout       time.Duration `mapstructure:"fetch_timeout"`
	UserAgent          string        `mapstructure:"user_agent"`
	Strategies         []string      `mapstructure:"strategies"` // 按顺序尝试
	RSS2JSONEndpoint   string        `mapstructure:"rss2json_endpoint"`
	RawProxyEndpoint   string        `mapstructure:"raw_proxy_endpoint"`
	FeedsFile          string        `mapstructure:"feeds_file"`
}

type TrendingConfig struct {
	Cron            string        `mapstructure:"cron"`
	TargetCount     int           `mapstructure:"target_count"`
	PoolSize        int           `mapstructure:"pool_size"`
	LookbackHours   int           `mapstructure:"lookback_hours"`
	ModelTimeout    time.Duration `mapstructure:"model_timeout"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	MinCallInterval time.Duration `mapstructure:"min_call_interval"`
}

type LLMConfig struct {
	Provider    string  `mapstructure:"provider"` // openai, anthropic, ollama
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.trigger_secret", "")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/news.db")
	v.SetDefault("database.log_level", "warning")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")

	v.SetDefault("ingestion.cron", "*/15 * * * *")
	v.SetDefault("ingestion.max_concurrent_feeds", 8)
	v.SetDefault("ingestion.fetch_timeout", 12*time.Second)
	v.SetDefault("ingestion.user_agent", "BelgaumToday/1.0 (+https://belgaum.today)")
	v.SetDefault("ingestion.strategies", []string{"direct", "rss2json", "raw_proxy"})
	v.SetDefault("ingestion.rss2json_endpoint", "https://api.rss2json.com/v1/api.json?rss_url=%s")
	v.SetDefault("ingestion.raw_proxy_endpoint", "https://api.allorigins.win/raw?url=%s")
	v.SetDefault("ingestion.feeds_file", "configs/feeds.yaml")

	v.SetDefault("trending.cron", "0 * * * *")
	v.SetDefault("trending.target_count", 10)
	v.SetDefault("trending.pool_size", 30)
	v.SetDefault("trending.lookback_hours", 48)
	v.SetDefault("trending.model_timeout", 30*time.Second)
	v.SetDefault("trending.max_attempts", 2)
	v.SetDefault("trending.min_call_interval", time.Second)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 2048)
}

// Load 加载配置文件,文件不存在时使用默认配置
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	// 显式展开 YAML 中的 ${VAR}
	for _, key := range v.AllKeys() {
		val, ok := v.Get(key).(string)
		if ok && strings.Contains(val, "${") {
			v.Set(key, os.ExpandEnv(val))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// 兼容旧的环境变量
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		cfg.Server.Mode = mode
	}
	if secret := os.Getenv("CRON_SECRET"); secret != "" {
		cfg.Server.TriggerSecret = secret
	}

	return &cfg, nil
}

// GetServerAddress 获取服务器监听地址
func (c *Config) GetServerAddress() string {
	// 如果端口是纯数字,加上冒号前缀
	if _, err := strconv.Atoi(c.Server.Port); err == nil {
		return ":" + c.Server.Port
	}
	return c.Server.Port
}
