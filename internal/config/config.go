// 包 config 负责加载与校验可选的 settings.yaml。
// 账号、日期与输出目录来自命令行，这里只放连接、限速、历史库与日志等运行参数。
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"polar-flow-export/internal/fetch"
	"polar-flow-export/internal/throttle"
)

type Config struct {
	BaseURL   string        `yaml:"BASE_URL"`
	UserAgent string        `yaml:"USER_AGENT"`
	Throttle  time.Duration `yaml:"THROTTLE"`
	Timeout   time.Duration `yaml:"TIMEOUT"`
	Proxy     Proxy         `yaml:"PROXY"`
	Database  Database      `yaml:"DATABASE"`
	Summary   string        `yaml:"SUMMARY"`
	LogLevel  string        `yaml:"LOG_LEVEL"`
	LogFormat string        `yaml:"LOG_FORMAT"` // text|json|pretty
	LogLocale string        `yaml:"LOG_LOCALE"` // zh-CN|en
	LogColor  string        `yaml:"LOG_COLOR"`  // auto|always|never
}

type Proxy struct {
	HTTP  string `yaml:"http"`
	HTTPS string `yaml:"https"`
}

type Database struct {
	Type string `yaml:"type"` // sqlite (default)
	DSN  string `yaml:"dsn"`  // 为空时不记录导出历史
}

// Default 返回未提供配置文件时使用的默认配置。
func Default() *Config {
	c := &Config{}
	_ = c.Validate()
	return c
}

// Load 读取 YAML 并反序列化，随后校验并填充默认值。
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// Validate 检查取值并设置默认值。THROTTLE 为 0 时使用默认间隔。
func (c *Config) Validate() error {
	if c.Throttle < 0 {
		return errors.New("THROTTLE must be >= 0")
	}
	if c.Timeout < 0 {
		return errors.New("TIMEOUT must be >= 0")
	}
	if c.BaseURL == "" {
		c.BaseURL = fetch.DefaultBaseURL
	}
	if c.UserAgent == "" {
		c.UserAgent = fetch.DefaultUserAgent
	}
	if c.Throttle == 0 {
		c.Throttle = throttle.DefaultInterval
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Type != "sqlite" {
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "pretty"
	}
	if c.LogLocale == "" {
		c.LogLocale = "en"
	}
	if c.LogColor == "" {
		c.LogColor = "auto"
	}
	return nil
}

// FetchOptions 转换为 fetch.Options。
func (c *Config) FetchOptions() fetch.Options {
	return fetch.Options{
		BaseURL:    c.BaseURL,
		UserAgent:  c.UserAgent,
		ProxyHTTP:  c.Proxy.HTTP,
		ProxyHTTPS: c.Proxy.HTTPS,
		Timeout:    c.Timeout,
	}
}
