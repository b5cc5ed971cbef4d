package types

import (
	"fmt"
	"net/url"
	"time"
)

const (
	DefaultMaxConcurrency   = 10
	DefaultTimeoutSeconds   = 5
	DefaultValidationTarget = "https://httpbin.org/ip"
	DefaultFetchAttempts    = 0 // 0 表示一直尝试，直到池中没有可用代理
	DefaultFetchTimeout     = 10
)

// PoolConf 包含验证阶段与代理池的配置
type PoolConf struct {
	MaxConcurrency   int    `ini:"max_concurrency"`
	TimeoutSeconds   int    `ini:"timeout_seconds"`
	ValidationTarget string `ini:"validation_target"`
}

// Timeout returns the per-check deadline.
func (c PoolConf) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SourceConf 描述候选代理列表从哪里来。三个来源可以同时配置，结果会合并。
type SourceConf struct {
	File      string `ini:"file"`
	RemoteURL string `ini:"remote_url"`
	HTMLURL   string `ini:"html_url"`
	HTMLRows  string `ini:"html_rows"`
	HTMLProto string `ini:"html_scheme"`
}

// ReportConf selects where validation results are recorded. Driver is "file", "sqlite" or empty.
type ReportConf struct {
	Driver string `ini:"driver"`
	Path   string `ini:"path"`
}

// ExportConf 导出当前可用代理列表
type ExportConf struct {
	ValidFile string `ini:"valid_file"`
}

// FetchConf configures the rotating fetcher.
type FetchConf struct {
	MaxAttempts    int `ini:"max_attempts"`
	TimeoutSeconds int `ini:"timeout_seconds"`
}

func (c FetchConf) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level"`
}

// Config 是项目的统一配置结构体
type Config struct {
	PoolConf   `ini:"pool"`
	SourceConf `ini:"source"`
	ReportConf `ini:"report"`
	ExportConf `ini:"export"`
	FetchConf  `ini:"fetch"`
	LogConf    `ini:"log"`
}

// NewDefaultConfig returns a Config populated with the built-in defaults.
func NewDefaultConfig() *Config {
	return &Config{
		PoolConf: PoolConf{
			MaxConcurrency:   DefaultMaxConcurrency,
			TimeoutSeconds:   DefaultTimeoutSeconds,
			ValidationTarget: DefaultValidationTarget,
		},
		SourceConf: SourceConf{
			HTMLRows: "table tbody tr",
		},
		FetchConf: FetchConf{
			MaxAttempts:    DefaultFetchAttempts,
			TimeoutSeconds: DefaultFetchTimeout,
		},
		LogConf: LogConf{Level: "info"},
	}
}

// Validate reports configuration errors. These are the only errors, besides
// an unreadable source, that are surfaced to the caller.
func (c *Config) Validate() error {
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("pool.max_concurrency must be at least 1, got %d", c.MaxConcurrency)
	}
	if c.PoolConf.TimeoutSeconds <= 0 {
		return fmt.Errorf("pool.timeout_seconds must be positive, got %d", c.PoolConf.TimeoutSeconds)
	}
	u, err := url.Parse(c.ValidationTarget)
	if err != nil {
		return fmt.Errorf("invalid pool.validation_target: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("pool.validation_target must be an absolute http(s) URL, got %q", c.ValidationTarget)
	}
	switch c.Driver {
	case "", "file", "sqlite":
	default:
		return fmt.Errorf("unknown report.driver %q", c.Driver)
	}
	if c.Driver != "" && c.ReportConf.Path == "" {
		return fmt.Errorf("report.path is required when report.driver is %q", c.Driver)
	}
	if c.FetchConf.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be positive, got %d", c.FetchConf.TimeoutSeconds)
	}
	return nil
}
