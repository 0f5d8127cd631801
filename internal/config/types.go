package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if seconds, err := time.ParseDuration(raw); err == nil {
		*d = Duration(seconds)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// 比赛列表的数据来源。
const (
	MatchesSourceStatic   = "static"
	MatchesSourceUpstream = "upstream"
)

// GlobalConfig 描述进程级运行时行为：监听端口、日志、缓存与观测开关。
type GlobalConfig struct {
	ListenPort       int      `mapstructure:"ListenPort"`
	LogLevel         string   `mapstructure:"LogLevel"`
	LogFilePath      string   `mapstructure:"LogFilePath"`
	LogMaxSize       int      `mapstructure:"LogMaxSize"`
	LogMaxBackups    int      `mapstructure:"LogMaxBackups"`
	LogCompress      bool     `mapstructure:"LogCompress"`
	UpstreamTimeout  Duration `mapstructure:"UpstreamTimeout"`
	BadgeCacheSize   int      `mapstructure:"BadgeCacheSize"`
	MatchesSource    string   `mapstructure:"MatchesSource"`
	MatchesFile      string   `mapstructure:"MatchesFile"`
	CORSAllowOrigins []string `mapstructure:"CORSAllowOrigins"`
	MetricsEnabled   bool     `mapstructure:"MetricsEnabled"`
	TracingEnabled   bool     `mapstructure:"TracingEnabled"`
}

// UpstreamConfig 决定如何访问聊天服务与赛事元数据服务。
type UpstreamConfig struct {
	ChatBaseURL      string `mapstructure:"ChatBaseURL"`
	ChatModel        string `mapstructure:"ChatModel"`
	OpenRouterAPIKey string `mapstructure:"OpenRouterAPIKey"`
	MetadataBaseURL  string `mapstructure:"MetadataBaseURL"`
	ImagesBaseURL    string `mapstructure:"ImagesBaseURL"`
	UserAgent        string `mapstructure:"UserAgent"`
}

// Config 是 TOML 文件 + 环境变量映射的整体结构，所有键都位于顶层。
type Config struct {
	Global    GlobalConfig   `mapstructure:",squash"`
	Upstreams UpstreamConfig `mapstructure:",squash"`
}

// HasAPIKey 表示是否配置了聊天上游的 Bearer token。
func (u UpstreamConfig) HasAPIKey() bool {
	return strings.TrimSpace(u.OpenRouterAPIKey) != ""
}

// AuthMode 输出 `bearer` 或 `anonymous`，供日志字段使用。
func (u UpstreamConfig) AuthMode() string {
	if u.HasAPIKey() {
		return "bearer"
	}
	return "anonymous"
}
