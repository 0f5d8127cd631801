package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/stream-relay/stream-relay/internal/version"
)

// envBindings 记录配置键与环境变量的对应关系，环境变量优先级高于配置文件。
var envBindings = map[string]string{
	"ListenPort":       "PORT",
	"LogLevel":         "LOG_LEVEL",
	"LogFilePath":      "LOG_FILE_PATH",
	"UpstreamTimeout":  "UPSTREAM_TIMEOUT",
	"BadgeCacheSize":   "BADGE_CACHE_SIZE",
	"MatchesSource":    "MATCHES_SOURCE",
	"MatchesFile":      "MATCHES_FILE",
	"CORSAllowOrigins": "CORS_ALLOW_ORIGINS",
	"MetricsEnabled":   "METRICS_ENABLED",
	"TracingEnabled":   "TRACING_ENABLED",
	"ChatBaseURL":      "CHAT_BASE_URL",
	"ChatModel":        "CHAT_MODEL",
	"OpenRouterAPIKey": "OPENROUTER_API_KEY",
	"MetadataBaseURL":  "METADATA_BASE_URL",
	"ImagesBaseURL":    "IMAGES_BASE_URL",
	"UserAgent":        "UPSTREAM_USER_AGENT",
}

// LoadDotEnv 将 .env 文件中的变量注入进程环境；文件不存在时静默跳过，已有变量不会被覆盖。
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("读取 .env 失败: %w", err)
	}
	return nil
}

// Load 读取可选的 TOML 配置文件与环境变量，注入默认值并完成校验。
// path 为空时仅使用默认值 + 环境变量。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	var cfg Config
	hook := mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	applyUpstreamDefaults(&cfg.Upstreams)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("UpstreamTimeout", "30s")
	v.SetDefault("BadgeCacheSize", 0)
	v.SetDefault("MatchesSource", MatchesSourceStatic)
	v.SetDefault("MatchesFile", "")
	v.SetDefault("CORSAllowOrigins", []string{"*"})
	v.SetDefault("MetricsEnabled", true)
	v.SetDefault("TracingEnabled", false)

	v.SetDefault("ChatBaseURL", "https://openrouter.ai/api/v1")
	v.SetDefault("ChatModel", "openai/gpt-3.5-turbo")
	v.SetDefault("OpenRouterAPIKey", "")
	v.SetDefault("MetadataBaseURL", "https://streamed.su/api")
	v.SetDefault("ImagesBaseURL", "https://streamed.su/api/images/badge")
	v.SetDefault("UserAgent", version.UserAgent())
}

func bindEnv(v *viper.Viper) error {
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("绑定环境变量 %s 失败: %w", env, err)
		}
	}
	return nil
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if strings.TrimSpace(g.LogLevel) == "" {
		g.LogLevel = "info"
	}
	g.MatchesSource = strings.ToLower(strings.TrimSpace(g.MatchesSource))
	if g.MatchesSource == "" {
		g.MatchesSource = MatchesSourceStatic
	}
	if len(g.CORSAllowOrigins) == 0 {
		g.CORSAllowOrigins = []string{"*"}
	}
}

func applyUpstreamDefaults(u *UpstreamConfig) {
	u.ChatBaseURL = strings.TrimRight(strings.TrimSpace(u.ChatBaseURL), "/")
	u.MetadataBaseURL = strings.TrimRight(strings.TrimSpace(u.MetadataBaseURL), "/")
	u.ImagesBaseURL = strings.TrimRight(strings.TrimSpace(u.ImagesBaseURL), "/")
	if strings.TrimSpace(u.UserAgent) == "" {
		u.UserAgent = version.UserAgent()
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
