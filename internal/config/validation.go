package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.UpstreamTimeout.DurationValue() < 0 {
		return newFieldError("Global.UpstreamTimeout", "不能为负数")
	}
	if g.BadgeCacheSize < 0 {
		return newFieldError("Global.BadgeCacheSize", "不能为负数")
	}
	if g.LogMaxSize < 0 || g.LogMaxBackups < 0 {
		return newFieldError("Global.LogMaxSize/LogMaxBackups", "不能为负数")
	}
	switch g.MatchesSource {
	case MatchesSourceStatic, MatchesSourceUpstream:
	default:
		return newFieldError("Global.MatchesSource", "仅支持 static/upstream")
	}
	for _, origin := range g.CORSAllowOrigins {
		if strings.TrimSpace(origin) == "" {
			return newFieldError("Global.CORSAllowOrigins", "不允许空字符串")
		}
	}

	u := c.Upstreams
	if err := validateUpstream(u.ChatBaseURL); err != nil {
		return fmt.Errorf("%s: %w", upstreamField("ChatBaseURL"), err)
	}
	if err := validateUpstream(u.MetadataBaseURL); err != nil {
		return fmt.Errorf("%s: %w", upstreamField("MetadataBaseURL"), err)
	}
	if err := validateUpstream(u.ImagesBaseURL); err != nil {
		return fmt.Errorf("%s: %w", upstreamField("ImagesBaseURL"), err)
	}
	if strings.TrimSpace(u.ChatModel) == "" {
		return newFieldError(upstreamField("ChatModel"), "不能为空")
	}
	if strings.ContainsAny(u.UserAgent, "\r\n") {
		return newFieldError(upstreamField("UserAgent"), "不允许包含换行")
	}

	return nil
}

func validateUpstream(raw string) error {
	if raw == "" {
		return errors.New("缺少上游地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，上游: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("上游缺少 Host: %s", raw)
	}
	return nil
}
