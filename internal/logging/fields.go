package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供路由/上游/缓存命中字段，供代理请求日志复用。
func RequestFields(route, upstream, method, path string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"route":     route,
		"upstream":  upstream,
		"method":    method,
		"path":      path,
		"cache_hit": cacheHit,
	}
}
