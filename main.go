package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/stream-relay/stream-relay/internal/cache"
	"github.com/stream-relay/stream-relay/internal/config"
	"github.com/stream-relay/stream-relay/internal/logging"
	"github.com/stream-relay/stream-relay/internal/matches"
	"github.com/stream-relay/stream-relay/internal/metrics"
	"github.com/stream-relay/stream-relay/internal/proxy"
	"github.com/stream-relay/stream-relay/internal/server"
	"github.com/stream-relay/stream-relay/internal/server/routes"
	"github.com/stream-relay/stream-relay/internal/telemetry"
	"github.com/stream-relay/stream-relay/internal/upstream"
	"github.com/stream-relay/stream-relay/internal/version"
)

const defaultConfigFile = "config.toml"

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	envFile     string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	if opts.envFile != "" {
		if err := config.LoadDotEnv(opts.envFile); err != nil {
			fmt.Fprintf(stdErr, "加载 .env 失败: %v\n", err)
			return 1
		}
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["auth_mode"] = cfg.Upstreams.AuthMode()
		fields["matches_source"] = cfg.Global.MatchesSource
		fields["badge_cache_size"] = cfg.Global.BadgeCacheSize
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	var shutdownTracer func(context.Context) error
	if cfg.Global.TracingEnabled {
		shutdownTracer, err = telemetry.InitTracer("stream-relay", stdErr, logger)
		if err != nil {
			fmt.Fprintf(stdErr, "初始化 tracing 失败: %v\n", err)
			return 1
		}
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				logger.WithError(err).Warn("tracer_shutdown_failed")
			}
		}()
	}

	app, err := buildApp(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "构建 HTTP 服务失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["auth_mode"] = cfg.Upstreams.AuthMode()
	fields["matches_source"] = cfg.Global.MatchesSource
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")
	if !cfg.Upstreams.HasAPIKey() {
		logger.WithFields(logging.BaseFields("startup", opts.configPath)).
			Warn("OPENROUTER_API_KEY 未设置，/ask 请求将以匿名方式发往上游")
	}

	if err := startHTTPServer(app, cfg.Global.ListenPort, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// buildApp 按“配置 → 上游注册表 → 共享 http.Client → 徽章缓存/比赛数据源 → Fiber”顺序装配，
// 所有请求共享同一份缓存与客户端实例。
func buildApp(cfg *config.Config, logger *logrus.Logger) (*fiber.App, error) {
	var collector *metrics.Collector
	if cfg.Global.MetricsEnabled {
		collector = metrics.NewCollector(nil)
	}

	registry, err := upstream.NewRegistry(cfg)
	if err != nil {
		return nil, fmt.Errorf("构建上游注册表失败: %w", err)
	}

	httpClient := server.NewUpstreamClient(cfg)
	client, err := upstream.NewClient(upstream.Options{
		HTTPClient: httpClient,
		Registry:   registry,
		UserAgent:  cfg.Upstreams.UserAgent,
		Metrics:    collector,
	})
	if err != nil {
		return nil, err
	}

	chatRoute, _ := registry.Lookup(upstream.NameChat)
	chat, err := upstream.NewChatClient(upstream.ChatOptions{
		HTTPClient: httpClient,
		Route:      chatRoute,
		APIKey:     cfg.Upstreams.OpenRouterAPIKey,
		Model:      cfg.Upstreams.ChatModel,
		Metrics:    collector,
	})
	if err != nil {
		return nil, err
	}

	store, err := cache.NewStore(cfg.Global.BadgeCacheSize)
	if err != nil {
		return nil, fmt.Errorf("初始化徽章缓存失败: %w", err)
	}
	badges, err := cache.NewBadgeCache(store, client, collector)
	if err != nil {
		return nil, err
	}

	source, err := matches.NewSource(cfg, client)
	if err != nil {
		return nil, fmt.Errorf("初始化比赛数据源失败: %w", err)
	}

	handler := proxy.NewHandler(proxy.Options{
		Client:  client,
		Chat:    chat,
		Badges:  badges,
		Matches: source,
		Logger:  logger,
		Metrics: collector,
	})

	app, err := server.NewApp(server.AppOptions{
		Logger:       logger,
		Routes:       handler,
		ListenPort:   cfg.Global.ListenPort,
		AllowOrigins: cfg.Global.CORSAllowOrigins,
	})
	if err != nil {
		return nil, err
	}
	routes.RegisterDiagnosticRoutes(app, routes.DiagnosticsOptions{
		Registry: registry,
		Badges:   badges,
		AuthMode: cfg.Upstreams.AuthMode(),
		Version:  version.Full(),
	})
	routes.RegisterMetricsRoute(app, collector)
	return app, nil
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	flags := flag.NewFlagSet("stream-relay", flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	var (
		configFlag string
		envFile    string
		checkOnly  bool
		showVer    bool
	)

	flags.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 STREAM_RELAY_CONFIG 覆盖；文件不存在时仅使用环境变量）")
	flags.StringVar(&envFile, "env-file", ".env", "启动前加载的 .env 文件，留空跳过")
	flags.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	flags.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := flags.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("STREAM_RELAY_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = defaultConfigPath()
	}

	return cliOptions{
		configPath:  path,
		envFile:     envFile,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

// defaultConfigPath 仅在工作目录存在 config.toml 时使用它，否则返回空串表示纯环境变量模式。
func defaultConfigPath() string {
	if _, err := os.Stat(defaultConfigFile); errors.Is(err, fs.ErrNotExist) {
		return ""
	}
	return defaultConfigFile
}

func startHTTPServer(app *fiber.App, port int, logger *logrus.Logger) error {
	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
