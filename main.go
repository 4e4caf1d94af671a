package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/voice-hub/voice-hub/internal/cache"
	"github.com/voice-hub/voice-hub/internal/config"
	"github.com/voice-hub/voice-hub/internal/executor"
	"github.com/voice-hub/voice-hub/internal/logging"
	"github.com/voice-hub/voice-hub/internal/provider"
	"github.com/voice-hub/voice-hub/internal/server"
	"github.com/voice-hub/voice-hub/internal/speech"
	"github.com/voice-hub/voice-hub/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
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
		fields["workers"] = cfg.Executor.Workers
		fields["max_memory_items"] = cfg.Cache.MaxMemoryItems
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	secrets, err := config.LoadSecrets()
	if err != nil {
		fmt.Fprintf(stdErr, "加载密钥失败: %v\n", err)
		return 1
	}

	// 启动遵循“配置 → 磁盘缓存 → 工作池 → Provider → 服务 → Fiber server”顺序，
	// 保证所有请求共享同一组缓存与工作池实例。
	disk, err := cache.NewDiskTier(cfg.Cache.StoragePath)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存目录失败: %v\n", err)
		return 1
	}
	memory := cache.NewMemoryTier(cfg.Cache.MaxMemoryItems)
	store := cache.NewTiered(memory, disk, cfg.Cache.ExpiryWindow.DurationValue(), logger)

	janitor := cache.NewJanitor(
		memory,
		disk,
		cfg.Cache.ExpiryWindow.DurationValue(),
		cfg.Cache.DiskRetention.DurationValue(),
		cfg.Cache.SweepInterval.DurationValue(),
		logger,
	)
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go janitor.Run(janitorCtx)

	pool := executor.NewPool(executor.Options{
		Workers:       cfg.Executor.Workers,
		CallTimeout:   cfg.Executor.CallTimeout.DurationValue(),
		RatePerSecond: cfg.Executor.RatePerSecond,
		RateBurst:     cfg.Executor.RateBurst,
		Logger:        logger,
	})
	defer pool.Close()

	httpClient := provider.NewHTTPClient()
	svc := speech.NewService(speech.Options{
		Store:       store,
		Pool:        pool,
		Synthesizer: provider.NewCartesia(cfg.Provider.CartesiaBaseURL, secrets.CartesiaAPIKey, httpClient),
		Transcriber: provider.NewDeepgram(cfg.Provider.DeepgramBaseURL, secrets.DeepgramAPIKey, httpClient),
		Chat:        provider.NewGemini(cfg.Provider.GeminiBaseURL, cfg.Provider.GeminiModel, secrets.GeminiAPIKey, httpClient),
		History:     speech.NewHistory(cfg.Chat.HistoryDepth),
		Active:      speech.NewActiveRegistry(),
		Logger:      logger,
		ResultWait:  cfg.Executor.RequestTimeout.DurationValue(),
	})

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["storage_path"] = cfg.Cache.StoragePath
	fields["workers"] = cfg.Executor.Workers
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, svc, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("voice-hub", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 VOICE_HUB_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("VOICE_HUB_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(cfg *config.Config, svc *speech.Service, logger *logrus.Logger) error {
	app, err := server.NewApp(server.AppOptions{
		Logger:  logger,
		Service: svc,
	})
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   cfg.Global.ListenPort,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", cfg.Global.ListenPort))
}
