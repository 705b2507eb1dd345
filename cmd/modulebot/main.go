// =============================================================================
// modulebot 主入口
// =============================================================================
// 运行机器人模块管理器，通过管理接口驱动模块生命周期
//
// 使用方法:
//
//	modulebot serve                          # 启动服务
//	modulebot serve --config modulebot.yaml  # 指定配置文件
//	modulebot modules list                   # 列出模块
//	modulebot modules enable greeter         # 启用模块
//	modulebot modules resync                 # 按目录重新同步
//	modulebot health                         # 健康检查
//	modulebot version                        # 显示版本信息
// =============================================================================

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/modulebot/config"
	"github.com/BaSui01/modulebot/internal/tlsutil"
	"github.com/BaSui01/modulebot/module"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "modules":
		os.Exit(runModules(os.Args[2:], os.Stdout, os.Stderr))
	case "health":
		runHealthCheck(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting modulebot",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to start modulebot", zap.Error(err))
	}
	runErr := app.Run(ctx)
	app.Close(ctx)
	if runErr != nil {
		logger.Error("modulebot exited with error", zap.Error(runErr))
		os.Exit(1)
	}
	logger.Info("modulebot stopped")
}

// =============================================================================
// 🧩 modules 命令
// =============================================================================

// runModules drives the admin API of a running instance and returns the
// process exit code.
func runModules(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("modules", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", "http://localhost:8080", "Admin server address")
	secret := fs.String("jwt-secret", os.Getenv("MODULEBOT_SERVER_AUTH_JWT_SECRET"), "HS256 secret for mutating calls")
	issuer := fs.String("jwt-issuer", os.Getenv("MODULEBOT_SERVER_AUTH_ISSUER"), "Token issuer")
	audience := fs.String("jwt-audience", os.Getenv("MODULEBOT_SERVER_AUTH_AUDIENCE"), "Token audience")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	method, path, err := modulesRequest(fs.Args())
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	req, err := http.NewRequest(method, strings.TrimRight(*addr, "/")+path, nil)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if method == http.MethodPost && *secret != "" {
		token, err := signToken(config.AuthConfig{JWTSecret: *secret, Issuer: *issuer, Audience: *audience}, "cli", 5*time.Minute)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := tlsutil.SecureHTTPClient(adminTimeout).Do(req)
	if err != nil {
		fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	var body json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		fmt.Fprintf(stderr, "invalid response (status %d): %v\n", resp.StatusCode, err)
		return 1
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(body)

	if resp.StatusCode >= http.StatusBadRequest {
		return 1
	}
	return 0
}

// modulesRequest maps CLI words onto an admin API call.
func modulesRequest(words []string) (method, path string, err error) {
	switch {
	case len(words) == 0 || (len(words) == 1 && words[0] == "list"):
		return http.MethodGet, "/v1/modules", nil
	case len(words) == 1 && words[0] == "resync":
		return http.MethodPost, "/v1/modules:resync", nil
	case len(words) == 2 && words[0] == "info":
		return http.MethodGet, "/v1/modules/" + words[1], nil
	case len(words) == 2:
		op, ok := module.ParseOp(words[0])
		if !ok {
			return "", "", fmt.Errorf("unknown operation: %s", words[0])
		}
		return http.MethodPost, "/v1/modules/" + words[1] + "/" + string(op), nil
	}
	return "", "", fmt.Errorf("usage: modulebot modules [list | info <name> | resync | <op> <name>]")
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	_ = fs.Parse(args)

	resp, err := tlsutil.SecureHTTPClient(5 * time.Second).Get(*addr + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}
	fmt.Println("OK")
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("modulebot %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`modulebot - chat bot module manager

Usage:
  modulebot <command> [options]

Commands:
  serve     Start the bot and its admin server
  modules   Inspect or change modules of a running instance
  health    Check server health
  version   Show version information
  help      Show this help message

Options for 'serve':
  --config <path>   Path to configuration file (YAML)

Modules subcommands:
  modules list              List every known module
  modules info <name>       Show one module
  modules <op> <name>       Run add, remove, enable, disable, restart or reload
  modules resync            Reconcile the registry with the catalog

Examples:
  modulebot serve --config /etc/modulebot/modulebot.yaml
  modulebot modules enable greeter
  modulebot modules --addr https://bot.internal:8443 reload counter
  modulebot health --addr http://localhost:8080`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}
	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      encoding == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}

	var opts []zap.Option
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	logger, err := zapConfig.Build(opts...)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
