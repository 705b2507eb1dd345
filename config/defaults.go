// =============================================================================
// 📦 modulebot 默认配置
// =============================================================================
package config

import (
	"time"

	"github.com/BaSui01/modulebot/host"
	"github.com/BaSui01/modulebot/internal/configstore"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Modules:   DefaultModulesConfig(),
		Server:    DefaultServerConfig(),
		Store:     configstore.DefaultConfig(),
		Host:      host.DefaultConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultModulesConfig 返回默认模块配置
func DefaultModulesConfig() ModulesConfig {
	return ModulesConfig{
		Source:           "builtin",
		ManifestDir:      "modules.d",
		OperationTimeout: 30 * time.Second,
		WatchInterval:    2 * time.Second,
		DebounceDelay:    500 * time.Millisecond,
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "modulebot",
		SampleRate:   0.1,
	}
}
