// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/modulebot/module"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器，同时作为 module.Observer 接收生命周期事件
type Collector struct {
	registry *prometheus.Registry

	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 模块指标
	moduleOperationsTotal   *prometheus.CounterVec
	moduleOperationDuration *prometheus.HistogramVec
	moduleTeardownFailures  *prometheus.CounterVec
	modulesAvailable        prometheus.Gauge
	modulesEnabled          prometheus.Gauge

	logger *zap.Logger
}

var _ module.Observer = (*Collector)(nil)

// NewCollector 创建指标收集器。所有指标注册到独立的 Registry，
// 并附带 Go 运行时与进程指标。
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of admin HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "Admin HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
		},
		[]string{"method", "path"},
	)

	// 模块指标
	c.moduleOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "module_operations_total",
			Help:      "Total number of module lifecycle operations by outcome",
		},
		[]string{"op", "status"},
	)

	c.moduleOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "module_operation_duration_seconds",
			Help:      "Module lifecycle operation duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"op"},
	)

	c.moduleTeardownFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "module_teardown_failures_total",
			Help:      "Module instances whose Stop failed",
		},
		[]string{"module"},
	)

	c.modulesAvailable = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "modules_available",
		Help:      "Number of registered modules",
	})

	c.modulesEnabled = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "modules_enabled",
		Help:      "Number of running modules",
	})

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// Handler 返回 /metrics 端点
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry 返回底层 Registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🧩 模块生命周期 (module.Observer)
// =============================================================================

// OperationCompleted 记录一次生命周期操作
func (c *Collector) OperationCompleted(op module.Op, _ string, status module.Status, elapsed time.Duration) {
	c.moduleOperationsTotal.WithLabelValues(string(op), status.String()).Inc()
	c.moduleOperationDuration.WithLabelValues(string(op)).Observe(elapsed.Seconds())
}

// TeardownFailed 记录停止失败
func (c *Collector) TeardownFailed(name string) {
	c.moduleTeardownFailures.WithLabelValues(name).Inc()
}

// RegistryChanged 更新模块数量
func (c *Collector) RegistryChanged(available, enabled int) {
	c.modulesAvailable.Set(float64(available))
	c.modulesEnabled.Set(float64(enabled))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码归类
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return strconv.Itoa(code)
	}
}
