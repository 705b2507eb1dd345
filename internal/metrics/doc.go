/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖管理接口 HTTP 请求
与模块生命周期两大维度。

# 核心类型

  - Collector：指标收集器，实现 module.Observer，拥有独立的
    prometheus.Registry，通过 Handler 暴露 /metrics。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、响应体大小，
    按 method/path/status 分组，状态码归类为 2xx/3xx/4xx/5xx。
  - 模块指标：操作总数（op/status）、操作耗时、停止失败计数，
    以及已注册与运行中模块数量的 Gauge。
*/
package metrics
