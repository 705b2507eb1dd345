/*
Package main 提供 modulebot 程序入口。

# 子命令

  - serve: 加载配置、构建模块目录与管理器，启动管理接口与清单监听
  - modules: 通过管理接口查询或操作运行中实例的模块
  - health: 请求 /health 并以退出码报告结果
  - version: 打印构建注入的版本信息

# 管理接口

	GET  /health                    健康检查
	GET  /version                   版本信息
	GET  /metrics                   Prometheus 指标
	GET  /v1/modules                模块列表
	GET  /v1/modules/{name}         单个模块
	POST /v1/modules/{name}/{op}    add, remove, enable, disable, restart, reload
	POST /v1/modules:resync         按目录重新同步

中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、
Metrics、OTelTracing、RateLimiter（基于 IP）、JWTAuth（仅写操作）。
*/
package main
