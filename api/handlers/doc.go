/*
Package handlers 提供 modulebot 管理接口的请求处理器实现。

# 核心类型

  - ModuleHandler: 模块列表、查询、单模块生命周期操作与批量重新同步
  - HealthHandler: 服务健康检查（/health）与版本信息
  - Response: 统一 JSON 响应结构（success + data + error + timestamp）
  - ResponseWriter: 包装 http.ResponseWriter 以捕获状态码与响应大小

生命周期结果到 HTTP 状态码的映射：成功 200；not_found、not_available、
not_enabled 为 404；already_* 为 409；构造或重载失败为 422。
*/
package handlers
