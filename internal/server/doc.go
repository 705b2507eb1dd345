/*
Package server 提供管理接口 HTTP/HTTPS 服务器的生命周期管理。

Manager 封装 net/http.Server：Start 非阻塞启动，Run 阻塞直到
context 结束后优雅关闭，Errors 暴露异步服务错误。Config.TLS
非空时监听器包装为 TLS，证书由 tlsutil.ServerTLSConfig 加载。
*/
package server
