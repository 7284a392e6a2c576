// Package api 实现 direct 客户端：通过 HTTP 接收发给代理的消息，
// 并提供任务查询、代理列表、健康检查与 Prometheus 指标接口。
package api
