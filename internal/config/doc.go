// Package config 负责加载 AgentSwap 的 JSON 配置文件，补全默认值，并校验
// 存储、队列与路由服务等相互依赖的配置项。
package config
