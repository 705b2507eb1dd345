// Package config 提供 modulebot 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → MODULEBOT_* 环境变量 的顺序加载，
// 涵盖模块来源与黑名单、管理接口、配置存储、输出限速、日志与遥测。
package config
