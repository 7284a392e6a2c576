// Package migrations 内置 MySQL 表结构迁移脚本，文件名以四位版本号开头。
package migrations

import "embed"

// Files 包含全部 *.sql 迁移文件。
//
//go:embed *.sql
var Files embed.FS
