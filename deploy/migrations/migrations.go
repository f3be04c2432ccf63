package migrations

import "embed"

// Files 暴露迁移历史库自身使用的 SQL 迁移文件。
//
//go:embed *.sql
var Files embed.FS
