package schema

import "strings"

// StatementKind 区分计划中的语句类型。
type StatementKind string

const (
	KindCreateTable StatementKind = "create_table"
	KindCreateIndex StatementKind = "create_index"
	KindAddColumn   StatementKind = "add_column"
	KindDropIndex   StatementKind = "drop_index"
)

// Statement 是计划中的一条 DDL 语句。
type Statement struct {
	Table string        `json:"table"`
	Kind  StatementKind `json:"kind"`
	SQL   string        `json:"sql"`
}

// Plan 是按执行顺序排列的 DDL 语句。
type Plan struct {
	Dialect    Dialect     `json:"dialect"`
	Statements []Statement `json:"statements"`
}

// Empty 表示数据库已与模型一致。
func (p Plan) Empty() bool {
	return len(p.Statements) == 0
}

// Script 以分号分隔输出完整的 SQL 脚本。
func (p Plan) Script() string {
	if p.Empty() {
		return ""
	}
	var b strings.Builder
	for _, stmt := range p.Statements {
		b.WriteString(stmt.SQL)
		b.WriteString(";\n")
	}
	return b.String()
}

// Count 统计指定类型的语句数量。
func (p Plan) Count(kind StatementKind) int {
	n := 0
	for _, stmt := range p.Statements {
		if stmt.Kind == kind {
			n++
		}
	}
	return n
}

func (p *Plan) add(table string, kind StatementKind, sql string) {
	p.Statements = append(p.Statements, Statement{Table: table, Kind: kind, SQL: sql})
}
