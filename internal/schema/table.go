package schema

import (
	"fmt"
	"strings"
)

// Table 是一个声明式的数据表模型。
type Table struct {
	Name   string  `yaml:"name"`
	Fields []Field `yaml:"fields"`
}

// Validate 检查表名、字段名以及字段类型。
func (t Table) Validate() error {
	if !validIdentifier(t.Name) {
		return fmt.Errorf("invalid table name %q", t.Name)
	}
	if len(t.Fields) == 0 {
		return fmt.Errorf("table %s has no fields", t.Name)
	}
	seen := make(map[string]struct{}, len(t.Fields))
	for _, f := range t.Fields {
		if err := f.validate(); err != nil {
			return fmt.Errorf("table %s: %w", t.Name, err)
		}
		key := strings.ToLower(f.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("table %s: duplicate column %s", t.Name, f.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// ValidateFor 在 Validate 的基础上检查方言相关的约束。
// SQLite 的自增主键只能内联在列定义中，无法与其他主键列组成联合主键。
func (t Table) ValidateFor(d Dialect) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if d != DialectSQLite {
		return nil
	}
	generated, keys := 0, 0
	for _, f := range t.Fields {
		if f.GeneratedID {
			generated++
		}
		if f.primaryKey() {
			keys++
		}
	}
	if generated > 0 && keys > 1 {
		return fmt.Errorf("table %s: sqlite generated id cannot be part of a composite primary key", t.Name)
	}
	return nil
}

// CreateStatement 生成建表语句。
func (t Table) CreateStatement(d Dialect) string {
	defs := make([]string, 0, len(t.Fields)+1)
	var keys []string
	inline := false
	for _, f := range t.Fields {
		defs = append(defs, f.definition(d))
		if f.inlinePrimaryKey(d) {
			inline = true
			continue
		}
		if f.primaryKey() {
			keys = append(keys, f.Name)
		}
	}
	if len(keys) > 0 && !inline {
		defs = append(defs, "PRIMARY KEY("+strings.Join(keys, ",")+")")
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", t.Name, strings.Join(defs, ", "))
}

// IndexStatements 按 单列索引、单列唯一索引、组合索引、组合唯一索引 的顺序生成建索引语句。
func (t Table) IndexStatements() []string {
	var stmts []string
	for _, f := range t.Fields {
		if f.Index {
			stmts = append(stmts, t.createIndex(false, t.singleIndexName(f, false), []string{f.Name}))
		}
	}
	for _, f := range t.Fields {
		if f.Unique {
			stmts = append(stmts, t.createIndex(true, t.singleIndexName(f, true), []string{f.Name}))
		}
	}
	for _, group := range t.groupBy(func(f Field) string { return f.IndexName }) {
		stmts = append(stmts, t.createIndex(false, group.name, group.columns))
	}
	for _, group := range t.groupBy(func(f Field) string { return f.UniqueIndexName }) {
		stmts = append(stmts, t.createIndex(true, group.name, group.columns))
	}
	return stmts
}

// AddColumnStatement 生成追加列的语句。
func (t Table) AddColumnStatement(d Dialect, f Field) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", t.Name, f.addColumnDefinition(d))
}

// singleIndexName 为单列索引命名，唯一索引使用 _uidx 后缀，同一列可以同时拥有两种索引。
func (t Table) singleIndexName(f Field, unique bool) string {
	if unique {
		return t.Name + "_" + f.Name + "_uidx"
	}
	return t.Name + "_" + f.Name + "_idx"
}

func (t Table) createIndex(unique bool, name string, columns []string) string {
	kind := "INDEX"
	if unique {
		kind = "UNIQUE INDEX"
	}
	return fmt.Sprintf("CREATE %s %s ON %s(%s)", kind, name, t.Name, strings.Join(columns, ","))
}

type indexGroup struct {
	name    string
	columns []string
}

// groupBy 按首次出现顺序聚合同名组合索引的列。
func (t Table) groupBy(key func(Field) string) []indexGroup {
	var groups []indexGroup
	positions := make(map[string]int)
	for _, f := range t.Fields {
		name := key(f)
		if name == "" {
			continue
		}
		pos, ok := positions[name]
		if !ok {
			pos = len(groups)
			positions[name] = pos
			groups = append(groups, indexGroup{name: name})
		}
		groups[pos].columns = append(groups[pos].columns, f.Name)
	}
	return groups
}

// dropIndexStatement 生成删除索引的语句。
func dropIndexStatement(d Dialect, table, index string) string {
	if d.mysqlFamily() {
		return fmt.Sprintf("DROP INDEX %s ON %s", index, table)
	}
	return "DROP INDEX IF EXISTS " + index
}
