package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind 是字段的逻辑类型，生成 DDL 时映射到各方言的列类型。
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindLong   Kind = "long"
	KindBool   Kind = "bool"
	KindFloat  Kind = "float"
	KindDouble Kind = "double"
	KindTime   Kind = "time"
	KindBytes  Kind = "bytes"
)

const defaultStringWidth = 255

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// Field 描述模型中一个映射到数据库列的字段。
type Field struct {
	Name            string `yaml:"name"`
	Kind            Kind   `yaml:"type"`
	ID              bool   `yaml:"id"`
	GeneratedID     bool   `yaml:"generatedId"`
	Index           bool   `yaml:"index"`
	Unique          bool   `yaml:"unique"`
	IndexName       string `yaml:"indexName"`
	UniqueIndexName string `yaml:"uniqueIndexName"`
	Width           int    `yaml:"width"`
	NotNull         bool   `yaml:"notNull"`
}

func (f Field) primaryKey() bool {
	return f.ID || f.GeneratedID
}

func (f Field) validate() error {
	if !validIdentifier(f.Name) {
		return fmt.Errorf("invalid column name %q", f.Name)
	}
	switch f.Kind {
	case KindString, KindInt, KindLong, KindBool, KindFloat, KindDouble, KindTime, KindBytes:
	default:
		return fmt.Errorf("column %s: unknown type %q", f.Name, f.Kind)
	}
	for _, name := range []string{f.IndexName, f.UniqueIndexName} {
		if name != "" && !validIdentifier(name) {
			return fmt.Errorf("column %s: invalid index name %q", f.Name, name)
		}
	}
	if f.GeneratedID && f.Kind != KindInt && f.Kind != KindLong {
		return fmt.Errorf("column %s: generated ids must be int or long", f.Name)
	}
	return nil
}

// sqlType 返回字段在指定方言中的列类型。
func (f Field) sqlType(d Dialect) string {
	switch f.Kind {
	case KindString:
		width := f.Width
		if width <= 0 {
			width = defaultStringWidth
		}
		return fmt.Sprintf("VARCHAR(%d)", width)
	case KindInt:
		return "INTEGER"
	case KindLong:
		return "BIGINT"
	case KindBool:
		return "BOOLEAN"
	case KindFloat:
		if d == DialectSQLite || d.mysqlFamily() {
			return "FLOAT"
		}
		return "REAL"
	case KindDouble:
		if d.mysqlFamily() || d == DialectH2 {
			return "DOUBLE"
		}
		return "DOUBLE PRECISION"
	case KindTime:
		if d.mysqlFamily() {
			return "DATETIME"
		}
		return "TIMESTAMP"
	case KindBytes:
		if d == DialectPostgres {
			return "BYTEA"
		}
		return "BLOB"
	default:
		return "VARCHAR(255)"
	}
}

// inlinePrimaryKey 表示该字段是否在列定义中直接声明主键（SQLite 自增主键）。
func (f Field) inlinePrimaryKey(d Dialect) bool {
	return d == DialectSQLite && f.GeneratedID
}

// definition 生成 CREATE TABLE 中的列定义。
func (f Field) definition(d Dialect) string {
	if f.inlinePrimaryKey(d) {
		return f.Name + " INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	var b strings.Builder
	b.WriteString(f.Name)
	b.WriteByte(' ')
	if f.GeneratedID && d == DialectPostgres {
		if f.Kind == KindLong {
			b.WriteString("BIGSERIAL")
		} else {
			b.WriteString("SERIAL")
		}
		return b.String()
	}
	b.WriteString(f.sqlType(d))
	if f.NotNull || f.primaryKey() {
		b.WriteString(" NOT NULL")
	}
	if f.GeneratedID {
		b.WriteString(" AUTO_INCREMENT")
	}
	return b.String()
}

// addColumnDefinition 生成 ALTER TABLE ADD COLUMN 使用的列定义。
// 已有数据的表既不能追加主键，也不能追加无默认值的非空列，因此只保留类型。
func (f Field) addColumnDefinition(d Dialect) string {
	plain := f
	plain.ID = false
	plain.GeneratedID = false
	plain.NotNull = false
	return plain.definition(d)
}
