package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Column 是数据库中已存在的列。
type Column struct {
	Name string
	Type string
}

// Index 是数据库中已存在的索引。
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Querier 抽象只读查询能力，*sql.DB 与 *sql.Tx 均满足该接口。
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// columnsQuery 返回读取表结构的语句。表名已在模型校验阶段限制为合法标识符。
func columnsQuery(d Dialect, table string) string {
	switch {
	case d == DialectSQLite:
		return "PRAGMA table_info(" + table + ")"
	case d == DialectPostgres, d == DialectH2:
		return "SELECT column_name, data_type FROM information_schema.columns WHERE UPPER(table_name) = '" + strings.ToUpper(table) + "'"
	default:
		return "SHOW COLUMNS FROM " + table
	}
}

// ReadColumns 读取表中已存在的列，表不存在时返回空列表。
func ReadColumns(ctx context.Context, q Querier, d Dialect, table string) ([]Column, error) {
	records, err := queryRecords(ctx, q, columnsQuery(d, table))
	if err != nil {
		return nil, err
	}
	columns := make([]Column, 0, len(records))
	for _, rec := range records {
		switch {
		case d == DialectSQLite:
			columns = append(columns, Column{Name: rec.get("name"), Type: rec.get("type")})
		case d == DialectPostgres, d == DialectH2:
			columns = append(columns, Column{Name: rec.get("column_name"), Type: rec.get("data_type")})
		default:
			// SHOW COLUMNS 返回 Field, Type, Null, Key, Default, Extra。
			columns = append(columns, Column{Name: rec.at(0), Type: rec.at(1)})
		}
	}
	return columns, nil
}

// ReadIndexes 读取表中已存在的索引。PostgreSQL 与 H2 暂不读取索引，返回空列表。
func ReadIndexes(ctx context.Context, q Querier, d Dialect, table string) ([]Index, error) {
	switch {
	case d == DialectSQLite:
		return readSQLiteIndexes(ctx, q, table)
	case d.mysqlFamily():
		return readMySQLIndexes(ctx, q, table)
	default:
		return nil, nil
	}
}

func readMySQLIndexes(ctx context.Context, q Querier, table string) ([]Index, error) {
	records, err := queryRecords(ctx, q, "SHOW INDEX FROM "+table)
	if err != nil {
		return nil, err
	}
	var indexes []Index
	positions := make(map[string]int)
	for _, rec := range records {
		name := rec.get("key_name")
		pos, ok := positions[name]
		if !ok {
			pos = len(indexes)
			positions[name] = pos
			indexes = append(indexes, Index{Name: name})
		}
		indexes[pos].Columns = append(indexes[pos].Columns, rec.get("column_name"))
		indexes[pos].Unique = rec.get("non_unique") != "1"
	}
	return indexes, nil
}

func readSQLiteIndexes(ctx context.Context, q Querier, table string) ([]Index, error) {
	records, err := queryRecords(ctx, q, "PRAGMA index_list("+table+")")
	if err != nil {
		return nil, err
	}
	indexes := make([]Index, 0, len(records))
	for _, rec := range records {
		indexes = append(indexes, Index{Name: rec.get("name"), Unique: rec.get("unique") == "1"})
	}
	// index_list 的结果集关闭后再逐个读取列，避免单连接池上的嵌套查询。
	for i := range indexes {
		if !validIdentifier(indexes[i].Name) {
			continue
		}
		cols, err := queryRecords(ctx, q, "PRAGMA index_info("+indexes[i].Name+")")
		if err != nil {
			return nil, err
		}
		for _, col := range cols {
			indexes[i].Columns = append(indexes[i].Columns, col.get("name"))
		}
	}
	return indexes, nil
}

type record struct {
	columns []string
	values  []sql.NullString
}

func (r record) get(name string) string {
	for i, col := range r.columns {
		if strings.EqualFold(col, name) {
			return r.values[i].String
		}
	}
	return ""
}

func (r record) at(i int) string {
	if i < 0 || i >= len(r.values) {
		return ""
	}
	return r.values[i].String
}

func queryRecords(ctx context.Context, q Querier, query string) ([]record, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", query, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns of %q: %w", query, err)
	}

	var records []record
	for rows.Next() {
		values := make([]sql.NullString, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %q: %w", query, err)
		}
		records = append(records, record{columns: columns, values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %q: %w", query, err)
	}
	return records, nil
}
