package schema

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-sql-driver/mysql"

	xerrors "Snowz-Migrator/internal/errors"
	"Snowz-Migrator/pkg/logger"
)

// MySQL 在列或索引已存在时返回的错误码，并发迁移时视为已完成。
const (
	mysqlDuplicateColumn  = 1060
	mysqlDuplicateKeyName = 1061
)

// DB 是迁移器需要的最小数据库能力。
type DB interface {
	Querier
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Failure 记录一条执行失败的语句。
type Failure struct {
	Statement Statement
	Err       error
}

// Result 汇总一次迁移的执行情况。
type Result struct {
	Plan     Plan
	Applied  int
	Skipped  int
	Failures []Failure
}

// Migrator 对比模型与数据库现状，生成并执行迁移计划。
type Migrator struct {
	db      DB
	dialect Dialect
	tables  []Table
	log     *slog.Logger
}

// Option 定义 Migrator 的可选配置。
type Option func(*Migrator)

// WithLogger 指定运行日志。
func WithLogger(l *slog.Logger) Option {
	return func(m *Migrator) {
		if l != nil {
			m.log = l
		}
	}
}

// NewMigrator 创建迁移器。
func NewMigrator(db DB, dialect Dialect, opts ...Option) *Migrator {
	m := &Migrator{db: db, dialect: dialect, log: logger.Named("schema")}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Model 追加需要迁移的表模型。
func (m *Migrator) Model(tables ...Table) *Migrator {
	m.tables = append(m.tables, tables...)
	return m
}

// Plan 生成迁移计划但不执行。读取表结构失败时记录日志并按空表处理。
func (m *Migrator) Plan(ctx context.Context) (Plan, error) {
	plan := Plan{Dialect: m.dialect}
	for _, table := range m.tables {
		if err := ctx.Err(); err != nil {
			return Plan{}, err
		}
		if err := table.ValidateFor(m.dialect); err != nil {
			return Plan{}, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "invalid model")
		}

		existing, err := ReadColumns(ctx, m.db, m.dialect, table.Name)
		if err != nil {
			m.log.Error("读取表结构失败", slog.String("table", table.Name), slog.Any("error", err))
			existing = nil
		}

		if len(existing) == 0 {
			indexes, err := ReadIndexes(ctx, m.db, m.dialect, table.Name)
			if err != nil {
				m.log.Error("读取索引失败", slog.String("table", table.Name), slog.Any("error", err))
			}
			for _, idx := range indexes {
				if droppable(m.dialect, idx.Name) {
					plan.add(table.Name, KindDropIndex, dropIndexStatement(m.dialect, table.Name, idx.Name))
				}
			}
			plan.add(table.Name, KindCreateTable, table.CreateStatement(m.dialect))
			for _, stmt := range table.IndexStatements() {
				plan.add(table.Name, KindCreateIndex, stmt)
			}
			continue
		}

		missing := missingFields(table.Fields, existing)
		if len(missing) == 0 {
			m.log.Debug("没有新增字段", slog.String("table", table.Name))
			continue
		}
		m.log.Info("发现新增字段", slog.String("table", table.Name), slog.Int("count", len(missing)))
		for _, f := range missing {
			plan.add(table.Name, KindAddColumn, table.AddColumnStatement(m.dialect, f))
		}
	}
	return plan, nil
}

// Migrate 生成并执行迁移计划。单条语句失败不会中断后续语句，所有失败汇总为 MIGRATION_FAILED。
func (m *Migrator) Migrate(ctx context.Context) (Result, error) {
	plan, err := m.Plan(ctx)
	if err != nil {
		return Result{}, err
	}
	result := Result{Plan: plan}
	if plan.Empty() {
		m.log.Info("没有需要执行的变更")
		return result, nil
	}

	audit := logger.Audit()
	var errs []error
	for _, stmt := range plan.Statements {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		_, execErr := m.db.ExecContext(ctx, stmt.SQL)
		switch {
		case execErr == nil:
			result.Applied++
			audit.Info("statement applied", slog.String("dialect", string(m.dialect)), slog.String("table", stmt.Table), slog.String("sql", stmt.SQL))
		case alreadyApplied(execErr):
			result.Skipped++
			m.log.Warn("语句已被执行，跳过", slog.String("sql", stmt.SQL), slog.Any("error", execErr))
		default:
			result.Failures = append(result.Failures, Failure{Statement: stmt, Err: execErr})
			errs = append(errs, fmt.Errorf("%s: %w", stmt.SQL, execErr))
			m.log.Error("执行迁移语句失败", slog.String("sql", stmt.SQL), slog.Any("error", execErr))
			audit.Error("statement failed", slog.String("dialect", string(m.dialect)), slog.String("table", stmt.Table), slog.String("sql", stmt.SQL), slog.Any("error", execErr))
		}
	}

	if len(errs) > 0 {
		return result, xerrors.Wrap(xerrors.CodeMigrationFailed, stdErrors.Join(errs...),
			fmt.Sprintf("%d of %d statements failed", len(errs), len(plan.Statements)))
	}
	return result, nil
}

func missingFields(fields []Field, existing []Column) []Field {
	present := make(map[string]struct{}, len(existing))
	for _, col := range existing {
		present[strings.ToLower(col.Name)] = struct{}{}
	}
	var missing []Field
	for _, f := range fields {
		if _, ok := present[strings.ToLower(f.Name)]; !ok {
			missing = append(missing, f)
		}
	}
	return missing
}

func droppable(d Dialect, index string) bool {
	if !validIdentifier(index) {
		return false
	}
	if d.mysqlFamily() && strings.EqualFold(index, "PRIMARY") {
		return false
	}
	return !strings.HasPrefix(index, "sqlite_autoindex_")
}

func alreadyApplied(err error) bool {
	var mysqlErr *mysql.MySQLError
	if stdErrors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateColumn || mysqlErr.Number == mysqlDuplicateKeyName
	}
	return false
}
