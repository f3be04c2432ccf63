// Package app 组合描述文件解析、结构迁移、迁移锁、历史与事件，供 CLI 与 API 共用。
package app

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"Snowz-Migrator/internal/descriptor"
	xerrors "Snowz-Migrator/internal/errors"
	"Snowz-Migrator/internal/events"
	"Snowz-Migrator/internal/lock"
	"Snowz-Migrator/internal/observability/metrics"
	"Snowz-Migrator/internal/schema"
	"Snowz-Migrator/internal/storage/mysql"
	"Snowz-Migrator/pkg/logger"
)

// Overrides 在解析前覆盖描述文件中的字段。
type Overrides struct {
	Version  string
	Snapshot *bool
}

func (o Overrides) apply(raw *descriptor.Raw) {
	if v := strings.TrimSpace(o.Version); v != "" {
		raw.Version = v
	}
	if o.Snapshot != nil {
		raw.Snapshot = *o.Snapshot
	}
}

// Target 是一次迁移的目标数据库。
type Target struct {
	DB      schema.DB
	Dialect schema.Dialect
}

// Report 汇总一次迁移运行。
type Report struct {
	Record mysql.HistoryRecord
	Result schema.Result
}

// Service 负责解析与迁移流程的编排。
type Service struct {
	history   mysql.HistoryRepository
	locker    lock.Locker
	publisher events.Publisher
	lockTTL   time.Duration
	log       *slog.Logger
	now       func() time.Time
}

// Option 定义 Service 的可选配置。
type Option func(*Service)

// WithLocker 指定迁移锁，默认使用进程内锁。
func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithPublisher 指定事件发布器，默认丢弃事件。
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithLockTTL 指定迁移锁的有效期。
func WithLockTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithLogger 指定运行日志。
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// NewService 构造服务，history 为必需依赖。
func NewService(history mysql.HistoryRepository, opts ...Option) *Service {
	s := &Service{
		history:   history,
		locker:    lock.NewMemoryLocker(),
		publisher: events.NopPublisher{},
		lockTTL:   lock.DefaultTTL,
		log:       logger.Named("app"),
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Resolve 解析原始声明并发布 descriptor.resolved 事件。
func (s *Service) Resolve(ctx context.Context, raw descriptor.Raw) (*descriptor.Descriptor, error) {
	desc, err := descriptor.Resolve(raw)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TypeDescriptorResolved, map[string]any{
		"group":   desc.Group(),
		"version": desc.Version(),
	})
	return desc, nil
}

// ResolveFile 读取描述文件，应用覆盖项后解析。
func (s *Service) ResolveFile(ctx context.Context, path string, overrides Overrides) (*descriptor.Descriptor, error) {
	raw, err := descriptor.LoadFile(path)
	if err != nil {
		if stdErrors.Is(err, os.ErrNotExist) {
			return nil, xerrors.Wrap(xerrors.CodeNotFound, err, "descriptor file not found", xerrors.WithMetadata("path", path))
		}
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "load descriptor", xerrors.WithMetadata("path", path))
	}
	overrides.apply(&raw)
	return s.Resolve(ctx, raw)
}

// Plan 生成迁移计划但不执行，也不加锁。
func (s *Service) Plan(ctx context.Context, target Target, tables []schema.Table) (schema.Plan, error) {
	if target.DB == nil {
		return schema.Plan{}, xerrors.New(xerrors.CodeInvalidArgument, "target database is not configured")
	}
	return schema.NewMigrator(target.DB, target.Dialect, schema.WithLogger(s.log)).Model(tables...).Plan(ctx)
}

// LockKey 返回迁移锁的键。
func LockKey(dialect schema.Dialect, group string) string {
	return fmt.Sprintf("migrate:%s:%s", dialect, group)
}

// Migrate 在迁移锁的保护下执行迁移，记录历史并发布 schema.migrated 事件。
// 迁移失败同样会写入历史，返回的错误为迁移本身的错误。
func (s *Service) Migrate(ctx context.Context, desc *descriptor.Descriptor, target Target, tables []schema.Table) (Report, error) {
	if desc == nil {
		return Report{}, xerrors.New(xerrors.CodeInvalidArgument, "descriptor is required")
	}
	if target.DB == nil {
		return Report{}, xerrors.New(xerrors.CodeInvalidArgument, "target database is not configured")
	}

	key := LockKey(target.Dialect, desc.Group())
	lease, err := s.locker.Acquire(ctx, key, s.lockTTL)
	if err != nil {
		return Report{}, err
	}
	defer func() {
		// 调用方取消后仍需释放锁。
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := lease.Release(releaseCtx); err != nil {
			s.log.Error("释放迁移锁失败", slog.String("key", key), slog.Any("error", err))
		}
	}()

	migrator := schema.NewMigrator(target.DB, target.Dialect, schema.WithLogger(s.log)).Model(tables...)
	result, migrateErr := migrator.Migrate(ctx)

	record := mysql.HistoryRecord{
		RunID:      uuid.NewString(),
		Group:      desc.Group(),
		Version:    desc.Version(),
		Dialect:    string(target.Dialect),
		Statements: len(result.Plan.Statements),
		Applied:    result.Applied,
		Skipped:    result.Skipped,
		Failed:     len(result.Failures),
		Status:     mysql.StatusSucceeded,
		CreatedAt:  s.now().Unix(),
	}
	if migrateErr != nil {
		record.Status = mysql.StatusFailed
		record.Error = migrateErr.Error()
	}
	report := Report{Record: record, Result: result}

	saveErr := s.history.Save(context.WithoutCancel(ctx), record)
	if saveErr != nil {
		s.log.Error("保存迁移历史失败", slog.String("run_id", record.RunID), slog.Any("error", saveErr))
	}
	logger.Audit().Info("migration run",
		slog.String("run_id", record.RunID),
		slog.String("group", record.Group),
		slog.String("version", record.Version),
		slog.String("dialect", record.Dialect),
		slog.Int("applied", record.Applied),
		slog.Int("skipped", record.Skipped),
		slog.Int("failed", record.Failed),
		slog.String("status", record.Status),
	)
	metrics.ObserveMigration(record.Dialect, record.Status, record.Applied)
	s.publish(ctx, events.TypeSchemaMigrated, record)

	if migrateErr != nil {
		return report, migrateErr
	}
	if saveErr != nil {
		return report, xerrors.Wrap(xerrors.CodeStorageFailure, saveErr, "save migration history")
	}
	return report, nil
}

// History 返回最近的迁移记录。
func (s *Service) History(ctx context.Context, limit int) ([]mysql.HistoryRecord, error) {
	records, err := s.history.ListLatest(ctx, limit)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "list migration history")
	}
	return records, nil
}

// publish 发布事件，失败只记录日志，不影响主流程。
func (s *Service) publish(ctx context.Context, typ string, payload any) {
	evt, err := events.New(typ, payload)
	if err == nil {
		err = s.publisher.Publish(ctx, evt)
	}
	if err != nil {
		s.log.Warn("发布事件失败", slog.String("type", typ), slog.Any("error", err))
	}
}
