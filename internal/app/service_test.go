package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"Snowz-Migrator/internal/descriptor"
	xerrors "Snowz-Migrator/internal/errors"
	"Snowz-Migrator/internal/events"
	"Snowz-Migrator/internal/lock"
	"Snowz-Migrator/internal/schema"
	"Snowz-Migrator/internal/storage/mysql"
	"Snowz-Migrator/internal/testutil/sqlmock"
)

var accountTable = schema.Table{Name: "account", Fields: []schema.Field{
	{Name: "id", Kind: schema.KindLong, GeneratedID: true},
	{Name: "email", Kind: schema.KindString, Unique: true},
}}

type fixture struct {
	service   *Service
	history   *mysql.MemoryHistoryRepository
	locker    *lock.MemoryLocker
	publisher *events.MemoryPublisher
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	history, err := mysql.NewMemoryHistoryRepository(t.TempDir())
	if err != nil {
		t.Fatalf("history repo: %v", err)
	}
	locker := lock.NewMemoryLocker()
	publisher := events.NewMemoryPublisher(8)
	t.Cleanup(func() { _ = publisher.Close() })

	service := NewService(history,
		WithLocker(locker),
		WithPublisher(publisher),
		WithLockTTL(time.Minute),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	service.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return fixture{service: service, history: history, locker: locker, publisher: publisher}
}

func resolved(t *testing.T) *descriptor.Descriptor {
	t.Helper()
	desc, err := descriptor.Resolve(descriptor.Raw{Group: "dev.snowz", Version: "1.2.0"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return desc
}

func emptySQLiteTable() []sqlmock.Operation {
	return []sqlmock.Operation{
		sqlmock.Query("PRAGMA table_info(account)", sqlmock.Rows{Columns: []string{"cid", "name", "type", "notnull", "dflt_value", "pk"}}),
		sqlmock.Query("PRAGMA index_list(account)", sqlmock.Rows{Columns: []string{"seq", "name", "unique", "origin", "partial"}}),
	}
}

func TestResolveFileAppliesOverridesAndPublishes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	snapshot := false
	desc, err := f.service.ResolveFile(context.Background(),
		filepath.Join("..", "descriptor", "testdata", "ormlite-migrator.yaml"),
		Overrides{Version: "2.0.0", Snapshot: &snapshot})
	if err != nil {
		t.Fatalf("resolve file failed: %v", err)
	}
	if desc.Version() != "2.0.0" || desc.Group() != "dev.snowz" {
		t.Fatalf("overrides not applied: %s", desc.Coordinate())
	}

	evt := <-f.publisher.Events()
	if evt.Type != events.TypeDescriptorResolved {
		t.Fatalf("unexpected event: %+v", evt)
	}
	var payload map[string]string
	if err := json.Unmarshal(evt.Payload, &payload); err != nil || payload["version"] != "2.0.0" {
		t.Fatalf("unexpected payload: %s", evt.Payload)
	}
}

func TestResolveFileErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.service.ResolveFile(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), Overrides{})
	if xerrors.CodeOf(err) != xerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}

	_, err = f.service.Resolve(context.Background(), descriptor.Raw{Version: "1.0.0"})
	var cfgErr *descriptor.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "group" {
		t.Fatalf("expected ConfigError on group, got %v", err)
	}
	if xerrors.CodeOf(err) != xerrors.CodeConfigInvalid {
		t.Fatalf("expected CONFIG_INVALID, got %v", err)
	}
}

func TestMigrateRecordsHistoryAndReleasesLock(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ops := append(emptySQLiteTable(),
		sqlmock.Exec("CREATE TABLE IF NOT EXISTS account (id INTEGER PRIMARY KEY AUTOINCREMENT, email VARCHAR(255))", sqlmock.Result{}),
		sqlmock.Exec("CREATE UNIQUE INDEX account_email_uidx ON account(email)", sqlmock.Result{}),
	)
	db, drv := sqlmock.Open(t, ops...)

	ctx := context.Background()
	report, err := f.service.Migrate(ctx, resolved(t), Target{DB: db, Dialect: schema.DialectSQLite}, []schema.Table{accountTable})
	if err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	drv.AssertConsumed(t)

	record := report.Record
	if record.RunID == "" || record.Status != mysql.StatusSucceeded || record.Applied != 2 || record.Statements != 2 {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.Version != "1.2.0" || record.Dialect != "sqlite" || record.CreatedAt != 1_700_000_000 {
		t.Fatalf("unexpected record: %+v", record)
	}

	stored, err := f.service.History(ctx, 10)
	if err != nil || len(stored) != 1 || stored[0].RunID != record.RunID {
		t.Fatalf("history not saved: %+v (%v)", stored, err)
	}

	evt := <-f.publisher.Events()
	if evt.Type != events.TypeSchemaMigrated {
		t.Fatalf("unexpected event: %+v", evt)
	}

	lease, err := f.locker.Acquire(ctx, LockKey(schema.DialectSQLite, "dev.snowz"), time.Second)
	if err != nil {
		t.Fatalf("lock should be released after migrate: %v", err)
	}
	_ = lease.Release(ctx)
}

func TestMigrateRefusesWhileLocked(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	lease, err := f.locker.Acquire(ctx, LockKey(schema.DialectSQLite, "dev.snowz"), time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer lease.Release(ctx)

	db, drv := sqlmock.Open(t)
	_, err = f.service.Migrate(ctx, resolved(t), Target{DB: db, Dialect: schema.DialectSQLite}, []schema.Table{accountTable})
	if xerrors.CodeOf(err) != xerrors.CodeLockHeld {
		t.Fatalf("expected LOCK_HELD, got %v", err)
	}
	drv.AssertConsumed(t)

	records, _ := f.history.ListLatest(ctx, 10)
	if len(records) != 0 {
		t.Fatalf("locked run must not be recorded: %+v", records)
	}
}

func TestMigrateFailureIsRecorded(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ops := append(emptySQLiteTable(),
		sqlmock.Exec("CREATE TABLE IF NOT EXISTS account (id INTEGER PRIMARY KEY AUTOINCREMENT, email VARCHAR(255))", sqlmock.Result{}),
		sqlmock.Exec("CREATE UNIQUE INDEX account_email_uidx ON account(email)", sqlmock.Result{}).
			WithError(errors.New("UNIQUE constraint failed")),
	)
	db, _ := sqlmock.Open(t, ops...)

	report, err := f.service.Migrate(context.Background(), resolved(t), Target{DB: db, Dialect: schema.DialectSQLite}, []schema.Table{accountTable})
	if xerrors.CodeOf(err) != xerrors.CodeMigrationFailed {
		t.Fatalf("expected MIGRATION_FAILED, got %v", err)
	}
	if report.Record.Status != mysql.StatusFailed || report.Record.Failed != 1 || report.Record.Applied != 1 || report.Record.Error == "" {
		t.Fatalf("unexpected record: %+v", report.Record)
	}
	records, _ := f.history.ListLatest(context.Background(), 1)
	if len(records) != 1 || records[0].Status != mysql.StatusFailed {
		t.Fatalf("failed run must be recorded: %+v", records)
	}
}

func TestPlanDoesNotExecute(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	db, drv := sqlmock.Open(t, emptySQLiteTable()...)
	plan, err := f.service.Plan(context.Background(), Target{DB: db, Dialect: schema.DialectSQLite}, []schema.Table{accountTable})
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if len(plan.Statements) != 2 || len(drv.Executed()) != 0 {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	drv.AssertConsumed(t)
}

func TestMigrateValidatesInput(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if _, err := f.service.Migrate(context.Background(), nil, Target{}, nil); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}
	if _, err := f.service.Plan(context.Background(), Target{}, nil); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}
}

func TestLockKey(t *testing.T) {
	t.Parallel()

	if got := LockKey(schema.DialectMySQL, "dev.snowz"); got != "migrate:mysql:dev.snowz" {
		t.Fatalf("unexpected key: %s", got)
	}
}
