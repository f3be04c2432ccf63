package mysql

import (
	"context"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"Snowz-Migrator/internal/testutil/sqlmock"
)

func TestMemoryHistoryRepositoryPersists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	repo, err := NewMemoryHistoryRepository(dir)
	if err != nil {
		t.Fatalf("failed to create memory repo: %v", err)
	}

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		record := HistoryRecord{
			RunID:     fmt.Sprintf("run-%d", i),
			Group:     "com.snowz",
			Version:   "1.0.0",
			Dialect:   "sqlite",
			Applied:   i,
			Status:    StatusSucceeded,
			CreatedAt: int64(i),
		}
		if err := repo.Save(ctx, record); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	latest, err := repo.ListLatest(ctx, 2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(latest) != 2 || latest[0].RunID != "run-3" || latest[1].RunID != "run-2" {
		t.Fatalf("unexpected order: %+v", latest)
	}

	reopened, err := NewMemoryHistoryRepository(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	all, err := reopened.ListLatest(ctx, 0)
	if err != nil {
		t.Fatalf("list after reopen failed: %v", err)
	}
	if len(all) != 3 || all[0].RunID != "run-3" || all[2].Applied != 1 {
		t.Fatalf("records not restored: %+v", all)
	}
}

func TestMemoryHistoryRepositorySkipsCorruptLines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	content := `{"run_id":"a","status":"succeeded"}
not json
{"run_id":"b","status":"failed","error":"boom"}
`
	if err := os.WriteFile(filepath.Join(dir, "migrations.log"), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	repo, err := NewMemoryHistoryRepository(dir)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	records, _ := repo.ListLatest(context.Background(), 10)
	if len(records) != 2 || records[0].RunID != "b" || records[0].Error != "boom" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestSQLHistoryRepositorySave(t *testing.T) {
	t.Parallel()

	db, drv := sqlmock.Open(t,
		sqlmock.Exec(insertHistorySQL, sqlmock.Result{InsertID: 1, Affected: 1}),
	)
	repo := &SQLHistoryRepository{db: db}
	record := HistoryRecord{RunID: "run", Group: "g", Version: "1", Dialect: "mysql", Statements: 2, Applied: 2, Status: StatusSucceeded, CreatedAt: 10}
	if err := repo.Save(context.Background(), record); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	drv.AssertConsumed(t)
}

func TestSQLHistoryRepositoryListLatest(t *testing.T) {
	t.Parallel()

	rows := sqlmock.Rows{
		Columns: []string{"run_id", "group_name", "version", "dialect", "statements", "applied", "skipped", "failed", "status", "error_message", "created_at"},
		Values: [][]driver.Value{
			{"run-2", "g", "1.1", "mysql", int64(3), int64(2), int64(0), int64(1), StatusFailed, "boom", int64(20)},
			{"run-1", "g", "1.0", "mysql", int64(1), int64(1), int64(0), int64(0), StatusSucceeded, nil, int64(10)},
		},
	}
	db, drv := sqlmock.Open(t, sqlmock.Query(selectHistorySQL, rows))

	repo := &SQLHistoryRepository{db: db}
	records, err := repo.ListLatest(context.Background(), 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Failed != 1 || records[0].Error != "boom" || records[1].Error != "" || records[1].CreatedAt != 10 {
		t.Fatalf("unexpected records: %+v", records)
	}
	drv.AssertConsumed(t)
}

func TestRunMigrationsAppliesPendingFiles(t *testing.T) {
	t.Parallel()

	db, drv := sqlmock.Open(t,
		sqlmock.AnyExec(),
		sqlmock.Query("SELECT version FROM schema_migrations", sqlmock.Rows{Columns: []string{"version"}}),
		sqlmock.Begin(),
		sqlmock.AnyExec(),
		sqlmock.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", sqlmock.Result{Affected: 1}),
		sqlmock.Commit(),
	)

	if err := runMigrations(context.Background(), db); err != nil {
		t.Fatalf("run migrations failed: %v", err)
	}
	drv.AssertConsumed(t)

	executed := drv.Executed()
	if len(executed) != 3 || !strings.HasPrefix(executed[1], "CREATE TABLE IF NOT EXISTS schema_history") {
		t.Fatalf("unexpected statements: %v", executed)
	}
}

func TestRunMigrationsSkipsAppliedVersions(t *testing.T) {
	t.Parallel()

	db, drv := sqlmock.Open(t,
		sqlmock.AnyExec(),
		sqlmock.Query("SELECT version FROM schema_migrations", sqlmock.Rows{
			Columns: []string{"version"},
			Values:  [][]driver.Value{{"0001"}},
		}),
	)

	if err := runMigrations(context.Background(), db); err != nil {
		t.Fatalf("run migrations failed: %v", err)
	}
	drv.AssertConsumed(t)
}

func TestParseMigrationVersion(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"0001_create_schema_history.sql": "0001",
		"0002.sql":                       "0002",
		"plain":                          "plain",
	}
	for name, want := range cases {
		if got := parseMigrationVersion(name); got != want {
			t.Fatalf("parseMigrationVersion(%q) = %q, want %q", name, got, want)
		}
	}
}
