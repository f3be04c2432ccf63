package mysql

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// 迁移运行的最终状态。
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

const memoryHistoryLimit = 512

// HistoryRecord 表示一次迁移运行的落库结构。
type HistoryRecord struct {
	RunID      string `json:"run_id"`
	Group      string `json:"group"`
	Version    string `json:"version"`
	Dialect    string `json:"dialect"`
	Statements int    `json:"statements"`
	Applied    int    `json:"applied"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	CreatedAt  int64  `json:"created_at"`
}

// HistoryRepository 抽象迁移历史的持久化接口。
type HistoryRepository interface {
	Save(ctx context.Context, record HistoryRecord) error
	ListLatest(ctx context.Context, limit int) ([]HistoryRecord, error)
}

// MemoryHistoryRepository 把历史追加写入本地 JSON Lines 文件，并在内存中保留最近的记录。
type MemoryHistoryRepository struct {
	mu       sync.RWMutex
	dataFile string
	records  []HistoryRecord
}

// NewMemoryHistoryRepository 创建基于文件的历史仓库，并恢复已有记录。
func NewMemoryHistoryRepository(dataDir string) (*MemoryHistoryRepository, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	repo := &MemoryHistoryRepository{dataFile: filepath.Join(dataDir, "migrations.log")}
	if err := repo.loadFromDisk(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Save 以追加写的方式记录迁移结果。
func (m *MemoryHistoryRepository) Save(_ context.Context, record HistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := os.OpenFile(m.dataFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("打开迁移历史失败: %w", err)
	}
	defer file.Close()

	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化迁移记录失败: %w", err)
	}
	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("写入迁移历史失败: %w", err)
	}

	m.records = append([]HistoryRecord{record}, m.records...)
	if len(m.records) > memoryHistoryLimit {
		m.records = m.records[:memoryHistoryLimit]
	}
	return nil
}

// ListLatest 返回最近的迁移记录，最新的在前。
func (m *MemoryHistoryRepository) ListLatest(_ context.Context, limit int) ([]HistoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}
	results := make([]HistoryRecord, limit)
	copy(results, m.records[:limit])
	return results, nil
}

func (m *MemoryHistoryRepository) loadFromDisk() error {
	file, err := os.OpenFile(m.dataFile, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("读取迁移历史失败: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var restored []HistoryRecord
	for scanner.Scan() {
		var record HistoryRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		restored = append([]HistoryRecord{record}, restored...)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("解析迁移历史失败: %w", err)
	}

	if len(restored) > memoryHistoryLimit {
		restored = restored[:memoryHistoryLimit]
	}
	m.records = restored
	return nil
}

// SQLHistoryRepository 使用 MySQL 保存迁移历史。
type SQLHistoryRepository struct {
	db *sql.DB
}

// NewSQLHistoryRepository 创建连接池并执行内置迁移。
func NewSQLHistoryRepository(ctx context.Context, cfg Config) (*SQLHistoryRepository, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLHistoryRepository{db: db}, nil
}

const insertHistorySQL = `INSERT INTO schema_history
        (run_id, group_name, version, dialect, statements, applied, skipped, failed, status, error_message, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectHistorySQL = `SELECT run_id, group_name, version, dialect, statements, applied, skipped, failed, status, error_message, created_at
        FROM schema_history ORDER BY id DESC LIMIT ?`

// Save 将迁移记录写入 MySQL。
func (s *SQLHistoryRepository) Save(ctx context.Context, record HistoryRecord) error {
	if _, err := s.db.ExecContext(ctx, insertHistorySQL,
		record.RunID,
		record.Group,
		record.Version,
		record.Dialect,
		record.Statements,
		record.Applied,
		record.Skipped,
		record.Failed,
		record.Status,
		record.Error,
		record.CreatedAt,
	); err != nil {
		return fmt.Errorf("写入迁移历史失败: %w", err)
	}
	return nil
}

// ListLatest 查询最近的若干条迁移记录。
func (s *SQLHistoryRepository) ListLatest(ctx context.Context, limit int) ([]HistoryRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, selectHistorySQL, limit)
	if err != nil {
		return nil, fmt.Errorf("查询迁移历史失败: %w", err)
	}
	defer rows.Close()

	var records []HistoryRecord
	for rows.Next() {
		var record HistoryRecord
		var errMsg sql.NullString
		if err := rows.Scan(&record.RunID, &record.Group, &record.Version, &record.Dialect,
			&record.Statements, &record.Applied, &record.Skipped, &record.Failed,
			&record.Status, &errMsg, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("解析迁移历史失败: %w", err)
		}
		record.Error = errMsg.String
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历迁移历史失败: %w", err)
	}
	return records, nil
}

// Close 关闭底层数据库连接。
func (s *SQLHistoryRepository) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
