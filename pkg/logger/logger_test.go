package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAuditLoggerWritesToFile(t *testing.T) {
	dir := t.TempDir()
	auditPath := filepath.Join(dir, "audit", "statements.log")

	if err := Init(Config{Format: "json", OutputPaths: []string{filepath.Join(dir, "app.log")}, Audit: AuditConfig{Enabled: true, Path: auditPath}}); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	t.Cleanup(func() { _ = Sync() })

	Audit().Info("statement applied", "sql", "CREATE TABLE IF NOT EXISTS account (id BIGINT)")
	Named("schema").Info("plan built")
	if err := Sync(); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	content, err := os.ReadFile(auditPath)
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	if !strings.Contains(string(content), "CREATE TABLE IF NOT EXISTS account") || !strings.Contains(string(content), `"stream":"audit"`) {
		t.Fatalf("unexpected audit content: %s", content)
	}

	appLog, err := os.ReadFile(filepath.Join(dir, "app.log"))
	if err != nil {
		t.Fatalf("read app log: %v", err)
	}
	if !strings.Contains(string(appLog), `"component":"schema"`) {
		t.Fatalf("unexpected app log: %s", appLog)
	}
}

func TestRotatingWriterRotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	w, err := newRotatingWriter(path, 1, 2, 1)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	w.maxSize = 10
	defer w.Close()

	for _, chunk := range []string{"0123456789", "abcdefghij", "KLMNOPQRST"} {
		if _, err := w.Write([]byte(chunk)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	current, _ := os.ReadFile(path)
	first, _ := os.ReadFile(path + ".1")
	second, _ := os.ReadFile(path + ".2")
	if string(current) != "KLMNOPQRST" || string(first) != "abcdefghij" || string(second) != "0123456789" {
		t.Fatalf("unexpected rotation: %q %q %q", current, first, second)
	}
}

func TestRotatingWriterDropsExpiredBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	w, err := newRotatingWriter(path, 1, 3, 1)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	w.maxSize = 4
	defer w.Close()

	if _, err := w.Write([]byte("old!")); err != nil {
		t.Fatalf("write: %v", err)
	}
	w.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	if _, err := w.Write([]byte("new!")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Fatalf("expected expired backup to be removed, stat err=%v", err)
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("WARNING").String() != "WARN" || parseLevel("bogus").String() != "INFO" {
		t.Fatalf("unexpected level parsing")
	}
}
