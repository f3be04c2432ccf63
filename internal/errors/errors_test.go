package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestWrapKeepsCodeThroughChain(t *testing.T) {
	cause := stdErrors.New("dial tcp: refused")
	err := fmt.Errorf("open history: %w", Wrap(CodeStorageFailure, cause, "connect mysql"))

	if got := CodeOf(err); got != CodeStorageFailure {
		t.Fatalf("unexpected code: %s", got)
	}
	if !RetryableError(err) {
		t.Fatalf("storage failures should be retryable")
	}
	if !stdErrors.Is(err, cause) {
		t.Fatalf("cause should be reachable through errors.Is")
	}
	if !stdErrors.Is(err, New(CodeStorageFailure, "")) {
		t.Fatalf("errors with the same code should match")
	}
}

func TestNewUsesRegisteredDefaults(t *testing.T) {
	err := New(CodeLockHeld, "", WithMetadata("key", "migrate:mysql:dev.snowz"))
	if err.Message() != "lock already held" {
		t.Fatalf("unexpected default message: %q", err.Message())
	}
	if err.Metadata()["key"] != "migrate:mysql:dev.snowz" {
		t.Fatalf("metadata not attached: %+v", err.Metadata())
	}

	overridden := New(CodeMigrationFailed, "boom", WithSeverity(SeverityInfo), WithRetryable(true))
	if overridden.Severity() != SeverityInfo || !overridden.Retryable() {
		t.Fatalf("options not applied: %s %v", overridden.Severity(), overridden.Retryable())
	}
}

func TestUnknownCodeFallsBack(t *testing.T) {
	if SeverityOf(stdErrors.New("plain")) != SeverityCritical {
		t.Fatalf("plain errors should be treated as unknown")
	}
	if AttributesOf(Code("NOPE")).Message != "unknown error" {
		t.Fatalf("unregistered codes should fall back to UNKNOWN")
	}
}
