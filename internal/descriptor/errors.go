package descriptor

import (
	"fmt"

	xerrors "Snowz-Migrator/internal/errors"
)

// ConfigError 表示描述文件缺少必填字段或字段取值非法。
type ConfigError struct {
	Field  string
	Reason string
}

func newConfigError(field, reason string) *ConfigError {
	return &ConfigError{Field: field, Reason: reason}
}

// Error 实现 error 接口。
func (e *ConfigError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("descriptor field %q: %s", e.Field, e.Reason)
}

// Unwrap 让 ConfigError 可以被 xerrors.CodeOf 识别为 CONFIG_INVALID。
func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return xerrors.New(xerrors.CodeConfigInvalid, e.Reason, xerrors.WithMetadata("field", e.Field))
}
