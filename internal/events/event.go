// Package events 发布描述文件解析与结构迁移的领域事件。
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// 事件类型。
const (
	TypeDescriptorResolved = "descriptor.resolved"
	TypeSchemaMigrated     = "schema.migrated"
)

// Event 是发布到外部通道的消息体。
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// New 使用随机 ID 和当前时间构造事件。
func New(typ string, payload any) (Event, error) {
	evt := Event{ID: uuid.NewString(), Type: typ, OccurredAt: time.Now().UTC()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("序列化事件失败: %w", err)
		}
		evt.Payload = raw
	}
	return evt, nil
}

// Publisher 负责投递事件。
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// NopPublisher 在未启用事件时丢弃所有事件。
type NopPublisher struct{}

// Publish 实现 Publisher。
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close 实现 Publisher。
func (NopPublisher) Close() error { return nil }
