package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	xerrors "Snowz-Migrator/internal/errors"
)

// DefaultRedisKey 是未配置时事件写入的 Redis list。
const DefaultRedisKey = "snowz:events"

// RedisPublisher 通过 LPUSH 把事件写入 Redis list。
type RedisPublisher struct {
	client redis.UniversalClient
	key    string
}

// NewRedisPublisher 使用已有客户端创建发布器。
func NewRedisPublisher(client redis.UniversalClient, key string) *RedisPublisher {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisPublisher{client: client, key: key}
}

// Publish 实现 Publisher。
func (p *RedisPublisher) Publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}
	if err := p.client.LPush(ctx, p.key, body).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodePublishFailure, err, "Redis 发布事件失败")
	}
	return nil
}

// Close 关闭 Redis 连接。
func (p *RedisPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
