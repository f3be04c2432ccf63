package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	xerrors "Snowz-Migrator/internal/errors"
)

// RabbitMQConfig 描述 RabbitMQ 的连接参数。
type RabbitMQConfig struct {
	URL     string
	Queue   string
	Durable bool
}

// DefaultRabbitMQQueue 是未配置时使用的队列名。
const DefaultRabbitMQQueue = "snowz.events"

// RabbitMQPublisher 把事件以 JSON 投递到 RabbitMQ 队列。
type RabbitMQPublisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewRabbitMQPublisher 建立连接并声明队列。
func NewRabbitMQPublisher(cfg RabbitMQConfig) (*RabbitMQPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("RabbitMQ URL 不能为空")
	}
	queue := cfg.Queue
	if queue == "" {
		queue = DefaultRabbitMQQueue
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("连接 RabbitMQ 失败: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("创建 RabbitMQ channel 失败: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, cfg.Durable, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("声明 RabbitMQ 队列失败: %w", err)
	}
	return &RabbitMQPublisher{conn: conn, ch: ch, queue: queue}, nil
}

// Publish 实现 Publisher。
func (p *RabbitMQPublisher) Publish(ctx context.Context, evt Event) error {
	if p == nil || p.ch == nil {
		return xerrors.New(xerrors.CodePublishFailure, "RabbitMQ 发布器未初始化")
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}
	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    evt.ID,
		Type:         evt.Type,
		Timestamp:    evt.OccurredAt,
		Body:         body,
	})
	if err != nil {
		return xerrors.Wrap(xerrors.CodePublishFailure, err, "RabbitMQ 发布事件失败")
	}
	return nil
}

// Close 关闭 RabbitMQ 连接。
func (p *RabbitMQPublisher) Close() error {
	if p == nil {
		return nil
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
