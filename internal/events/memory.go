package events

import (
	"context"
	"sync"

	xerrors "Snowz-Migrator/internal/errors"
)

// MemoryPublisher 使用带缓冲的 channel 保存事件，主要用于测试和单机运行。
type MemoryPublisher struct {
	ch     chan Event
	mu     sync.Mutex
	closed bool
}

// NewMemoryPublisher 创建内存发布器。
func NewMemoryPublisher(size int) *MemoryPublisher {
	if size <= 0 {
		size = 64
	}
	return &MemoryPublisher{ch: make(chan Event, size)}
}

// Publish 写入缓冲区，缓冲区已满时立即返回 PUBLISH_FAILURE 而不是阻塞调用方。
func (p *MemoryPublisher) Publish(ctx context.Context, evt Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return xerrors.New(xerrors.CodePublishFailure, "publisher is closed")
	}
	select {
	case p.ch <- evt:
		return nil
	default:
		return xerrors.New(xerrors.CodePublishFailure, "event buffer is full")
	}
}

// Events 返回只读的事件通道，Close 后通道关闭。
func (p *MemoryPublisher) Events() <-chan Event {
	return p.ch
}

// Close 关闭发布器。
func (p *MemoryPublisher) Close() error {
	p.mu.Lock()
	if !p.closed {
		close(p.ch)
		p.closed = true
	}
	p.mu.Unlock()
	return nil
}
