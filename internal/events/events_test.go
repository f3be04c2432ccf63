package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	xerrors "Snowz-Migrator/internal/errors"
)

func TestNewEvent(t *testing.T) {
	t.Parallel()

	evt, err := New(TypeSchemaMigrated, map[string]int{"applied": 3})
	if err != nil {
		t.Fatalf("new event failed: %v", err)
	}
	if _, err := uuid.Parse(evt.ID); err != nil {
		t.Fatalf("event id is not a uuid: %s", evt.ID)
	}
	if evt.Type != TypeSchemaMigrated || evt.OccurredAt.IsZero() {
		t.Fatalf("unexpected event: %+v", evt)
	}
	var payload map[string]int
	if err := json.Unmarshal(evt.Payload, &payload); err != nil || payload["applied"] != 3 {
		t.Fatalf("unexpected payload: %s", evt.Payload)
	}

	if _, err := New("bad", make(chan int)); err == nil {
		t.Fatalf("expected marshal error")
	}
}

func TestMemoryPublisher(t *testing.T) {
	t.Parallel()

	pub := NewMemoryPublisher(1)
	ctx := context.Background()

	first, _ := New(TypeDescriptorResolved, nil)
	if err := pub.Publish(ctx, first); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	second, _ := New(TypeDescriptorResolved, nil)
	if err := pub.Publish(ctx, second); xerrors.CodeOf(err) != xerrors.CodePublishFailure {
		t.Fatalf("expected PUBLISH_FAILURE on full buffer, got %v", err)
	}

	got := <-pub.Events()
	if got.ID != first.ID {
		t.Fatalf("unexpected event: %+v", got)
	}

	if err := pub.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}
	if err := pub.Publish(ctx, first); xerrors.CodeOf(err) != xerrors.CodePublishFailure {
		t.Fatalf("expected PUBLISH_FAILURE after close, got %v", err)
	}
	if _, ok := <-pub.Events(); ok {
		t.Fatalf("channel should be closed")
	}
}

func TestNopPublisher(t *testing.T) {
	t.Parallel()

	var pub Publisher = NopPublisher{}
	evt, _ := New(TypeSchemaMigrated, nil)
	if err := pub.Publish(context.Background(), evt); err != nil {
		t.Fatalf("nop publish failed: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("nop close failed: %v", err)
	}
}

func TestRabbitMQPublisherRequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := NewRabbitMQPublisher(RabbitMQConfig{}); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestRedisPublisherDefaultsKey(t *testing.T) {
	t.Parallel()

	pub := NewRedisPublisher(nil, "")
	if pub.key != DefaultRedisKey {
		t.Fatalf("unexpected key: %s", pub.key)
	}
}

func TestRedisPublisherPushesToListHead(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	pub := NewRedisPublisher(client, "")
	t.Cleanup(func() { _ = pub.Close() })

	ctx := context.Background()
	first, err := New(TypeDescriptorResolved, map[string]string{"group": "dev.snowz"})
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	second, err := New(TypeSchemaMigrated, map[string]int{"applied": 2})
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	for _, evt := range []Event{first, second} {
		if err := pub.Publish(ctx, evt); err != nil {
			t.Fatalf("publish failed: %v", err)
		}
	}

	items, err := mr.List(DefaultRedisKey)
	if err != nil {
		t.Fatalf("read list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 events, got %d", len(items))
	}
	var head Event
	if err := json.Unmarshal([]byte(items[0]), &head); err != nil {
		t.Fatalf("decode head: %v", err)
	}
	if head.ID != second.ID || head.Type != TypeSchemaMigrated || string(head.Payload) != `{"applied":2}` {
		t.Fatalf("unexpected head event: %+v", head)
	}
}

func TestRedisPublisherReportsFailure(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	pub := NewRedisPublisher(client, "events")
	t.Cleanup(func() { _ = pub.Close() })

	mr.SetError("ERR injected failure")
	evt, _ := New(TypeSchemaMigrated, nil)
	if err := pub.Publish(context.Background(), evt); xerrors.CodeOf(err) != xerrors.CodePublishFailure {
		t.Fatalf("expected PUBLISH_FAILURE, got %v", err)
	}
}
