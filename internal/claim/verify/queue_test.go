package verify

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

func TestQueueEnqueueAndDrain(t *testing.T) {
	q := NewQueue(2, zap.NewNop())

	if !q.Enqueue(snowflake.ID(1)) {
		t.Fatal("enqueue into empty queue failed")
	}
	if !q.Enqueue(snowflake.ID(2)) {
		t.Fatal("enqueue into queue with capacity failed")
	}
	if got := q.Depth(); got != 2 {
		t.Fatalf("expected depth 2, got %d", got)
	}

	if got := <-q.jobs(); got != snowflake.ID(1) {
		t.Fatalf("expected first job 1, got %d", got)
	}
	if got := <-q.jobs(); got != snowflake.ID(2) {
		t.Fatalf("expected second job 2, got %d", got)
	}
}

func TestQueueDropsWhenFull(t *testing.T) {
	q := NewQueue(1, zap.NewNop())

	if !q.Enqueue(snowflake.ID(1)) {
		t.Fatal("enqueue into empty queue failed")
	}
	if q.Enqueue(snowflake.ID(2)) {
		t.Fatal("enqueue into full queue must not block or succeed")
	}
	if got := q.Depth(); got != 1 {
		t.Fatalf("expected depth 1 after drop, got %d", got)
	}
}

func TestQueueDefaultSize(t *testing.T) {
	q := NewQueue(0, zap.NewNop())
	if cap(q.ch) != 256 {
		t.Fatalf("expected default capacity 256, got %d", cap(q.ch))
	}
}
