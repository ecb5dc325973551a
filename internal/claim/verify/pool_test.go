package verify

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/agrishield/claims/internal/claim/domain"
)

type stubService struct {
	domain.Service
	process func(ctx context.Context, id snowflake.ID) error
}

func (s *stubService) ProcessVerification(ctx context.Context, id snowflake.ID) error {
	return s.process(ctx, id)
}

func TestStopLetsInFlightJobFinish(t *testing.T) {
	queue := NewQueue(4, zap.NewNop())

	started := make(chan struct{})
	release := make(chan struct{})
	var jobCtxErr error
	svc := &stubService{process: func(ctx context.Context, id snowflake.ID) error {
		close(started)
		<-release
		jobCtxErr = ctx.Err()
		return nil
	}}

	pool := &Pool{
		workers: 1,
		log:     zap.NewNop(),
		queue:   queue,
		svc:     svc,
	}
	pool.Start()

	if !queue.Enqueue(snowflake.ID(1)) {
		t.Fatal("enqueue failed")
	}
	<-started

	stopped := make(chan struct{})
	go func() {
		pool.Stop(context.Background())
		close(stopped)
	}()
	close(release)

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not drain")
	}
	if jobCtxErr != nil {
		t.Fatalf("in-flight job saw a canceled context: %v", jobCtxErr)
	}
}

func TestStopAbandonsQueuedJobs(t *testing.T) {
	queue := NewQueue(4, zap.NewNop())
	processed := make(chan snowflake.ID, 4)
	svc := &stubService{process: func(ctx context.Context, id snowflake.ID) error {
		processed <- id
		return nil
	}}

	pool := &Pool{
		workers: 1,
		log:     zap.NewNop(),
		queue:   queue,
		svc:     svc,
	}
	pool.Start()
	pool.Stop(context.Background())

	// Jobs enqueued after shutdown stay in the queue for the sweep.
	if !queue.Enqueue(snowflake.ID(7)) {
		t.Fatal("enqueue failed")
	}
	select {
	case id := <-processed:
		t.Fatalf("stopped pool processed job %d", id)
	case <-time.After(50 * time.Millisecond):
	}
	if got := queue.Depth(); got != 1 {
		t.Fatalf("expected job retained in queue, depth %d", got)
	}
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	pool := &Pool{log: zap.NewNop(), queue: NewQueue(1, zap.NewNop())}
	pool.Stop(context.Background())
}
