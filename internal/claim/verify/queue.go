package verify

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	obsmetrics "github.com/agrishield/claims/internal/observability/metrics"
)

// Queue hands claim IDs from the intake path to the verification workers.
// It is bounded: when full, Enqueue drops the job and the recovery sweep
// picks the claim up later from its persisted pending marker.
type Queue struct {
	ch  chan snowflake.ID
	log *zap.Logger
}

func NewQueue(size int, log *zap.Logger) *Queue {
	if size <= 0 {
		size = 256
	}
	return &Queue{
		ch:  make(chan snowflake.ID, size),
		log: log.Named("verify.queue"),
	}
}

// Enqueue offers a claim to the workers without blocking. Returns false when
// the queue is full.
func (q *Queue) Enqueue(id snowflake.ID) bool {
	select {
	case q.ch <- id:
		obsmetrics.Pipeline().SetVerifyQueueDepth(len(q.ch))
		return true
	default:
		obsmetrics.Pipeline().IncVerifyQueueDropped()
		q.log.Warn("verification queue full, dropping job for sweep recovery",
			zap.String("claim_id", id.String()),
		)
		return false
	}
}

func (q *Queue) jobs() <-chan snowflake.ID { return q.ch }

// Depth returns the number of queued jobs.
func (q *Queue) Depth() int { return len(q.ch) }
