package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/agrishield/claims/internal/claim/domain"
	"github.com/agrishield/claims/internal/claim/repository"
	"github.com/agrishield/claims/internal/claim/verify"
	"github.com/agrishield/claims/internal/clock"
)

func newTestSweeper(t *testing.T, cfg Config, queueSize int) (*Sweeper, *gorm.DB, *clock.FakeClock, *verify.Queue) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(&domain.Claim{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	fake := clock.NewFakeClock(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	queue := verify.NewQueue(queueSize, zap.NewNop())

	sweeper, err := New(Params{
		DB:    gdb,
		Log:   zap.NewNop(),
		Clock: fake,
		Repo:  repository.Provide(),
		Queue: queue,
		Cfg:   cfg,
	})
	if err != nil {
		t.Fatalf("new sweeper: %v", err)
	}
	return sweeper, gdb, fake, queue
}

func seedClaim(t *testing.T, gdb *gorm.DB, id int64, requestedAt time.Time) {
	t.Helper()
	at := requestedAt
	claim := &domain.Claim{
		ID:                snowflake.ID(id),
		FarmerID:          snowflake.ID(7),
		CropType:          "rice",
		LandSize:          5,
		AffectedArea:      2,
		ClaimAmount:       50000,
		Status:            domain.StatusSubmitted,
		VerifyRequestedAt: &at,
		CreatedAt:         requestedAt,
		UpdatedAt:         requestedAt,
	}
	if err := gdb.Create(claim).Error; err != nil {
		t.Fatalf("seed claim %d: %v", id, err)
	}
}

func TestRunOnceRecoversStuckClaims(t *testing.T) {
	sweeper, gdb, fake, queue := newTestSweeper(t, Config{RecoveryThreshold: 5 * time.Minute}, 16)

	seedClaim(t, gdb, 1, fake.Now().Add(-10*time.Minute))
	seedClaim(t, gdb, 2, fake.Now().Add(-time.Minute)) // fresh, not stuck

	if err := sweeper.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if got := queue.Depth(); got != 1 {
		t.Fatalf("expected 1 recovered job, got %d", got)
	}

	var recovered domain.Claim
	if err := gdb.First(&recovered, "id = ?", snowflake.ID(1)).Error; err != nil {
		t.Fatalf("reload claim: %v", err)
	}
	if recovered.VerifyRequestedAt == nil || !recovered.VerifyRequestedAt.Equal(fake.Now()) {
		t.Fatalf("pending marker not refreshed, got %v", recovered.VerifyRequestedAt)
	}
}

func TestRunOnceSkipsEvaluatedClaims(t *testing.T) {
	sweeper, gdb, fake, queue := newTestSweeper(t, Config{RecoveryThreshold: 5 * time.Minute}, 16)

	seedClaim(t, gdb, 1, fake.Now().Add(-10*time.Minute))
	if err := gdb.Model(&domain.Claim{}).
		Where("id = ?", snowflake.ID(1)).
		Updates(map[string]any{"status": domain.StatusApproved, "ml_evaluated": true}).Error; err != nil {
		t.Fatalf("mark evaluated: %v", err)
	}

	if err := sweeper.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if got := queue.Depth(); got != 0 {
		t.Fatalf("expected no recovered jobs, got %d", got)
	}
}

func TestRunOnceStopsWhenQueueFull(t *testing.T) {
	sweeper, gdb, fake, queue := newTestSweeper(t, Config{RecoveryThreshold: 5 * time.Minute}, 1)

	seedClaim(t, gdb, 1, fake.Now().Add(-10*time.Minute))
	seedClaim(t, gdb, 2, fake.Now().Add(-9*time.Minute))

	if err := sweeper.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if got := queue.Depth(); got != 1 {
		t.Fatalf("expected queue capped at 1, got %d", got)
	}

	// The second claim keeps a stale marker relative to a later sweep, so it
	// stays eligible once there is room again.
	fake.Advance(10 * time.Minute)
	sweeper.queue = verify.NewQueue(16, zap.NewNop())
	if err := sweeper.RunOnce(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := sweeper.queue.Depth(); got != 2 {
		t.Fatalf("expected both claims recovered after the stall, got depth %d", got)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(Params{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}
