package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/agrishield/claims/internal/claim/domain"
	"github.com/agrishield/claims/pkg/db/option"
	"github.com/agrishield/claims/pkg/db/pagination"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(
		&domain.Claim{},
		&domain.Evidence{},
		&domain.VerificationResult{},
		&domain.PayoutTransaction{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func seedClaim(t *testing.T, gdb *gorm.DB, id, farmerID int64, createdAt time.Time) *domain.Claim {
	t.Helper()
	at := createdAt
	claim := &domain.Claim{
		ID:                snowflake.ID(id),
		FarmerID:          snowflake.ID(farmerID),
		CropType:          "rice",
		LandSize:          5,
		AffectedArea:      2,
		ClaimAmount:       50000,
		Status:            domain.StatusSubmitted,
		VerifyRequestedAt: &at,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}
	if err := gdb.Create(claim).Error; err != nil {
		t.Fatalf("seed claim %d: %v", id, err)
	}
	return claim
}

func TestFindReturnsNilForMissingClaim(t *testing.T) {
	gdb := newTestDB(t)
	r := Provide()

	claim, err := r.Find(context.Background(), gdb, snowflake.ID(1))
	assert.NoError(t, err)
	assert.Nil(t, claim)
}

func TestUpdateFieldsWritesZeroValues(t *testing.T) {
	gdb := newTestDB(t)
	r := Provide()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	seedClaim(t, gdb, 1, 7, base)

	err := r.UpdateFields(context.Background(), gdb, snowflake.ID(1), map[string]any{
		"status":              domain.StatusRejected,
		"ml_evaluated":        true,
		"ml_approved":         false,
		"fraud_score":         0.0,
		"verify_requested_at": nil,
	})
	if err != nil {
		t.Fatalf("update fields: %v", err)
	}

	claim, err := r.Find(context.Background(), gdb, snowflake.ID(1))
	if err != nil || claim == nil {
		t.Fatalf("find: %v", err)
	}
	assert.Equal(t, domain.StatusRejected, claim.Status)
	assert.True(t, claim.MLEvaluated)
	assert.False(t, claim.MLApproved)
	assert.Nil(t, claim.VerifyRequestedAt)
	assert.True(t, claim.UpdatedAt.After(base))
}

func TestListFiltersByStatusAndFarmer(t *testing.T) {
	gdb := newTestDB(t)
	r := Provide()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	seedClaim(t, gdb, 1, 7, base)
	seedClaim(t, gdb, 2, 7, base.Add(time.Minute))
	seedClaim(t, gdb, 3, 9, base.Add(2*time.Minute))
	if err := r.UpdateFields(context.Background(), gdb, snowflake.ID(2), map[string]any{
		"status": domain.StatusApproved,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	byFarmer, err := r.List(context.Background(), gdb, domain.ClaimFilter{FarmerID: snowflake.ID(7)})
	if err != nil {
		t.Fatalf("list by farmer: %v", err)
	}
	assert.Len(t, byFarmer, 2)

	approved, err := r.List(context.Background(), gdb, domain.ClaimFilter{Status: domain.StatusApproved})
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if assert.Len(t, approved, 1) {
		assert.Equal(t, snowflake.ID(2), approved[0].ID)
	}

	count, err := r.CountByFarmer(context.Background(), gdb, snowflake.ID(7))
	assert.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	gdb := newTestDB(t)
	r := Provide()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 5; i++ {
		seedClaim(t, gdb, i, 7, base.Add(time.Duration(i)*time.Minute))
	}

	page, err := r.List(context.Background(), gdb, domain.ClaimFilter{},
		option.ApplyPagination(pagination.Pagination{PageSize: 2}))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// One extra row beyond the page size signals another page.
	if assert.Len(t, page, 3) {
		assert.Equal(t, snowflake.ID(5), page[0].ID)
		assert.Equal(t, snowflake.ID(4), page[1].ID)
	}
}

func TestFindStuckPendingFilters(t *testing.T) {
	gdb := newTestDB(t)
	r := Provide()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	seedClaim(t, gdb, 1, 7, base.Add(-10*time.Minute)) // stuck
	seedClaim(t, gdb, 2, 7, base.Add(-time.Minute))    // too fresh
	evaluated := seedClaim(t, gdb, 3, 7, base.Add(-20*time.Minute))
	if err := r.UpdateFields(context.Background(), gdb, evaluated.ID, map[string]any{
		"status":       domain.StatusApproved,
		"ml_evaluated": true,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	cleared := seedClaim(t, gdb, 4, 7, base.Add(-20*time.Minute))
	if err := r.UpdateFields(context.Background(), gdb, cleared.ID, map[string]any{
		"verify_requested_at": nil,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	stuck, err := r.FindStuckPending(context.Background(), gdb, base.Add(-5*time.Minute), 50)
	if err != nil {
		t.Fatalf("find stuck: %v", err)
	}
	if assert.Len(t, stuck, 1) {
		assert.Equal(t, snowflake.ID(1), stuck[0].ID)
	}
}

func TestFindSuccessfulPayout(t *testing.T) {
	gdb := newTestDB(t)
	r := Provide()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	claim := seedClaim(t, gdb, 1, 7, base)

	found, err := r.FindSuccessfulPayout(context.Background(), gdb, claim.ID)
	assert.NoError(t, err)
	assert.Nil(t, found)

	failed := &domain.PayoutTransaction{
		ID:          snowflake.ID(10),
		ClaimID:     claim.ID,
		Amount:      50000,
		Status:      domain.PayoutFailed,
		RawResponse: datatypes.JSONMap{},
		CreatedAt:   base,
	}
	if err := r.CreatePayout(context.Background(), gdb, failed); err != nil {
		t.Fatalf("create failed payout: %v", err)
	}

	found, err = r.FindSuccessfulPayout(context.Background(), gdb, claim.ID)
	assert.NoError(t, err)
	assert.Nil(t, found)

	if err := r.UpdatePayout(context.Background(), gdb, failed.ID, map[string]any{
		"status":      domain.PayoutSuccess,
		"gateway_ref": "PAY-1",
	}); err != nil {
		t.Fatalf("update payout: %v", err)
	}

	found, err = r.FindSuccessfulPayout(context.Background(), gdb, claim.ID)
	assert.NoError(t, err)
	if assert.NotNil(t, found) {
		assert.Equal(t, "PAY-1", found.GatewayRef)
	}
}
