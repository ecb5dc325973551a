package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/agrishield/claims/pkg/db/option"
)

// ClaimFilter narrows List results.
type ClaimFilter struct {
	FarmerID snowflake.ID
	Status   Status
	CropType string
}

// Repository is the persistence boundary for claims and their child records.
// Callers pass the *gorm.DB so service code can run several calls inside one
// transaction.
type Repository interface {
	Create(ctx context.Context, db *gorm.DB, claim *Claim) error
	Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Claim, error)
	List(ctx context.Context, db *gorm.DB, filter ClaimFilter, opts ...option.Option) ([]*Claim, error)
	CountByFarmer(ctx context.Context, db *gorm.DB, farmerID snowflake.ID) (int64, error)

	// UpdateFields applies a partial update. Map keys are column names so
	// zero values (false, 0, "") are written rather than skipped.
	UpdateFields(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error

	CreateEvidence(ctx context.Context, db *gorm.DB, ev []Evidence) error
	ListEvidence(ctx context.Context, db *gorm.DB, claimID snowflake.ID) ([]Evidence, error)

	CreateVerification(ctx context.Context, db *gorm.DB, res *VerificationResult) error
	ListVerifications(ctx context.Context, db *gorm.DB, claimID snowflake.ID) ([]VerificationResult, error)

	CreatePayout(ctx context.Context, db *gorm.DB, tx *PayoutTransaction) error
	UpdatePayout(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error
	FindSuccessfulPayout(ctx context.Context, db *gorm.DB, claimID snowflake.ID) (*PayoutTransaction, error)
	ListPayouts(ctx context.Context, db *gorm.DB, claimID snowflake.ID) ([]PayoutTransaction, error)

	// FindStuckPending returns claims whose verification was requested before
	// cutoff but never completed, for the recovery sweep. Rows are locked
	// with SKIP LOCKED where the dialect supports it.
	FindStuckPending(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]Claim, error)
}
