package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agrishield/claims/internal/claim/domain"
	"github.com/agrishield/claims/pkg/db/option"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, claim *domain.Claim) error {
	return db.WithContext(ctx).Create(claim).Error
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Claim, error) {
	var claim domain.Claim
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&claim).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ClaimFilter, opts ...option.Option) ([]*domain.Claim, error) {
	var claims []*domain.Claim
	stmt := db.WithContext(ctx).Model(&domain.Claim{})
	if filter.FarmerID != 0 {
		stmt = stmt.Where("farmer_id = ?", filter.FarmerID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.CropType != "" {
		stmt = stmt.Where("crop_type = ?", filter.CropType)
	}
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}
	err := stmt.
		Order("created_at desc, id desc").
		Find(&claims).Error
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (r *repo) CountByFarmer(ctx context.Context, db *gorm.DB, farmerID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Claim{}).
		Where("farmer_id = ?", farmerID).
		Count(&count).Error
	return count, err
}

func (r *repo) UpdateFields(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	return db.WithContext(ctx).
		Model(&domain.Claim{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *repo) CreateEvidence(ctx context.Context, db *gorm.DB, ev []domain.Evidence) error {
	if len(ev) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&ev).Error
}

func (r *repo) ListEvidence(ctx context.Context, db *gorm.DB, claimID snowflake.ID) ([]domain.Evidence, error) {
	var ev []domain.Evidence
	err := db.WithContext(ctx).
		Where("claim_id = ?", claimID).
		Order("created_at asc, id asc").
		Find(&ev).Error
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func (r *repo) CreateVerification(ctx context.Context, db *gorm.DB, res *domain.VerificationResult) error {
	return db.WithContext(ctx).Create(res).Error
}

func (r *repo) ListVerifications(ctx context.Context, db *gorm.DB, claimID snowflake.ID) ([]domain.VerificationResult, error) {
	var results []domain.VerificationResult
	err := db.WithContext(ctx).
		Where("claim_id = ?", claimID).
		Order("created_at desc, id desc").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *repo) CreatePayout(ctx context.Context, db *gorm.DB, tx *domain.PayoutTransaction) error {
	return db.WithContext(ctx).Create(tx).Error
}

func (r *repo) UpdatePayout(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Model(&domain.PayoutTransaction{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *repo) FindSuccessfulPayout(ctx context.Context, db *gorm.DB, claimID snowflake.ID) (*domain.PayoutTransaction, error) {
	var tx domain.PayoutTransaction
	err := db.WithContext(ctx).
		Where("claim_id = ? AND status = ?", claimID, domain.PayoutSuccess).
		Order("created_at desc").
		First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *repo) ListPayouts(ctx context.Context, db *gorm.DB, claimID snowflake.ID) ([]domain.PayoutTransaction, error) {
	var txs []domain.PayoutTransaction
	err := db.WithContext(ctx).
		Where("claim_id = ?", claimID).
		Order("created_at desc, id desc").
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *repo) FindStuckPending(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]domain.Claim, error) {
	var claims []domain.Claim
	stmt := db.WithContext(ctx).
		Where("status = ?", domain.StatusSubmitted).
		Where("ml_evaluated = ?", false).
		Where("verify_requested_at IS NOT NULL AND verify_requested_at < ?", cutoff).
		Order("verify_requested_at asc").
		Limit(limit)
	if db.Dialector.Name() == "postgres" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	if err := stmt.Find(&claims).Error; err != nil {
		return nil, err
	}
	return claims, nil
}
