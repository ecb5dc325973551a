package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/agrishield/claims/internal/claim/domain"
	obslogger "github.com/agrishield/claims/internal/observability/logger"
	obsmetrics "github.com/agrishield/claims/internal/observability/metrics"
	"github.com/agrishield/claims/internal/providers/verifier"
)

// ProcessVerification runs verification for one submitted claim and
// transitions it to approved or rejected. Safe to call more than once: a
// claim that already carries a verdict is left alone.
func (s *Service) ProcessVerification(ctx context.Context, claimID snowflake.ID) error {
	claim, err := s.repo.Find(ctx, s.db, claimID)
	if err != nil {
		return err
	}
	if claim == nil {
		return domain.ErrClaimNotFound
	}
	if claim.Status != domain.StatusSubmitted || claim.MLEvaluated {
		return nil
	}
	return s.verify(ctx, claim)
}

// ReprocessClaim re-runs verification for a claim stuck in submitted, e.g.
// when its background job was lost. Claims that already hold a verdict are
// not re-opened.
func (s *Service) ReprocessClaim(ctx context.Context, claimID snowflake.ID) (*domain.GetClaimResponse, error) {
	claim, err := s.repo.Find(ctx, s.db, claimID)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return nil, domain.ErrClaimNotFound
	}
	if claim.Status != domain.StatusSubmitted {
		return nil, domain.ErrNotReprocessable
	}

	if err := s.verify(ctx, claim); err != nil {
		return nil, err
	}
	return s.GetClaim(ctx, domain.GetClaimRequest{ID: claimID, IncludeHistory: true})
}

func (s *Service) verify(ctx context.Context, claim *domain.Claim) error {
	ctx = obslogger.ContextWithClaimID(ctx, claim.ID.String())
	log := obslogger.WithContext(ctx, s.log)

	refs, err := s.evidenceRefs(ctx, claim.ID)
	if err != nil {
		return err
	}
	historical, err := s.repo.CountByFarmer(ctx, s.db, claim.FarmerID)
	if err != nil {
		return err
	}

	verdict, err := s.verifier.Evaluate(ctx, verifier.ClaimInput{
		ClaimID:             claim.ID.String(),
		FarmerID:            claim.FarmerID.String(),
		CropType:            claim.CropType,
		LandSize:            claim.LandSize,
		AffectedArea:        claim.AffectedArea,
		ClaimAmount:         claim.ClaimAmount,
		IncidentDescription: claim.IncidentDescription,
		SoilType:            claim.SoilType,
		IrrigationType:      claim.IrrigationType,
		FertilizerUsage:     claim.FertilizerUsage,
		SowingDate:          claim.SowingDate,
		EvidenceRefs:        refs,
		HistoricalClaims:    int(historical) - 1,
	})
	if err != nil {
		return err
	}

	now := s.clock.Now().UTC()
	next := domain.StatusRejected
	if verdict.Approved {
		next = domain.StatusApproved
	}

	result := &domain.VerificationResult{
		ID:              s.genID.Generate(),
		ClaimID:         claim.ID,
		Approved:        verdict.Approved,
		ImageVerified:   verdict.ImageVerified,
		FraudScore:      verdict.FraudScore,
		PredictedYield:  verdict.PredictedYield,
		PredictedDamage: verdict.PredictedDamage,
		RejectionReason: verdict.RejectionReason,
		Source:          verdictSource(verdict),
		RiskLevel:       verdict.RiskLevel,
		Recommendations: joinRecommendations(verdict.Recommendations),
		ServiceError:    verdict.ServiceError,
		Raw:             datatypes.JSONMap(verdict.Raw),
		CreatedAt:       now,
	}

	fields := map[string]any{
		"status":              next,
		"ml_evaluated":        true,
		"ml_approved":         verdict.Approved,
		"fraud_score":         verdict.FraudScore,
		"predicted_yield":     verdict.PredictedYield,
		"predicted_damage":    verdict.PredictedDamage,
		"rejection_reason":    verdict.RejectionReason,
		"mock_data":           verdict.Synthetic(),
		"verify_requested_at": nil,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.CreateVerification(ctx, tx, result); err != nil {
			return err
		}
		return s.repo.UpdateFields(ctx, tx, claim.ID, fields)
	})
	if err != nil {
		return err
	}

	obsmetrics.Pipeline().IncVerifyResult(string(next), string(result.Source))
	obsmetrics.Pipeline().IncClaimTransition(string(domain.StatusSubmitted), string(next))
	log.Info("claim verified",
		zap.String("decision", string(next)),
		zap.Bool("synthetic", verdict.Synthetic()),
		zap.Float64("fraud_score", verdict.FraudScore),
		zap.Float64("predicted_yield", verdict.PredictedYield),
		zap.String("rejection_reason", verdict.RejectionReason),
	)

	claim.Status = next
	claim.MLEvaluated = true
	claim.MLApproved = verdict.Approved
	claim.MockData = verdict.Synthetic()

	if next == domain.StatusApproved {
		s.approveOnLedger(ctx, claim)
	}
	return nil
}

func (s *Service) evidenceRefs(ctx context.Context, claimID snowflake.ID) ([]string, error) {
	rows, err := s.repo.ListEvidence(ctx, s.db, claimID)
	if err != nil {
		return nil, err
	}
	refs := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.ContentID != "" {
			refs = append(refs, row.ContentID)
		} else if row.LocalRef != "" {
			refs = append(refs, row.LocalRef)
		}
	}
	return refs, nil
}

// approveOnLedger mirrors the approval on the ledger. Best-effort: failure
// leaves the ledger status stale at "submitted".
func (s *Service) approveOnLedger(ctx context.Context, claim *domain.Claim) {
	if claim.LedgerClaimID == "" {
		return
	}
	log := obslogger.WithContext(ctx, s.log)

	txHash, err := s.ledger.Approve(ctx, claim.LedgerClaimID)
	if err != nil {
		obsmetrics.Pipeline().IncLedgerOp(obsmetrics.LedgerOpApprove, obsmetrics.ResultFailed)
		log.Warn("ledger approve failed", zap.Error(err))
		return
	}
	obsmetrics.Pipeline().IncLedgerOp(obsmetrics.LedgerOpApprove, obsmetrics.ResultOK)

	fields := map[string]any{
		"ledger_tx_hash": txHash,
		"ledger_status":  "approved",
	}
	if err := s.repo.UpdateFields(ctx, s.db, claim.ID, fields); err != nil {
		log.Warn("persisting ledger approval failed", zap.Error(err))
	}
}

func verdictSource(v *verifier.Verdict) domain.VerdictSource {
	if v.Synthetic() {
		return domain.VerdictSourceSynthetic
	}
	return domain.VerdictSourceReal
}

func joinRecommendations(recs []string) string {
	return strings.Join(recs, "; ")
}
