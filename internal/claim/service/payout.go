package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/agrishield/claims/internal/claim/domain"
	obslogger "github.com/agrishield/claims/internal/observability/logger"
	obsmetrics "github.com/agrishield/claims/internal/observability/metrics"
	"github.com/agrishield/claims/internal/providers/payout"
	"github.com/agrishield/claims/pkg/db"
)

// InitiatePayout pays out an approved claim. The idempotency guard re-checks
// for an existing successful transaction right before calling the gateway, so
// rapid duplicate requests produce at most one successful payout.
func (s *Service) InitiatePayout(ctx context.Context, req domain.InitiatePayoutRequest) (*domain.InitiatePayoutResponse, error) {
	claim, err := s.repo.Find(ctx, s.db, req.ClaimID)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return nil, domain.ErrClaimNotFound
	}

	ctx = obslogger.ContextWithClaimID(ctx, claim.ID.String())
	log := obslogger.WithContext(ctx, s.log)

	switch claim.Status {
	case domain.StatusApproved:
	case domain.StatusPaid:
		return nil, domain.ErrAlreadyPaid
	case domain.StatusRejected:
		return nil, domain.ErrClaimRejected
	case domain.StatusSubmitted:
		return nil, domain.ErrVerificationPending
	default:
		return nil, domain.ErrNotEligibleForPayout
	}

	existing, err := s.repo.FindSuccessfulPayout(ctx, s.db, claim.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrAlreadyPaid
	}

	now := s.clock.Now().UTC()
	method := req.Method
	if method == "" {
		method = "wallet"
	}

	tx := &domain.PayoutTransaction{
		ID:             s.genID.Generate(),
		ClaimID:        claim.ID,
		Amount:         claim.ClaimAmount,
		Method:         method,
		Status:         domain.PayoutInitiated,
		IdempotencyKey: uuid.NewString(),
		RawResponse:    datatypes.JSONMap{},
		CreatedAt:      now,
	}
	if err := s.repo.CreatePayout(ctx, s.db, tx); err != nil {
		return nil, err
	}

	outcome, callErr := s.payout.Initiate(ctx, payout.Request{
		ClaimID:        claim.ID.String(),
		Amount:         claim.ClaimAmount,
		Instrument:     method,
		IdempotencyRef: tx.IdempotencyKey,
	})
	if callErr != nil || !outcome.Success {
		obsmetrics.Pipeline().IncPayoutAttempt(obsmetrics.ResultFailed)

		fields := map[string]any{"status": domain.PayoutFailed}
		if outcome != nil {
			fields["raw_response"] = datatypes.JSONMap(outcome.RawResponse)
			fields["gateway_ref"] = outcome.Reference
		}
		if err := s.repo.UpdatePayout(ctx, s.db, tx.ID, fields); err != nil {
			log.Error("recording failed payout failed", zap.Error(err))
		}
		if err := s.repo.UpdateFields(ctx, s.db, claim.ID, map[string]any{
			"payment_status": domain.PaymentStatusFailed,
		}); err != nil {
			log.Error("recording payout failure on claim failed", zap.Error(err))
		}
		log.Warn("payout attempt failed", zap.Error(callErr))
		return nil, domain.ErrPayoutFailed
	}

	obsmetrics.Pipeline().IncPayoutAttempt(obsmetrics.ResultOK)

	if err := s.repo.UpdatePayout(ctx, s.db, tx.ID, map[string]any{
		"status":       domain.PayoutSuccess,
		"gateway_ref":  outcome.Reference,
		"raw_response": datatypes.JSONMap(outcome.RawResponse),
		"completed_at": now,
	}); err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Lost a race against a concurrent payout that already succeeded.
			return nil, domain.ErrAlreadyPaid
		}
		return nil, err
	}
	if err := s.repo.UpdateFields(ctx, s.db, claim.ID, map[string]any{
		"status":               domain.StatusPaid,
		"payment_status":       domain.PaymentStatusCompleted,
		"payment_ref":          outcome.Reference,
		"payment_completed_at": now,
	}); err != nil {
		return nil, err
	}

	obsmetrics.Pipeline().IncClaimTransition(string(domain.StatusApproved), string(domain.StatusPaid))
	log.Info("claim paid",
		zap.Float64("amount", claim.ClaimAmount),
		zap.String("gateway_ref", outcome.Reference),
	)

	tx.Status = domain.PayoutSuccess
	tx.GatewayRef = outcome.Reference
	tx.RawResponse = datatypes.JSONMap(outcome.RawResponse)
	tx.CompletedAt = &now

	claim.Status = domain.StatusPaid
	claim.PaymentStatus = domain.PaymentStatusCompleted
	claim.PaymentRef = outcome.Reference
	claim.PaymentCompletedAt = &now

	s.markPaidOnLedger(ctx, claim)

	return &domain.InitiatePayoutResponse{Claim: claim, Transaction: tx}, nil
}

// markPaidOnLedger mirrors the payment on the ledger. Best-effort.
func (s *Service) markPaidOnLedger(ctx context.Context, claim *domain.Claim) {
	if claim.LedgerClaimID == "" {
		return
	}
	log := obslogger.WithContext(ctx, s.log)

	txHash, err := s.ledger.MarkPaid(ctx, claim.LedgerClaimID)
	if err != nil {
		obsmetrics.Pipeline().IncLedgerOp(obsmetrics.LedgerOpMarkPaid, obsmetrics.ResultFailed)
		log.Warn("ledger mark-paid failed", zap.Error(err))
		return
	}
	obsmetrics.Pipeline().IncLedgerOp(obsmetrics.LedgerOpMarkPaid, obsmetrics.ResultOK)

	fields := map[string]any{
		"ledger_tx_hash": txHash,
		"ledger_status":  "paid",
	}
	if err := s.repo.UpdateFields(ctx, s.db, claim.ID, fields); err != nil {
		log.Warn("persisting ledger payment failed", zap.Error(err))
	}
}

func (s *Service) ListPayouts(ctx context.Context, req domain.ListPayoutsRequest) (*domain.ListPayoutsResponse, error) {
	claim, err := s.repo.Find(ctx, s.db, req.ClaimID)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return nil, domain.ErrClaimNotFound
	}
	txs, err := s.repo.ListPayouts(ctx, s.db, claim.ID)
	if err != nil {
		return nil, err
	}
	return &domain.ListPayoutsResponse{Transactions: txs}, nil
}
