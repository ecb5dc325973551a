package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/agrishield/claims/internal/claim/domain"
	"github.com/agrishield/claims/internal/claim/verify"
	"github.com/agrishield/claims/internal/clock"
	obslogger "github.com/agrishield/claims/internal/observability/logger"
	obsmetrics "github.com/agrishield/claims/internal/observability/metrics"
	"github.com/agrishield/claims/internal/providers/evidence"
	"github.com/agrishield/claims/internal/providers/ledger"
	"github.com/agrishield/claims/internal/providers/payout"
	"github.com/agrishield/claims/internal/providers/verifier"
	"github.com/agrishield/claims/pkg/db/option"
	"github.com/agrishield/claims/pkg/db/pagination"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Queue    *verify.Queue
	Evidence evidence.Store
	Verifier verifier.Verifier
	Ledger   ledger.Ledger
	Payout   payout.Gateway
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	queue    *verify.Queue
	evidence evidence.Store
	verifier verifier.Verifier
	ledger   ledger.Ledger
	payout   payout.Gateway
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("claim.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		queue:    p.Queue,
		evidence: p.Evidence,
		verifier: p.Verifier,
		ledger:   p.Ledger,
		payout:   p.Payout,
	}
}

// SubmitClaim persists the claim and evidence, anchors it on the ledger
// best-effort and hands it to the verification workers. Only validation and
// persistence failures reach the caller; every external-system failure is
// absorbed into the claim's state.
func (s *Service) SubmitClaim(ctx context.Context, req domain.SubmitClaimRequest) (*domain.SubmitClaimResponse, error) {
	if err := validateSubmit(req); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	claim := &domain.Claim{
		ID:                  s.genID.Generate(),
		FarmerID:            req.FarmerID,
		CropType:            strings.ToLower(strings.TrimSpace(req.CropType)),
		AffectedArea:        req.AffectedArea,
		LandSize:            req.LandSize,
		ClaimAmount:         req.ClaimAmount,
		IncidentDate:        req.IncidentDate,
		IncidentDescription: strings.TrimSpace(req.IncidentDescription),
		SoilType:            strings.ToLower(strings.TrimSpace(req.SoilType)),
		IrrigationType:      strings.ToLower(strings.TrimSpace(req.IrrigationType)),
		FertilizerUsage:     req.FertilizerUsage,
		SowingDate:          req.SowingDate,
		Status:              domain.StatusSubmitted,
		VerifyRequestedAt:   &now,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	ctx = obslogger.ContextWithClaimID(ctx, claim.ID.String())
	log := obslogger.WithContext(ctx, s.log)

	rows := s.uploadEvidence(ctx, claim.ID, req.Evidence, now)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Create(ctx, tx, claim); err != nil {
			return err
		}
		return s.repo.CreateEvidence(ctx, tx, rows)
	})
	if err != nil {
		return nil, err
	}

	log.Info("claim submitted",
		zap.String("farmer_id", claim.FarmerID.String()),
		zap.String("crop_type", claim.CropType),
		zap.Float64("claim_amount", claim.ClaimAmount),
		zap.Int("evidence_files", len(rows)),
	)

	s.submitToLedger(ctx, claim)

	if !s.queue.Enqueue(claim.ID) {
		log.Warn("verification enqueue deferred to recovery sweep")
	}

	return &domain.SubmitClaimResponse{Claim: claim, Evidence: rows}, nil
}

func validateSubmit(req domain.SubmitClaimRequest) error {
	switch {
	case req.FarmerID == 0:
		return domain.ErrInvalidRequest
	case strings.TrimSpace(req.CropType) == "":
		return domain.ErrInvalidRequest
	case req.ClaimAmount <= 0:
		return domain.ErrInvalidRequest
	case req.LandSize <= 0:
		return domain.ErrInvalidRequest
	case req.AffectedArea <= 0 || req.AffectedArea > req.LandSize:
		return domain.ErrInvalidRequest
	}
	return nil
}

// uploadEvidence pushes every file to the content-addressed store. Uploads
// are per-file best-effort: failed files keep their local ref and an empty
// content id.
func (s *Service) uploadEvidence(ctx context.Context, claimID snowflake.ID, files []domain.EvidenceFile, now time.Time) []domain.Evidence {
	if len(files) == 0 {
		return nil
	}

	toUpload := make([]evidence.File, 0, len(files))
	for _, f := range files {
		toUpload = append(toUpload, evidence.File{FileName: f.FileName, Content: f.Content})
	}

	results := s.evidence.UploadMany(ctx, toUpload)
	rows := make([]domain.Evidence, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			obsmetrics.Pipeline().IncEvidenceUpload(obsmetrics.ResultFailed)
		} else {
			obsmetrics.Pipeline().IncEvidenceUpload(obsmetrics.ResultOK)
		}
		rows = append(rows, domain.Evidence{
			ID:        s.genID.Generate(),
			ClaimID:   claimID,
			FileName:  res.FileName,
			ContentID: res.ContentID,
			LocalRef:  res.LocalRef,
			CreatedAt: now,
		})
	}
	return rows
}

// submitToLedger anchors the claim on the ledger. Failure leaves the ledger
// fields unset; nothing downstream waits on them.
func (s *Service) submitToLedger(ctx context.Context, claim *domain.Claim) {
	log := obslogger.WithContext(ctx, s.log)

	res, err := s.ledger.Submit(ctx, ledger.SubmitInput{
		FarmerID:    claim.FarmerID.String(),
		CropType:    claim.CropType,
		ClaimAmount: claim.ClaimAmount,
	})
	if err != nil {
		obsmetrics.Pipeline().IncLedgerOp(obsmetrics.LedgerOpSubmit, obsmetrics.ResultFailed)
		log.Warn("ledger submit failed", zap.Error(err))
		return
	}
	obsmetrics.Pipeline().IncLedgerOp(obsmetrics.LedgerOpSubmit, obsmetrics.ResultOK)

	fields := map[string]any{
		"ledger_claim_id": res.LedgerRef,
		"ledger_tx_hash":  res.TxHash,
		"ledger_status":   "submitted",
	}
	if err := s.repo.UpdateFields(ctx, s.db, claim.ID, fields); err != nil {
		log.Warn("persisting ledger reference failed", zap.Error(err))
		return
	}
	claim.LedgerClaimID = res.LedgerRef
	claim.LedgerTxHash = res.TxHash
	claim.LedgerStatus = "submitted"
}

func (s *Service) GetClaim(ctx context.Context, req domain.GetClaimRequest) (*domain.GetClaimResponse, error) {
	claim, err := s.repo.Find(ctx, s.db, req.ID)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return nil, domain.ErrClaimNotFound
	}

	resp := &domain.GetClaimResponse{Claim: claim}
	if req.IncludeEvidence {
		ev, err := s.repo.ListEvidence(ctx, s.db, claim.ID)
		if err != nil {
			return nil, err
		}
		resp.Evidence = ev
	}
	if req.IncludeHistory {
		history, err := s.repo.ListVerifications(ctx, s.db, claim.ID)
		if err != nil {
			return nil, err
		}
		resp.Verifications = history
	}
	return resp, nil
}

func (s *Service) ListClaims(ctx context.Context, req domain.ListClaimsRequest) (*domain.ListClaimsResponse, error) {
	size := req.Pagination.PageSize
	if size <= 0 {
		size = 20
	}

	claims, err := s.repo.List(ctx, s.db, req.Filter, option.ApplyPagination(req.Pagination))
	if err != nil {
		return nil, err
	}

	pageInfo := pagination.BuildCursorPageInfo(claims, int32(size), func(c *domain.Claim) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        c.ID.String(),
			CreatedAt: c.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(claims) > size {
		claims = claims[:size]
	}

	return &domain.ListClaimsResponse{Claims: claims, PageInfo: *pageInfo}, nil
}
