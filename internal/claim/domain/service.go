package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/agrishield/claims/pkg/db/pagination"
)

var (
	ErrClaimNotFound        = errors.New("claim_not_found")
	ErrInvalidRequest       = errors.New("invalid_request")
	ErrNotEligibleForPayout = errors.New("claim_not_eligible_for_payout")
	ErrAlreadyPaid          = errors.New("claim_already_paid")
	ErrClaimRejected        = errors.New("claim_rejected")
	ErrVerificationPending  = errors.New("verification_pending")
	ErrNotReprocessable     = errors.New("claim_not_reprocessable")
	ErrPayoutFailed         = errors.New("payout_failed")
)

// EvidenceFile is one uploaded file as received on submission.
type EvidenceFile struct {
	FileName string
	Content  []byte
}

type SubmitClaimRequest struct {
	FarmerID            snowflake.ID
	CropType            string
	AffectedArea        float64
	LandSize            float64
	ClaimAmount         float64
	IncidentDate        *time.Time
	IncidentDescription string
	SoilType            string
	IrrigationType      string
	FertilizerUsage     float64
	SowingDate          *time.Time
	Evidence            []EvidenceFile
}

type SubmitClaimResponse struct {
	Claim    *Claim     `json:"claim"`
	Evidence []Evidence `json:"evidence,omitempty"`
}

type GetClaimRequest struct {
	ID              snowflake.ID
	IncludeEvidence bool
	IncludeHistory  bool
}

type GetClaimResponse struct {
	Claim         *Claim               `json:"claim"`
	Evidence      []Evidence           `json:"evidence,omitempty"`
	Verifications []VerificationResult `json:"verifications,omitempty"`
}

type ListClaimsRequest struct {
	Filter     ClaimFilter
	Pagination pagination.Pagination
}

type ListClaimsResponse struct {
	Claims   []*Claim            `json:"claims"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type InitiatePayoutRequest struct {
	ClaimID snowflake.ID
	Method  string
}

type InitiatePayoutResponse struct {
	Claim       *Claim             `json:"claim"`
	Transaction *PayoutTransaction `json:"transaction"`
}

type ListPayoutsRequest struct {
	ClaimID snowflake.ID
}

type ListPayoutsResponse struct {
	Transactions []PayoutTransaction `json:"transactions"`
}

// Service orchestrates the claim lifecycle across the evidence store,
// verification service, ledger and payout gateway.
type Service interface {
	SubmitClaim(ctx context.Context, req SubmitClaimRequest) (*SubmitClaimResponse, error)
	GetClaim(ctx context.Context, req GetClaimRequest) (*GetClaimResponse, error)
	ListClaims(ctx context.Context, req ListClaimsRequest) (*ListClaimsResponse, error)

	// ProcessVerification runs the full verification flow for one claim and
	// transitions it to approved or rejected. Called by the worker pool and
	// by ReprocessClaim.
	ProcessVerification(ctx context.Context, claimID snowflake.ID) error

	// ReprocessClaim re-runs verification for a claim stuck in submitted.
	ReprocessClaim(ctx context.Context, claimID snowflake.ID) (*GetClaimResponse, error)

	InitiatePayout(ctx context.Context, req InitiatePayoutRequest) (*InitiatePayoutResponse, error)
	ListPayouts(ctx context.Context, req ListPayoutsRequest) (*ListPayoutsResponse, error)
}
