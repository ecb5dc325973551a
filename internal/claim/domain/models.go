package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Status is the claim lifecycle state.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusPaid      Status = "paid"
)

// PaymentStatus tracks the payout sub-state on the claim record.
type PaymentStatus string

const (
	PaymentStatusInitiated PaymentStatus = "initiated"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Claim is the aggregate root for one insurance request.
//
// Verification, ledger and payout fields lag the status under failure of the
// corresponding external system; they never contradict a set status.
type Claim struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	FarmerID snowflake.ID `gorm:"not null;index" json:"farmer_id"`

	CropType            string     `gorm:"not null" json:"crop_type"`
	AffectedArea        float64    `gorm:"not null;default:0" json:"affected_area"`
	LandSize            float64    `gorm:"not null;default:0" json:"land_size"`
	ClaimAmount         float64    `gorm:"not null;default:0" json:"claim_amount"`
	IncidentDate        *time.Time `json:"incident_date,omitempty"`
	IncidentDescription string     `gorm:"not null;default:''" json:"incident_description"`
	SoilType            string     `gorm:"not null;default:''" json:"soil_type,omitempty"`
	IrrigationType      string     `gorm:"not null;default:''" json:"irrigation_type,omitempty"`
	FertilizerUsage     float64    `gorm:"not null;default:0" json:"fertilizer_usage,omitempty"`
	SowingDate          *time.Time `json:"sowing_date,omitempty"`

	Status Status `gorm:"not null;default:'submitted';index" json:"status"`

	MLEvaluated     bool    `gorm:"not null;default:false" json:"ml_evaluated"`
	MLApproved      bool    `gorm:"not null;default:false" json:"ml_approved"`
	FraudScore      float64 `gorm:"not null;default:0" json:"fraud_score"`
	PredictedYield  float64 `gorm:"not null;default:0" json:"predicted_yield"`
	PredictedDamage float64 `gorm:"not null;default:0" json:"predicted_damage"`
	RejectionReason string  `gorm:"not null;default:''" json:"rejection_reason,omitempty"`
	MockData        bool    `gorm:"not null;default:false" json:"mock_data"`

	LedgerClaimID string `gorm:"not null;default:''" json:"ledger_claim_id,omitempty"`
	LedgerTxHash  string `gorm:"not null;default:''" json:"ledger_tx_hash,omitempty"`
	LedgerStatus  string `gorm:"not null;default:''" json:"ledger_status,omitempty"`

	PaymentStatus      PaymentStatus `gorm:"not null;default:''" json:"payment_status,omitempty"`
	PaymentRef         string        `gorm:"not null;default:''" json:"payment_ref,omitempty"`
	PaymentCompletedAt *time.Time    `json:"payment_completed_at,omitempty"`

	// VerifyRequestedAt marks a pending verification so a recovery sweep can
	// re-enqueue claims whose job was lost to a crash.
	VerifyRequestedAt *time.Time `json:"-"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Claim) TableName() string { return "claims" }

// Evidence is one uploaded photo or document backing a claim. Rows are
// immutable once created; ContentID is empty when the store upload failed.
type Evidence struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	ClaimID   snowflake.ID `gorm:"not null;index" json:"claim_id"`
	FileName  string       `gorm:"not null" json:"file_name"`
	ContentID string       `gorm:"not null;default:''" json:"content_id,omitempty"`
	LocalRef  string       `gorm:"not null;default:''" json:"local_ref,omitempty"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Evidence) TableName() string { return "claim_evidence" }

// VerdictSource distinguishes real service verdicts from synthesized ones.
type VerdictSource string

const (
	VerdictSourceReal      VerdictSource = "real"
	VerdictSourceSynthetic VerdictSource = "synthetic"
)

// VerificationResult is an immutable snapshot of one verification run. A
// claim accumulates these as an audit trail; the latest one drives the
// claim's verification fields.
type VerificationResult struct {
	ID              snowflake.ID      `gorm:"primaryKey" json:"id"`
	ClaimID         snowflake.ID      `gorm:"not null;index" json:"claim_id"`
	Approved        bool              `gorm:"not null;default:false" json:"approved"`
	ImageVerified   bool              `gorm:"not null;default:false" json:"image_verified"`
	FraudScore      float64           `gorm:"not null;default:0" json:"fraud_score"`
	PredictedYield  float64           `gorm:"not null;default:0" json:"predicted_yield"`
	PredictedDamage float64           `gorm:"not null;default:0" json:"predicted_damage"`
	RejectionReason string            `gorm:"not null;default:''" json:"rejection_reason,omitempty"`
	Source          VerdictSource     `gorm:"not null;default:'real'" json:"source"`
	RiskLevel       string            `gorm:"not null;default:''" json:"risk_level,omitempty"`
	Recommendations string            `gorm:"not null;default:''" json:"recommendations,omitempty"`
	ServiceError    string            `gorm:"not null;default:''" json:"service_error,omitempty"`
	Raw             datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"raw,omitempty"`
	CreatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (VerificationResult) TableName() string { return "claim_verifications" }

// MockData reports whether the verdict was synthesized while the
// verification service was unreachable.
func (v VerificationResult) MockData() bool {
	return v.Source == VerdictSourceSynthetic
}

// PayoutTransactionStatus is the terminal state of one payout attempt.
type PayoutTransactionStatus string

const (
	PayoutInitiated PayoutTransactionStatus = "initiated"
	PayoutSuccess   PayoutTransactionStatus = "success"
	PayoutFailed    PayoutTransactionStatus = "failed"
)

// PayoutTransaction records one payout attempt. A claim has at most one
// transaction with status success.
type PayoutTransaction struct {
	ID             snowflake.ID            `gorm:"primaryKey" json:"id"`
	ClaimID        snowflake.ID            `gorm:"not null;index" json:"claim_id"`
	Amount         float64                 `gorm:"not null;default:0" json:"amount"`
	Method         string                  `gorm:"not null;default:''" json:"method"`
	Status         PayoutTransactionStatus `gorm:"not null;default:'initiated'" json:"status"`
	GatewayRef     string                  `gorm:"not null;default:''" json:"gateway_ref,omitempty"`
	IdempotencyKey string                  `gorm:"not null;default:''" json:"idempotency_key,omitempty"`
	RawResponse    datatypes.JSONMap       `gorm:"type:jsonb;not null;default:'{}'" json:"raw_response,omitempty"`
	CompletedAt    *time.Time              `json:"completed_at,omitempty"`
	CreatedAt      time.Time               `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (PayoutTransaction) TableName() string { return "payout_transactions" }
