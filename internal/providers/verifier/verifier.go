package verifier

import (
	"context"
	"time"
)

// Source tags where a verdict came from.
type Source string

const (
	SourceReal      Source = "real"
	SourceSynthetic Source = "synthetic"
)

// Rejection reasons attached to non-approved verdicts.
const (
	ReasonImageVerificationFailed = "image-verification-failed"
	ReasonFraudScoreExceeded      = "fraud-score-exceeded"
	ReasonAnomaliesDetected       = "anomalies-detected"
	ReasonYieldMismatch           = "yield-mismatch"
)

// ClaimInput is the normalized feature set sent to the verification service.
type ClaimInput struct {
	ClaimID             string
	FarmerID            string
	CropType            string
	LandSize            float64
	AffectedArea        float64
	ClaimAmount         float64
	IncidentDescription string
	SoilType            string
	IrrigationType      string
	FertilizerUsage     float64
	SowingDate          *time.Time
	EvidenceRefs        []string
	HistoricalClaims    int
}

// Verdict is the outcome of one verification run. Synthetic verdicts carry
// Source == SourceSynthetic and the last service error; they are otherwise
// shaped exactly like real ones.
type Verdict struct {
	Approved        bool
	ImageVerified   bool
	FraudScore      float64
	PredictedYield  float64
	PredictedDamage float64
	RejectionReason string
	Source          Source
	RiskLevel       string
	Recommendations []string
	ServiceError    string
	Raw             map[string]any
}

// Synthetic reports whether the verdict was produced without the service.
func (v *Verdict) Synthetic() bool { return v.Source == SourceSynthetic }

// Verifier evaluates claims against the external verification service.
//
// Evaluate always yields a verdict unless the context is done: service
// failures after the retry budget degrade to a synthetic estimate instead of
// an error.
type Verifier interface {
	Evaluate(ctx context.Context, in ClaimInput) (*Verdict, error)
	Healthy(ctx context.Context) error
}
