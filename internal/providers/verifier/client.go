package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/agrishield/claims/internal/config"
	obsmetrics "github.com/agrishield/claims/internal/observability/metrics"
)

const (
	evaluatePath = "/api/v1/evaluate-claim"
	healthPath   = "/health"
)

type Config struct {
	Endpoint      string
	MaxAttempts   int
	HealthTimeout time.Duration
}

type client struct {
	cfg   Config
	http  *http.Client
	crops func() config.CropConfig
	log   *zap.Logger

	// overridable in tests
	sleep     func(ctx context.Context, d time.Duration) error
	randFloat func() float64
}

func NewClient(cfg Config, httpClient *http.Client, crops func() config.CropConfig, log *zap.Logger) Verifier {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &client{
		cfg:       cfg,
		http:      httpClient,
		crops:     crops,
		log:       log.Named("verifier.client"),
		sleep:     sleepCtx,
		randFloat: rand.Float64,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type evaluateRequest struct {
	ClaimID             string   `json:"claim_id"`
	FarmerID            string   `json:"farmer_id"`
	CropType            string   `json:"crop_type"`
	LandSize            float64  `json:"land_size"`
	AffectedArea        float64  `json:"affected_area"`
	ClaimAmount         float64  `json:"claim_amount"`
	IncidentDescription string   `json:"incident_description,omitempty"`
	SoilType            string   `json:"soil_type,omitempty"`
	IrrigationType      string   `json:"irrigation_type,omitempty"`
	FertilizerUsage     float64  `json:"fertilizer_usage,omitempty"`
	SowingDate          string   `json:"sowing_date,omitempty"`
	EvidenceRefs        []string `json:"evidence_refs,omitempty"`
	HistoricalClaims    int      `json:"historical_claims"`
}

type evaluateResponse struct {
	Approved        bool     `json:"approved"`
	IsValid         bool     `json:"is_valid"`
	FraudScore      float64  `json:"fraud_score"`
	PredictedYield  float64  `json:"predicted_yield"`
	PredictedDamage float64  `json:"predicted_damage"`
	Reason          string   `json:"reason"`
	RiskLevel       string   `json:"risk_level"`
	Recommendations []string `json:"recommendations"`
}

// Evaluate calls the verification service with a bounded retry budget.
// Statuses below 500 are definitive and consume the remaining budget; 5xx
// and transport errors retry with 1s, 2s, ... backoff. When the budget is
// exhausted the verdict is synthesized locally and tagged SourceSynthetic.
func (c *client) Evaluate(ctx context.Context, in ClaimInput) (*Verdict, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		verdict, retryable, err := c.call(ctx, in)
		if err == nil {
			obsmetrics.Pipeline().IncVerifyAttempt(obsmetrics.VerificationOutcomeVerdict)
			return verdict, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if !retryable {
			obsmetrics.Pipeline().IncVerifyAttempt(obsmetrics.VerificationOutcomeRejected)
			break
		}
		obsmetrics.Pipeline().IncVerifyAttempt(obsmetrics.VerificationOutcomeRetryable)
		c.log.Warn("verification attempt failed",
			zap.String("claim_id", in.ClaimID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt < c.cfg.MaxAttempts {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			if err := c.sleep(ctx, backoff); err != nil {
				return nil, err
			}
		}
	}

	c.log.Warn("verification service unavailable, synthesizing verdict",
		zap.String("claim_id", in.ClaimID),
		zap.Error(lastErr),
	)
	return c.synthesize(in, lastErr), nil
}

// call runs one attempt. retryable is false for definitive failures, which
// under the protocol means any response with a status below 500.
func (c *client) call(ctx context.Context, in ClaimInput) (verdict *Verdict, retryable bool, err error) {
	payload := evaluateRequest{
		ClaimID:             in.ClaimID,
		FarmerID:            in.FarmerID,
		CropType:            in.CropType,
		LandSize:            in.LandSize,
		AffectedArea:        in.AffectedArea,
		ClaimAmount:         in.ClaimAmount,
		IncidentDescription: in.IncidentDescription,
		SoilType:            in.SoilType,
		IrrigationType:      in.IrrigationType,
		FertilizerUsage:     in.FertilizerUsage,
		EvidenceRefs:        in.EvidenceRefs,
		HistoricalClaims:    in.HistoricalClaims,
	}
	if in.SowingDate != nil {
		payload.SowingDate = in.SowingDate.Format("2006-01-02")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+evaluatePath, bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("verification service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, true, fmt.Errorf("verification service returned %d: %s", resp.StatusCode, string(raw))
	}

	if resp.StatusCode != http.StatusOK {
		// Definitive: the service looked at the claim and refused it.
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		v := &Verdict{
			Approved:        false,
			RejectionReason: ReasonAnomaliesDetected,
			Source:          SourceReal,
			ServiceError:    fmt.Sprintf("status %d: %s", resp.StatusCode, string(raw)),
		}
		var parsed evaluateResponse
		if json.Unmarshal(raw, &parsed) == nil && parsed.Reason != "" {
			v.RejectionReason = parsed.Reason
		}
		return v, false, nil
	}

	var parsed evaluateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, true, fmt.Errorf("decode verification response: %w", err)
	}

	return c.fromResponse(in, parsed), false, nil
}

func (c *client) fromResponse(in ClaimInput, resp evaluateResponse) *Verdict {
	v := &Verdict{
		Approved:        resp.Approved,
		ImageVerified:   resp.IsValid,
		FraudScore:      resp.FraudScore,
		PredictedYield:  resp.PredictedYield,
		PredictedDamage: resp.PredictedDamage,
		RejectionReason: resp.Reason,
		Source:          SourceReal,
		RiskLevel:       resp.RiskLevel,
		Recommendations: resp.Recommendations,
		Raw: map[string]any{
			"approved":         resp.Approved,
			"is_valid":         resp.IsValid,
			"fraud_score":      resp.FraudScore,
			"predicted_yield":  resp.PredictedYield,
			"predicted_damage": resp.PredictedDamage,
			"reason":           resp.Reason,
		},
	}
	if !v.Approved && v.RejectionReason == "" {
		v.RejectionReason = c.deriveReason(in, v)
	}
	return v
}

// deriveReason maps a bare rejection onto the decision rules when the service
// omitted its reason.
func (c *client) deriveReason(in ClaimInput, v *Verdict) string {
	crops := c.crops()
	switch {
	case len(in.EvidenceRefs) > 0 && !v.ImageVerified:
		return ReasonImageVerificationFailed
	case v.FraudScore >= crops.FraudScoreThreshold:
		return ReasonFraudScoreExceeded
	case damageMismatch(in.AffectedArea, v.PredictedDamage, crops.DamageDiscrepancyBand):
		return ReasonYieldMismatch
	default:
		return ReasonAnomaliesDetected
	}
}

func damageMismatch(claimed, predicted, band float64) bool {
	if claimed <= 0 {
		return false
	}
	return math.Abs(claimed-predicted)/claimed > band
}

// Healthy probes the service's health endpoint.
func (c *client) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint+healthPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("verification service unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("verification service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
