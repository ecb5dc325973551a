package verifier

import "math"

// synthesize builds a degraded-mode verdict from the static crop baselines
// when the service could not be reached. The verdict goes through the same
// approval rules as a real one; only the source tag and the recorded error
// distinguish it.
func (c *client) synthesize(in ClaimInput, lastErr error) *Verdict {
	crops := c.crops()
	params := crops.Params(in.CropType)

	span := crops.SeasonalFactorMax - crops.SeasonalFactorMin
	factor := crops.SeasonalFactorMin + c.randFloat()*span

	landSize := in.LandSize
	if landSize <= 0 {
		landSize = in.AffectedArea
	}
	predictedYield := round2(params.BaseYield * landSize * factor)

	// Damage is estimated off the claimed affected area with its own jitter
	// so the discrepancy check stays meaningful.
	damageFactor := crops.SeasonalFactorMin + c.randFloat()*span
	predictedDamage := round2(in.AffectedArea * damageFactor)

	fraudScore := round2(c.randFloat() * 0.6)

	v := &Verdict{
		ImageVerified:   true,
		FraudScore:      fraudScore,
		PredictedYield:  predictedYield,
		PredictedDamage: predictedDamage,
		Source:          SourceSynthetic,
		RiskLevel:       "medium",
		Recommendations: []string{
			"Verification service was unavailable; estimate is synthetic and should be re-checked",
		},
	}
	if lastErr != nil {
		v.ServiceError = lastErr.Error()
	}
	v.Raw = map[string]any{
		"seasonal_factor":  round2(factor),
		"base_yield":       params.BaseYield,
		"land_size":        landSize,
		"predicted_yield":  predictedYield,
		"predicted_damage": predictedDamage,
		"fraud_score":      fraudScore,
	}

	switch {
	case fraudScore >= crops.FraudScoreThreshold:
		v.Approved = false
		v.RejectionReason = ReasonFraudScoreExceeded
	case damageMismatch(in.AffectedArea, predictedDamage, crops.DamageDiscrepancyBand):
		v.Approved = false
		v.RejectionReason = ReasonYieldMismatch
	default:
		v.Approved = true
	}
	return v
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
