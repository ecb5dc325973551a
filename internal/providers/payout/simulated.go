package payout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SimulatedGateway approves every well-formed payout locally. Used in
// environments without a live payment processor; behaves exactly like the
// real gateway from the orchestrator's point of view.
type SimulatedGateway struct {
	log *zap.Logger
}

func NewSimulated(log *zap.Logger) *SimulatedGateway {
	return &SimulatedGateway{log: log.Named("payout.simulated")}
}

func (g *SimulatedGateway) Initiate(ctx context.Context, req Request) (*Outcome, error) {
	if req.Amount <= 0 {
		return &Outcome{
			Success: false,
			RawResponse: map[string]any{
				"simulated": true,
				"error":     "amount must be positive",
			},
		}, nil
	}

	ref := fmt.Sprintf("SIM-%s", uuid.NewString())
	g.log.Info("simulated payout completed",
		zap.String("claim_id", req.ClaimID),
		zap.Float64("amount", req.Amount),
		zap.String("reference", ref),
	)
	return &Outcome{
		Success:   true,
		Reference: ref,
		RawResponse: map[string]any{
			"simulated":       true,
			"reference":       ref,
			"amount":          req.Amount,
			"instrument":      req.Instrument,
			"idempotency_ref": req.IdempotencyRef,
		},
	}, nil
}
