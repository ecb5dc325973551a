package payout

import "context"

// Request is one payout attempt. IdempotencyRef is generated per attempt by
// the caller; the gateway echoes it so attempts can be reconciled.
type Request struct {
	ClaimID        string
	Amount         float64
	Instrument     string
	IdempotencyRef string
}

// Outcome is the gateway's answer for one attempt. A non-nil error means the
// attempt itself could not run; Success=false with nil error means the
// gateway ran it and declined.
type Outcome struct {
	Success     bool
	Reference   string
	RawResponse map[string]any
}

// Gateway initiates a payment to the claimant's registered instrument.
// Exactly one attempt per call; idempotency across calls is the caller's
// responsibility.
type Gateway interface {
	Initiate(ctx context.Context, req Request) (*Outcome, error)
}
