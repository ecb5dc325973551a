package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

type Config struct {
	Endpoint string
}

// HTTPGateway talks to a real payment processor. One attempt per call; the
// idempotency reference is forwarded so the processor can deduplicate on its
// side as well.
type HTTPGateway struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
}

func NewHTTP(cfg Config, httpClient *http.Client, log *zap.Logger) *HTTPGateway {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPGateway{cfg: cfg, http: httpClient, log: log.Named("payout.gateway")}
}

type payoutRequest struct {
	Amount         float64 `json:"amount"`
	Instrument     string  `json:"instrument"`
	IdempotencyRef string  `json:"idempotency_ref"`
}

type payoutResponse struct {
	Success   bool   `json:"success"`
	Reference string `json:"reference"`
	Error     string `json:"error"`
}

func (g *HTTPGateway) Initiate(ctx context.Context, req Request) (*Outcome, error) {
	body, err := json.Marshal(payoutRequest{
		Amount:         req.Amount,
		Instrument:     req.Instrument,
		IdempotencyRef: req.IdempotencyRef,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint+"/payouts", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyRef)

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("payout gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read payout gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("payout gateway returned %d: %s", resp.StatusCode, string(raw))
	}

	var parsed payoutResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode payout gateway response: %w", err)
	}

	rawMap := map[string]any{}
	_ = json.Unmarshal(raw, &rawMap)

	outcome := &Outcome{
		Success:     parsed.Success,
		Reference:   parsed.Reference,
		RawResponse: rawMap,
	}
	if !parsed.Success {
		g.log.Warn("payout declined by gateway",
			zap.String("claim_id", req.ClaimID),
			zap.String("gateway_error", parsed.Error),
		)
	}
	return outcome, nil
}
