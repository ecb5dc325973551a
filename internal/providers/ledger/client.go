package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// Ledger anchors claim lifecycle events on the external claims ledger.
//
// Every operation is best-effort: callers log the error, leave the claim's
// ledger fields unset and move on. Nothing here retries.
type Ledger interface {
	// Submit records the claim on the ledger and correlates the
	// ledger-assigned claim reference by scanning the emitted events for a
	// submission keyed by the claimant.
	Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error)
	Approve(ctx context.Context, ledgerRef string) (txHash string, err error)
	MarkPaid(ctx context.Context, ledgerRef string) (txHash string, err error)
	GetClaim(ctx context.Context, ledgerRef string) (*ClaimRecord, error)
}

type SubmitInput struct {
	FarmerID    string
	CropType    string
	ClaimAmount float64
}

type SubmitResult struct {
	LedgerRef string
	TxHash    string
}

// ClaimRecord is the ledger's view of a claim.
type ClaimRecord struct {
	LedgerRef   string  `json:"claim_id"`
	FarmerID    string  `json:"farmer_id"`
	CropType    string  `json:"crop_type"`
	ClaimAmount float64 `json:"claim_amount"`
	Status      string  `json:"status"`
}

type Config struct {
	Endpoint string
}

type client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
}

func NewClient(cfg Config, httpClient *http.Client, log *zap.Logger) Ledger {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &client{cfg: cfg, http: httpClient, log: log.Named("ledger.client")}
}

type submitRequest struct {
	FarmerID    string  `json:"farmer_id"`
	CropType    string  `json:"crop_type"`
	ClaimAmount float64 `json:"claim_amount"`
}

type ledgerEvent struct {
	Event    string `json:"event"`
	ClaimID  string `json:"claim_id"`
	FarmerID string `json:"farmer_id"`
}

type txResponse struct {
	TxHash string        `json:"tx_hash"`
	Events []ledgerEvent `json:"events"`
}

func (c *client) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	var resp txResponse
	err := c.post(ctx, "/claims", submitRequest{
		FarmerID:    in.FarmerID,
		CropType:    in.CropType,
		ClaimAmount: in.ClaimAmount,
	}, &resp)
	if err != nil {
		return nil, err
	}

	// The ledger assigns the claim reference; it only surfaces in the
	// emitted events, keyed by the claimant.
	for _, ev := range resp.Events {
		if ev.Event == "ClaimSubmitted" && ev.FarmerID == in.FarmerID && ev.ClaimID != "" {
			return &SubmitResult{LedgerRef: ev.ClaimID, TxHash: resp.TxHash}, nil
		}
	}
	return nil, fmt.Errorf("ledger emitted no ClaimSubmitted event for farmer %s", in.FarmerID)
}

func (c *client) Approve(ctx context.Context, ledgerRef string) (string, error) {
	var resp txResponse
	if err := c.post(ctx, "/claims/"+ledgerRef+"/approve", struct{}{}, &resp); err != nil {
		return "", err
	}
	return resp.TxHash, nil
}

func (c *client) MarkPaid(ctx context.Context, ledgerRef string) (string, error) {
	var resp txResponse
	if err := c.post(ctx, "/claims/"+ledgerRef+"/pay", struct{}{}, &resp); err != nil {
		return "", err
	}
	return resp.TxHash, nil
}

func (c *client) GetClaim(ctx context.Context, ledgerRef string) (*ClaimRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint+"/claims/"+ledgerRef, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ledger unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ledger returned %d: %s", resp.StatusCode, string(raw))
	}
	var record ClaimRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("decode ledger claim: %w", err)
	}
	return &record, nil
}

func (c *client) post(ctx context.Context, path string, payload any, out *txResponse) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ledger unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ledger returned %d: %s", resp.StatusCode, string(raw))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
