package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSubmitCorrelatesByEmittedEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/claims" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"tx_hash": "0xabc",
			"events": []map[string]any{
				{"event": "ClaimSubmitted", "claim_id": "claim9", "farmer_id": "11"},
				{"event": "ClaimSubmitted", "claim_id": "claim10", "farmer_id": "42"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL}, http.DefaultClient, zap.NewNop())
	res, err := c.Submit(context.Background(), SubmitInput{FarmerID: "42", CropType: "rice", ClaimAmount: 50000})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	assert.Equal(t, "claim10", res.LedgerRef)
	assert.Equal(t, "0xabc", res.TxHash)
}

func TestSubmitWithoutMatchingEventFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"tx_hash": "0xabc",
			"events": []map[string]any{
				{"event": "ClaimSubmitted", "claim_id": "claim9", "farmer_id": "11"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL}, http.DefaultClient, zap.NewNop())
	_, err := c.Submit(context.Background(), SubmitInput{FarmerID: "42"})
	assert.Error(t, err)
}

func TestApproveAndMarkPaid(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"tx_hash": "0xdef"})
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL}, http.DefaultClient, zap.NewNop())

	tx, err := c.Approve(context.Background(), "claim10")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	assert.Equal(t, "0xdef", tx)

	tx, err = c.MarkPaid(context.Background(), "claim10")
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	assert.Equal(t, "0xdef", tx)

	assert.Equal(t, []string{"/claims/claim10/approve", "/claims/claim10/pay"}, paths)
}

func TestLedgerErrorsSurfaceWithoutRetry(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL}, http.DefaultClient, zap.NewNop())
	_, err := c.Submit(context.Background(), SubmitInput{FarmerID: "42"})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestGetClaim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/claims/claim10" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"claim_id":     "claim10",
			"farmer_id":    "42",
			"crop_type":    "rice",
			"claim_amount": 50000.0,
			"status":       "approved",
		})
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL}, http.DefaultClient, zap.NewNop())
	record, err := c.GetClaim(context.Background(), "claim10")
	if err != nil {
		t.Fatalf("get claim: %v", err)
	}
	assert.Equal(t, "claim10", record.LedgerRef)
	assert.Equal(t, "approved", record.Status)
}
