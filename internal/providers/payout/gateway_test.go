package payout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSimulatedGatewayApproves(t *testing.T) {
	g := NewSimulated(zap.NewNop())

	out, err := g.Initiate(context.Background(), Request{
		ClaimID:        "1",
		Amount:         50000,
		Instrument:     "wallet",
		IdempotencyRef: "key-1",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	assert.True(t, out.Success)
	assert.True(t, strings.HasPrefix(out.Reference, "SIM-"))
	assert.Equal(t, "key-1", out.RawResponse["idempotency_ref"])
}

func TestSimulatedGatewayDeclinesNonPositiveAmount(t *testing.T) {
	g := NewSimulated(zap.NewNop())

	out, err := g.Initiate(context.Background(), Request{ClaimID: "1", Amount: 0})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	assert.False(t, out.Success)
	assert.Empty(t, out.Reference)
}

func TestHTTPGatewayForwardsIdempotencyKey(t *testing.T) {
	var gotKey string
	var gotBody payoutRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{"success": true, "reference": "PAY-77"})
	}))
	defer srv.Close()

	g := NewHTTP(Config{Endpoint: srv.URL}, http.DefaultClient, zap.NewNop())
	out, err := g.Initiate(context.Background(), Request{
		ClaimID:        "1",
		Amount:         50000,
		Instrument:     "bank_transfer",
		IdempotencyRef: "key-9",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	assert.True(t, out.Success)
	assert.Equal(t, "PAY-77", out.Reference)
	assert.Equal(t, "key-9", gotKey)
	assert.Equal(t, "key-9", gotBody.IdempotencyRef)
	assert.Equal(t, 50000.0, gotBody.Amount)
}

func TestHTTPGatewayDeclineIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "insufficient kyc"})
	}))
	defer srv.Close()

	g := NewHTTP(Config{Endpoint: srv.URL}, http.DefaultClient, zap.NewNop())
	out, err := g.Initiate(context.Background(), Request{ClaimID: "1", Amount: 100})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	assert.False(t, out.Success)
	assert.Equal(t, "insufficient kyc", out.RawResponse["error"])
}

func TestHTTPGatewayServerErrorIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewHTTP(Config{Endpoint: srv.URL}, http.DefaultClient, zap.NewNop())
	_, err := g.Initiate(context.Background(), Request{ClaimID: "1", Amount: 100})
	assert.Error(t, err)
}
