package verifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/agrishield/claims/internal/config"
)

func newTestClient(t *testing.T, endpoint string, rand func() float64) (*client, *[]time.Duration) {
	t.Helper()

	c := NewClient(Config{
		Endpoint:      endpoint,
		MaxAttempts:   3,
		HealthTimeout: time.Second,
	}, http.DefaultClient, func() config.CropConfig {
		return config.DefaultCropConfig()
	}, zap.NewNop()).(*client)

	var slept []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	if rand != nil {
		c.randFloat = rand
	}
	return c, &slept
}

func testInput() ClaimInput {
	return ClaimInput{
		ClaimID:      "1",
		FarmerID:     "7",
		CropType:     "rice",
		LandSize:     5,
		AffectedArea: 2,
		ClaimAmount:  50000,
	}
}

func TestEvaluateSuccessFirstAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]any{
			"approved":         true,
			"is_valid":         true,
			"fraud_score":      0.12,
			"predicted_yield":  110.0,
			"predicted_damage": 2.1,
		})
	}))
	defer srv.Close()

	c, slept := newTestClient(t, srv.URL, nil)
	verdict, err := c.Evaluate(context.Background(), testInput())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !verdict.Approved || verdict.Source != SourceReal {
		t.Fatalf("expected approved real verdict, got %+v", verdict)
	}
	if verdict.Synthetic() {
		t.Fatal("real verdict flagged synthetic")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected 1 call, got %d", got)
	}
	if len(*slept) != 0 {
		t.Fatalf("expected no backoff, got %v", *slept)
	}
}

func TestEvaluateRetriesServerErrorsThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"approved":    true,
			"is_valid":    true,
			"fraud_score": 0.05,
		})
	}))
	defer srv.Close()

	c, slept := newTestClient(t, srv.URL, nil)
	verdict, err := c.Evaluate(context.Background(), testInput())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !verdict.Approved || verdict.Source != SourceReal {
		t.Fatalf("expected approved real verdict, got %+v", verdict)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(*slept) != len(want) || (*slept)[0] != want[0] || (*slept)[1] != want[1] {
		t.Fatalf("expected backoff %v, got %v", want, *slept)
	}
}

func TestEvaluateExhaustedBudgetSynthesizes(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, func() float64 { return 0.5 })
	verdict, err := c.Evaluate(context.Background(), testInput())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 calls before fallback, got %d", got)
	}
	if verdict.Source != SourceSynthetic || !verdict.Synthetic() {
		t.Fatalf("expected synthetic verdict, got source %q", verdict.Source)
	}
	if verdict.ServiceError == "" {
		t.Fatal("synthetic verdict should record the last service error")
	}

	// rice base yield 22, land size 5, factor in [0.85, 1.15]
	min, max := 22.0*5*0.85, 22.0*5*1.15
	if verdict.PredictedYield < min || verdict.PredictedYield > max {
		t.Fatalf("synthetic yield %v outside band [%v, %v]", verdict.PredictedYield, min, max)
	}
}

func TestEvaluateUnreachableServiceSynthesizes(t *testing.T) {
	c, slept := newTestClient(t, "http://127.0.0.1:1", func() float64 { return 0.2 })
	verdict, err := c.Evaluate(context.Background(), testInput())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !verdict.Synthetic() {
		t.Fatal("expected synthetic verdict for unreachable service")
	}
	if len(*slept) != 2 {
		t.Fatalf("expected 2 backoff sleeps, got %v", *slept)
	}
}

func TestEvaluateClientErrorIsDefinitive(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{"reason": "yield-mismatch"})
	}))
	defer srv.Close()

	c, slept := newTestClient(t, srv.URL, nil)
	verdict, err := c.Evaluate(context.Background(), testInput())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("4xx must not retry, got %d calls", got)
	}
	if len(*slept) != 0 {
		t.Fatalf("4xx must not back off, got %v", *slept)
	}
	if verdict.Approved || verdict.Source != SourceReal {
		t.Fatalf("expected rejected real verdict, got %+v", verdict)
	}
	if verdict.RejectionReason != ReasonYieldMismatch {
		t.Fatalf("expected service reason, got %q", verdict.RejectionReason)
	}
}

func TestEvaluateRejectionWithoutReasonDerivesOne(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"approved":    false,
			"is_valid":    true,
			"fraud_score": 0.9,
		})
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, nil)
	verdict, err := c.Evaluate(context.Background(), testInput())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if verdict.RejectionReason != ReasonFraudScoreExceeded {
		t.Fatalf("expected %q, got %q", ReasonFraudScoreExceeded, verdict.RejectionReason)
	}
}

func TestSynthesizeHighFraudRejects(t *testing.T) {
	c, _ := newTestClient(t, "http://127.0.0.1:1", nil)

	// First draw scales the yield factor, second the damage factor, third
	// the fraud score. 0.9*0.6 = 0.54 >= threshold 0.5.
	draws := []float64{0.5, 0.5, 0.9}
	i := 0
	c.randFloat = func() float64 {
		v := draws[i%len(draws)]
		i++
		return v
	}

	verdict := c.synthesize(testInput(), nil)
	if verdict.Approved {
		t.Fatal("expected rejection for high synthetic fraud score")
	}
	if verdict.RejectionReason != ReasonFraudScoreExceeded {
		t.Fatalf("expected %q, got %q", ReasonFraudScoreExceeded, verdict.RejectionReason)
	}
}

func TestHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, nil)
	if err := c.Healthy(context.Background()); err != nil {
		t.Fatalf("healthy: %v", err)
	}

	down, _ := newTestClient(t, "http://127.0.0.1:1", nil)
	if err := down.Healthy(context.Background()); err == nil {
		t.Fatal("expected error for unreachable service")
	}
}
