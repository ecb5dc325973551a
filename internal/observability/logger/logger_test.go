package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextEnrichesProvidedLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core).Named("claim.service")

	ctx := ContextWithClaimID(context.Background(), "123456789")
	WithContext(ctx, base).Info("claim submitted")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].LoggerName != "claim.service" {
		t.Fatalf("enrichment must keep the base logger, got name %q", entries[0].LoggerName)
	}
	fields := entries[0].ContextMap()
	if got := fields["claim_id"]; got != "123456789" {
		t.Fatalf("expected claim_id field, got %v", got)
	}
}

func TestWithContextNilContextReturnsBase(t *testing.T) {
	base := zap.NewNop()
	if got := WithContext(nil, base); got != base {
		t.Fatal("nil context must return the base logger unchanged")
	}
}

func TestContextWithClaimIDEmptyIsNoop(t *testing.T) {
	ctx := context.Background()
	if got := ContextWithClaimID(ctx, ""); got != ctx {
		t.Fatal("empty claim id must not annotate the context")
	}
}
