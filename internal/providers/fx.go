package providers

import (
	"go.uber.org/fx"

	"github.com/agrishield/claims/internal/providers/evidence"
	"github.com/agrishield/claims/internal/providers/ledger"
	"github.com/agrishield/claims/internal/providers/payout"
	"github.com/agrishield/claims/internal/providers/verifier"
)

var Module = fx.Module("providers",
	evidence.Module,
	verifier.Module,
	ledger.Module,
	payout.Module,
)
