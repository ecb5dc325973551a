package claim

import (
	"go.uber.org/fx"

	"github.com/agrishield/claims/internal/claim/repository"
	"github.com/agrishield/claims/internal/claim/service"
	"github.com/agrishield/claims/internal/claim/verify"
)

var Module = fx.Module("claim.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	verify.Module,
)
