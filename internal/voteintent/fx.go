package voteintent

import (
	"github.com/smallbiznis/votechain/internal/voteintent/repository"
	"github.com/smallbiznis/votechain/internal/voteintent/service"
	"go.uber.org/fx"
)

var Module = fx.Module("voteintent.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
