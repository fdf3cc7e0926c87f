package ledger

import (
	"github.com/smallbiznis/votechain/internal/ledger/relayer"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.client",
	fx.Provide(relayer.New),
)
