package matching

import (
	"github.com/smallbiznis/tixsync/internal/matching/service"
	"go.uber.org/fx"
)

var Module = fx.Module("matching.service",
	fx.Provide(service.New),
)
