package aimatch

import (
	"github.com/smallbiznis/tixsync/internal/aimatch/service"
	"go.uber.org/fx"
)

var Module = fx.Module("aimatch.service",
	fx.Provide(service.New),
)
