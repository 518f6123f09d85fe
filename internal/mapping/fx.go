package mapping

import (
	mappingdomain "github.com/smallbiznis/tixsync/internal/mapping/domain"
	"github.com/smallbiznis/tixsync/internal/mapping/repository"
	"github.com/smallbiznis/tixsync/internal/mapping/service"
	"go.uber.org/fx"
)

var Module = fx.Module("mapping.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(func(svc mappingdomain.Service) mappingdomain.Cache { return svc }),
)
