package showdirectory

import (
	showdomain "github.com/smallbiznis/tixsync/internal/showdirectory/domain"
	"github.com/smallbiznis/tixsync/internal/showdirectory/repository"
	"github.com/smallbiznis/tixsync/internal/showdirectory/service"
	"go.uber.org/fx"
)

var Module = fx.Module("showdirectory.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(func(svc showdomain.Service) showdomain.Directory { return svc }),
)
