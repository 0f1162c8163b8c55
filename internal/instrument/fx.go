package instrument

import (
	"github.com/smallbiznis/payflow/internal/instrument/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("instrument.directory",
	fx.Provide(repository.Provide),
)
