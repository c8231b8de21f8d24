package activity

import (
	"github.com/smallbiznis/deskflow/internal/activity/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("activity.recorder",
	fx.Provide(repository.Provide),
)
