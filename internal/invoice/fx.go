package invoice

import (
	"github.com/smallbiznis/deskflow/internal/invoice/domain"
	"github.com/smallbiznis/deskflow/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(
		func() domain.TaxCalculator { return domain.ZeroTax{} },
		service.NewService,
	),
)
