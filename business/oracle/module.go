// Package oracle implements optimistic market resolution.
package oracle

import (
	"context"

	ammDI "github.com/fd1az/prediction-amm/business/amm/di"
	market "github.com/fd1az/prediction-amm/business/market/domain"
	marketDI "github.com/fd1az/prediction-amm/business/market/di"
	"github.com/fd1az/prediction-amm/business/oracle/app"
	oracleDI "github.com/fd1az/prediction-amm/business/oracle/di"
	"github.com/fd1az/prediction-amm/internal/clock"
	"github.com/fd1az/prediction-amm/internal/config"
	"github.com/fd1az/prediction-amm/internal/di"
	"github.com/fd1az/prediction-amm/internal/logger"
	"github.com/fd1az/prediction-amm/internal/monolith"
)

// Module implements the oracle bounded context.
type Module struct{}

// RegisterServices registers the oracle service with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, oracleDI.Service, func(sr di.ServiceRegistry) *app.Service {
		cfg := sr.Get("config").(*config.Config)
		engine := ammDI.GetEngine(sr)

		resolver := app.ResolverFunc(func(ctx context.Context, id uint64, outcome market.Outcome) error {
			_, err := engine.Resolve(ctx, id, outcome)
			return err
		})

		svc, err := app.NewService(app.Options{
			Liveness: cfg.Oracle.Liveness,
			MinBond:  cfg.Oracle.MinBondUnits(),
		},
			marketDI.GetRegistry(sr),
			ammDI.GetLedger(sr),
			resolver,
			sr.Get("clock").(clock.Clock),
			sr.Get("logger").(logger.LoggerInterface),
		)
		if err != nil {
			panic("failed to create oracle service: " + err.Error())
		}
		return svc
	})

	return nil
}

// Startup resolves the service so configuration errors surface at boot.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	svc := oracleDI.GetService(mono.Services())
	mono.Logger().Info(ctx, "oracle module started",
		"liveness", svc.Liveness().String(),
		"min_bond", svc.MinBond().Dec(),
	)
	return nil
}
