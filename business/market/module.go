// Package market implements the market registry bounded context.
package market

import (
	"context"

	"github.com/fd1az/prediction-amm/business/market/app"
	marketDI "github.com/fd1az/prediction-amm/business/market/di"
	"github.com/fd1az/prediction-amm/internal/asset"
	"github.com/fd1az/prediction-amm/internal/clock"
	"github.com/fd1az/prediction-amm/internal/config"
	"github.com/fd1az/prediction-amm/internal/di"
	"github.com/fd1az/prediction-amm/internal/logger"
	"github.com/fd1az/prediction-amm/internal/monolith"
	redisstore "github.com/fd1az/prediction-amm/internal/storage/redis"
)

// Module implements the market bounded context.
type Module struct{}

// RegisterServices registers the market registry with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, marketDI.Registry, func(sr di.ServiceRegistry) *app.Registry {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		assets := sr.Get("assetRegistry").(*asset.Registry)
		clk := sr.Get("clock").(clock.Clock)

		// Redis is optional; without it creation is only serialized in-process.
		var locker app.Locker
		if rc, ok := sr.Get("redis").(*redisstore.Client); ok && rc != nil {
			locker = redisstore.NewLockManager(rc)
		}

		registry, err := app.NewRegistry(app.Options{
			FeeBps: cfg.AMM.FeeBps,
			Admin:  cfg.AMM.AdminAddress(),
		}, assets, clk, locker, log)
		if err != nil {
			panic("failed to create market registry: " + err.Error())
		}
		return registry
	})

	return nil
}

// Startup seeds the collateral allow-list from config.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()
	registry := marketDI.GetRegistry(mono.Services())

	for _, col := range cfg.AMM.Collateral {
		mono.AssetRegistry().Ensure(col.AddressHex(), col.Symbol)
		if _, err := registry.SetTokenInfo(ctx, registry.Admin(), col.AddressHex(), col.Enabled, col.MinCollateralUnits()); err != nil {
			return err
		}
	}

	log.Info(ctx, "market module started", "collateral_tokens", len(cfg.AMM.Collateral))
	return nil
}
