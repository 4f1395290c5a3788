// Package di contains dependency injection tokens for the market context.
package di

import (
	"github.com/fd1az/prediction-amm/business/market/app"
	"github.com/fd1az/prediction-amm/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Registry = di.NewToken[*app.Registry]("market.Registry")
)

// GetRegistry resolves the market registry.
func GetRegistry(c di.ServiceRegistry) *app.Registry {
	return di.GetToken(c, Registry)
}
