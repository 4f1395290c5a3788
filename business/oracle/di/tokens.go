// Package di contains dependency injection tokens for the oracle context.
package di

import (
	"github.com/fd1az/prediction-amm/business/oracle/app"
	"github.com/fd1az/prediction-amm/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Service = di.NewToken[*app.Service]("oracle.Service")
)

// GetService resolves the oracle service.
func GetService(c di.ServiceRegistry) *app.Service {
	return di.GetToken(c, Service)
}
