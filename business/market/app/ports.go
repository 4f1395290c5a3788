// Package app contains the market registry service and its ports.
package app

import (
	"context"
	"time"

	"github.com/fd1az/prediction-amm/business/market/domain"
)

// CreationListener is notified after a market is registered.
// Returning an error aborts the creation and removes the market again.
type CreationListener interface {
	OnMarketCreated(ctx context.Context, m domain.Market) error
}

// Locker serializes market creation across replicas.
type Locker interface {
	// Acquire takes the lock for key or fails if someone else holds it.
	// The returned func releases it and is safe to call more than once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
