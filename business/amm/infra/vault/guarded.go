package vault

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/sony/gobreaker/v2"

	"github.com/fd1az/prediction-amm/business/amm/app"
	"github.com/fd1az/prediction-amm/internal/apperror"
	"github.com/fd1az/prediction-amm/internal/circuitbreaker"
	"github.com/fd1az/prediction-amm/internal/logger"
)

// Guarded puts a circuit breaker in front of a vault. Rejections the vault
// reports as application errors do not count as failures.
type Guarded struct {
	inner app.CollateralVault
	cb    *circuitbreaker.CircuitBreaker[*uint256.Int]
}

// NewGuarded wraps inner with a breaker built from cfg.
func NewGuarded(inner app.CollateralVault, cfg circuitbreaker.Config, log logger.LoggerInterface) *Guarded {
	if log == nil {
		log = logger.Discard()
	}
	if cfg.IsSuccessful == nil {
		cfg.IsSuccessful = func(err error) bool {
			return err == nil || (apperror.IsAppError(err) && !apperror.HasCode(err, apperror.CodeVaultUnavailable))
		}
	}
	if cfg.OnStateChange == nil {
		cfg.OnStateChange = func(name string, from, to gobreaker.State) {
			log.Warn(context.Background(), "vault breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		}
	}

	return &Guarded{
		inner: inner,
		cb:    circuitbreaker.New[*uint256.Int](cfg),
	}
}

// Deposit implements app.CollateralVault.
func (g *Guarded) Deposit(ctx context.Context, token common.Address, amount *uint256.Int) (*uint256.Int, error) {
	return g.run(func() (*uint256.Int, error) {
		return g.inner.Deposit(ctx, token, amount)
	})
}

// Withdraw implements app.CollateralVault.
func (g *Guarded) Withdraw(ctx context.Context, token common.Address, amount, maxShares *uint256.Int) (*uint256.Int, error) {
	return g.run(func() (*uint256.Int, error) {
		return g.inner.Withdraw(ctx, token, amount, maxShares)
	})
}

// ConvertToAssets implements app.CollateralVault.
func (g *Guarded) ConvertToAssets(ctx context.Context, token common.Address, shares *uint256.Int) (*uint256.Int, error) {
	return g.run(func() (*uint256.Int, error) {
		return g.inner.ConvertToAssets(ctx, token, shares)
	})
}

// State returns the breaker state.
func (g *Guarded) State() gobreaker.State {
	return g.cb.State()
}

func (g *Guarded) run(fn func() (*uint256.Int, error)) (*uint256.Int, error) {
	res, err := g.cb.Execute(fn)
	if apperror.HasCode(err, apperror.CodeCircuitOpen) {
		return nil, apperror.New(apperror.CodeVaultUnavailable, apperror.WithCause(err))
	}
	return res, err
}
