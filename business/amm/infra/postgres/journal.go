// Package postgres persists the AMM event journal in PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fd1az/prediction-amm/business/amm/app"
	"github.com/fd1az/prediction-amm/business/amm/domain"
	market "github.com/fd1az/prediction-amm/business/market/domain"
)

// Journal implements app.EventJournal on the amm_events table.
type Journal struct {
	pool *pgxpool.Pool
}

// NewJournal creates a Journal backed by pool.
func NewJournal(pool *pgxpool.Pool) *Journal {
	return &Journal{pool: pool}
}

// Append inserts e. Re-appending an event id is a no-op.
func (j *Journal) Append(ctx context.Context, e domain.Event) error {
	const query = `
		INSERT INTO amm_events
			(id, kind, market_id, account, outcome, collateral, shares, fee, price_yes, price_no, created_at)
		VALUES ($1::uuid, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9::numeric, $10::numeric, $11)
		ON CONFLICT (id) DO NOTHING`

	_, err := j.pool.Exec(ctx, query,
		e.ID.String(),
		string(e.Kind),
		int64(e.MarketID),
		e.Account.Hex(),
		int16(e.Outcome),
		e.Collateral.Dec(),
		e.Shares.Dec(),
		e.Fee.Dec(),
		e.PriceYes.Dec(),
		e.PriceNo.Dec(),
		e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: append event %s: %w", e.ID, err)
	}
	return nil
}

// List returns up to limit of the latest events of a market, oldest first.
func (j *Journal) List(ctx context.Context, marketID uint64, limit int) ([]domain.Event, error) {
	query := `
		SELECT id::text, kind, market_id, account, outcome,
		       collateral::text, shares::text, fee::text, price_yes::text, price_no::text, created_at
		FROM amm_events
		WHERE market_id = $1
		ORDER BY seq DESC`
	args := []any{int64(marketID)}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := j.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events of market %d: %w", marketID, err)
	}

	events, err := pgx.CollectRows(rows, scanEvent)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan events of market %d: %w", marketID, err)
	}
	slices.Reverse(events)
	return events, nil
}

func scanEvent(row pgx.CollectableRow) (domain.Event, error) {
	var (
		e        domain.Event
		id       string
		kind     string
		marketID int64
		account  string
		outcome  int16
		amounts  [5]string
	)
	if err := row.Scan(&id, &kind, &marketID, &account, &outcome,
		&amounts[0], &amounts[1], &amounts[2], &amounts[3], &amounts[4], &e.Timestamp); err != nil {
		return e, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return e, fmt.Errorf("event id %q: %w", id, err)
	}
	e.ID = parsed
	e.Kind = domain.EventKind(kind)
	e.MarketID = uint64(marketID)
	e.Account = common.HexToAddress(account)
	e.Outcome = market.Outcome(outcome)

	dst := []*uint256.Int{&e.Collateral, &e.Shares, &e.Fee, &e.PriceYes, &e.PriceNo}
	for i, s := range amounts {
		if err := dst[i].SetFromDecimal(s); err != nil {
			return e, fmt.Errorf("amount %q: %w", s, err)
		}
	}
	return e, nil
}

var _ app.EventJournal = (*Journal)(nil)
