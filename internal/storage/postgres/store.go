package postgres

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"

	"riskScope/internal/storage"
)

const queryTimeout = 5 * time.Second

// Store provides Postgres persistence for position history.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects a position store to the given DSN.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InsertPosition records a newly opened position.
func (s *Store) InsertPosition(rec storage.PositionRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO positions (
			user_address, order_key, market, collateral_token,
			is_long, size_usd, collateral_amount, leverage, is_hedge,
			status, opened_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'open', $10, now())
		ON CONFLICT (order_key) DO NOTHING
	`,
		rec.User.Hex(),
		rec.OrderKey.Hex(),
		rec.Market.Hex(),
		rec.CollateralToken.Hex(),
		rec.IsLong,
		rec.SizeUSD.String(),
		rec.Collateral.String(),
		rec.Leverage.String(),
		rec.IsHedge,
		rec.OpenedAt.UTC(),
	)
	return err
}

// ClosePosition marks a position closed with its final pnl.
func (s *Store) ClosePosition(orderKey common.Hash, pnl *big.Int, closedAt time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		UPDATE positions
		SET status = 'closed', closed_pnl = $1, closed_at = $2
		WHERE order_key = $3
	`,
		pnl.String(),
		closedAt.UTC(),
		orderKey.Hex(),
	)
	return err
}

// InsertHedge records an executed emergency hedge.
func (s *Store) InsertHedge(rec storage.HedgeRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO hedge_records (
			user_address, market, hedge_size, reason, order_key, executed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, now())
	`,
		rec.User.Hex(),
		rec.Market.Hex(),
		rec.HedgeSize.String(),
		rec.Reason,
		rec.OrderKey.Hex(),
		rec.ExecutedAt.UTC(),
	)
	return err
}
