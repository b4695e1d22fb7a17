// Package storage defines the best-effort record boundary for durable
// position history. Failures are the caller's to log; nothing here is ever
// fatal to event processing.
package storage

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PositionRecord is one opened perps position.
type PositionRecord struct {
	User            common.Address
	OrderKey        common.Hash
	Market          common.Address
	CollateralToken common.Address
	IsLong          bool
	SizeUSD         *big.Int
	Collateral      *big.Int
	Leverage        *big.Int
	IsHedge         bool
	OpenedAt        time.Time
}

// HedgeRecord is one executed emergency hedge.
type HedgeRecord struct {
	User       common.Address
	Market     common.Address
	HedgeSize  *big.Int
	Reason     string
	OrderKey   common.Hash
	ExecutedAt time.Time
}

// PositionStore persists position lifecycle records.
type PositionStore interface {
	// InsertPosition records a newly opened position.
	InsertPosition(rec PositionRecord) error

	// ClosePosition marks the position with the given order key closed,
	// recording its final pnl.
	ClosePosition(orderKey common.Hash, pnl *big.Int, closedAt time.Time) error

	// InsertHedge records an executed emergency hedge.
	InsertHedge(rec HedgeRecord) error
}
