// Package protocol holds one event aggregator per monitored contract family.
// An aggregator is a deterministic state machine: Apply folds a decoded event
// into running statistics and returns zero or more alerts. Aggregators do not
// deduplicate; the listener drops replayed (txHash, logIndex) pairs before
// calling Apply.
package protocol

import (
	"riskScope/internal/model"
	"riskScope/internal/schema"
)

// Alert type keys shared across families.
const (
	AlertHighSlippage     = "HIGH_SLIPPAGE"
	AlertLargeSwap        = "LARGE_SWAP"
	AlertHighUtilization  = "HIGH_UTILIZATION"
	AlertLargeWithdrawal  = "LARGE_WITHDRAWAL"
	AlertLargeFlashLoan   = "LARGE_FLASH_LOAN"
	AlertSupplyRateSpike  = "SUPPLY_RATE_SPIKE"
	AlertBorrowRateSpike  = "BORROW_RATE_SPIKE"
	AlertHighLeverage     = "HIGH_LEVERAGE"
	AlertExtremeLeverage  = "EXTREME_LEVERAGE"
	AlertLargePosition    = "LARGE_POSITION"
	AlertLargeLoss        = "LARGE_LOSS"
	AlertEmergencyHedge   = "EMERGENCY_HEDGE"
	AlertLargeAsset       = "LARGE_ASSET_CREATED"
	AlertAssetIssue       = "ASSET_ISSUE"
	AlertLargeYield       = "LARGE_YIELD_DEPOSIT"
	AlertLargeBatch       = "LARGE_BATCH_DISTRIBUTION"
	AlertShortClaimPeriod = "SHORT_CLAIM_PERIOD"
	AlertLowClaimRate     = "LOW_CLAIM_RATE"
)

// Aggregator folds decoded events into per-protocol running statistics.
//
// Apply must be called under a single-writer discipline; it is not re-entrant.
// Snapshot returns an immutable copy of the current statistics, safe to read
// after further Apply calls. Reset zeroes the statistics and is idempotent.
type Aggregator interface {
	// Name is the protocol family name used in logs and stats reports.
	Name() string

	// Schema declares the events this aggregator understands.
	Schema() *schema.Schema

	// Apply folds one event into the state and returns any triggered alerts.
	// An error means the event could not be applied and was skipped; state is
	// left as if the event never arrived.
	Apply(ev *model.ChainEvent) ([]model.Alert, error)

	// Snapshot returns an immutable copy of the current statistics.
	Snapshot() interface{}

	// Reset zeroes all statistics.
	Reset()
}
