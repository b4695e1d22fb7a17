package protocol

import (
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"riskScope/internal/model"
	"riskScope/internal/schema"
	"riskScope/internal/storage"
)

// PerpsThresholds configures perpetuals risk classification.
type PerpsThresholds struct {
	LeverageWarning  *big.Rat // WARNING at or above, default 30x
	LeverageCritical *big.Rat // CRITICAL at or above, default 40x
	LargePositionUSD *big.Int // INFO at or above, default $50k notional
	LargeLossUSD     *big.Int // WARNING when loss exceeds, default $50k
}

// DefaultPerpsThresholds returns the production thresholds.
func DefaultPerpsThresholds() PerpsThresholds {
	return PerpsThresholds{
		LeverageWarning:  big.NewRat(30, 1),
		LeverageCritical: big.NewRat(40, 1),
		LargePositionUSD: Units(50000),
		LargeLossUSD:     Units(50000),
	}
}

// LeverageClass is the risk class of a position's leverage.
type LeverageClass int

const (
	LeverageOK LeverageClass = iota
	LeverageWarning
	LeverageCritical
)

// ClassifyLeverage maps leverage to a risk class against the thresholds.
// It takes a rational so scaled fractional leverage classifies exactly.
func (t PerpsThresholds) ClassifyLeverage(leverage *big.Rat) LeverageClass {
	switch {
	case leverage.Cmp(t.LeverageCritical) >= 0:
		return LeverageCritical
	case leverage.Cmp(t.LeverageWarning) >= 0:
		return LeverageWarning
	default:
		return LeverageOK
	}
}

// PerpsStats is the immutable statistics snapshot of a perps adapter.
type PerpsStats struct {
	OpenPositions  int64
	TotalLongUSD   *big.Int
	TotalShortUSD  *big.Int
	HedgeCount     uint64
	HighLeverage   uint64 // positions opened at or above the warning line
	EmergencyCount uint64
	LastUpdate     time.Time
}

// PerpsAggregator tracks position lifecycle events on a perpetuals/hedge
// adapter. When a position store is configured, opened/closed positions and
// executed hedges are persisted best-effort: store failures are logged and
// never affect aggregation.
type PerpsAggregator struct {
	thresholds PerpsThresholds
	schema     *schema.Schema
	store      storage.PositionStore
	logger     *zap.Logger

	openPositions  int64
	totalLong      *big.Int
	totalShort     *big.Int
	hedgeCount     uint64
	highLeverage   uint64
	emergencyCount uint64
	lastUpdate     time.Time
}

// NewPerpsAggregator builds a perps adapter aggregator. store may be nil.
func NewPerpsAggregator(thresholds PerpsThresholds, store storage.PositionStore, logger *zap.Logger) *PerpsAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PerpsAggregator{
		thresholds: thresholds,
		schema:     perpsSchema(),
		store:      store,
		logger:     logger,
		totalLong:  new(big.Int),
		totalShort: new(big.Int),
	}
}

func perpsSchema() *schema.Schema {
	return schema.MustNew([]schema.Event{
		{
			Name: "PositionOpened",
			Fields: []schema.Field{
				{Name: "user", Type: "address", Indexed: true},
				{Name: "orderKey", Type: "bytes32"},
				{Name: "market", Type: "address"},
				{Name: "collateralToken", Type: "address"},
				{Name: "isLong", Type: "bool"},
				{Name: "sizeInUsd", Type: "uint256"},
				{Name: "collateralAmount", Type: "uint256"},
				{Name: "leverage", Type: "uint256"},
				{Name: "isHedge", Type: "bool"},
			},
		},
		{
			Name: "PositionClosed",
			Fields: []schema.Field{
				{Name: "user", Type: "address", Indexed: true},
				{Name: "orderKey", Type: "bytes32"},
				{Name: "market", Type: "address"},
				{Name: "sizeInUsd", Type: "uint256"},
				{Name: "pnl", Type: "int256"},
			},
		},
		{
			Name: "EmergencyHedgeExecuted",
			Fields: []schema.Field{
				{Name: "user", Type: "address", Indexed: true},
				{Name: "market", Type: "address"},
				{Name: "hedgeSize", Type: "uint256"},
				{Name: "reason", Type: "string"},
				{Name: "orderKey", Type: "bytes32"},
			},
		},
	})
}

func (a *PerpsAggregator) Name() string           { return "perps" }
func (a *PerpsAggregator) Schema() *schema.Schema { return a.schema }

// Apply folds one position event into the running statistics.
func (a *PerpsAggregator) Apply(ev *model.ChainEvent) ([]model.Alert, error) {
	switch ev.Name {
	case "PositionOpened":
		return a.applyOpened(ev), nil
	case "PositionClosed":
		return a.applyClosed(ev), nil
	case "EmergencyHedgeExecuted":
		return a.applyEmergencyHedge(ev), nil
	default:
		return nil, fmt.Errorf("perps: unexpected event %s", ev.Name)
	}
}

func (a *PerpsAggregator) applyOpened(ev *model.ChainEvent) []model.Alert {
	sizeUSD := ev.Big("sizeInUsd")
	leverage := new(big.Rat).SetInt(ev.Big("leverage"))
	isHedge := ev.Bool("isHedge")

	a.openPositions++
	if ev.Bool("isLong") {
		a.totalLong.Add(a.totalLong, sizeUSD)
	} else {
		a.totalShort.Add(a.totalShort, sizeUSD)
	}
	if isHedge {
		a.hedgeCount++
	}
	a.lastUpdate = ev.ObservedAt

	var alerts []model.Alert
	switch a.thresholds.ClassifyLeverage(leverage) {
	case LeverageCritical:
		a.highLeverage++
		alerts = append(alerts, model.Alert{
			Severity: model.SeverityCritical,
			Type:     AlertExtremeLeverage,
			Message:  fmt.Sprintf("Extreme leverage: %sx", leverage.FloatString(0)),
			Source:   ev,
			Data: map[string]string{
				"user":       ev.Address("user").Hex(),
				"leverage":   leverage.FloatString(2),
				"action":     "REDUCE_LEVERAGE_URGENT",
				"suggestion": "close 50% of the position or add collateral to bring leverage under 20x",
			},
		})
	case LeverageWarning:
		a.highLeverage++
		alerts = append(alerts, model.Alert{
			Severity: model.SeverityWarning,
			Type:     AlertHighLeverage,
			Message:  fmt.Sprintf("High leverage: %sx", leverage.FloatString(0)),
			Source:   ev,
			Data: map[string]string{
				"user":       ev.Address("user").Hex(),
				"leverage":   leverage.FloatString(2),
				"action":     "REDUCE_LEVERAGE",
				"suggestion": "bring leverage under 25x for a safety margin",
			},
		})
	}

	// size alert is independent of the leverage class
	if sizeUSD.Cmp(a.thresholds.LargePositionUSD) >= 0 {
		alerts = append(alerts, model.Alert{
			Severity: model.SeverityInfo,
			Type:     AlertLargePosition,
			Message:  fmt.Sprintf("Large position: %s USD", formatUnits(sizeUSD, 18)),
			Source:   ev,
			Data: map[string]string{
				"user":      ev.Address("user").Hex(),
				"sizeInUsd": sizeUSD.String(),
			},
		})
	}

	a.record(func() error {
		return a.store.InsertPosition(storage.PositionRecord{
			User:            ev.Address("user"),
			OrderKey:        ev.Hash("orderKey"),
			Market:          ev.Address("market"),
			CollateralToken: ev.Address("collateralToken"),
			IsLong:          ev.Bool("isLong"),
			SizeUSD:         copyBig(sizeUSD),
			Collateral:      copyBig(ev.Big("collateralAmount")),
			Leverage:        copyBig(ev.Big("leverage")),
			IsHedge:         isHedge,
			OpenedAt:        ev.ObservedAt,
		})
	})

	return alerts
}

func (a *PerpsAggregator) applyClosed(ev *model.ChainEvent) []model.Alert {
	pnl := ev.Big("pnl")

	if a.openPositions > 0 {
		a.openPositions--
	}
	a.lastUpdate = ev.ObservedAt

	var alerts []model.Alert
	loss := new(big.Int).Neg(pnl)
	if pnl.Sign() < 0 && loss.Cmp(a.thresholds.LargeLossUSD) > 0 {
		alerts = append(alerts, model.Alert{
			Severity: model.SeverityWarning,
			Type:     AlertLargeLoss,
			Message:  fmt.Sprintf("Large loss realized: %s USD", formatUnits(loss, 18)),
			Source:   ev,
			Data: map[string]string{
				"user": ev.Address("user").Hex(),
				"pnl":  pnl.String(),
			},
		})
	}

	a.record(func() error {
		return a.store.ClosePosition(ev.Hash("orderKey"), copyBig(pnl), ev.ObservedAt)
	})

	return alerts
}

func (a *PerpsAggregator) applyEmergencyHedge(ev *model.ChainEvent) []model.Alert {
	a.hedgeCount++
	a.emergencyCount++
	a.lastUpdate = ev.ObservedAt

	a.record(func() error {
		return a.store.InsertHedge(storage.HedgeRecord{
			User:       ev.Address("user"),
			Market:     ev.Address("market"),
			HedgeSize:  copyBig(ev.Big("hedgeSize")),
			Reason:     ev.String("reason"),
			OrderKey:   ev.Hash("orderKey"),
			ExecutedAt: ev.ObservedAt,
		})
	})

	// system-initiated, so no user decision is pending
	return []model.Alert{{
		Severity: model.SeverityCritical,
		Type:     AlertEmergencyHedge,
		Message:  fmt.Sprintf("Emergency hedge executed: %s", ev.String("reason")),
		Source:   ev,
		Data: map[string]string{
			"user":         ev.Address("user").Hex(),
			"market":       ev.Address("market").Hex(),
			"hedgeSize":    ev.Big("hedgeSize").String(),
			"reason":       ev.String("reason"),
			"userDecision": "false",
		},
	}}
}

// record runs a store write best-effort; failures are logged, never returned.
func (a *PerpsAggregator) record(fn func() error) {
	if a.store == nil {
		return
	}
	if err := fn(); err != nil {
		a.logger.Warn("position store write failed", zap.Error(err))
	}
}

// Snapshot returns an immutable copy of the statistics.
func (a *PerpsAggregator) Snapshot() interface{} {
	return PerpsStats{
		OpenPositions:  a.openPositions,
		TotalLongUSD:   copyBig(a.totalLong),
		TotalShortUSD:  copyBig(a.totalShort),
		HedgeCount:     a.hedgeCount,
		HighLeverage:   a.highLeverage,
		EmergencyCount: a.emergencyCount,
		LastUpdate:     a.lastUpdate,
	}
}

// Reset zeroes the statistics.
func (a *PerpsAggregator) Reset() {
	a.openPositions = 0
	a.totalLong = new(big.Int)
	a.totalShort = new(big.Int)
	a.hedgeCount = 0
	a.highLeverage = 0
	a.emergencyCount = 0
	a.lastUpdate = time.Time{}
}
