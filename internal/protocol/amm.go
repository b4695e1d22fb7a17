package protocol

import (
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"riskScope/internal/model"
	"riskScope/internal/schema"
)

// AMMThresholds configures swap alerting.
type AMMThresholds struct {
	MaxSlippage *big.Rat // alert above this, default 2%
	LargeSwap   *big.Int // alert above this amountIn, default 100 units
}

// DefaultAMMThresholds returns the production thresholds.
func DefaultAMMThresholds() AMMThresholds {
	return AMMThresholds{
		MaxSlippage: big.NewRat(2, 100),
		LargeSwap:   Units(100),
	}
}

// AMMStats is the immutable statistics snapshot of an AMM adapter.
type AMMStats struct {
	SwapCount     uint64
	MultiHopCount uint64
	TotalVolume   *big.Int // cumulative amountIn
	AvgSlippage   *big.Rat // mean simplified slippage over all swaps
	LastUpdate    time.Time
}

// AMMAggregator tracks swap volume and slippage on an AMM adapter contract.
type AMMAggregator struct {
	thresholds AMMThresholds
	schema     *schema.Schema
	logger     *zap.Logger

	swapCount     uint64
	multiHopCount uint64
	totalVolume   *big.Int
	slippageSum   *big.Rat
	lastUpdate    time.Time
}

// NewAMMAggregator builds an AMM adapter aggregator.
func NewAMMAggregator(thresholds AMMThresholds, logger *zap.Logger) *AMMAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AMMAggregator{
		thresholds:  thresholds,
		schema:      ammSchema(),
		logger:      logger,
		totalVolume: new(big.Int),
		slippageSum: new(big.Rat),
	}
}

func ammSchema() *schema.Schema {
	return schema.MustNew([]schema.Event{
		{
			Name: "Swapped",
			Fields: []schema.Field{
				{Name: "user", Type: "address", Indexed: true},
				{Name: "tokenIn", Type: "address", Indexed: true},
				{Name: "tokenOut", Type: "address", Indexed: true},
				{Name: "amountIn", Type: "uint256"},
				{Name: "amountOut", Type: "uint256"},
				{Name: "fee", Type: "uint24"},
			},
		},
		{
			Name: "MultiHopSwap",
			Fields: []schema.Field{
				{Name: "user", Type: "address", Indexed: true},
				{Name: "amountIn", Type: "uint256"},
				{Name: "amountOut", Type: "uint256"},
			},
		},
	})
}

func (a *AMMAggregator) Name() string           { return "amm" }
func (a *AMMAggregator) Schema() *schema.Schema { return a.schema }

// Apply folds one swap event into the running statistics.
func (a *AMMAggregator) Apply(ev *model.ChainEvent) ([]model.Alert, error) {
	switch ev.Name {
	case "Swapped":
		return a.applySwapped(ev), nil
	case "MultiHopSwap":
		a.multiHopCount++
		a.totalVolume.Add(a.totalVolume, ev.Big("amountIn"))
		a.lastUpdate = ev.ObservedAt
		return nil, nil
	default:
		return nil, fmt.Errorf("amm: unexpected event %s", ev.Name)
	}
}

func (a *AMMAggregator) applySwapped(ev *model.ChainEvent) []model.Alert {
	amountIn := ev.Big("amountIn")
	amountOut := ev.Big("amountOut")

	slippage := swapSlippage(amountIn, amountOut)

	a.swapCount++
	a.totalVolume.Add(a.totalVolume, amountIn)
	a.slippageSum.Add(a.slippageSum, slippage)
	a.lastUpdate = ev.ObservedAt

	var alerts []model.Alert
	if slippage.Cmp(a.thresholds.MaxSlippage) > 0 {
		alerts = append(alerts, model.Alert{
			Severity: model.SeverityWarning,
			Type:     AlertHighSlippage,
			Message:  fmt.Sprintf("High slippage detected: %s", percent(slippage)),
			Source:   ev,
			Data: map[string]string{
				"amountIn":  amountIn.String(),
				"amountOut": amountOut.String(),
				"slippage":  slippage.FloatString(6),
			},
		})
	}
	if amountIn.Cmp(a.thresholds.LargeSwap) > 0 {
		alerts = append(alerts, model.Alert{
			Severity: model.SeverityInfo,
			Type:     AlertLargeSwap,
			Message:  fmt.Sprintf("Large swap detected: %s units", formatUnits(amountIn, 18)),
			Source:   ev,
			Data: map[string]string{
				"amountIn": amountIn.String(),
				"user":     ev.Address("user").Hex(),
			},
		})
	}
	return alerts
}

// swapSlippage is the simplified no-oracle slippage |1 - amountOut/amountIn|.
// A zero amountIn yields zero slippage rather than a division error.
func swapSlippage(amountIn, amountOut *big.Int) *big.Rat {
	if amountIn.Sign() == 0 {
		return new(big.Rat)
	}
	r := new(big.Rat).Sub(big.NewRat(1, 1), ratio(amountOut, amountIn))
	return r.Abs(r)
}

// Snapshot returns an immutable copy of the statistics.
func (a *AMMAggregator) Snapshot() interface{} {
	avg := new(big.Rat)
	if a.swapCount > 0 {
		avg.Quo(a.slippageSum, new(big.Rat).SetUint64(a.swapCount))
	}
	return AMMStats{
		SwapCount:     a.swapCount,
		MultiHopCount: a.multiHopCount,
		TotalVolume:   copyBig(a.totalVolume),
		AvgSlippage:   avg,
		LastUpdate:    a.lastUpdate,
	}
}

// Reset zeroes the statistics.
func (a *AMMAggregator) Reset() {
	a.swapCount = 0
	a.multiHopCount = 0
	a.totalVolume = new(big.Int)
	a.slippageSum = new(big.Rat)
	a.lastUpdate = time.Time{}
}
