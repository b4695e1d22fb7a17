package protocol

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"riskScope/internal/model"
	"riskScope/internal/schema"
)

// RatesThresholds configures rate-oracle alerting.
type RatesThresholds struct {
	MaxRateChange   *big.Rat // relative change WARNING line, default 50%
	LargeWithdrawal *big.Int // default 50 units
}

// DefaultRatesThresholds returns the production thresholds.
func DefaultRatesThresholds() RatesThresholds {
	return RatesThresholds{
		MaxRateChange:   big.NewRat(50, 100),
		LargeWithdrawal: Units(50),
	}
}

// RatesStats is the immutable statistics snapshot of a rate-oracle adapter.
type RatesStats struct {
	TotalSupplied  *big.Int
	TotalWithdrawn *big.Int
	NetSupply      *big.Int
	ActiveUsers    int
	SupplyRate     *big.Int // raw contract units, zero until first update
	BorrowRate     *big.Int
	RateUpdates    uint64
	LastUpdate     time.Time
}

// RatesAggregator tracks deposits and supply/borrow rate updates on a
// Compound-style adapter. Supplied and withdrawn are independent monotone
// accumulators; net supply is derived at snapshot time.
type RatesAggregator struct {
	thresholds RatesThresholds
	schema     *schema.Schema
	logger     *zap.Logger

	totalSupplied  *big.Int
	totalWithdrawn *big.Int
	users          map[common.Address]struct{}
	supplyRate     *big.Int
	borrowRate     *big.Int
	rateUpdates    uint64
	lastUpdate     time.Time
}

// NewRatesAggregator builds a rate-oracle adapter aggregator.
func NewRatesAggregator(thresholds RatesThresholds, logger *zap.Logger) *RatesAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RatesAggregator{
		thresholds:     thresholds,
		schema:         ratesSchema(),
		logger:         logger,
		totalSupplied:  new(big.Int),
		totalWithdrawn: new(big.Int),
		users:          make(map[common.Address]struct{}),
		supplyRate:     new(big.Int),
		borrowRate:     new(big.Int),
	}
}

func ratesSchema() *schema.Schema {
	return schema.MustNew([]schema.Event{
		{
			Name: "Supplied",
			Fields: []schema.Field{
				{Name: "user", Type: "address", Indexed: true},
				{Name: "asset", Type: "address", Indexed: true},
				{Name: "amount", Type: "uint256"},
				{Name: "timestamp", Type: "uint256"},
			},
		},
		{
			Name: "Withdrawn",
			Fields: []schema.Field{
				{Name: "user", Type: "address", Indexed: true},
				{Name: "asset", Type: "address", Indexed: true},
				{Name: "amount", Type: "uint256"},
				{Name: "timestamp", Type: "uint256"},
			},
		},
		{
			Name: "SupplyRateUpdated",
			Fields: []schema.Field{
				{Name: "newRate", Type: "uint256"},
				{Name: "timestamp", Type: "uint256"},
			},
		},
		{
			Name: "BorrowRateUpdated",
			Fields: []schema.Field{
				{Name: "newRate", Type: "uint256"},
				{Name: "timestamp", Type: "uint256"},
			},
		},
	})
}

func (a *RatesAggregator) Name() string           { return "rates" }
func (a *RatesAggregator) Schema() *schema.Schema { return a.schema }

// Apply folds one event into the running statistics.
func (a *RatesAggregator) Apply(ev *model.ChainEvent) ([]model.Alert, error) {
	var alerts []model.Alert

	switch ev.Name {
	case "Supplied":
		a.totalSupplied.Add(a.totalSupplied, ev.Big("amount"))
		a.users[ev.Address("user")] = struct{}{}
	case "Withdrawn":
		amount := ev.Big("amount")
		a.totalWithdrawn.Add(a.totalWithdrawn, amount)
		if amount.Cmp(a.thresholds.LargeWithdrawal) > 0 {
			alerts = append(alerts, model.Alert{
				Severity: model.SeverityWarning,
				Type:     AlertLargeWithdrawal,
				Message:  fmt.Sprintf("Large withdrawal: %s units", formatUnits(amount, 18)),
				Source:   ev,
				Data:     map[string]string{"amount": amount.String()},
			})
		}
	case "SupplyRateUpdated":
		if alert := a.applyRate(a.supplyRate, ev, AlertSupplyRateSpike, "supply"); alert != nil {
			alerts = append(alerts, *alert)
		}
	case "BorrowRateUpdated":
		if alert := a.applyRate(a.borrowRate, ev, AlertBorrowRateSpike, "borrow"); alert != nil {
			alerts = append(alerts, *alert)
		}
	default:
		return nil, fmt.Errorf("rates: unexpected event %s", ev.Name)
	}

	a.lastUpdate = ev.ObservedAt
	return alerts, nil
}

// applyRate updates current (in place) to the event's newRate and returns a
// spike alert when the previous rate was nonzero and the relative change
// exceeds the threshold.
func (a *RatesAggregator) applyRate(current *big.Int, ev *model.ChainEvent, alertType, kind string) *model.Alert {
	newRate := ev.Big("newRate")
	old := new(big.Int).Set(current)
	current.Set(newRate)
	a.rateUpdates++

	if old.Sign() <= 0 {
		return nil
	}
	diff := new(big.Int).Sub(newRate, old)
	diff.Abs(diff)
	change := ratio(diff, old)
	if change.Cmp(a.thresholds.MaxRateChange) <= 0 {
		return nil
	}

	return &model.Alert{
		Severity: model.SeverityWarning,
		Type:     alertType,
		Message: fmt.Sprintf("%s rate changed by %s: %s -> %s",
			kind, percent(change), old.String(), newRate.String()),
		Source: ev,
		Data: map[string]string{
			"oldRate": old.String(),
			"newRate": newRate.String(),
			"change":  change.FloatString(4),
		},
	}
}

// Snapshot returns an immutable copy of the statistics.
func (a *RatesAggregator) Snapshot() interface{} {
	net := new(big.Int).Sub(a.totalSupplied, a.totalWithdrawn)
	return RatesStats{
		TotalSupplied:  copyBig(a.totalSupplied),
		TotalWithdrawn: copyBig(a.totalWithdrawn),
		NetSupply:      net,
		ActiveUsers:    len(a.users),
		SupplyRate:     copyBig(a.supplyRate),
		BorrowRate:     copyBig(a.borrowRate),
		RateUpdates:    a.rateUpdates,
		LastUpdate:     a.lastUpdate,
	}
}

// Reset zeroes the statistics.
func (a *RatesAggregator) Reset() {
	a.totalSupplied = new(big.Int)
	a.totalWithdrawn = new(big.Int)
	a.users = make(map[common.Address]struct{})
	a.supplyRate = new(big.Int)
	a.borrowRate = new(big.Int)
	a.rateUpdates = 0
	a.lastUpdate = time.Time{}
}
