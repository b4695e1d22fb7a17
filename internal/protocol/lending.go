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

// LendingThresholds configures lending pool alerting.
type LendingThresholds struct {
	WarnUtilization     *big.Rat // WARNING above this, default 80%
	CriticalUtilization *big.Rat // CRITICAL above this, default 90%
	LargeWithdrawal     *big.Int // default 50 units
	LargeFlashLoan      *big.Int // default 100 units
}

// DefaultLendingThresholds returns the production thresholds.
func DefaultLendingThresholds() LendingThresholds {
	return LendingThresholds{
		WarnUtilization:     big.NewRat(80, 100),
		CriticalUtilization: big.NewRat(90, 100),
		LargeWithdrawal:     Units(50),
		LargeFlashLoan:      Units(100),
	}
}

// LendingStats is the immutable statistics snapshot of a lending adapter.
type LendingStats struct {
	TotalSupplied  *big.Int
	TotalBorrowed  *big.Int
	Utilization    *big.Rat
	ActiveUsers    int
	FlashLoanCount uint64
	ClampCount     uint64 // decrements that would have gone negative
	LastUpdate     time.Time
}

// LendingAggregator tracks supply, borrow, and flash-loan activity on a
// lending adapter contract. Totals are running sums of signed deltas, clamped
// at zero; a clamp is counted as a data-quality signal, never applied.
//
// Users are added to the active set on supply/borrow and never removed:
// the set records everyone who ever participated, since withdraw/repay events
// do not carry enough information to prove a user fully exited.
type LendingAggregator struct {
	thresholds LendingThresholds
	schema     *schema.Schema
	logger     *zap.Logger

	totalSupplied  *big.Int
	totalBorrowed  *big.Int
	users          map[common.Address]struct{}
	flashLoanCount uint64
	clampCount     uint64
	lastUpdate     time.Time
}

// NewLendingAggregator builds a lending adapter aggregator.
func NewLendingAggregator(thresholds LendingThresholds, logger *zap.Logger) *LendingAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LendingAggregator{
		thresholds:    thresholds,
		schema:        lendingSchema(),
		logger:        logger,
		totalSupplied: new(big.Int),
		totalBorrowed: new(big.Int),
		users:         make(map[common.Address]struct{}),
	}
}

func lendingSchema() *schema.Schema {
	amountEvent := func(name string, extra ...schema.Field) schema.Event {
		fields := []schema.Field{
			{Name: "user", Type: "address", Indexed: true},
			{Name: "asset", Type: "address", Indexed: true},
			{Name: "amount", Type: "uint256"},
		}
		fields = append(fields, extra...)
		fields = append(fields, schema.Field{Name: "timestamp", Type: "uint256"})
		return schema.Event{Name: name, Fields: fields}
	}
	rateMode := schema.Field{Name: "interestRateMode", Type: "uint256"}

	return schema.MustNew([]schema.Event{
		amountEvent("Supplied"),
		amountEvent("Withdrawn"),
		amountEvent("Borrowed", rateMode),
		amountEvent("Repaid", rateMode),
		{
			Name: "FlashLoanExecuted",
			Fields: []schema.Field{
				{Name: "initiator", Type: "address", Indexed: true},
				{Name: "asset", Type: "address", Indexed: true},
				{Name: "amount", Type: "uint256"},
				{Name: "premium", Type: "uint256"},
				{Name: "timestamp", Type: "uint256"},
			},
		},
	})
}

func (a *LendingAggregator) Name() string           { return "lending" }
func (a *LendingAggregator) Schema() *schema.Schema { return a.schema }

// Apply folds one lending event into the running statistics.
func (a *LendingAggregator) Apply(ev *model.ChainEvent) ([]model.Alert, error) {
	amount := ev.Big("amount")
	var alerts []model.Alert

	switch ev.Name {
	case "Supplied":
		a.totalSupplied.Add(a.totalSupplied, amount)
		a.users[ev.Address("user")] = struct{}{}
	case "Withdrawn":
		if clampSub(a.totalSupplied, amount) {
			a.clampCount++
			a.logger.Warn("withdrawal exceeds tracked supply, clamped at zero",
				zap.String("amount", amount.String()),
				zap.String("tx", ev.TxHash.Hex()),
			)
		}
		if amount.Cmp(a.thresholds.LargeWithdrawal) > 0 {
			alerts = append(alerts, model.Alert{
				Severity: model.SeverityWarning,
				Type:     AlertLargeWithdrawal,
				Message:  fmt.Sprintf("Large withdrawal: %s units", formatUnits(amount, 18)),
				Source:   ev,
				Data:     map[string]string{"amount": amount.String()},
			})
		}
	case "Borrowed":
		a.totalBorrowed.Add(a.totalBorrowed, amount)
		a.users[ev.Address("user")] = struct{}{}
	case "Repaid":
		if clampSub(a.totalBorrowed, amount) {
			a.clampCount++
			a.logger.Warn("repayment exceeds tracked borrow, clamped at zero",
				zap.String("amount", amount.String()),
				zap.String("tx", ev.TxHash.Hex()),
			)
		}
	case "FlashLoanExecuted":
		a.flashLoanCount++
		a.lastUpdate = ev.ObservedAt
		if amount.Cmp(a.thresholds.LargeFlashLoan) > 0 {
			alerts = append(alerts, model.Alert{
				Severity: model.SeverityCritical,
				Type:     AlertLargeFlashLoan,
				Message:  fmt.Sprintf("Large flash loan: %s units", formatUnits(amount, 18)),
				Source:   ev,
				Data: map[string]string{
					"amount":    amount.String(),
					"initiator": ev.Address("initiator").Hex(),
				},
			})
		}
		return alerts, nil
	default:
		return nil, fmt.Errorf("lending: unexpected event %s", ev.Name)
	}

	a.lastUpdate = ev.ObservedAt
	if alert := a.utilizationAlert(ev); alert != nil {
		alerts = append(alerts, *alert)
	}
	return alerts, nil
}

// utilizationAlert returns at most one alert for the current utilization:
// CRITICAL at or above the critical line, otherwise WARNING above the warning
// line.
func (a *LendingAggregator) utilizationAlert(ev *model.ChainEvent) *model.Alert {
	u := ratio(a.totalBorrowed, a.totalSupplied)

	var severity model.Severity
	switch {
	case u.Cmp(a.thresholds.CriticalUtilization) >= 0:
		severity = model.SeverityCritical
	case u.Cmp(a.thresholds.WarnUtilization) > 0:
		severity = model.SeverityWarning
	default:
		return nil
	}

	return &model.Alert{
		Severity: severity,
		Type:     AlertHighUtilization,
		Message:  fmt.Sprintf("Utilization at %s", percent(u)),
		Source:   ev,
		Data: map[string]string{
			"totalSupplied": a.totalSupplied.String(),
			"totalBorrowed": a.totalBorrowed.String(),
			"utilization":   u.FloatString(4),
		},
	}
}

// Snapshot returns an immutable copy of the statistics.
func (a *LendingAggregator) Snapshot() interface{} {
	return LendingStats{
		TotalSupplied:  copyBig(a.totalSupplied),
		TotalBorrowed:  copyBig(a.totalBorrowed),
		Utilization:    ratio(a.totalBorrowed, a.totalSupplied),
		ActiveUsers:    len(a.users),
		FlashLoanCount: a.flashLoanCount,
		ClampCount:     a.clampCount,
		LastUpdate:     a.lastUpdate,
	}
}

// Reset zeroes the statistics.
func (a *LendingAggregator) Reset() {
	a.totalSupplied = new(big.Int)
	a.totalBorrowed = new(big.Int)
	a.users = make(map[common.Address]struct{})
	a.flashLoanCount = 0
	a.clampCount = 0
	a.lastUpdate = time.Time{}
}
