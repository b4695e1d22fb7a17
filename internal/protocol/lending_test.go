package protocol

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"riskScope/internal/model"
)

func lendingEvent(name, user string, amount *big.Int) *model.ChainEvent {
	return testEvent(name, map[string]interface{}{
		"user":      common.HexToAddress(user),
		"asset":     common.HexToAddress("0x5555555555555555555555555555555555555555"),
		"amount":    amount,
		"timestamp": big.NewInt(1700000000),
	})
}

const alice = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
const bob = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"

func TestLendingUtilizationWarning(t *testing.T) {
	a := NewLendingAggregator(DefaultLendingThresholds(), nil)

	mustApply(t, a, lendingEvent("Supplied", alice, Units(100)))
	alerts := mustApply(t, a, lendingEvent("Borrowed", bob, Units(85)))
	requireAlerts(t, alerts, AlertHighUtilization)
	if alerts[0].Severity != model.SeverityWarning {
		t.Fatalf("got severity %s, want WARNING", alerts[0].Severity)
	}
}

func TestLendingUtilizationCriticalAtBoundary(t *testing.T) {
	a := NewLendingAggregator(DefaultLendingThresholds(), nil)

	// 450/500 is exactly 90%: one CRITICAL, not a WARNING as well
	mustApply(t, a, lendingEvent("Supplied", alice, Units(500)))
	alerts := mustApply(t, a, lendingEvent("Borrowed", bob, Units(450)))
	requireAlerts(t, alerts, AlertHighUtilization)
	if alerts[0].Severity != model.SeverityCritical {
		t.Fatalf("got severity %s, want CRITICAL", alerts[0].Severity)
	}

	stats := a.Snapshot().(LendingStats)
	if stats.ActiveUsers != 2 {
		t.Fatalf("got %d active users, want 2", stats.ActiveUsers)
	}
	if stats.Utilization.Cmp(big.NewRat(9, 10)) != 0 {
		t.Fatalf("got utilization %s, want 9/10", stats.Utilization)
	}
}

func TestLendingBorrowBeforeSupply(t *testing.T) {
	a := NewLendingAggregator(DefaultLendingThresholds(), nil)

	// a borrow against supply the monitor never saw: zero supply means no
	// utilization signal yet
	alerts := mustApply(t, a, lendingEvent("Borrowed", alice, Units(450)))
	if len(alerts) != 0 {
		t.Fatalf("got alerts %v, want none", alertTypes(alerts))
	}

	// once supply arrives the 90% utilization fires exactly once
	alerts = mustApply(t, a, lendingEvent("Supplied", alice, Units(500)))
	requireAlerts(t, alerts, AlertHighUtilization)
	if alerts[0].Severity != model.SeverityCritical {
		t.Fatalf("got severity %s, want CRITICAL", alerts[0].Severity)
	}

	if stats := a.Snapshot().(LendingStats); stats.ActiveUsers != 1 {
		t.Fatalf("got %d active users, want 1", stats.ActiveUsers)
	}
}

func TestLendingUtilizationCriticalAboveBoundary(t *testing.T) {
	a := NewLendingAggregator(DefaultLendingThresholds(), nil)

	mustApply(t, a, lendingEvent("Supplied", alice, Units(100)))
	alerts := mustApply(t, a, lendingEvent("Borrowed", bob, Units(95)))
	requireAlerts(t, alerts, AlertHighUtilization)
	if alerts[0].Severity != model.SeverityCritical {
		t.Fatalf("got severity %s, want CRITICAL", alerts[0].Severity)
	}
}

func TestLendingUtilizationQuietAtWarnBoundary(t *testing.T) {
	a := NewLendingAggregator(DefaultLendingThresholds(), nil)

	// exactly 80% is not over the warning line
	mustApply(t, a, lendingEvent("Supplied", alice, Units(100)))
	alerts := mustApply(t, a, lendingEvent("Borrowed", bob, Units(80)))
	if len(alerts) != 0 {
		t.Fatalf("got alerts %v, want none", alertTypes(alerts))
	}
}

func TestLendingWithdrawClamp(t *testing.T) {
	a := NewLendingAggregator(DefaultLendingThresholds(), nil)

	mustApply(t, a, lendingEvent("Supplied", alice, Units(10)))
	mustApply(t, a, lendingEvent("Withdrawn", alice, Units(30)))

	stats := a.Snapshot().(LendingStats)
	if stats.TotalSupplied.Sign() != 0 {
		t.Fatalf("got supplied %s, want 0", stats.TotalSupplied)
	}
	if stats.ClampCount != 1 {
		t.Fatalf("got clamp count %d, want 1", stats.ClampCount)
	}
}

func TestLendingLargeWithdrawal(t *testing.T) {
	a := NewLendingAggregator(DefaultLendingThresholds(), nil)

	mustApply(t, a, lendingEvent("Supplied", alice, Units(1000)))
	alerts := mustApply(t, a, lendingEvent("Withdrawn", alice, Units(51)))
	requireAlerts(t, alerts, AlertLargeWithdrawal)

	// exactly at the line stays quiet
	alerts = mustApply(t, a, lendingEvent("Withdrawn", alice, Units(50)))
	if len(alerts) != 0 {
		t.Fatalf("got alerts %v, want none", alertTypes(alerts))
	}
}

func TestLendingFlashLoan(t *testing.T) {
	a := NewLendingAggregator(DefaultLendingThresholds(), nil)

	flash := func(amount *big.Int) *model.ChainEvent {
		return testEvent("FlashLoanExecuted", map[string]interface{}{
			"initiator": common.HexToAddress(alice),
			"asset":     common.HexToAddress("0x5555555555555555555555555555555555555555"),
			"amount":    amount,
			"premium":   big.NewInt(9),
			"timestamp": big.NewInt(1700000000),
		})
	}

	if alerts := mustApply(t, a, flash(Units(100))); len(alerts) != 0 {
		t.Fatalf("boundary flash loan alerted: %v", alertTypes(alerts))
	}
	alerts := mustApply(t, a, flash(new(big.Int).Add(Units(100), big.NewInt(1))))
	requireAlerts(t, alerts, AlertLargeFlashLoan)
	if alerts[0].Severity != model.SeverityCritical {
		t.Fatalf("got severity %s, want CRITICAL", alerts[0].Severity)
	}

	stats := a.Snapshot().(LendingStats)
	if stats.FlashLoanCount != 2 {
		t.Fatalf("got flash loan count %d, want 2", stats.FlashLoanCount)
	}
}

func TestLendingRepeatUserCountedOnce(t *testing.T) {
	a := NewLendingAggregator(DefaultLendingThresholds(), nil)

	mustApply(t, a, lendingEvent("Supplied", alice, Units(10)))
	mustApply(t, a, lendingEvent("Supplied", alice, Units(10)))
	mustApply(t, a, lendingEvent("Borrowed", alice, Units(1)))

	if stats := a.Snapshot().(LendingStats); stats.ActiveUsers != 1 {
		t.Fatalf("got %d active users, want 1", stats.ActiveUsers)
	}
}

func TestLendingReset(t *testing.T) {
	a := NewLendingAggregator(DefaultLendingThresholds(), nil)
	mustApply(t, a, lendingEvent("Supplied", alice, Units(10)))
	a.Reset()
	a.Reset()

	stats := a.Snapshot().(LendingStats)
	if stats.TotalSupplied.Sign() != 0 || stats.ActiveUsers != 0 {
		t.Fatalf("reset left state: %+v", stats)
	}
}
