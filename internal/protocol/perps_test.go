package protocol

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"riskScope/internal/model"
	"riskScope/internal/storage"
)

type fakeStore struct {
	inserts int
	closes  int
	hedges  int
	err     error
}

func (f *fakeStore) InsertPosition(storage.PositionRecord) error { f.inserts++; return f.err }
func (f *fakeStore) ClosePosition(common.Hash, *big.Int, time.Time) error {
	f.closes++
	return f.err
}
func (f *fakeStore) InsertHedge(storage.HedgeRecord) error { f.hedges++; return f.err }

func openedEvent(leverage int64, sizeUSD *big.Int, isLong bool) *model.ChainEvent {
	return testEvent("PositionOpened", map[string]interface{}{
		"user":             common.HexToAddress(alice),
		"orderKey":         [32]byte{1},
		"market":           common.HexToAddress("0x6666666666666666666666666666666666666666"),
		"collateralToken":  common.HexToAddress("0x7777777777777777777777777777777777777777"),
		"isLong":           isLong,
		"sizeInUsd":        sizeUSD,
		"collateralAmount": Units(1),
		"leverage":         big.NewInt(leverage),
		"isHedge":          false,
	})
}

func closedEvent(pnl *big.Int) *model.ChainEvent {
	return testEvent("PositionClosed", map[string]interface{}{
		"user":      common.HexToAddress(alice),
		"orderKey":  [32]byte{1},
		"market":    common.HexToAddress("0x6666666666666666666666666666666666666666"),
		"sizeInUsd": Units(1000),
		"pnl":       pnl,
	})
}

func TestClassifyLeverage(t *testing.T) {
	th := DefaultPerpsThresholds()

	cases := []struct {
		leverage *big.Rat
		want     LeverageClass
	}{
		{big.NewRat(29999, 1000), LeverageOK}, // 29.999x
		{big.NewRat(30, 1), LeverageWarning},  // exactly at the line
		{big.NewRat(39, 1), LeverageWarning},
		{big.NewRat(40, 1), LeverageCritical}, // exactly at the line
		{big.NewRat(55, 1), LeverageCritical},
	}
	for _, tc := range cases {
		if got := th.ClassifyLeverage(tc.leverage); got != tc.want {
			t.Fatalf("leverage %s: got class %d, want %d", tc.leverage, got, tc.want)
		}
	}
}

func TestPerpsLeverageAlerts(t *testing.T) {
	a := NewPerpsAggregator(DefaultPerpsThresholds(), nil, nil)

	alerts := mustApply(t, a, openedEvent(35, Units(1000), true))
	requireAlerts(t, alerts, AlertHighLeverage)

	alerts = mustApply(t, a, openedEvent(40, Units(1000), true))
	requireAlerts(t, alerts, AlertExtremeLeverage)
	if alerts[0].Severity != model.SeverityCritical {
		t.Fatalf("got severity %s, want CRITICAL", alerts[0].Severity)
	}

	if alerts := mustApply(t, a, openedEvent(10, Units(1000), false)); len(alerts) != 0 {
		t.Fatalf("low leverage alerted: %v", alertTypes(alerts))
	}

	stats := a.Snapshot().(PerpsStats)
	if stats.OpenPositions != 3 || stats.HighLeverage != 2 {
		t.Fatalf("got open=%d high=%d, want 3/2", stats.OpenPositions, stats.HighLeverage)
	}
	if stats.TotalLongUSD.Cmp(Units(2000)) != 0 || stats.TotalShortUSD.Cmp(Units(1000)) != 0 {
		t.Fatalf("got long=%s short=%s", stats.TotalLongUSD, stats.TotalShortUSD)
	}
}

func TestPerpsLargePositionIndependent(t *testing.T) {
	a := NewPerpsAggregator(DefaultPerpsThresholds(), nil, nil)

	// high leverage and large size fire together, at-the-line size included
	alerts := mustApply(t, a, openedEvent(30, Units(50000), true))
	requireAlerts(t, alerts, AlertHighLeverage, AlertLargePosition)

	// large size with sane leverage still fires
	alerts = mustApply(t, a, openedEvent(5, Units(60000), true))
	requireAlerts(t, alerts, AlertLargePosition)
}

func TestPerpsLargeLoss(t *testing.T) {
	a := NewPerpsAggregator(DefaultPerpsThresholds(), nil, nil)

	mustApply(t, a, openedEvent(5, Units(1000), true))
	loss := new(big.Int).Neg(new(big.Int).Add(Units(50000), big.NewInt(1)))
	alerts := mustApply(t, a, closedEvent(loss))
	requireAlerts(t, alerts, AlertLargeLoss)

	// profit never alerts
	mustApply(t, a, openedEvent(5, Units(1000), true))
	if alerts := mustApply(t, a, closedEvent(Units(90000))); len(alerts) != 0 {
		t.Fatalf("profit alerted: %v", alertTypes(alerts))
	}
}

func TestPerpsCloseFloorsAtZero(t *testing.T) {
	a := NewPerpsAggregator(DefaultPerpsThresholds(), nil, nil)

	mustApply(t, a, closedEvent(big.NewInt(0)))
	if stats := a.Snapshot().(PerpsStats); stats.OpenPositions != 0 {
		t.Fatalf("got open positions %d, want 0", stats.OpenPositions)
	}
}

func TestPerpsEmergencyHedgeAlwaysCritical(t *testing.T) {
	a := NewPerpsAggregator(DefaultPerpsThresholds(), nil, nil)

	alerts := mustApply(t, a, testEvent("EmergencyHedgeExecuted", map[string]interface{}{
		"user":      common.HexToAddress(alice),
		"market":    common.HexToAddress("0x6666666666666666666666666666666666666666"),
		"hedgeSize": Units(10),
		"reason":    "delta drift over limit",
		"orderKey":  [32]byte{9},
	}))
	requireAlerts(t, alerts, AlertEmergencyHedge)
	if alerts[0].Severity != model.SeverityCritical {
		t.Fatalf("got severity %s, want CRITICAL", alerts[0].Severity)
	}
	if alerts[0].Data["userDecision"] != "false" {
		t.Fatalf("got userDecision %q, want \"false\"", alerts[0].Data["userDecision"])
	}

	stats := a.Snapshot().(PerpsStats)
	if stats.EmergencyCount != 1 || stats.HedgeCount != 1 {
		t.Fatalf("got emergency=%d hedge=%d, want 1/1", stats.EmergencyCount, stats.HedgeCount)
	}
}

func TestPerpsStoreBestEffort(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	a := NewPerpsAggregator(DefaultPerpsThresholds(), store, nil)

	// store failures are swallowed; aggregation proceeds
	mustApply(t, a, openedEvent(5, Units(1000), true))
	mustApply(t, a, closedEvent(big.NewInt(100)))

	if store.inserts != 1 || store.closes != 1 {
		t.Fatalf("got inserts=%d closes=%d, want 1/1", store.inserts, store.closes)
	}
	if stats := a.Snapshot().(PerpsStats); stats.OpenPositions != 0 {
		t.Fatalf("got open positions %d, want 0", stats.OpenPositions)
	}
}
