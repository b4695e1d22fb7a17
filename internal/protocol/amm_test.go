package protocol

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"riskScope/internal/model"
)

func swapEvent(amountIn, amountOut *big.Int) *model.ChainEvent {
	return testEvent("Swapped", map[string]interface{}{
		"user":      common.HexToAddress("0x2222222222222222222222222222222222222222"),
		"tokenIn":   common.HexToAddress("0x3333333333333333333333333333333333333333"),
		"tokenOut":  common.HexToAddress("0x4444444444444444444444444444444444444444"),
		"amountIn":  amountIn,
		"amountOut": amountOut,
		"fee":       big.NewInt(3000),
	})
}

func TestAMMHighSlippage(t *testing.T) {
	a := NewAMMAggregator(DefaultAMMThresholds(), nil)

	// 100 in, 80 out: 20% slippage, over the 2% line but under the 100-unit
	// large-swap line (strict greater-than).
	alerts := mustApply(t, a, swapEvent(Units(100), Units(80)))
	requireAlerts(t, alerts, AlertHighSlippage)
	if alerts[0].Severity != model.SeverityWarning {
		t.Fatalf("got severity %s, want WARNING", alerts[0].Severity)
	}

	stats := a.Snapshot().(AMMStats)
	if stats.SwapCount != 1 {
		t.Fatalf("got %d swaps, want 1", stats.SwapCount)
	}
	if stats.TotalVolume.Cmp(Units(100)) != 0 {
		t.Fatalf("got volume %s, want %s", stats.TotalVolume, Units(100))
	}
	if stats.AvgSlippage.Cmp(big.NewRat(1, 5)) != 0 {
		t.Fatalf("got avg slippage %s, want 1/5", stats.AvgSlippage)
	}
}

func TestAMMLargeSwap(t *testing.T) {
	a := NewAMMAggregator(DefaultAMMThresholds(), nil)

	// one wei over the line, no slippage
	in := new(big.Int).Add(Units(100), big.NewInt(1))
	alerts := mustApply(t, a, swapEvent(in, in))
	requireAlerts(t, alerts, AlertLargeSwap)
	if alerts[0].Severity != model.SeverityInfo {
		t.Fatalf("got severity %s, want INFO", alerts[0].Severity)
	}
}

func TestAMMBoundariesQuiet(t *testing.T) {
	a := NewAMMAggregator(DefaultAMMThresholds(), nil)

	// exactly 100 units and exactly 2% slippage both sit on their thresholds
	alerts := mustApply(t, a, swapEvent(Units(100), Units(98)))
	if len(alerts) != 0 {
		t.Fatalf("got alerts %v, want none", alertTypes(alerts))
	}
}

func TestAMMZeroAmountIn(t *testing.T) {
	a := NewAMMAggregator(DefaultAMMThresholds(), nil)

	alerts := mustApply(t, a, swapEvent(new(big.Int), Units(5)))
	if len(alerts) != 0 {
		t.Fatalf("got alerts %v, want none", alertTypes(alerts))
	}
	stats := a.Snapshot().(AMMStats)
	if stats.AvgSlippage.Sign() != 0 {
		t.Fatalf("got avg slippage %s, want 0", stats.AvgSlippage)
	}
}

func TestAMMMultiHopCountsVolume(t *testing.T) {
	a := NewAMMAggregator(DefaultAMMThresholds(), nil)

	mustApply(t, a, testEvent("MultiHopSwap", map[string]interface{}{
		"user":      common.HexToAddress("0x2222222222222222222222222222222222222222"),
		"amountIn":  Units(7),
		"amountOut": Units(6),
	}))

	stats := a.Snapshot().(AMMStats)
	if stats.MultiHopCount != 1 || stats.SwapCount != 0 {
		t.Fatalf("got multihop=%d swap=%d, want 1/0", stats.MultiHopCount, stats.SwapCount)
	}
	if stats.TotalVolume.Cmp(Units(7)) != 0 {
		t.Fatalf("got volume %s, want %s", stats.TotalVolume, Units(7))
	}
}

func TestAMMUnknownEvent(t *testing.T) {
	a := NewAMMAggregator(DefaultAMMThresholds(), nil)
	if _, err := a.Apply(testEvent("Minted", nil)); err == nil {
		t.Fatal("expected error for unknown event")
	}
}

func TestAMMReset(t *testing.T) {
	a := NewAMMAggregator(DefaultAMMThresholds(), nil)
	mustApply(t, a, swapEvent(Units(10), Units(10)))
	a.Reset()
	a.Reset() // idempotent

	stats := a.Snapshot().(AMMStats)
	if stats.SwapCount != 0 || stats.TotalVolume.Sign() != 0 {
		t.Fatalf("reset left state: %+v", stats)
	}
}
