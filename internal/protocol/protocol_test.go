package protocol

import (
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"riskScope/internal/model"
)

var testCounter uint

func testEvent(name string, args map[string]interface{}) *model.ChainEvent {
	testCounter++
	return &model.ChainEvent{
		Contract:    common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Name:        name,
		Args:        args,
		BlockNumber: 100,
		TxHash:      common.HexToHash(fmt.Sprintf("0x%064x", testCounter)),
		LogIndex:    testCounter,
		ObservedAt:  time.Unix(1700000000, 0),
	}
}

func mustApply(t *testing.T, a Aggregator, ev *model.ChainEvent) []model.Alert {
	t.Helper()
	alerts, err := a.Apply(ev)
	if err != nil {
		t.Fatalf("apply %s failed: %v", ev.Name, err)
	}
	return alerts
}

func requireAlerts(t *testing.T, alerts []model.Alert, want ...string) {
	t.Helper()
	if len(alerts) != len(want) {
		t.Fatalf("got %d alerts %v, want %d %v", len(alerts), alertTypes(alerts), len(want), want)
	}
	for i, typ := range want {
		if alerts[i].Type != typ {
			t.Fatalf("alert %d: got type %s, want %s", i, alerts[i].Type, typ)
		}
	}
}

func alertTypes(alerts []model.Alert) []string {
	out := make([]string, len(alerts))
	for i, a := range alerts {
		out[i] = a.Type
	}
	return out
}
