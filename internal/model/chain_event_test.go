package model

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestChainEventAccessors(t *testing.T) {
	user := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	ev := &ChainEvent{
		Name: "PositionOpened",
		Args: map[string]interface{}{
			"user":     user,
			"amount":   big.NewInt(42),
			"isLong":   true,
			"reason":   "rebalance",
			"orderKey": [32]byte{7},
			"indexed":  common.HexToHash("0x09"),
		},
		TxHash:   common.HexToHash("0xff"),
		LogIndex: 5,
	}

	if ev.Address("user") != user {
		t.Fatalf("got %s, want %s", ev.Address("user"), user)
	}
	if ev.Big("amount").Int64() != 42 {
		t.Fatalf("got %s, want 42", ev.Big("amount"))
	}
	ev.Args["status"] = uint8(2)
	if ev.Big("status").Int64() != 2 {
		t.Fatalf("got %s, want 2", ev.Big("status"))
	}
	if !ev.Bool("isLong") {
		t.Fatal("isLong not true")
	}
	if ev.String("reason") != "rebalance" {
		t.Fatalf("got %q", ev.String("reason"))
	}
	if ev.Hash("orderKey") != (common.Hash{7}) {
		t.Fatalf("got %s", ev.Hash("orderKey"))
	}
	if ev.Hash("indexed") != common.HexToHash("0x09") {
		t.Fatalf("got %s", ev.Hash("indexed"))
	}
}

func TestChainEventMissingArgsAreZero(t *testing.T) {
	ev := &ChainEvent{Name: "Empty", Args: map[string]interface{}{}}

	if ev.Big("amount").Sign() != 0 {
		t.Fatal("missing big not zero")
	}
	if ev.Address("user") != (common.Address{}) {
		t.Fatal("missing address not zero")
	}
	if ev.Bool("flag") {
		t.Fatal("missing bool not false")
	}
	if ev.String("s") != "" {
		t.Fatal("missing string not empty")
	}
	if ev.Hash("h") != (common.Hash{}) {
		t.Fatal("missing hash not zero")
	}
}

func TestChainEventID(t *testing.T) {
	ev := &ChainEvent{TxHash: common.HexToHash("0xab"), LogIndex: 3}
	want := ev.TxHash.Hex() + ":3"
	if ev.ID() != want {
		t.Fatalf("got %q, want %q", ev.ID(), want)
	}
}

func TestSeverityString(t *testing.T) {
	cases := map[Severity]string{
		SeverityInfo:     "INFO",
		SeverityWarning:  "WARNING",
		SeverityCritical: "CRITICAL",
		Severity(9):      "UNKNOWN",
	}
	for s, want := range cases {
		if s.String() != want {
			t.Fatalf("got %q, want %q", s.String(), want)
		}
	}
}
