package schema

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func transferSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := New([]Event{
		{
			Name: "Deposited",
			Fields: []Field{
				{Name: "user", Type: "address", Indexed: true},
				{Name: "amount", Type: "uint256"},
				{Name: "memo", Type: "string"},
			},
		},
	})
	if err != nil {
		t.Fatalf("schema failed: %v", err)
	}
	return s
}

func TestDecodeRoundTrip(t *testing.T) {
	s := transferSchema(t)

	user := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	amount := big.NewInt(123456789)

	ev := s.events["Deposited"]
	data, err := ev.Inputs.NonIndexed().Pack(amount, "hello")
	if err != nil {
		t.Fatalf("pack failed: %v", err)
	}

	topic, ok := s.Topic("Deposited")
	if !ok {
		t.Fatal("missing topic for Deposited")
	}

	observedAt := time.Unix(1700000000, 0)
	decoded, err := s.Decode(types.Log{
		Address:     common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Topics:      []common.Hash{topic, common.BytesToHash(user.Bytes())},
		Data:        data,
		BlockNumber: 42,
		TxHash:      common.HexToHash("0x01"),
		Index:       3,
	}, observedAt)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if decoded.Name != "Deposited" {
		t.Fatalf("got event %s, want Deposited", decoded.Name)
	}
	if decoded.Address("user") != user {
		t.Fatalf("got user %s, want %s", decoded.Address("user"), user)
	}
	if decoded.Big("amount").Cmp(amount) != 0 {
		t.Fatalf("got amount %s, want %s", decoded.Big("amount"), amount)
	}
	if decoded.String("memo") != "hello" {
		t.Fatalf("got memo %q, want hello", decoded.String("memo"))
	}
	if !decoded.ObservedAt.Equal(observedAt) {
		t.Fatalf("got observedAt %s, want %s", decoded.ObservedAt, observedAt)
	}
	if decoded.ID() == "" {
		t.Fatal("empty event ID")
	}
}

func TestDecodeUnknownSelector(t *testing.T) {
	s := transferSchema(t)

	_, err := s.Decode(types.Log{
		Topics: []common.Hash{common.HexToHash("0xdead")},
	}, time.Now())
	if err == nil {
		t.Fatal("expected error for unknown selector")
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("got %T, want *DecodeError", err)
	}
}

func TestDecodeTopicCountMismatch(t *testing.T) {
	s := transferSchema(t)

	topic, _ := s.Topic("Deposited")
	_, err := s.Decode(types.Log{
		Topics: []common.Hash{topic}, // missing the indexed user topic
	}, time.Now())
	if err == nil {
		t.Fatal("expected error for missing indexed topic")
	}
}

func TestDecodeNoTopics(t *testing.T) {
	s := transferSchema(t)
	if _, err := s.Decode(types.Log{}, time.Now()); err == nil {
		t.Fatal("expected error for empty topics")
	}
}

func TestNewRejectsBadDeclarations(t *testing.T) {
	if _, err := New([]Event{{Name: "", Fields: nil}}); err == nil {
		t.Fatal("expected error for empty event name")
	}
	if _, err := New([]Event{
		{Name: "A", Fields: []Field{{Name: "x", Type: "uint256"}}},
		{Name: "A", Fields: []Field{{Name: "x", Type: "uint256"}}},
	}); err == nil {
		t.Fatal("expected error for duplicate event")
	}
	if _, err := New([]Event{
		{Name: "A", Fields: []Field{{Name: "x", Type: "not-a-type"}}},
	}); err == nil {
		t.Fatal("expected error for unknown field type")
	}
}

func TestTopicsCoverAllEvents(t *testing.T) {
	s := MustNew([]Event{
		{Name: "A", Fields: []Field{{Name: "x", Type: "uint256"}}},
		{Name: "B", Fields: []Field{{Name: "y", Type: "address", Indexed: true}}},
	})
	if got := len(s.Topics()); got != 2 {
		t.Fatalf("got %d topics, want 2", got)
	}
	if got := len(s.EventNames()); got != 2 {
		t.Fatalf("got %d event names, want 2", got)
	}
}
