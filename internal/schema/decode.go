package schema

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"

	"riskScope/internal/model"
)

// DecodeError reports a raw log that could not be mapped onto the schema.
// It is a data-quality signal: callers count it and move on.
type DecodeError struct {
	Event  string
	Topic0 string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Event != "" {
		return fmt.Sprintf("decode %s: %s", e.Event, e.Reason)
	}
	return fmt.Sprintf("decode topic %s: %s", e.Topic0, e.Reason)
}

// Decode maps a raw log onto the schema, producing a typed ChainEvent. It is a
// pure function of (schema, log); observedAt is stamped by the caller at
// ingestion time. A log whose topic0 matches no declared event, or whose
// payload does not parse against the declared types, fails with a DecodeError.
func (s *Schema) Decode(log types.Log, observedAt time.Time) (*model.ChainEvent, error) {
	if len(log.Topics) == 0 {
		return nil, &DecodeError{Reason: "log has no topics"}
	}

	ev, ok := s.byTopic[log.Topics[0]]
	if !ok {
		return nil, &DecodeError{Topic0: log.Topics[0].Hex(), Reason: "unknown event selector"}
	}

	args := make(map[string]interface{}, len(ev.Inputs))

	indexed := make(abi.Arguments, 0, len(ev.Inputs))
	for _, input := range ev.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	if len(log.Topics)-1 != len(indexed) {
		return nil, &DecodeError{
			Event:  ev.Name,
			Reason: fmt.Sprintf("expected %d indexed topics, got %d", len(indexed), len(log.Topics)-1),
		}
	}
	if err := abi.ParseTopicsIntoMap(args, indexed, log.Topics[1:]); err != nil {
		return nil, &DecodeError{Event: ev.Name, Reason: err.Error()}
	}

	if err := ev.Inputs.NonIndexed().UnpackIntoMap(args, log.Data); err != nil {
		return nil, &DecodeError{Event: ev.Name, Reason: err.Error()}
	}

	return &model.ChainEvent{
		Contract:    log.Address,
		Name:        ev.Name,
		Args:        args,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		TxHash:      log.TxHash,
		LogIndex:    log.Index,
		ObservedAt:  observedAt,
	}, nil
}
