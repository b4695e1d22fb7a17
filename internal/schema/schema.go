package schema

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Field declares one typed event argument. Type is a Solidity type name
// (uint256, address, bool, string, bytes32, uint24, uint8, ...).
type Field struct {
	Name    string
	Type    string
	Indexed bool
}

// Event declares one contract event: its name and ordered argument list.
type Event struct {
	Name   string
	Fields []Field
}

// Schema is a compiled set of event declarations for one contract family.
// It resolves raw log topics to declared events and drives decoding.
type Schema struct {
	events  map[string]abi.Event       // by name
	byTopic map[common.Hash]*abi.Event // by selector
}

// New compiles the declared events. Unknown field types fail construction;
// a schema is static configuration and must be valid before anything connects.
func New(decls []Event) (*Schema, error) {
	s := &Schema{
		events:  make(map[string]abi.Event, len(decls)),
		byTopic: make(map[common.Hash]*abi.Event, len(decls)),
	}

	for _, decl := range decls {
		if decl.Name == "" {
			return nil, fmt.Errorf("event name is required")
		}
		if _, dup := s.events[decl.Name]; dup {
			return nil, fmt.Errorf("duplicate event declaration: %s", decl.Name)
		}

		inputs := make(abi.Arguments, 0, len(decl.Fields))
		for _, field := range decl.Fields {
			typ, err := abi.NewType(field.Type, "", nil)
			if err != nil {
				return nil, fmt.Errorf("event %s field %s: %w", decl.Name, field.Name, err)
			}
			inputs = append(inputs, abi.Argument{
				Name:    field.Name,
				Type:    typ,
				Indexed: field.Indexed,
			})
		}

		ev := abi.NewEvent(decl.Name, decl.Name, false, inputs)
		s.events[decl.Name] = ev
		stored := ev
		s.byTopic[ev.ID] = &stored
	}

	return s, nil
}

// MustNew is New for static declarations that are known valid.
func MustNew(decls []Event) *Schema {
	s, err := New(decls)
	if err != nil {
		panic(err)
	}
	return s
}

// Topics returns the selector hash of every declared event, for subscription
// and backfill filters.
func (s *Schema) Topics() []common.Hash {
	topics := make([]common.Hash, 0, len(s.byTopic))
	for topic := range s.byTopic {
		topics = append(topics, topic)
	}
	return topics
}

// Topic returns the selector of one declared event.
func (s *Schema) Topic(eventName string) (common.Hash, bool) {
	ev, ok := s.events[eventName]
	if !ok {
		return common.Hash{}, false
	}
	return ev.ID, true
}

// EventNames returns the declared event names.
func (s *Schema) EventNames() []string {
	names := make([]string, 0, len(s.events))
	for name := range s.events {
		names = append(names, name)
	}
	return names
}
