package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"riskScope/internal/model"
)

// Envelope is the wire frame for every Kafka message.
type Envelope struct {
	Type string          `json:"type"` // "alert" or "stats"
	TS   int64           `json:"ts"`   // unix milli
	Data json.RawMessage `json:"data"`
}

type alertRecord struct {
	Severity string            `json:"severity"`
	Type     string            `json:"type"`
	Message  string            `json:"message"`
	Event    string            `json:"event,omitempty"`
	TxHash   string            `json:"txHash,omitempty"`
	Block    uint64            `json:"block,omitempty"`
	LogIndex uint              `json:"logIndex,omitempty"`
	Data     map[string]string `json:"data,omitempty"`
}

type statsRecord struct {
	Listener string      `json:"listener"`
	Snapshot interface{} `json:"snapshot"`
}

// KafkaSink publishes alerts and stats to one Kafka topic as JSON envelopes.
type KafkaSink struct {
	topic string
	p     sarama.SyncProducer
}

// NewKafkaSink dials the brokers and builds a synchronous producer sink.
func NewKafkaSink(brokers []string, topic string, cfg *sarama.Config) (*KafkaSink, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return &KafkaSink{topic: topic, p: p}, nil
}

func (s *KafkaSink) PublishAlert(_ context.Context, alert model.Alert) error {
	rec := alertRecord{
		Severity: alert.Severity.String(),
		Type:     alert.Type,
		Message:  alert.Message,
		Data:     alert.Data,
	}
	if alert.Source != nil {
		rec.Event = alert.Source.Name
		rec.TxHash = alert.Source.TxHash.Hex()
		rec.Block = alert.Source.BlockNumber
		rec.LogIndex = alert.Source.LogIndex
	}
	return s.emit("alert", rec, alert.Type)
}

func (s *KafkaSink) PublishStats(_ context.Context, listener string, snapshot interface{}) error {
	return s.emit("stats", statsRecord{Listener: listener, Snapshot: snapshot}, listener)
}

// emit wraps v in an Envelope and sends it keyed by key, so alerts of one
// type and stats of one listener stay ordered within a partition.
func (s *KafkaSink) emit(typ string, v interface{}, key string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b, err := json.Marshal(Envelope{Type: typ, TS: time.Now().UnixMilli(), Data: data})
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(b),
	}
	if _, _, err := s.p.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka publish failed: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	if s.p != nil {
		return s.p.Close()
	}
	return nil
}
