// Package listener binds one contract address to a protocol aggregator: it
// decodes the raw log stream, drops replays, and folds events into the
// aggregator, surfacing alerts on a channel.
package listener

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"riskScope/internal/chain"
	"riskScope/internal/model"
	"riskScope/internal/protocol"
	"riskScope/internal/stream"
)

// AlertListenerFailed is emitted once when a listener gives up for good.
const AlertListenerFailed = "LISTENER_FAILED"

// Status is the listener lifecycle state.
type Status int

const (
	StatusStopped Status = iota
	StatusStarting
	StatusRunning
	StatusFailed
)

// String returns the status report name.
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config describes one listener binding.
type Config struct {
	Name       string
	Address    common.Address
	Aggregator protocol.Aggregator

	// Stream reconnect policy; zero fields take stream defaults.
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int

	DedupWindow int // remembered event IDs, default 4096
	AlertBuffer int // alert channel capacity, default 64
}

// Stats is an immutable snapshot of one listener's counters.
type Stats struct {
	Name             string
	Status           string
	EventsProcessed  uint64
	Duplicates       uint64
	DecodeFailures   uint64
	AggregatorErrors uint64
	LastEventAt      time.Time
	Protocol         interface{} // aggregator snapshot
}

// Listener runs one contract subscription end to end: raw logs in, decoded
// events through the dedup window into the aggregator, alerts out.
type Listener struct {
	cfg    Config
	client *chain.Client
	conn   *stream.Connection
	logger *zap.Logger
	alerts chan model.Alert

	mu               sync.Mutex
	status           Status
	dedup            *dedupWindow
	eventsProcessed  uint64
	duplicates       uint64
	decodeFailures   uint64
	aggregatorErrors uint64
	lastEventAt      time.Time

	wg      sync.WaitGroup
	stopped sync.Once
}

// New builds a listener over an already-dialed client.
func New(cfg Config, client *chain.Client, logger *zap.Logger) (*Listener, error) {
	if cfg.Aggregator == nil {
		return nil, fmt.Errorf("listener %s: nil aggregator", cfg.Name)
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Aggregator.Name()
	}
	if cfg.AlertBuffer <= 0 {
		cfg.AlertBuffer = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("listener", cfg.Name))

	conn := stream.NewConnection(stream.Config{
		Address:     cfg.Address,
		Topics:      cfg.Aggregator.Schema().Topics(),
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
		MaxAttempts: cfg.MaxAttempts,
	}, client, logger)

	return &Listener{
		cfg:    cfg,
		client: client,
		conn:   conn,
		logger: logger,
		alerts: make(chan model.Alert, cfg.AlertBuffer),
		dedup:  newDedupWindow(cfg.DedupWindow),
	}, nil
}

// Name returns the listener name.
func (l *Listener) Name() string { return l.cfg.Name }

// Alerts is the channel alerts are delivered on. It is closed after Stop (or
// a fatal failure) once the run loop has drained.
func (l *Listener) Alerts() <-chan model.Alert { return l.alerts }

// Start verifies the contract and launches the subscription loop. It returns
// an error only for fatal configuration problems; transport trouble after a
// successful start is absorbed by the reconnect policy.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.status != StatusStopped {
		l.mu.Unlock()
		return fmt.Errorf("listener %s: already started", l.cfg.Name)
	}
	l.status = StatusStarting
	l.mu.Unlock()

	if err := l.conn.Connect(ctx); err != nil {
		l.setStatus(StatusFailed)
		return fmt.Errorf("listener %s: %w", l.cfg.Name, err)
	}

	l.setStatus(StatusRunning)
	l.logger.Info("listener started", zap.String("address", l.cfg.Address.Hex()))

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer close(l.alerts)
		err := l.conn.Run(ctx, l.handleLog)
		if err != nil {
			l.setStatus(StatusFailed)
			l.logger.Error("listener failed", zap.Error(err))
			l.publish(model.Alert{
				Severity: model.SeverityCritical,
				Type:     AlertListenerFailed,
				Message:  fmt.Sprintf("Listener %s stopped: %v", l.cfg.Name, err),
				Data:     map[string]string{"listener": l.cfg.Name, "address": l.cfg.Address.Hex()},
			})
			return
		}
		l.setStatus(StatusStopped)
	}()
	return nil
}

// Backfill replays historical logs in [fromBlock, toBlock] through the same
// decode and dedup path as the live stream, so a subsequent live delivery of
// an already-backfilled event is dropped.
func (l *Listener) Backfill(ctx context.Context, fromBlock, toBlock uint64) error {
	logs, err := l.client.FilterLogs(ctx, fromBlock, toBlock, l.cfg.Address, l.cfg.Aggregator.Schema().Topics())
	if err != nil {
		return fmt.Errorf("listener %s: backfill: %w", l.cfg.Name, err)
	}
	l.logger.Info("backfill",
		zap.Uint64("from", fromBlock),
		zap.Uint64("to", toBlock),
		zap.Int("logs", len(logs)),
	)
	for _, lg := range logs {
		if lg.Removed {
			continue
		}
		l.handleLog(lg)
	}
	return nil
}

// HistoricalEvents fetches and decodes past occurrences of one event without
// touching the aggregator state.
func (l *Listener) HistoricalEvents(ctx context.Context, eventName string, fromBlock, toBlock uint64) ([]*model.ChainEvent, error) {
	sch := l.cfg.Aggregator.Schema()
	topic, ok := sch.Topic(eventName)
	if !ok {
		return nil, fmt.Errorf("listener %s: unknown event %s", l.cfg.Name, eventName)
	}
	logs, err := l.client.FilterLogs(ctx, fromBlock, toBlock, l.cfg.Address, []common.Hash{topic})
	if err != nil {
		return nil, fmt.Errorf("listener %s: query %s: %w", l.cfg.Name, eventName, err)
	}

	events := make([]*model.ChainEvent, 0, len(logs))
	for _, lg := range logs {
		if lg.Removed {
			continue
		}
		ev, err := sch.Decode(lg, time.Now())
		if err != nil {
			l.logger.Warn("historical decode failed", zap.Error(err))
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// handleLog is the single write path into the aggregator. Logs from backfill
// and from the live pump both land here, serialized by the mutex.
func (l *Listener) handleLog(lg types.Log) {
	ev, err := l.cfg.Aggregator.Schema().Decode(lg, time.Now())
	if err != nil {
		l.mu.Lock()
		l.decodeFailures++
		l.mu.Unlock()
		l.logger.Warn("decode failed",
			zap.Error(err),
			zap.String("tx", lg.TxHash.Hex()),
			zap.Uint("logIndex", lg.Index),
		)
		return
	}

	l.mu.Lock()
	if l.dedup.Observe(ev.ID()) {
		l.duplicates++
		l.mu.Unlock()
		return
	}
	alerts, err := l.cfg.Aggregator.Apply(ev)
	if err != nil {
		l.aggregatorErrors++
		l.mu.Unlock()
		l.logger.Warn("event skipped", zap.Error(err), zap.String("event", ev.Name))
		return
	}
	l.eventsProcessed++
	l.lastEventAt = ev.ObservedAt
	l.mu.Unlock()

	for _, alert := range alerts {
		l.publish(alert)
	}
}

// publish delivers an alert without ever blocking the log pump. A full channel
// means the consumer stalled; dropping here is preferable to backing up the
// subscription.
func (l *Listener) publish(alert model.Alert) {
	select {
	case l.alerts <- alert:
	default:
		l.logger.Warn("alert dropped, channel full",
			zap.String("type", alert.Type),
			zap.Stringer("severity", alert.Severity),
		)
	}
}

// Stats returns a snapshot of the counters plus the aggregator's own snapshot.
func (l *Listener) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Name:             l.cfg.Name,
		Status:           l.health(),
		EventsProcessed:  l.eventsProcessed,
		Duplicates:       l.duplicates,
		DecodeFailures:   l.decodeFailures,
		AggregatorErrors: l.aggregatorErrors,
		LastEventAt:      l.lastEventAt,
		Protocol:         l.cfg.Aggregator.Snapshot(),
	}
}

// health refines the lifecycle status with the transport state: a running
// listener whose subscription is mid-reconnect reports "reconnecting".
// Callers hold l.mu.
func (l *Listener) health() string {
	if l.status == StatusRunning && l.conn.State() != stream.StateConnected {
		return "reconnecting"
	}
	return l.status.String()
}

// ResetStats zeroes the counters and the aggregator state. The dedup window
// survives; forgetting seen IDs would double-count on the next replay.
func (l *Listener) ResetStats() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.eventsProcessed = 0
	l.duplicates = 0
	l.decodeFailures = 0
	l.aggregatorErrors = 0
	l.lastEventAt = time.Time{}
	l.cfg.Aggregator.Reset()
}

func (l *Listener) setStatus(s Status) {
	l.mu.Lock()
	l.status = s
	l.mu.Unlock()
}

// Stop tears the subscription down and waits for the run loop to exit. It is
// idempotent.
func (l *Listener) Stop() {
	l.stopped.Do(func() {
		l.conn.Close()
		l.wg.Wait()
	})
}
