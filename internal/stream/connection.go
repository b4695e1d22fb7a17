package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"riskScope/internal/chain"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateGivenUp
)

// String returns the state's log name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateGivenUp:
		return "given_up"
	default:
		return "unknown"
	}
}

// ErrNoContractCode means the configured address has no deployed bytecode.
// This is a fatal configuration error and is never retried.
var ErrNoContractCode = errors.New("no contract code at address")

// ErrReconnectExhausted means the reconnect attempt budget ran out.
var ErrReconnectExhausted = errors.New("reconnect attempts exhausted")

// Config controls one logical subscription.
type Config struct {
	Address     common.Address
	Topics      []common.Hash
	BaseDelay   time.Duration // first reconnect delay, default 1s
	MaxDelay    time.Duration // delay cap, default 30s
	MaxAttempts int           // reconnect budget, default 10
	BufferSize  int           // raw log channel buffer, default 256
}

func (c Config) withDefaults() Config {
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 256
	}
	return c
}

// Connection owns one logical log subscription to a chain node and
// re-establishes it transparently on transport failure. Transport errors are
// absorbed by the reconnect policy; only an exhausted attempt budget surfaces
// to the caller.
type Connection struct {
	cfg    Config
	client *chain.Client
	logger *zap.Logger

	mu     sync.Mutex
	state  State
	closed bool
	cancel context.CancelFunc
}

// NewConnection builds a Connection over an already-dialed client.
func NewConnection(cfg Config, client *chain.Client, logger *zap.Logger) *Connection {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connection{
		cfg:    cfg.withDefaults(),
		client: client,
		logger: logger,
	}
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) setState(next State) {
	c.mu.Lock()
	prev := c.state
	c.state = next
	c.mu.Unlock()
	if prev != next {
		c.logger.Info("connection state",
			zap.Stringer("from", prev),
			zap.Stringer("to", next),
			zap.String("address", c.cfg.Address.Hex()),
		)
	}
}

// Connect verifies the target contract exists. An address with empty bytecode
// is a configuration error, not a transport failure, so it fails fast.
func (c *Connection) Connect(ctx context.Context) error {
	code, err := c.client.CodeAt(ctx, c.cfg.Address)
	if err != nil {
		return err
	}
	if len(code) == 0 {
		return ErrNoContractCode
	}
	return nil
}

// Run subscribes and delivers every matching raw log to handler, one at a time
// in arrival order, until the context is cancelled, Close is called, or the
// reconnect budget is exhausted. Returns nil on cancellation/close and
// ErrReconnectExhausted on give-up.
func (c *Connection) Run(ctx context.Context, handler func(types.Log)) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	attempt := 0
	for {
		c.setState(StateConnecting)

		logs := make(chan types.Log, c.cfg.BufferSize)
		sub, err := c.client.SubscribeLogs(runCtx, c.cfg.Address, c.cfg.Topics, logs)
		if err != nil {
			if runCtx.Err() != nil {
				c.setState(StateDisconnected)
				return nil
			}
			attempt++
			if attempt > c.cfg.MaxAttempts {
				c.logger.Error("reconnect budget exhausted",
					zap.String("address", c.cfg.Address.Hex()),
					zap.Int("attempts", c.cfg.MaxAttempts),
				)
				c.setState(StateGivenUp)
				return ErrReconnectExhausted
			}
			delay := backoffDelay(attempt, c.cfg.BaseDelay, c.cfg.MaxDelay)
			c.logger.Warn("subscribe failed, retrying",
				zap.Error(err),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)
			if !c.sleep(runCtx, delay) {
				c.setState(StateDisconnected)
				return nil
			}
			continue
		}

		c.setState(StateConnected)
		attempt = 0

		if !c.pump(runCtx, sub.Err(), logs, handler) {
			sub.Unsubscribe()
			c.setState(StateDisconnected)
			return nil
		}
		sub.Unsubscribe()
		c.setState(StateDisconnected)
	}
}

// pump drains the subscription until a transport error (returns true, caller
// reconnects) or cancellation (returns false).
func (c *Connection) pump(ctx context.Context, errs <-chan error, logs <-chan types.Log, handler func(types.Log)) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case err := <-errs:
			c.logger.Warn("subscription dropped",
				zap.Error(err),
				zap.String("address", c.cfg.Address.Hex()),
			)
			return true
		case log := <-logs:
			if log.Removed {
				// reorg'd log; best-effort monitoring skips it
				continue
			}
			handler(log)
		}
	}
}

// sleep waits for d or cancellation; returns false if cancelled.
func (c *Connection) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Close aborts the run loop, including a pending backoff wait. It is
// idempotent and safe to call from any state.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
}
