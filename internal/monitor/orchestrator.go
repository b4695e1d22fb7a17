// Package monitor runs the full set of listeners as one unit: shared chain
// client, optional historical backfill, alert fan-in to the sinks, and a
// periodic stats report.
package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"riskScope/internal/chain"
	"riskScope/internal/listener"
	"riskScope/internal/sink"
)

// Config controls the orchestrator.
type Config struct {
	// StatsInterval is how often each listener's snapshot is published.
	// Zero disables the report.
	StatsInterval time.Duration

	// BackfillFrom, when non-zero, replays history from this block up to the
	// chain head through every listener before the live streams start.
	BackfillFrom uint64
}

// Orchestrator owns the listeners and pumps their alerts into the sinks.
type Orchestrator struct {
	cfg       Config
	client    *chain.Client
	listeners []*listener.Listener
	out       sink.Sink
	logger    *zap.Logger
}

// New builds an orchestrator. The sink must not be nil; pass a ZapSink for
// log-only operation.
func New(cfg Config, client *chain.Client, listeners []*listener.Listener, out sink.Sink, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:       cfg,
		client:    client,
		listeners: listeners,
		out:       out,
		logger:    logger,
	}
}

// Run blocks until the context is cancelled or a listener fails fatally at
// startup. Alerts flow to the sink for the whole lifetime; listeners are
// stopped and drained before Run returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.cfg.BackfillFrom > 0 {
		if err := o.backfill(ctx); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, l := range o.listeners {
		if err := l.Start(gctx); err != nil {
			o.stopAll()
			return fmt.Errorf("start %s: %w", l.Name(), err)
		}
	}
	o.logger.Info("monitor running", zap.Int("listeners", len(o.listeners)))

	for _, l := range o.listeners {
		l := l
		g.Go(func() error {
			for alert := range l.Alerts() {
				if err := o.out.PublishAlert(gctx, alert); err != nil {
					o.logger.Warn("alert publish failed",
						zap.Error(err),
						zap.String("listener", l.Name()),
						zap.String("type", alert.Type),
					)
				}
			}
			return nil
		})
	}

	if o.cfg.StatsInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(o.cfg.StatsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					o.publishStats(gctx)
				}
			}
		})
	}

	<-gctx.Done()
	o.stopAll()
	err := g.Wait()
	o.logger.Info("monitor stopped")
	return err
}

// backfill replays history through every listener before the live streams
// start; the shared dedup window keeps the overlap from double-counting.
func (o *Orchestrator) backfill(ctx context.Context) error {
	head, err := o.client.LatestBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("backfill: latest block: %w", err)
	}
	if o.cfg.BackfillFrom > head {
		return fmt.Errorf("backfill: from block %d is past head %d", o.cfg.BackfillFrom, head)
	}
	for _, l := range o.listeners {
		if err := l.Backfill(ctx, o.cfg.BackfillFrom, head); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) publishStats(ctx context.Context) {
	for _, l := range o.listeners {
		stats := l.Stats()
		if err := o.out.PublishStats(ctx, stats.Name, stats); err != nil {
			o.logger.Warn("stats publish failed",
				zap.Error(err),
				zap.String("listener", stats.Name),
			)
		}
	}
}

// Stats returns a snapshot of every listener.
func (o *Orchestrator) Stats() []listener.Stats {
	out := make([]listener.Stats, 0, len(o.listeners))
	for _, l := range o.listeners {
		out = append(out, l.Stats())
	}
	return out
}

func (o *Orchestrator) stopAll() {
	for _, l := range o.listeners {
		l.Stop()
	}
}
