package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"riskScope/internal/chain"
	"riskScope/internal/config"
	"riskScope/internal/listener"
	"riskScope/internal/monitor"
	"riskScope/internal/protocol"
	"riskScope/internal/sink"
	"riskScope/internal/storage"
	"riskScope/internal/storage/postgres"
)

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}
	logger.Info("connected", zap.String("chain_id", chainID.String()))

	var positions storage.PositionStore
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		positions = store
	}

	out, err := buildSink(cfg, logger)
	if err != nil {
		return err
	}
	defer out.Close()

	listeners, err := buildListeners(cfg, chainClient, positions, logger)
	if err != nil {
		return err
	}
	if len(listeners) == 0 {
		return fmt.Errorf("no listeners configured")
	}

	orch := monitor.New(monitor.Config{
		StatsInterval: cfg.StatsInterval,
		BackfillFrom:  cfg.BackfillFrom,
	}, chainClient, listeners, out, logger)

	return orch.Run(ctx)
}

func buildSink(cfg config.Config, logger *zap.Logger) (sink.Sink, error) {
	sinks := []sink.Sink{sink.NewZapSink(logger)}
	if cfg.Console {
		sinks = append(sinks, sink.NewConsoleSink())
	}
	if len(cfg.KafkaBrokers) > 0 {
		ks, err := sink.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic, nil)
		if err != nil {
			return nil, fmt.Errorf("connect kafka: %w", err)
		}
		sinks = append(sinks, ks)
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return sink.NewMulti(sinks...), nil
}

func buildListeners(cfg config.Config, client *chain.Client, positions storage.PositionStore, logger *zap.Logger) ([]*listener.Listener, error) {
	type binding struct {
		address    string
		aggregator protocol.Aggregator
	}
	bindings := []binding{
		{cfg.AMMAddress, protocol.NewAMMAggregator(protocol.DefaultAMMThresholds(), logger)},
		{cfg.LendingAddress, protocol.NewLendingAggregator(protocol.DefaultLendingThresholds(), logger)},
		{cfg.RatesAddress, protocol.NewRatesAggregator(protocol.DefaultRatesThresholds(), logger)},
		{cfg.PerpsAddress, protocol.NewPerpsAggregator(protocol.DefaultPerpsThresholds(), positions, logger)},
		{cfg.TreasuryAddress, protocol.NewTreasuryAggregator(protocol.DefaultTreasuryThresholds(), logger)},
		{cfg.TreasuryYieldAddress, protocol.NewTreasuryYieldAggregator(protocol.DefaultTreasuryYieldThresholds(), logger)},
		{cfg.RWAYieldAddress, protocol.NewRWAYieldAggregator(protocol.DefaultRWAYieldThresholds(), logger)},
	}

	var listeners []*listener.Listener
	for _, b := range bindings {
		if b.address == "" {
			continue
		}
		l, err := listener.New(listener.Config{
			Address:     common.HexToAddress(b.address),
			Aggregator:  b.aggregator,
			BaseDelay:   cfg.BaseDelay,
			MaxDelay:    cfg.MaxDelay,
			MaxAttempts: cfg.MaxAttempts,
			DedupWindow: cfg.DedupWindow,
		}, client, logger)
		if err != nil {
			return nil, err
		}
		listeners = append(listeners, l)
	}
	return listeners, nil
}
