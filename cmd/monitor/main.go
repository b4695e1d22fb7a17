package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"riskScope/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:          "monitor",
		Short:        "On-chain risk monitor",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the monitor",
		RunE:  runMonitor,
	}

	runCmd.Flags().String("rpc", "", "node RPC URL (websocket for live streams)")
	runCmd.Flags().String("amm-address", "", "AMM adapter contract address")
	runCmd.Flags().String("lending-address", "", "lending adapter contract address")
	runCmd.Flags().String("rates-address", "", "rate oracle contract address")
	runCmd.Flags().String("perps-address", "", "perpetuals adapter contract address")
	runCmd.Flags().String("treasury-address", "", "treasury asset factory contract address")
	runCmd.Flags().String("treasury-yield-address", "", "treasury yield distributor contract address")
	runCmd.Flags().String("rwa-yield-address", "", "RWA yield distributor contract address")
	runCmd.Flags().Uint64("backfill-from", 0, "replay history from this block before going live (0 disables)")
	runCmd.Flags().Duration("stats-interval", 60*time.Second, "stats report interval (0 disables)")
	runCmd.Flags().Duration("base-delay", time.Second, "initial reconnect delay")
	runCmd.Flags().Duration("max-delay", 30*time.Second, "reconnect delay cap")
	runCmd.Flags().Int("max-attempts", 10, "reconnect attempt budget")
	runCmd.Flags().Int("dedup-window", 4096, "remembered event IDs per listener")
	runCmd.Flags().Bool("console", false, "print alerts to stdout with colors")
	runCmd.Flags().StringSlice("kafka-brokers", nil, "Kafka brokers (comma-separated, empty disables)")
	runCmd.Flags().String("kafka-topic", "risk-alerts", "Kafka topic for alerts and stats")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN for position records (empty disables)")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, cfg, logger)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
