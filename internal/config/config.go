package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL string

	// Monitored contract addresses, one per protocol family. Empty entries
	// disable that listener.
	AMMAddress           string
	LendingAddress       string
	RatesAddress         string
	PerpsAddress         string
	TreasuryAddress      string
	TreasuryYieldAddress string
	RWAYieldAddress      string

	BackfillFrom  uint64
	StatsInterval time.Duration

	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
	DedupWindow int

	Console      bool
	KafkaBrokers []string
	KafkaTopic   string
	PGDSN        string
	LogLevel     string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("stats-interval", 60*time.Second)
	v.SetDefault("base-delay", time.Second)
	v.SetDefault("max-delay", 30*time.Second)
	v.SetDefault("max-attempts", 10)
	v.SetDefault("dedup-window", 4096)
	v.SetDefault("kafka-topic", "risk-alerts")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:               v.GetString("rpc"),
		AMMAddress:           v.GetString("amm-address"),
		LendingAddress:       v.GetString("lending-address"),
		RatesAddress:         v.GetString("rates-address"),
		PerpsAddress:         v.GetString("perps-address"),
		TreasuryAddress:      v.GetString("treasury-address"),
		TreasuryYieldAddress: v.GetString("treasury-yield-address"),
		RWAYieldAddress:      v.GetString("rwa-yield-address"),
		BackfillFrom:         v.GetUint64("backfill-from"),
		StatsInterval:        v.GetDuration("stats-interval"),
		BaseDelay:            v.GetDuration("base-delay"),
		MaxDelay:             v.GetDuration("max-delay"),
		MaxAttempts:          v.GetInt("max-attempts"),
		DedupWindow:          v.GetInt("dedup-window"),
		Console:              v.GetBool("console"),
		KafkaBrokers:         getStringSlice(v, "kafka-brokers"),
		KafkaTopic:           v.GetString("kafka-topic"),
		PGDSN:                v.GetString("pg-dsn"),
		LogLevel:             v.GetString("log-level"),
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	for name, addr := range map[string]string{
		"amm-address":            c.AMMAddress,
		"lending-address":        c.LendingAddress,
		"rates-address":          c.RatesAddress,
		"perps-address":          c.PerpsAddress,
		"treasury-address":       c.TreasuryAddress,
		"treasury-yield-address": c.TreasuryYieldAddress,
		"rwa-yield-address":      c.RWAYieldAddress,
	} {
		if addr != "" && !common.IsHexAddress(addr) {
			return fmt.Errorf("%s: invalid address %q", name, addr)
		}
	}
	if c.AMMAddress == "" && c.LendingAddress == "" && c.RatesAddress == "" &&
		c.PerpsAddress == "" && c.TreasuryAddress == "" &&
		c.TreasuryYieldAddress == "" && c.RWAYieldAddress == "" {
		return fmt.Errorf("at least one contract address is required")
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
