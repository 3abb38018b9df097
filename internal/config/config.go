// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration, read from the environment. A .env
// file is honored via godotenv autoload in cmd.
type Config struct {
	LedgerRPCURL string `env:"LEDGER_RPC_URL" envDefault:"http://localhost:8545/rpc"`
	EventFeedURL string `env:"LEDGER_FEED_URL" envDefault:"ws://localhost:8546/events"`

	ChainID       string `env:"CHAIN_ID" envDefault:"0x128"`
	ChainName     string `env:"CHAIN_NAME" envDefault:"Hedera Testnet"`
	ChainSymbol   string `env:"CHAIN_SYMBOL" envDefault:"HBAR"`
	ChainDecimals int    `env:"CHAIN_DECIMALS" envDefault:"8"`
	ChainRPCURL   string `env:"CHAIN_RPC_URL" envDefault:"https://296.rpc.thirdweb.com/"`

	ConfirmWindow  time.Duration `env:"CONFIRM_WINDOW" envDefault:"45s"`
	FeedRetryDelay time.Duration `env:"FEED_RETRY_DELAY" envDefault:"2s"`

	// Optional action-history queue; empty addr disables the recorder.
	RedisAddr    string `env:"REDIS_ADDR"`
	RedisDB      int    `env:"REDIS_DB" envDefault:"0"`
	HistoryQueue string `env:"HISTORY_QUEUE_NAME"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
