// Package config содержит логику чтения конфигурации сервиса учёта персонала.
package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mmeshcher/staffledger/internal/ledger"
	"github.com/mmeshcher/staffledger/internal/model"
)

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	NodeAddress string `env:"NODE_ADDRESS"`
	AuthSecret  string `env:"AUTH_SECRET"`

	RedisURL    string `env:"REDIS_URL"`
	AuditStream string `env:"AUDIT_STREAM" envDefault:"staffledger:audit"`

	AdminPrincipals []string `env:"ADMIN_PRINCIPALS" envSeparator:","`
	LogLevel        string   `env:"LOG_LEVEL" envDefault:"info"`

	DepositMin        int64 `env:"DEPOSIT_MIN" envDefault:"100"`
	DepositMax        int64 `env:"DEPOSIT_MAX" envDefault:"10000"`
	RewardRateBPS     int64 `env:"REWARD_RATE_BPS" envDefault:"200"`
	WithdrawalMin     int64 `env:"WITHDRAWAL_MIN" envDefault:"100"`
	WithdrawalCeiling int64 `env:"WITHDRAWAL_CEILING" envDefault:"10000"`
	CooldownBlocks    int64 `env:"COOLDOWN_BLOCKS" envDefault:"100"`
	SnapshotRetention int   `env:"SNAPSHOT_RETENTION" envDefault:"50"`

	// Используются для вычисления высоты по часам, если NodeAddress не задан.
	BlockInterval time.Duration `env:"BLOCK_INTERVAL" envDefault:"10m"`
	GenesisTime   time.Time     `env:"GENESIS_TIME" envDefault:"2021-01-14T17:00:00Z"`

	HeightPollInterval time.Duration `env:"HEIGHT_POLL_INTERVAL" envDefault:"30s"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envNodeAddress := cfg.NodeAddress
	envAuthSecret := cfg.AuthSecret

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.NodeAddress, "n", "", "blockchain node address")
	flag.StringVar(&cfg.AuthSecret, "s", "", "token signing secret")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envNodeAddress != "" {
		cfg.NodeAddress = envNodeAddress
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	if err := cfg.Limits().Validate(); err != nil {
		return nil, fmt.Errorf("invalid limits: %w", err)
	}
	if cfg.HeightPollInterval <= 0 {
		return nil, fmt.Errorf("height poll interval must be positive, got %s", cfg.HeightPollInterval)
	}

	return cfg, nil
}

// Limits собирает числовые параметры протокола.
func (c *Config) Limits() ledger.Limits {
	return ledger.Limits{
		DepositMin:        c.DepositMin,
		DepositMax:        c.DepositMax,
		RewardRateBPS:     c.RewardRateBPS,
		WithdrawalMin:     c.WithdrawalMin,
		WithdrawalCeiling: c.WithdrawalCeiling,
		CooldownBlocks:    c.CooldownBlocks,
		SnapshotRetention: c.SnapshotRetention,
	}
}

// ErrNoAuthSecret возвращается, если секрет подписи токенов не задан.
var ErrNoAuthSecret = errors.New("AUTH_SECRET (-s) is required to verify tokens issued by stafftoken")

// Secret возвращает секрет подписи токенов или ErrNoAuthSecret.
func (c *Config) Secret() (string, error) {
	s := strings.TrimSpace(c.AuthSecret)
	if s == "" {
		return "", ErrNoAuthSecret
	}
	return s, nil
}

// Admins возвращает список начальных администраторов.
func (c *Config) Admins() []model.Principal {
	admins := make([]model.Principal, 0, len(c.AdminPrincipals))
	for _, p := range c.AdminPrincipals {
		if p = strings.TrimSpace(p); p != "" {
			admins = append(admins, model.Principal(p))
		}
	}
	return admins
}
