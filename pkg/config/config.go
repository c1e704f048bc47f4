// Package config loads engine configuration from environment variables,
// optionally overlaid by a YAML profile.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds engine configuration. Monetary values are int64 minor units.
type Config struct {
	Owner                string `yaml:"owner"`
	FoundingAirline      string `yaml:"founding_airline"`
	QuorumSize           int    `yaml:"quorum_size"`
	MultiplierNum        int64  `yaml:"multiplier_num"`
	MultiplierDen        int64  `yaml:"multiplier_den"`
	RegistrationFeeMinor int64  `yaml:"registration_fee_minor"`
	FundingMinor         int64  `yaml:"funding_minor"`
	PremiumCapMinor      int64  `yaml:"premium_cap_minor"`
	LabelSpace           int    `yaml:"label_space"`
	PayoutExpression     string `yaml:"payout_expression"`
	OracleRatePerSec     int    `yaml:"oracle_rate_per_sec"` // 0 disables limiting
	OracleBurst          int    `yaml:"oracle_burst"`
	OracleAgents         int    `yaml:"oracle_agents"`
	RedisAddr            string `yaml:"redis_addr"` // empty disables Redis broadcast
	SQLitePath           string `yaml:"sqlite_path"`
	LogLevel             string `yaml:"log_level"`
}

// Load builds a Config from environment variables with defaults.
func Load() *Config {
	c := &Config{
		Owner:                getEnv("SURETY_OWNER", "owner"),
		FoundingAirline:      getEnv("SURETY_FOUNDING_AIRLINE", "founding-airline"),
		QuorumSize:           getEnvInt("SURETY_QUORUM", 3),
		MultiplierNum:        int64(getEnvInt("SURETY_MULTIPLIER_NUM", 3)),
		MultiplierDen:        int64(getEnvInt("SURETY_MULTIPLIER_DEN", 2)),
		RegistrationFeeMinor: int64(getEnvInt("SURETY_REGISTRATION_FEE", 100_000)),
		FundingMinor:         int64(getEnvInt("SURETY_FUNDING", 1_000_000)),
		PremiumCapMinor:      int64(getEnvInt("SURETY_PREMIUM_CAP", 100_000)),
		LabelSpace:           getEnvInt("SURETY_LABEL_SPACE", 10),
		PayoutExpression:     getEnv("SURETY_PAYOUT_EXPRESSION", ""),
		OracleRatePerSec:     getEnvInt("SURETY_ORACLE_RATE", 0),
		OracleBurst:          getEnvInt("SURETY_ORACLE_BURST", 8),
		OracleAgents:         getEnvInt("SURETY_ORACLE_AGENTS", 20),
		RedisAddr:            getEnv("SURETY_REDIS_ADDR", ""),
		SQLitePath:           getEnv("SURETY_SQLITE_PATH", ""),
		LogLevel:             getEnv("SURETY_LOG_LEVEL", "INFO"),
	}
	return c
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.QuorumSize < 1 {
		return fmt.Errorf("quorum size %d: must be at least 1", c.QuorumSize)
	}
	if c.MultiplierDen == 0 {
		return fmt.Errorf("multiplier denominator must be nonzero")
	}
	if c.MultiplierNum < c.MultiplierDen {
		return fmt.Errorf("multiplier %d/%d pays out less than the premium",
			c.MultiplierNum, c.MultiplierDen)
	}
	if c.LabelSpace < 3 {
		return fmt.Errorf("label space %d cannot seat an oracle's 3 labels", c.LabelSpace)
	}
	if c.PremiumCapMinor <= 0 {
		return fmt.Errorf("premium cap must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
