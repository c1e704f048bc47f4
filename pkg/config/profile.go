package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadProfile overlays base with values from a YAML profile file. Zero-value
// fields in the profile leave the base value untouched.
func LoadProfile(base *Config, path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", path, err)
	}

	var overlay Config
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}

	merged := *base
	if overlay.Owner != "" {
		merged.Owner = overlay.Owner
	}
	if overlay.FoundingAirline != "" {
		merged.FoundingAirline = overlay.FoundingAirline
	}
	if overlay.QuorumSize != 0 {
		merged.QuorumSize = overlay.QuorumSize
	}
	if overlay.MultiplierNum != 0 {
		merged.MultiplierNum = overlay.MultiplierNum
	}
	if overlay.MultiplierDen != 0 {
		merged.MultiplierDen = overlay.MultiplierDen
	}
	if overlay.RegistrationFeeMinor != 0 {
		merged.RegistrationFeeMinor = overlay.RegistrationFeeMinor
	}
	if overlay.FundingMinor != 0 {
		merged.FundingMinor = overlay.FundingMinor
	}
	if overlay.PremiumCapMinor != 0 {
		merged.PremiumCapMinor = overlay.PremiumCapMinor
	}
	if overlay.LabelSpace != 0 {
		merged.LabelSpace = overlay.LabelSpace
	}
	if overlay.PayoutExpression != "" {
		merged.PayoutExpression = overlay.PayoutExpression
	}
	if overlay.OracleRatePerSec != 0 {
		merged.OracleRatePerSec = overlay.OracleRatePerSec
	}
	if overlay.OracleBurst != 0 {
		merged.OracleBurst = overlay.OracleBurst
	}
	if overlay.OracleAgents != 0 {
		merged.OracleAgents = overlay.OracleAgents
	}
	if overlay.RedisAddr != "" {
		merged.RedisAddr = overlay.RedisAddr
	}
	if overlay.SQLitePath != "" {
		merged.SQLitePath = overlay.SQLitePath
	}
	if overlay.LogLevel != "" {
		merged.LogLevel = overlay.LogLevel
	}
	return &merged, nil
}
