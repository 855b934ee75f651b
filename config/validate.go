package config

import (
	"fmt"
	"strings"

	"flashreserve/crypto"
)

// Validate checks cross-field constraints the TOML decoder cannot express.
func (c *Config) Validate() error {
	if c.RPCAddress == "" {
		return fmt.Errorf("config: RPCAddress required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir required")
	}
	switch c.HistoryDriver {
	case "", DriverSQLite:
	case DriverPostgres:
		if strings.TrimSpace(c.HistoryDSN) == "" {
			return fmt.Errorf("config: HistoryDSN required for postgres")
		}
	default:
		return fmt.Errorf("config: unsupported HistoryDriver %q", c.HistoryDriver)
	}
	if c.RPC.RateLimitPerSecond < 0 || c.RPC.RateLimitBurst < 0 {
		return fmt.Errorf("rpc: rate limits must not be negative")
	}
	if c.RPC.MaxBodyBytes <= 0 {
		return fmt.Errorf("rpc: MaxBodyBytes <= 0")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio outside [0,1]")
	}

	assets := make(map[string]struct{}, len(c.Genesis.Assets))
	for _, asset := range c.Genesis.Assets {
		if asset.Symbol == "" {
			return fmt.Errorf("genesis: asset symbol required")
		}
		if _, dup := assets[asset.Symbol]; dup {
			return fmt.Errorf("genesis: asset %s listed twice", asset.Symbol)
		}
		assets[asset.Symbol] = struct{}{}
	}
	if _, ok := assets[c.Reserve.ReserveAsset]; !ok {
		return fmt.Errorf("reserve: ReserveAsset %q is not a genesis asset", c.Reserve.ReserveAsset)
	}
	if _, clash := assets[c.Reserve.ClaimToken]; clash {
		return fmt.Errorf("reserve: ClaimToken %q collides with a genesis asset", c.Reserve.ClaimToken)
	}
	for i, alloc := range c.Genesis.Allocations {
		if _, ok := assets[alloc.Symbol]; !ok {
			return fmt.Errorf("genesis: allocations[%d]: unknown asset %q", i, alloc.Symbol)
		}
		if _, err := crypto.DecodeAddress(alloc.Address); err != nil {
			return fmt.Errorf("genesis: allocations[%d]: %w", i, err)
		}
	}
	if _, _, err := c.Reserve.Resolve(); err != nil {
		return err
	}
	return nil
}
