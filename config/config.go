package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"flashreserve/crypto"
	"flashreserve/native/reserve"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	RPCAddress            string `toml:"RPCAddress"`
	MetricsAddress        string `toml:"MetricsAddress"`
	DataDir               string `toml:"DataDir"`
	Environment           string `toml:"Environment"`
	AuthorityKeystorePath string `toml:"AuthorityKeystorePath"`
	// HistoryDriver selects the event journal backend; empty disables it.
	HistoryDriver string `toml:"HistoryDriver"`
	HistoryDSN    string `toml:"HistoryDSN"`

	Logging   Logging        `toml:"logging"`
	RPC       RPC            `toml:"rpc"`
	Telemetry Telemetry      `toml:"telemetry"`
	Genesis   Genesis        `toml:"genesis"`
	Reserve   reserve.Params `toml:"reserve"`
}

// Load reads the configuration at path. A missing file is replaced by a
// default configuration whose authority and treasury are a freshly generated
// key stored next to it.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config: unknown key %s in %s", undecoded[0], path)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the settings used for keys absent from the file.
func Default() *Config {
	return &Config{
		RPCAddress:     "127.0.0.1:8645",
		MetricsAddress: "",
		DataDir:        "./flash-data",
		Environment:    "local",
		HistoryDriver:  DriverSQLite,
		Logging:        Logging{Level: "info", MaxSizeMB: 100, MaxBackups: 5},
		RPC: RPC{
			RateLimitPerSecond: 20,
			RateLimitBurst:     40,
			MaxBodyBytes:       1 << 20,
			ReadHeaderTimeout:  5,
			WriteTimeout:       15,
			MaxSignatureAge:    120,
			FaucetAmount:       1_000_000,
		},
		Telemetry: Telemetry{Endpoint: "localhost:4318", Insecure: true, SampleRatio: 1},
		Genesis: Genesis{
			Assets: []Asset{{Symbol: "BASE", Name: "Base Asset", Decimals: 9}},
		},
		Reserve: reserve.DefaultParams(),
	}
}

func (c *Config) normalize() {
	c.RPCAddress = strings.TrimSpace(c.RPCAddress)
	c.MetricsAddress = strings.TrimSpace(c.MetricsAddress)
	c.HistoryDriver = strings.ToLower(strings.TrimSpace(c.HistoryDriver))
	for i := range c.Genesis.Assets {
		c.Genesis.Assets[i].Symbol = strings.ToUpper(strings.TrimSpace(c.Genesis.Assets[i].Symbol))
	}
	for i := range c.Genesis.Allocations {
		c.Genesis.Allocations[i].Symbol = strings.ToUpper(strings.TrimSpace(c.Genesis.Allocations[i].Symbol))
	}
	c.Reserve.ReserveAsset = strings.ToUpper(strings.TrimSpace(c.Reserve.ReserveAsset))
	c.Reserve.ClaimToken = strings.ToUpper(strings.TrimSpace(c.Reserve.ClaimToken))
	if c.HistoryDriver == DriverSQLite && strings.TrimSpace(c.HistoryDSN) == "" {
		c.HistoryDSN = filepath.Join(c.DataDir, "history.db")
	}
}

// LevelDBPath is where the ledger lives inside DataDir.
func (c *Config) LevelDBPath() string {
	return filepath.Join(c.DataDir, "ledger")
}

func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	keystorePath := filepath.Join(filepath.Dir(path), "authority.keystore")
	if err := crypto.SaveToKeystore(keystorePath, key, "", crypto.StandardCost); err != nil {
		return nil, err
	}

	cfg := Default()
	cfg.AuthorityKeystorePath = keystorePath
	authority := key.PubKey().Address().String()
	cfg.Reserve.Authority = authority
	cfg.Reserve.Treasury = authority
	cfg.normalize()

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
