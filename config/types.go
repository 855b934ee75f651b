package config

// Asset registers a base token in the ledger at genesis.
type Asset struct {
	Symbol   string `toml:"Symbol"`
	Name     string `toml:"Name"`
	Decimals uint8  `toml:"Decimals"`
}

// Allocation credits an account at genesis.
type Allocation struct {
	Address string `toml:"Address"`
	Symbol  string `toml:"Symbol"`
	Amount  uint64 `toml:"Amount"`
}

// Genesis lists the ledger contents written when the data directory is empty.
type Genesis struct {
	Assets      []Asset      `toml:"assets"`
	Allocations []Allocation `toml:"allocations"`
}

// RPC holds the HTTP API limits.
type RPC struct {
	RateLimitPerSecond float64 `toml:"RateLimitPerSecond"`
	RateLimitBurst     int     `toml:"RateLimitBurst"`
	MaxBodyBytes       int64   `toml:"MaxBodyBytes"`
	ReadHeaderTimeout  int     `toml:"ReadHeaderTimeout"`
	WriteTimeout       int     `toml:"WriteTimeout"`
	// MaxSignatureAge bounds the skew, in seconds, between a signed request's
	// timestamp and the server clock.
	MaxSignatureAge int `toml:"MaxSignatureAge"`
	// Faucet enables POST /v1/faucet for development networks.
	Faucet       bool   `toml:"Faucet"`
	FaucetAmount uint64 `toml:"FaucetAmount"`
}

// Telemetry configures OTLP export.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint"`
	Headers     string  `toml:"Headers"`
	Insecure    bool    `toml:"Insecure"`
	Metrics     bool    `toml:"Metrics"`
	Traces      bool    `toml:"Traces"`
	SampleRatio float64 `toml:"SampleRatio"`
}

// Logging configures the process logger.
type Logging struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
}
