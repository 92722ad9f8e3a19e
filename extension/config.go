package extension

import "time"

// Store drivers understood by Config.StoreDriver.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config holds the Drip extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.drip" or "drip" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// SelfAddress is the ledger's own address (default: "drip").
	SelfAddress string `json:"self_address" mapstructure:"self_address" yaml:"self_address"`

	// InitialFee is the protocol fee percentage applied on first start, when
	// the store holds no fee yet.
	InitialFee string `json:"initial_fee" mapstructure:"initial_fee" yaml:"initial_fee"`

	// Admins may update the fee and take earnings.
	Admins []string `json:"admins" mapstructure:"admins" yaml:"admins"`

	// YieldAssets are the assets approved for compounding streams.
	YieldAssets []string `json:"yield_assets" mapstructure:"yield_assets" yaml:"yield_assets"`

	// HookTimeout bounds each plugin hook call (default: 5s).
	HookTimeout time.Duration `json:"hook_timeout" mapstructure:"hook_timeout" yaml:"hook_timeout"`

	// StoreDriver selects the store built when none is set programmatically:
	// memory, postgres or mongo (default: memory).
	StoreDriver string `json:"store_driver" mapstructure:"store_driver" yaml:"store_driver"`

	// StoreDSN is the postgres DSN or mongo URI.
	StoreDSN string `json:"store_dsn" mapstructure:"store_dsn" yaml:"store_dsn"`

	// StoreDatabase names the mongo database (default: "drip").
	StoreDatabase string `json:"store_database" mapstructure:"store_database" yaml:"store_database"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SelfAddress:   "drip",
		HookTimeout:   5 * time.Second,
		StoreDriver:   DriverMemory,
		StoreDatabase: "drip",
	}
}
