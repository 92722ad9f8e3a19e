package extension

import (
	"time"

	"github.com/xraph/drip"
	"github.com/xraph/drip/gateway"
	"github.com/xraph/drip/plugin"
	"github.com/xraph/drip/store"
)

// Option configures the Drip Forge extension.
type Option func(*Extension)

// WithStore sets the store for the ledger engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGateway sets the gateway that moves assets for the ledger.
func WithGateway(g gateway.Gateway) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, drip.WithGateway(g))
	}
}

// WithLedgerOption passes a drip.Option through to the underlying engine.
func WithLedgerOption(opt drip.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers a ledger plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, drip.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithAdmins sets the admin principals.
func WithAdmins(admins ...string) Option {
	return func(e *Extension) { e.config.Admins = append(e.config.Admins, admins...) }
}

// WithYieldAssets sets the assets approved for compounding.
func WithYieldAssets(assets ...string) Option {
	return func(e *Extension) { e.config.YieldAssets = append(e.config.YieldAssets, assets...) }
}

// WithInitialFee sets the fee applied on first start.
func WithInitialFee(fee string) Option {
	return func(e *Extension) { e.config.InitialFee = fee }
}

// WithHookTimeout bounds each plugin hook call.
func WithHookTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.HookTimeout = d }
}
