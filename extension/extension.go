// Package extension provides the Forge extension adapter for Drip.
//
// It implements the forge.Extension interface to integrate Drip
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.drip" or "drip" keys.
package extension

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/drip"
	"github.com/xraph/drip/address"
	"github.com/xraph/drip/policy"
	"github.com/xraph/drip/store"
	"github.com/xraph/drip/store/memory"
	"github.com/xraph/drip/store/mongo"
	"github.com/xraph/drip/store/postgres"
	"github.com/xraph/drip/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "drip"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Continuous payment streams with swaps and yield sharing"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// connectTimeout bounds store construction during Register.
const connectTimeout = 10 * time.Second

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Drip as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *drip.Ledger
	store      store.Store
	policy     *policy.Static
	ledgerOpts []drip.Option
}

// New creates a new Drip Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Ledger instance.
// This is nil until Register is called.
func (e *Extension) Engine() *drip.Ledger { return e.engine }

// Policy returns the admin and yield-asset policy built from config, so
// callers can approve assets at runtime. Nil until Register is called.
func (e *Extension) Policy() *policy.Static { return e.policy }

// Register implements [forge.Extension]. It loads configuration,
// initializes the ledger engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		s, err := e.openStore()
		if err != nil {
			return err
		}
		e.store = s
	}

	e.policy = policy.NewStatic(toAddresses(e.config.Admins), toAddresses(e.config.YieldAssets))

	e.engine = drip.New(e.store, e.buildLedgerOpts()...)

	return vessel.Provide(fapp.Container(), func() (*drip.Ledger, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("drip: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	if err := e.applyInitialFee(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("drip: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildLedgerOpts constructs drip.Option values from the resolved config.
func (e *Extension) buildLedgerOpts() []drip.Option {
	opts := make([]drip.Option, 0, len(e.ledgerOpts)+3)

	opts = append(opts, drip.WithPolicy(e.policy))
	if e.config.SelfAddress != "" {
		opts = append(opts, drip.WithSelfAddress(address.Address(e.config.SelfAddress)))
	}
	if e.config.HookTimeout > 0 {
		opts = append(opts, drip.WithHookTimeout(e.config.HookTimeout))
	}

	// Append any pass-through ledger options.
	opts = append(opts, e.ledgerOpts...)

	return opts
}

// openStore builds the store selected by StoreDriver.
func (e *Extension) openStore() (store.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	switch e.config.StoreDriver {
	case "", DriverMemory:
		return memory.New(), nil
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, e.config.StoreDSN)
		if err != nil {
			return nil, err
		}
		return postgres.New(pool), nil
	case DriverMongo:
		return mongo.Connect(ctx, e.config.StoreDSN, e.config.StoreDatabase)
	default:
		return nil, fmt.Errorf("drip: unknown store driver %q", e.config.StoreDriver)
	}
}

// applyInitialFee sets InitialFee when the store has no fee yet.
func (e *Extension) applyInitialFee(ctx context.Context) error {
	if e.config.InitialFee == "" {
		return nil
	}
	fee, err := decimal.NewFromString(e.config.InitialFee)
	if err != nil || !types.ValidPercent(fee) {
		return fmt.Errorf("%w: initial fee %q", drip.ErrInvalidFee, e.config.InitialFee)
	}

	current, err := e.store.GetFee(ctx)
	if err != nil {
		return err
	}
	if !current.IsZero() {
		return nil
	}
	return e.store.SetFee(ctx, fee)
}

func toAddresses(in []string) []address.Address {
	out := make([]address.Address, len(in))
	for i, s := range in {
		out[i] = address.Address(s)
	}
	return out
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("drip: configuration is required but not found in config files; " +
				"ensure 'extensions.drip' or 'drip' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("drip: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("self_address", e.config.SelfAddress),
		forge.F("admins", len(e.config.Admins)),
		forge.F("yield_assets", len(e.config.YieldAssets)),
		forge.F("store_driver", e.config.StoreDriver),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.drip", "drip"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("drip: loaded config from file", forge.F("key", key))
			return cfg, true
		}
		e.Logger().Warn("drip: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.SelfAddress == "" {
		cfg.SelfAddress = defaults.SelfAddress
	}
	if cfg.HookTimeout == 0 {
		cfg.HookTimeout = defaults.HookTimeout
	}
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = defaults.StoreDriver
	}
	if cfg.StoreDatabase == "" {
		cfg.StoreDatabase = defaults.StoreDatabase
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	if yamlConfig.SelfAddress == "" {
		yamlConfig.SelfAddress = programmaticConfig.SelfAddress
	}
	if yamlConfig.InitialFee == "" {
		yamlConfig.InitialFee = programmaticConfig.InitialFee
	}
	if yamlConfig.StoreDriver == "" {
		yamlConfig.StoreDriver = programmaticConfig.StoreDriver
	}
	if yamlConfig.StoreDSN == "" {
		yamlConfig.StoreDSN = programmaticConfig.StoreDSN
	}
	if yamlConfig.StoreDatabase == "" {
		yamlConfig.StoreDatabase = programmaticConfig.StoreDatabase
	}
	if yamlConfig.HookTimeout == 0 {
		yamlConfig.HookTimeout = programmaticConfig.HookTimeout
	}

	// Principals accumulate from both sources.
	yamlConfig.Admins = append(yamlConfig.Admins, programmaticConfig.Admins...)
	yamlConfig.YieldAssets = append(yamlConfig.YieldAssets, programmaticConfig.YieldAssets...)

	return mergeWithDefaults(yamlConfig)
}
