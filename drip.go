package drip

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/xraph/drip/address"
	"github.com/xraph/drip/gateway"
	"github.com/xraph/drip/plugin"
	"github.com/xraph/drip/policy"
	"github.com/xraph/drip/store"
)

// ErrNoGateway is returned by Start when no gateway was configured.
var ErrNoGateway = errors.New("drip: gateway not configured")

// Ledger is the continuous-payment engine.
//
// Each operation validates, commits its records to the store, and only then
// moves assets through the gateway. The Ledger does not serialize calls; the
// host runs one logical transaction at a time.
type Ledger struct {
	store     store.Store
	gateway   gateway.Gateway
	policy    policy.Policy
	validator address.Validator
	self      address.Address
	plugins   *plugin.Registry
	logger    *slog.Logger
}

// New creates a new Ledger instance.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:     s,
		policy:    policy.DenyAll{},
		validator: address.Basic(),
		plugins:   plugin.NewRegistry(),
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithHookTimeout bounds each plugin hook call.
func WithHookTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		l.plugins.WithTimeout(d)
	}
}

// WithGateway sets the asset transfer gateway.
func WithGateway(g gateway.Gateway) Option {
	return func(l *Ledger) {
		l.gateway = g
	}
}

// WithPolicy sets the admin and yield-asset policy.
func WithPolicy(p policy.Policy) Option {
	return func(l *Ledger) {
		l.policy = p
	}
}

// WithAddressValidator sets the validator applied to every principal and
// asset address.
func WithAddressValidator(v address.Validator) Option {
	return func(l *Ledger) {
		l.validator = v
	}
}

// WithSelfAddress sets the ledger's own custody address. Streams may not
// pay it.
func WithSelfAddress(a address.Address) Option {
	return func(l *Ledger) {
		l.self = a
	}
}

// Store returns the underlying store.
func (l *Ledger) Store() store.Store { return l.store }

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry { return l.plugins }

// SelfAddress returns the ledger's own address.
func (l *Ledger) SelfAddress() address.Address { return l.self }

// Start migrates the store and initializes plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if l.gateway == nil {
		return ErrNoGateway
	}

	if err := l.store.Migrate(ctx); err != nil {
		return err
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("drip started",
		"self", l.self,
		"plugins", l.plugins.Count(),
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (l *Ledger) Stop() error {
	ctx := context.Background()
	l.plugins.EmitShutdown(ctx)

	return l.store.Close()
}
