package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/drip/earnings"
	"github.com/xraph/drip/payout"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/swap"
)

// DefaultHookTimeout bounds a single hook call.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit             []OnInit
	onShutdown         []OnShutdown
	onStreamCreated    []OnStreamCreated
	onWithdrawn        []OnWithdrawn
	onStreamCanceled   []OnStreamCanceled
	onTransferFailed   []OnTransferFailed
	onPayoutClaimed    []OnPayoutClaimed
	onSwapProposed     []OnSwapProposed
	onSwapExecuted     []OnSwapExecuted
	onSwapCanceled     []OnSwapCanceled
	onProposalCanceled []OnProposalCanceled
	onFeeUpdated       []OnFeeUpdated
	onEarningsTaken    []OnEarningsTaken
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnStreamCreated); ok {
		r.onStreamCreated = append(r.onStreamCreated, v)
	}
	if v, ok := p.(OnWithdrawn); ok {
		r.onWithdrawn = append(r.onWithdrawn, v)
	}
	if v, ok := p.(OnStreamCanceled); ok {
		r.onStreamCanceled = append(r.onStreamCanceled, v)
	}
	if v, ok := p.(OnTransferFailed); ok {
		r.onTransferFailed = append(r.onTransferFailed, v)
	}
	if v, ok := p.(OnPayoutClaimed); ok {
		r.onPayoutClaimed = append(r.onPayoutClaimed, v)
	}
	if v, ok := p.(OnSwapProposed); ok {
		r.onSwapProposed = append(r.onSwapProposed, v)
	}
	if v, ok := p.(OnSwapExecuted); ok {
		r.onSwapExecuted = append(r.onSwapExecuted, v)
	}
	if v, ok := p.(OnSwapCanceled); ok {
		r.onSwapCanceled = append(r.onSwapCanceled, v)
	}
	if v, ok := p.(OnProposalCanceled); ok {
		r.onProposalCanceled = append(r.onProposalCanceled, v)
	}
	if v, ok := p.(OnFeeUpdated); ok {
		r.onFeeUpdated = append(r.onFeeUpdated, v)
	}
	if v, ok := p.(OnEarningsTaken); ok {
		r.onEarningsTaken = append(r.onEarningsTaken, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name  string
	iface reflect.Type
}{
	{"OnInit", reflect.TypeOf((*OnInit)(nil)).Elem()},
	{"OnShutdown", reflect.TypeOf((*OnShutdown)(nil)).Elem()},
	{"OnStreamCreated", reflect.TypeOf((*OnStreamCreated)(nil)).Elem()},
	{"OnWithdrawn", reflect.TypeOf((*OnWithdrawn)(nil)).Elem()},
	{"OnStreamCanceled", reflect.TypeOf((*OnStreamCanceled)(nil)).Elem()},
	{"OnTransferFailed", reflect.TypeOf((*OnTransferFailed)(nil)).Elem()},
	{"OnPayoutClaimed", reflect.TypeOf((*OnPayoutClaimed)(nil)).Elem()},
	{"OnSwapProposed", reflect.TypeOf((*OnSwapProposed)(nil)).Elem()},
	{"OnSwapExecuted", reflect.TypeOf((*OnSwapExecuted)(nil)).Elem()},
	{"OnSwapCanceled", reflect.TypeOf((*OnSwapCanceled)(nil)).Elem()},
	{"OnProposalCanceled", reflect.TypeOf((*OnProposalCanceled)(nil)).Elem()},
	{"OnFeeUpdated", reflect.TypeOf((*OnFeeUpdated)(nil)).Elem()},
	{"OnEarningsTaken", reflect.TypeOf((*OnEarningsTaken)(nil)).Elem()},
}

// implementedInterfaces returns the hook names p implements.
func implementedInterfaces(p Plugin) []string {
	var names []string
	t := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if t.Implements(h.iface) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// dispatch runs fn for every plugin in hooks. Failures are logged and never
// propagate to the operation that emitted the event.
func dispatch[T Plugin](ctx context.Context, r *Registry, hook string, hooks []T, fn func(T) error) {
	for _, p := range hooks {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, ledger interface{}) {
	r.mu.RLock()
	hooks := r.onInit
	r.mu.RUnlock()
	dispatch(ctx, r, "OnInit", hooks, func(p OnInit) error { return p.OnInit(ctx, ledger) })
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	hooks := r.onShutdown
	r.mu.RUnlock()
	dispatch(ctx, r, "OnShutdown", hooks, func(p OnShutdown) error { return p.OnShutdown(ctx) })
}

// EmitStreamCreated emits a stream created event.
func (r *Registry) EmitStreamCreated(ctx context.Context, s *stream.Stream, c *stream.Compounding) {
	r.mu.RLock()
	hooks := r.onStreamCreated
	r.mu.RUnlock()
	dispatch(ctx, r, "OnStreamCreated", hooks, func(p OnStreamCreated) error {
		return p.OnStreamCreated(ctx, s, c)
	})
}

// EmitWithdrawn emits a withdrawal event.
func (r *Registry) EmitWithdrawn(ctx context.Context, st *stream.Settlement) {
	r.mu.RLock()
	hooks := r.onWithdrawn
	r.mu.RUnlock()
	dispatch(ctx, r, "OnWithdrawn", hooks, func(p OnWithdrawn) error { return p.OnWithdrawn(ctx, st) })
}

// EmitStreamCanceled emits a cancellation event.
func (r *Registry) EmitStreamCanceled(ctx context.Context, st *stream.Settlement) {
	r.mu.RLock()
	hooks := r.onStreamCanceled
	r.mu.RUnlock()
	dispatch(ctx, r, "OnStreamCanceled", hooks, func(p OnStreamCanceled) error {
		return p.OnStreamCanceled(ctx, st)
	})
}

// EmitTransferFailed emits a gateway transfer failure.
func (r *Registry) EmitTransferFailed(ctx context.Context, op string, err error) {
	r.mu.RLock()
	hooks := r.onTransferFailed
	r.mu.RUnlock()
	dispatch(ctx, r, "OnTransferFailed", hooks, func(p OnTransferFailed) error {
		return p.OnTransferFailed(ctx, op, err)
	})
}

// EmitPayoutClaimed emits a claimed payout event.
func (r *Registry) EmitPayoutClaimed(ctx context.Context, p *payout.Payout) {
	r.mu.RLock()
	hooks := r.onPayoutClaimed
	r.mu.RUnlock()
	dispatch(ctx, r, "OnPayoutClaimed", hooks, func(h OnPayoutClaimed) error {
		return h.OnPayoutClaimed(ctx, p)
	})
}

// EmitSwapProposed emits a swap proposed event.
func (r *Registry) EmitSwapProposed(ctx context.Context, prop *swap.Proposal) {
	r.mu.RLock()
	hooks := r.onSwapProposed
	r.mu.RUnlock()
	dispatch(ctx, r, "OnSwapProposed", hooks, func(p OnSwapProposed) error {
		return p.OnSwapProposed(ctx, prop)
	})
}

// EmitSwapExecuted emits a swap executed event.
func (r *Registry) EmitSwapExecuted(ctx context.Context, s *swap.Swap) {
	r.mu.RLock()
	hooks := r.onSwapExecuted
	r.mu.RUnlock()
	dispatch(ctx, r, "OnSwapExecuted", hooks, func(p OnSwapExecuted) error {
		return p.OnSwapExecuted(ctx, s)
	})
}

// EmitSwapCanceled emits a swap canceled event.
func (r *Registry) EmitSwapCanceled(ctx context.Context, s *swap.Swap, settlements []*stream.Settlement) {
	r.mu.RLock()
	hooks := r.onSwapCanceled
	r.mu.RUnlock()
	dispatch(ctx, r, "OnSwapCanceled", hooks, func(p OnSwapCanceled) error {
		return p.OnSwapCanceled(ctx, s, settlements)
	})
}

// EmitProposalCanceled emits a proposal canceled event.
func (r *Registry) EmitProposalCanceled(ctx context.Context, prop *swap.Proposal) {
	r.mu.RLock()
	hooks := r.onProposalCanceled
	r.mu.RUnlock()
	dispatch(ctx, r, "OnProposalCanceled", hooks, func(p OnProposalCanceled) error {
		return p.OnProposalCanceled(ctx, prop)
	})
}

// EmitFeeUpdated emits a fee updated event.
func (r *Registry) EmitFeeUpdated(ctx context.Context, change *earnings.FeeChange) {
	r.mu.RLock()
	hooks := r.onFeeUpdated
	r.mu.RUnlock()
	dispatch(ctx, r, "OnFeeUpdated", hooks, func(p OnFeeUpdated) error {
		return p.OnFeeUpdated(ctx, change)
	})
}

// EmitEarningsTaken emits an earnings withdrawal event.
func (r *Registry) EmitEarningsTaken(ctx context.Context, w *earnings.Withdrawal) {
	r.mu.RLock()
	hooks := r.onEarningsTaken
	r.mu.RUnlock()
	dispatch(ctx, r, "OnEarningsTaken", hooks, func(p OnEarningsTaken) error {
		return p.OnEarningsTaken(ctx, w)
	})
}

// callWithTimeout calls a plugin function with a timeout.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.timeout):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
