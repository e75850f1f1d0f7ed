package policy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pricewatch/tracker/internal/metrics"
	"github.com/pricewatch/tracker/pkg/model"
)

// PolicyStore persists the scan policy (global default + vendor overrides).
type PolicyStore interface {
	GetScanPolicy(ctx context.Context) (model.ScanPolicy, error)
	SaveScanPolicy(ctx context.Context, p model.ScanPolicy) error
}

// ProductStore is the slice of the product table the resolver mutates.
type ProductStore interface {
	ListProducts(ctx context.Context, f model.ProductFilter) ([]model.Product, error)
	ApplyScanFrequency(ctx context.Context, id int64, minutes int) (bool, error)
}

// EventSink receives propagation events. May be nil.
type EventSink interface {
	PolicyApplied(ctx context.Context, evt model.PolicyAppliedEvent)
}

// Resolver owns the scan-frequency policy algebra: resolving the effective
// cadence for a vendor and propagating policy changes onto stored product
// rows. Policy mutation never touches products; propagation is always an
// explicit separate step.
type Resolver struct {
	logger   *zap.Logger
	policies PolicyStore
	products ProductStore
	events   EventSink

	scopes scopeGuard
}

// NewResolver creates a Resolver. events may be nil.
func NewResolver(logger *zap.Logger, policies PolicyStore, products ProductStore, events EventSink) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		logger:   logger,
		policies: policies,
		products: products,
		events:   events,
		scopes:   scopeGuard{vendors: make(map[int64]struct{})},
	}
}

// Settings returns the current policy with the normalization invariant
// applied (no override ever equals the default).
func (r *Resolver) Settings(ctx context.Context) (model.ScanPolicy, error) {
	p, err := r.policies.GetScanPolicy(ctx)
	if err != nil {
		return model.ScanPolicy{}, err
	}
	p.Normalize()
	return p, nil
}

// ResolveEffective returns the cadence that applies to a vendor: its
// override if present, else the global default.
func (r *Resolver) ResolveEffective(ctx context.Context, vendorID int64) (int, error) {
	p, err := r.Settings(ctx)
	if err != nil {
		return 0, err
	}
	return p.EffectiveFrequency(vendorID), nil
}

// SetDefault replaces the global default frequency. Overrides equal to the
// new default become redundant and are dropped. Product rows are untouched.
func (r *Resolver) SetDefault(ctx context.Context, minutes int) error {
	if minutes <= 0 {
		return fmt.Errorf("default frequency %d: %w", minutes, model.ErrInvalidArgument)
	}
	p, err := r.policies.GetScanPolicy(ctx)
	if err != nil {
		return err
	}
	p.DefaultFrequencyMinutes = minutes
	p.Normalize()
	return r.policies.SaveScanPolicy(ctx, p)
}

// SetOverride sets or clears the per-vendor override. A nil minutes removes
// any existing override; a value equal to the current default is normalized
// away rather than stored. Product rows are untouched.
func (r *Resolver) SetOverride(ctx context.Context, vendorID int64, minutes *int) error {
	p, err := r.policies.GetScanPolicy(ctx)
	if err != nil {
		return err
	}
	if p.Overrides == nil {
		p.Overrides = make(map[int64]int)
	}

	switch {
	case minutes == nil:
		delete(p.Overrides, vendorID)
	case *minutes <= 0:
		return fmt.Errorf("override frequency %d for vendor %d: %w",
			*minutes, vendorID, model.ErrInvalidArgument)
	case *minutes == p.DefaultFrequencyMinutes:
		delete(p.Overrides, vendorID)
	default:
		p.Overrides[vendorID] = *minutes
	}

	p.Normalize()
	return r.policies.SaveScanPolicy(ctx, p)
}

// Replace swaps in a whole policy at once (the settings form save).
// Every frequency must be positive; redundant overrides are normalized away.
func (r *Resolver) Replace(ctx context.Context, p model.ScanPolicy) error {
	if p.DefaultFrequencyMinutes <= 0 {
		return fmt.Errorf("default frequency %d: %w",
			p.DefaultFrequencyMinutes, model.ErrInvalidArgument)
	}
	for vendorID, minutes := range p.Overrides {
		if minutes <= 0 {
			return fmt.Errorf("override frequency %d for vendor %d: %w",
				minutes, vendorID, model.ErrInvalidArgument)
		}
	}
	p.Normalize()
	return r.policies.SaveScanPolicy(ctx, p)
}

// ApplyToProducts bulk-writes the effective frequency onto every active
// product row, scoped to one vendor when vendorID is non-nil. The policy is
// read once at the start and that snapshot drives the whole pass. Inactive
// products are left untouched; rows already at the effective value do not
// count as updated. Per-row failures are logged and skipped, so a partial
// pass is safe to retry. Passes with overlapping scopes are rejected with
// ErrPropagationConflict rather than interleaved.
func (r *Resolver) ApplyToProducts(ctx context.Context, vendorID *int64) (model.ApplyResult, error) {
	scope := "all"
	if vendorID != nil {
		scope = "vendor"
	}

	if !r.scopes.acquire(vendorID) {
		metrics.IncPropagation(scope, "conflict")
		return model.ApplyResult{}, fmt.Errorf("scope %s: %w", scope, model.ErrPropagationConflict)
	}
	defer r.scopes.release(vendorID)

	snapshot, err := r.Settings(ctx)
	if err != nil {
		metrics.IncPropagation(scope, "error")
		return model.ApplyResult{}, fmt.Errorf("read policy: %w", err)
	}

	productList, err := r.products.ListProducts(ctx, model.ProductFilter{
		ActiveOnly: true,
		VendorID:   vendorID,
	})
	if err != nil {
		metrics.IncPropagation(scope, "error")
		return model.ApplyResult{}, fmt.Errorf("list products: %w", err)
	}

	updated := 0
	for _, p := range productList {
		target := snapshot.EffectiveFrequency(p.VendorID)
		changed, err := r.products.ApplyScanFrequency(ctx, p.ID, target)
		if err != nil {
			r.logger.Warn("policy.apply_row_failed",
				zap.Int64("product_id", p.ID),
				zap.Int64("vendor_id", p.VendorID),
				zap.Int("target_minutes", target),
				zap.Error(err))
			metrics.IncError("policy", "apply_row_failed")
			continue
		}
		if changed {
			updated++
		}
	}

	r.logger.Info("policy.apply_complete",
		zap.String("scope", scope),
		zap.Int("products", len(productList)),
		zap.Int("updated", updated))
	metrics.IncPropagation(scope, "ok")
	metrics.PropagationRowsUpdated.Add(float64(updated))

	if r.events != nil {
		r.events.PolicyApplied(ctx, model.PolicyAppliedEvent{
			VendorID:     vendorID,
			UpdatedCount: updated,
			AppliedAt:    time.Now().UTC(),
		})
	}

	return model.ApplyResult{UpdatedCount: updated}, nil
}

// scopeGuard serializes propagation passes whose scopes overlap: a global
// pass conflicts with everything, two passes for the same vendor conflict,
// passes for distinct vendors may run concurrently.
type scopeGuard struct {
	mu      sync.Mutex
	global  bool
	vendors map[int64]struct{}
}

func (g *scopeGuard) acquire(vendorID *int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.global {
		return false
	}
	if vendorID == nil {
		if len(g.vendors) > 0 {
			return false
		}
		g.global = true
		return true
	}
	if _, busy := g.vendors[*vendorID]; busy {
		return false
	}
	g.vendors[*vendorID] = struct{}{}
	return true
}

func (g *scopeGuard) release(vendorID *int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if vendorID == nil {
		g.global = false
		return
	}
	delete(g.vendors, *vendorID)
}
