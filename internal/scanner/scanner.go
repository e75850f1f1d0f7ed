// Package scanner runs the periodic sweep that keeps price history fresh.
// It decides which products are due from their per-product scan frequency,
// paces outbound fetches per vendor domain, and appends the resulting
// observations to the store.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pricewatch/tracker/internal/metrics"
	"github.com/pricewatch/tracker/internal/rate"
	"github.com/pricewatch/tracker/pkg/model"
)

// Quote is a single price reading fetched from a vendor site.
type Quote struct {
	Price           decimal.Decimal
	Currency        string
	InStock         bool
	BidCount        *int
	IsAuctionActive *bool
}

// PriceSource fetches the current quote for a product. Implementations own
// the actual HTTP/parsing work; the scanner only schedules and records.
type PriceSource interface {
	Fetch(ctx context.Context, product model.Product, vendor model.Vendor) (*Quote, error)
}

// Store is the subset of the data layer the scanner needs.
type Store interface {
	ListProducts(ctx context.Context, f model.ProductFilter) ([]model.Product, error)
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	GetVendor(ctx context.Context, id int64) (*model.Vendor, error)
	ListVendors(ctx context.Context) ([]model.Vendor, error)
	AppendObservation(ctx context.Context, obs *model.PriceObservation) error
}

// EventSink receives scan outcome events. May be nil.
type EventSink interface {
	ObservationRecorded(ctx context.Context, evt model.ObservationRecordedEvent)
}

// Status is a point-in-time snapshot of the sweep loop, served by the API.
type Status struct {
	Running          bool       `json:"running"`
	LastSweepAt      *time.Time `json:"last_sweep_at,omitempty"`
	LastSweepScanned int        `json:"last_sweep_scanned"`
	LastSweepErrors  int        `json:"last_sweep_errors"`
	SweepInterval    string     `json:"sweep_interval"`
}

// Scanner sweeps due products on a fixed interval and supports manual
// force-scans of individual products.
type Scanner struct {
	logger  *zap.Logger
	store   Store
	source  PriceSource
	events  EventSink
	limiter *rate.Manager

	sweepInterval time.Duration
	scanTimeout   time.Duration
	now           func() time.Time

	mu     sync.Mutex
	status Status
}

func New(logger *zap.Logger, store Store, source PriceSource, events EventSink, limiter *rate.Manager, sweepInterval, scanTimeout time.Duration) *Scanner {
	return &Scanner{
		logger:        logger,
		store:         store,
		source:        source,
		events:        events,
		limiter:       limiter,
		sweepInterval: sweepInterval,
		scanTimeout:   scanTimeout,
		now:           time.Now,
		status:        Status{SweepInterval: sweepInterval.String()},
	}
}

// Run blocks, sweeping immediately and then on every tick until ctx is done.
func (s *Scanner) Run(ctx context.Context) {
	s.setRunning(true)
	defer s.setRunning(false)

	s.logger.Info("scanner.started", zap.Duration("sweep_interval", s.sweepInterval))

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scanner.stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// SweepOnce scans every due product immediately, regardless of the ticker.
// Used by the scan-all endpoint.
func (s *Scanner) SweepOnce(ctx context.Context) (int, error) {
	return s.sweepDue(ctx)
}

// Status returns a copy of the current sweep state.
func (s *Scanner) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Scanner) sweep(ctx context.Context) {
	scanned, err := s.sweepDue(ctx)
	if err != nil {
		s.logger.Error("scanner.sweep_failed", zap.Error(err))
		metrics.IncError("scanner", "sweep_failed")
		return
	}
	metrics.SetLastSweep(s.now())
	s.logger.Info("scanner.sweep_complete", zap.Int("scanned", scanned))
}

func (s *Scanner) sweepDue(ctx context.Context) (int, error) {
	products, err := s.store.ListProducts(ctx, model.ProductFilter{ActiveOnly: true})
	if err != nil {
		return 0, fmt.Errorf("list products: %w", err)
	}

	vendors, err := s.vendorsByID(ctx)
	if err != nil {
		return 0, fmt.Errorf("list vendors: %w", err)
	}

	now := s.now()
	scanned, failed := 0, 0
	for i := range products {
		p := &products[i]
		if !isDue(p, now) {
			continue
		}
		v, ok := vendors[p.VendorID]
		if !ok || !v.IsActive {
			continue
		}
		if err := s.scanOne(ctx, p, &v); err != nil {
			if ctx.Err() != nil {
				return scanned, ctx.Err()
			}
			if errors.Is(err, model.ErrNoPrice) {
				// the page loaded but had no price; nothing to record
				s.logger.Debug("scanner.no_price",
					zap.Int64("product_id", p.ID),
					zap.String("vendor", v.Domain))
				continue
			}
			failed++
			s.logger.Warn("scanner.scan_failed",
				zap.Int64("product_id", p.ID),
				zap.String("vendor", v.Domain),
				zap.Error(err))
			continue
		}
		scanned++
	}

	s.mu.Lock()
	t := now
	s.status.LastSweepAt = &t
	s.status.LastSweepScanned = scanned
	s.status.LastSweepErrors = failed
	s.mu.Unlock()

	return scanned, nil
}

// ScanProduct force-scans a single product, bypassing the due check and
// active flags. Used by the manual scan endpoint.
func (s *Scanner) ScanProduct(ctx context.Context, id int64) (*model.PriceObservation, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	v, err := s.store.GetVendor(ctx, p.VendorID)
	if err != nil {
		return nil, err
	}
	obs, err := s.fetchAndRecord(ctx, p, v)
	if err != nil {
		return nil, err
	}
	return obs, nil
}

func (s *Scanner) scanOne(ctx context.Context, p *model.Product, v *model.Vendor) error {
	_, err := s.fetchAndRecord(ctx, p, v)
	return err
}

func (s *Scanner) fetchAndRecord(ctx context.Context, p *model.Product, v *model.Vendor) (*model.PriceObservation, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, v.Domain); err != nil {
			return nil, err
		}
	}

	fetchCtx := ctx
	if s.scanTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.scanTimeout)
		defer cancel()
	}

	start := s.now()
	quote, err := s.source.Fetch(fetchCtx, *p, *v)
	metrics.ObserveDuration(metrics.ScanDuration, start, v.Domain)
	if err != nil {
		metrics.IncScan(v.Domain, "error")
		return nil, fmt.Errorf("fetch product %d: %w", p.ID, err)
	}
	if quote == nil {
		metrics.IncScan(v.Domain, "no_price")
		return nil, fmt.Errorf("fetch product %d: %w", p.ID, model.ErrNoPrice)
	}

	obs := &model.PriceObservation{
		ID:              uuid.New(),
		ProductID:       p.ID,
		Price:           quote.Price,
		Currency:        quote.Currency,
		InStock:         quote.InStock,
		ObservedAt:      s.now().UTC(),
		BidCount:        quote.BidCount,
		IsAuctionActive: quote.IsAuctionActive,
	}
	if err := s.store.AppendObservation(ctx, obs); err != nil {
		metrics.IncScan(v.Domain, "error")
		return nil, fmt.Errorf("append observation for product %d: %w", p.ID, err)
	}

	metrics.IncScan(v.Domain, "ok")
	s.logger.Debug("scanner.observation_recorded",
		zap.Int64("product_id", p.ID),
		zap.String("price", obs.Price.String()),
		zap.String("vendor", v.Domain))

	if s.events != nil {
		s.events.ObservationRecorded(ctx, model.ObservationRecordedEvent{
			ProductID:  p.ID,
			VendorID:   v.ID,
			Price:      obs.Price.String(),
			Currency:   obs.Currency,
			InStock:    obs.InStock,
			ObservedAt: obs.ObservedAt,
		})
	}

	return obs, nil
}

func (s *Scanner) vendorsByID(ctx context.Context) (map[int64]model.Vendor, error) {
	vendors, err := s.store.ListVendors(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]model.Vendor, len(vendors))
	for _, v := range vendors {
		byID[v.ID] = v
	}
	return byID, nil
}

func (s *Scanner) setRunning(running bool) {
	s.mu.Lock()
	s.status.Running = running
	s.mu.Unlock()
}

// isDue reports whether a product's scan frequency has elapsed since its
// last scan. Never-scanned products are always due.
func isDue(p *model.Product, now time.Time) bool {
	if p.LastScannedAt == nil {
		return true
	}
	freq := time.Duration(p.ScanFrequencyMinutes) * time.Minute
	return now.Sub(*p.LastScannedAt) >= freq
}
