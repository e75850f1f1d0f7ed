package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pricewatch/tracker/internal/metrics"
	"github.com/pricewatch/tracker/internal/store"
	"github.com/pricewatch/tracker/pkg/model"
)

const summaryCacheKey = "dashboard:summary"

// Store is the slice of the hybrid store the dashboard reads.
type Store interface {
	CountProducts(ctx context.Context) (int64, error)
	CountVendors(ctx context.Context) (int64, error)
	CountObservations(ctx context.Context) (int64, error)
	ListProducts(ctx context.Context, f model.ProductFilter) ([]model.Product, error)
	ListVendors(ctx context.Context) ([]model.Vendor, error)
	LatestObservations(ctx context.Context, productID int64, limit int) ([]model.PriceObservation, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) error
}

// LatestProvider computes the point price view for one product. Implemented
// by the stats aggregator so "current price" has a single definition.
type LatestProvider interface {
	ComputeLatest(ctx context.Context, productID int64) (*model.LatestPrice, error)
}

// Summary produces cheap read-side rollups for the dashboard. Counts are
// best-effort snapshots; no cross-count transaction is taken.
type Summary struct {
	logger        *zap.Logger
	store         Store
	latest        LatestProvider
	recencyWindow time.Duration
	cacheTTL      time.Duration
	now           func() time.Time
}

// NewSummary creates a dashboard aggregator. recencyWindow bounds the
// "recently scanned" count; cacheTTL of zero disables the redis cache.
func NewSummary(logger *zap.Logger, st Store, latest LatestProvider, recencyWindow, cacheTTL time.Duration) *Summary {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summary{
		logger:        logger,
		store:         st,
		latest:        latest,
		recencyWindow: recencyWindow,
		cacheTTL:      cacheTTL,
		now:           time.Now,
	}
}

// GetSummary returns the dashboard rollup, serving a cached copy when one
// is fresh enough.
func (s *Summary) GetSummary(ctx context.Context) (*model.DashboardSummary, error) {
	if s.cacheTTL > 0 {
		var cached model.DashboardSummary
		err := s.store.GetJSON(ctx, summaryCacheKey, &cached)
		if err == nil {
			metrics.IncSummaryCache("hit")
			return &cached, nil
		}
		if !errors.Is(err, store.ErrCacheMiss) {
			s.logger.Warn("dashboard.summary_cache_read_failed", zap.Error(err))
		}
		metrics.IncSummaryCache("miss")
	}

	summary, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}

	if s.cacheTTL > 0 {
		if err := s.store.SetJSON(ctx, summaryCacheKey, summary, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard.summary_cache_write_failed", zap.Error(err))
		}
	}

	metrics.IncStatsRequest("summary")
	return summary, nil
}

func (s *Summary) compute(ctx context.Context) (*model.DashboardSummary, error) {
	totalProducts, err := s.store.CountProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	totalVendors, err := s.store.CountVendors(ctx)
	if err != nil {
		return nil, fmt.Errorf("count vendors: %w", err)
	}
	totalRecords, err := s.store.CountObservations(ctx)
	if err != nil {
		return nil, fmt.Errorf("count observations: %w", err)
	}
	recentlyScanned, err := s.countRecentlyScanned(ctx)
	if err != nil {
		return nil, err
	}

	return &model.DashboardSummary{
		TotalProducts:     totalProducts,
		TotalVendors:      totalVendors,
		RecentlyScanned:   recentlyScanned,
		TotalPriceRecords: totalRecords,
	}, nil
}

// countRecentlyScanned counts products whose latest observation falls within
// the recency window, using the same latest-observation primitive as the
// stats aggregator.
func (s *Summary) countRecentlyScanned(ctx context.Context) (int64, error) {
	products, err := s.store.ListProducts(ctx, model.ProductFilter{})
	if err != nil {
		return 0, fmt.Errorf("list products: %w", err)
	}

	cutoff := s.now().UTC().Add(-s.recencyWindow)
	var count int64
	for _, p := range products {
		latest, err := s.store.LatestObservations(ctx, p.ID, 1)
		if err != nil {
			s.logger.Warn("dashboard.latest_lookup_failed",
				zap.Int64("product_id", p.ID), zap.Error(err))
			continue
		}
		if len(latest) > 0 && !latest[0].ObservedAt.Before(cutoff) {
			count++
		}
	}
	return count, nil
}

// ListProductsWithLatestPrice returns the dashboard product rows: every
// active product joined with its vendor name and point price view.
func (s *Summary) ListProductsWithLatestPrice(ctx context.Context) ([]model.ProductWithLatestPrice, error) {
	products, err := s.store.ListProducts(ctx, model.ProductFilter{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	vendors, err := s.store.ListVendors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}
	vendorNames := make(map[int64]string, len(vendors))
	for _, v := range vendors {
		vendorNames[v.ID] = v.Name
	}

	rows := make([]model.ProductWithLatestPrice, 0, len(products))
	for _, p := range products {
		row := model.ProductWithLatestPrice{
			ID:                   p.ID,
			Name:                 p.Name,
			URL:                  p.URL,
			ImageURL:             p.ImageURL,
			ScanFrequencyMinutes: p.ScanFrequencyMinutes,
			LastScannedAt:        p.LastScannedAt,
			Currency:             "USD",
			IsAuction:            p.IsAuction,
			AuctionEndTime:       p.AuctionEndTime,
		}
		if name, ok := vendorNames[p.VendorID]; ok {
			row.VendorName = name
		} else {
			row.VendorName = "Unknown"
		}

		lp, err := s.latest.ComputeLatest(ctx, p.ID)
		if err != nil {
			s.logger.Warn("dashboard.latest_price_failed",
				zap.Int64("product_id", p.ID), zap.Error(err))
			rows = append(rows, row)
			continue
		}
		row.CurrentPrice = lp.CurrentPrice
		row.PreviousPrice = lp.PreviousPrice
		row.PriceChange = lp.PriceChange
		row.PriceChangePercent = lp.PriceChangePercent
		row.InStock = lp.InStock
		row.Currency = lp.Currency
		row.CurrentBidCount = lp.CurrentBidCount
		row.BuyItNowPrice = lp.BuyItNowPrice

		rows = append(rows, row)
	}
	return rows, nil
}
