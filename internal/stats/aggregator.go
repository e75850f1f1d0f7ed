package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pricewatch/tracker/internal/metrics"
	"github.com/pricewatch/tracker/pkg/model"
)

// Reader is the slice of the store the aggregator needs.
type Reader interface {
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	ListObservations(ctx context.Context, productID int64, since *time.Time) ([]model.PriceObservation, error)
	LatestObservations(ctx context.Context, productID int64, limit int) ([]model.PriceObservation, error)
}

// Aggregator derives point and windowed price statistics from a product's
// observation log. It holds no state between calls and is safe for
// concurrent use.
type Aggregator struct {
	logger *zap.Logger
	store  Reader
	now    func() time.Time
}

// NewAggregator creates an Aggregator over the given store.
func NewAggregator(logger *zap.Logger, store Reader) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		logger: logger,
		store:  store,
		now:    time.Now,
	}
}

// ComputeStats returns windowed statistics plus the point price view for a
// product. windowDays must be positive. The current/previous prices come
// from the full history so the "current" view cannot disappear just because
// the chosen window excludes it; lowest/highest/average cover only the
// windowed slice. A known product with no observations yields all-nil
// statistics and an empty history, not an error.
func (a *Aggregator) ComputeStats(ctx context.Context, productID int64, windowDays int) (*model.PriceStatsResult, error) {
	if windowDays <= 0 {
		return nil, fmt.Errorf("window days %d: %w", windowDays, model.ErrInvalidArgument)
	}

	product, err := a.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	since := a.now().UTC().Add(-time.Duration(windowDays) * 24 * time.Hour)
	history, err := a.store.ListObservations(ctx, productID, &since)
	if err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}

	latest, err := a.latestPair(ctx, productID)
	if err != nil {
		return nil, err
	}

	result := &model.PriceStatsResult{
		ProductID:   product.ID,
		ProductName: product.Name,
		WindowDays:  windowDays,
		History:     history,
	}
	fillPointView(result, latest)
	fillWindowedStats(result, history)
	fillAuctionPassthrough(result, product, latest)

	metrics.IncStatsRequest("windowed")
	return result, nil
}

// ComputeLatest returns only the point price view for a product, derived
// from the two most recent observations of the full history.
func (a *Aggregator) ComputeLatest(ctx context.Context, productID int64) (*model.LatestPrice, error) {
	product, err := a.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	latest, err := a.latestPair(ctx, productID)
	if err != nil {
		return nil, err
	}

	lp := &model.LatestPrice{Currency: "USD"}
	if len(latest) > 0 {
		head := latest[0]
		lp.CurrentPrice = decimalPtr(head.Price)
		lp.InStock = head.InStock
		lp.Currency = head.Currency
		observedAt := head.ObservedAt
		lp.ObservedAt = &observedAt
	}
	if len(latest) > 1 {
		lp.PreviousPrice = decimalPtr(latest[1].Price)
	}
	lp.PriceChange, lp.PriceChangePercent = priceChange(lp.CurrentPrice, lp.PreviousPrice)

	if product.IsAuction {
		if len(latest) > 0 && latest[0].BidCount != nil {
			lp.CurrentBidCount = latest[0].BidCount
		} else {
			lp.CurrentBidCount = product.CurrentBidCount
		}
		lp.BuyItNowPrice = product.BuyItNowPrice
	}

	metrics.IncStatsRequest("latest")
	return lp, nil
}

// latestPair fetches the two most recent observations, newest first.
func (a *Aggregator) latestPair(ctx context.Context, productID int64) ([]model.PriceObservation, error) {
	latest, err := a.store.LatestObservations(ctx, productID, 2)
	if err != nil {
		return nil, fmt.Errorf("latest observations: %w", err)
	}
	return latest, nil
}

func fillPointView(result *model.PriceStatsResult, latest []model.PriceObservation) {
	if len(latest) > 0 {
		result.CurrentPrice = decimalPtr(latest[0].Price)
	}
	if len(latest) > 1 {
		result.PreviousPrice = decimalPtr(latest[1].Price)
	}
	result.PriceChange, result.PriceChangePercent = priceChange(result.CurrentPrice, result.PreviousPrice)
}

func fillWindowedStats(result *model.PriceStatsResult, history []model.PriceObservation) {
	if len(history) == 0 {
		return
	}

	lowest := history[0].Price
	highest := history[0].Price
	sum := decimal.Zero
	for _, obs := range history {
		if obs.Price.LessThan(lowest) {
			lowest = obs.Price
		}
		if obs.Price.GreaterThan(highest) {
			highest = obs.Price
		}
		sum = sum.Add(obs.Price)
	}
	average := sum.Div(decimal.NewFromInt(int64(len(history))))

	result.LowestPrice = decimalPtr(lowest)
	result.HighestPrice = decimalPtr(highest)
	result.AveragePrice = decimalPtr(average)
}

func fillAuctionPassthrough(result *model.PriceStatsResult, product *model.Product, latest []model.PriceObservation) {
	if !product.IsAuction {
		return
	}
	if len(latest) > 0 && latest[0].BidCount != nil {
		result.CurrentBidCount = latest[0].BidCount
	} else {
		result.CurrentBidCount = product.CurrentBidCount
	}
	result.BuyItNowPrice = product.BuyItNowPrice
}

// priceChange derives change and percent change from the two point prices.
// Percent is nil when there is no previous price or it is zero.
func priceChange(current, previous *decimal.Decimal) (*decimal.Decimal, *decimal.Decimal) {
	if current == nil || previous == nil {
		return nil, nil
	}
	change := current.Sub(*previous)
	if previous.IsZero() {
		return decimalPtr(change), nil
	}
	percent := change.Div(*previous).Mul(decimal.NewFromInt(100))
	return decimalPtr(change), decimalPtr(percent)
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
