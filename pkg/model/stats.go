package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LatestPrice is the point-in-time price view for a product, derived from
// the two most recent observations of the full (unwindowed) history.
// Nil pointers mean "no data", which is a valid state, not an error.
type LatestPrice struct {
	CurrentPrice       *decimal.Decimal `json:"current_price"`
	PreviousPrice      *decimal.Decimal `json:"previous_price"`
	PriceChange        *decimal.Decimal `json:"price_change"`
	PriceChangePercent *decimal.Decimal `json:"price_change_percent"`
	InStock            bool             `json:"in_stock"`
	Currency           string           `json:"currency"`
	ObservedAt         *time.Time       `json:"observed_at,omitempty"`

	// Auction passthrough; never part of the statistics math.
	CurrentBidCount *int             `json:"current_bid_count,omitempty"`
	BuyItNowPrice   *decimal.Decimal `json:"buy_it_now_price,omitempty"`
}

// PriceStatsResult combines the point view with windowed statistics and the
// windowed history slice for one product.
type PriceStatsResult struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	WindowDays  int    `json:"window_days"`

	CurrentPrice       *decimal.Decimal `json:"current_price"`
	PreviousPrice      *decimal.Decimal `json:"previous_price"`
	PriceChange        *decimal.Decimal `json:"price_change"`
	PriceChangePercent *decimal.Decimal `json:"price_change_percent"`

	LowestPrice  *decimal.Decimal `json:"lowest_price"`
	HighestPrice *decimal.Decimal `json:"highest_price"`
	AveragePrice *decimal.Decimal `json:"average_price"`

	History []PriceObservation `json:"price_history"`

	CurrentBidCount *int             `json:"current_bid_count,omitempty"`
	BuyItNowPrice   *decimal.Decimal `json:"buy_it_now_price,omitempty"`
}

// ProductWithLatestPrice is the dashboard row shape: product fields plus
// the latest-price view and the owning vendor's name.
type ProductWithLatestPrice struct {
	ID                   int64      `json:"id"`
	Name                 string     `json:"name"`
	URL                  string     `json:"url"`
	VendorName           string     `json:"vendor_name"`
	ImageURL             *string    `json:"image_url,omitempty"`
	ScanFrequencyMinutes int        `json:"scan_frequency_minutes"`
	LastScannedAt        *time.Time `json:"last_scanned_at,omitempty"`

	CurrentPrice       *decimal.Decimal `json:"current_price"`
	PreviousPrice      *decimal.Decimal `json:"previous_price"`
	PriceChange        *decimal.Decimal `json:"price_change"`
	PriceChangePercent *decimal.Decimal `json:"price_change_percent"`
	InStock            bool             `json:"in_stock"`
	Currency           string           `json:"currency"`

	IsAuction       bool             `json:"is_auction"`
	AuctionEndTime  *time.Time       `json:"auction_end_time,omitempty"`
	CurrentBidCount *int             `json:"current_bid_count,omitempty"`
	BuyItNowPrice   *decimal.Decimal `json:"buy_it_now_price,omitempty"`
}

// DashboardSummary is the cheap read-side rollup for the dashboard header.
// Counts are best-effort snapshots; they may be momentarily inconsistent
// with each other under concurrent writes.
type DashboardSummary struct {
	TotalProducts     int64 `json:"total_products"`
	TotalVendors      int64 `json:"total_vendors"`
	RecentlyScanned   int64 `json:"recently_scanned"`
	TotalPriceRecords int64 `json:"total_price_records"`
}

// ApplyResult reports a propagation pass. UpdatedCount only counts rows
// whose stored frequency actually changed.
type ApplyResult struct {
	UpdatedCount int `json:"updated_count"`
}
