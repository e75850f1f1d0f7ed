package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Vendor is a tracked storefront. Deleting a vendor that still owns
// products is rejected; disabling it is done via IsActive instead.
type Vendor struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// VendorUpdate carries the mutable vendor fields; nil means "leave as is".
type VendorUpdate struct {
	Name     *string `json:"name,omitempty"`
	Domain   *string `json:"domain,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// Product is a tracked listing on a vendor site. ScanFrequencyMinutes is
// the effective cadence as of the last policy resolution; it may diverge
// from the current policy until apply-to-products is run again.
type Product struct {
	ID                   int64      `json:"id"`
	Name                 string     `json:"name"`
	URL                  string     `json:"url"`
	VendorID             int64      `json:"vendor_id"`
	ImageURL             *string    `json:"image_url,omitempty"`
	Description          *string    `json:"description,omitempty"`
	ScanFrequencyMinutes int        `json:"scan_frequency_minutes"`
	IsActive             bool       `json:"is_active"`
	CreatedAt            time.Time  `json:"created_at"`
	LastScannedAt        *time.Time `json:"last_scanned_at,omitempty"`

	// Auction tracking (optional, for auction-style listings)
	IsAuction       bool             `json:"is_auction"`
	AuctionEndTime  *time.Time       `json:"auction_end_time,omitempty"`
	CurrentBidCount *int             `json:"current_bid_count,omitempty"`
	BuyItNowPrice   *decimal.Decimal `json:"buy_it_now_price,omitempty"`
}

// ProductUpdate carries the mutable product fields; nil means "leave as is".
// A ScanFrequencyMinutes set here is a plain per-product edit and bypasses
// the scan policy resolver.
type ProductUpdate struct {
	Name                 *string          `json:"name,omitempty"`
	URL                  *string          `json:"url,omitempty"`
	VendorID             *int64           `json:"vendor_id,omitempty"`
	ImageURL             *string          `json:"image_url,omitempty"`
	Description          *string          `json:"description,omitempty"`
	IsActive             *bool            `json:"is_active,omitempty"`
	ScanFrequencyMinutes *int             `json:"scan_frequency_minutes,omitempty"`
	IsAuction            *bool            `json:"is_auction,omitempty"`
	AuctionEndTime       *time.Time       `json:"auction_end_time,omitempty"`
	CurrentBidCount      *int             `json:"current_bid_count,omitempty"`
	BuyItNowPrice        *decimal.Decimal `json:"buy_it_now_price,omitempty"`
}

// ProductFilter narrows ListProducts.
type ProductFilter struct {
	ActiveOnly bool
	VendorID   *int64
	Offset     int
	Limit      int
}
