package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceObservation is one immutable timestamped price/stock reading for a
// product. The log is append-only and ordered by ObservedAt ascending;
// two observations in the same minute are valid, not duplicates to reject.
type PriceObservation struct {
	ID         uuid.UUID       `json:"id"`
	ProductID  int64           `json:"product_id"`
	Price      decimal.Decimal `json:"price"`
	Currency   string          `json:"currency"`
	InStock    bool            `json:"in_stock"`
	ObservedAt time.Time       `json:"observed_at"`

	// Auction data, captured only when the product is an auction
	BidCount        *int  `json:"bid_count,omitempty"`
	IsAuctionActive *bool `json:"is_auction_active,omitempty"`
}

// ScanPolicy is the two-level scan cadence policy: a global default plus
// per-vendor overrides. Every value is a positive number of minutes, and an
// override equal to the default is never stored (it is normalized away so
// "explicit override" and "inherits default" stay unambiguous).
type ScanPolicy struct {
	DefaultFrequencyMinutes int           `json:"default_frequency"`
	Overrides               map[int64]int `json:"vendor_overrides"`
}

// Normalize drops overrides equal to the default and guarantees a non-nil
// override map.
func (p *ScanPolicy) Normalize() {
	if p.Overrides == nil {
		p.Overrides = make(map[int64]int)
		return
	}
	for vendorID, minutes := range p.Overrides {
		if minutes == p.DefaultFrequencyMinutes {
			delete(p.Overrides, vendorID)
		}
	}
}

// EffectiveFrequency resolves the cadence for a vendor: override if present,
// else the default. This is the single resolution point for the whole core.
func (p ScanPolicy) EffectiveFrequency(vendorID int64) int {
	if minutes, ok := p.Overrides[vendorID]; ok {
		return minutes
	}
	return p.DefaultFrequencyMinutes
}
