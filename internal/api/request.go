package api

import (
	"errors"
	"strings"

	"github.com/pricewatch/tracker/pkg/model"
)

// VendorCreateRequest is the payload to register a storefront.
type VendorCreateRequest struct {
	Name     string `json:"name" example:"Acme Surplus"`
	Domain   string `json:"domain" example:"acme.example.com"`
	IsActive *bool  `json:"is_active,omitempty"`
}

func (r VendorCreateRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(r.Domain) == "" {
		return errors.New("domain is required")
	}
	return nil
}

// ProductCreateRequest is the payload to start tracking a listing.
// ScanFrequencyMinutes of zero means "use the policy for this vendor".
type ProductCreateRequest struct {
	Name                 string  `json:"name" example:"Mechanical keyboard"`
	URL                  string  `json:"url" example:"https://acme.example.com/p/123"`
	VendorID             int64   `json:"vendor_id" example:"1"`
	ImageURL             *string `json:"image_url,omitempty"`
	Description          *string `json:"description,omitempty"`
	ScanFrequencyMinutes int     `json:"scan_frequency_minutes,omitempty"`
	IsAuction            bool    `json:"is_auction,omitempty"`
}

func (r ProductCreateRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(r.URL) == "" {
		return errors.New("url is required")
	}
	if r.VendorID <= 0 {
		return errors.New("vendor_id is required")
	}
	if r.ScanFrequencyMinutes < 0 {
		return errors.New("scan_frequency_minutes must be positive")
	}
	return nil
}

// PolicyRequest replaces the whole scan-frequency policy. Override keys are
// vendor IDs.
type PolicyRequest struct {
	DefaultFrequencyMinutes int           `json:"default_scan_frequency_minutes"`
	VendorOverrides         map[int64]int `json:"vendor_scan_overrides,omitempty"`
}

func (r PolicyRequest) toPolicy() model.ScanPolicy {
	return model.ScanPolicy{
		DefaultFrequencyMinutes: r.DefaultFrequencyMinutes,
		Overrides:               r.VendorOverrides,
	}
}

// OverrideRequest sets or clears one vendor's frequency override. A null
// minutes clears the override.
type OverrideRequest struct {
	Minutes *int `json:"minutes"`
}
