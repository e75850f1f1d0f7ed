package scanner

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pricewatch/tracker/internal/httpclient"
	"github.com/pricewatch/tracker/pkg/model"
)

// fetchResponse is the fetcher service's quote payload. A null price means
// the page was reached but no price could be extracted.
type fetchResponse struct {
	Price           *string `json:"price"`
	Currency        string  `json:"currency"`
	InStock         bool    `json:"in_stock"`
	BidCount        *int    `json:"bid_count,omitempty"`
	IsAuctionActive *bool   `json:"is_auction_active,omitempty"`
}

// FetcherSource resolves quotes through the external fetcher service, which
// owns the actual page retrieval and extraction.
type FetcherSource struct {
	logger  *zap.Logger
	exec    *httpclient.Executor
	baseURL string
}

func NewFetcherSource(logger *zap.Logger, exec *httpclient.Executor, baseURL string) *FetcherSource {
	return &FetcherSource{
		logger:  logger,
		exec:    exec,
		baseURL: baseURL,
	}
}

func (s *FetcherSource) Fetch(ctx context.Context, product model.Product, vendor model.Vendor) (*Quote, error) {
	endpoint := fmt.Sprintf("%s/fetch?url=%s&vendor=%s",
		s.baseURL, url.QueryEscape(product.URL), url.QueryEscape(vendor.Domain))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}

	var out fetchResponse
	if err := s.exec.DoJSON(ctx, req, vendor.Domain, &out); err != nil {
		return nil, err
	}

	if out.Price == nil {
		s.logger.Debug("fetcher.no_price",
			zap.Int64("product_id", product.ID),
			zap.String("url", product.URL))
		return nil, nil
	}

	price, err := decimal.NewFromString(*out.Price)
	if err != nil {
		return nil, fmt.Errorf("parse price %q: %w", *out.Price, err)
	}

	currency := out.Currency
	if currency == "" {
		currency = "USD"
	}

	return &Quote{
		Price:           price,
		Currency:        currency,
		InStock:         out.InStock,
		BidCount:        out.BidCount,
		IsAuctionActive: out.IsAuctionActive,
	}, nil
}
