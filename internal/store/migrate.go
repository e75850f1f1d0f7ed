package store

import (
	"context"
	"fmt"
)

// schema is applied at startup; every statement is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS vendors (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	domain     TEXT NOT NULL,
	is_active  BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS products (
	id                     BIGSERIAL PRIMARY KEY,
	name                   TEXT NOT NULL,
	url                    TEXT NOT NULL UNIQUE,
	vendor_id              BIGINT NOT NULL REFERENCES vendors(id),
	image_url              TEXT,
	description            TEXT,
	scan_frequency_minutes INTEGER NOT NULL DEFAULT 60 CHECK (scan_frequency_minutes > 0),
	is_active              BOOLEAN NOT NULL DEFAULT TRUE,
	created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_scanned_at        TIMESTAMPTZ,
	is_auction             BOOLEAN NOT NULL DEFAULT FALSE,
	auction_end_time       TIMESTAMPTZ,
	current_bid_count      INTEGER,
	buy_it_now_price       NUMERIC(18,6)
);

CREATE INDEX IF NOT EXISTS idx_products_vendor ON products (vendor_id);

CREATE TABLE IF NOT EXISTS price_history (
	id                UUID PRIMARY KEY,
	product_id        BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	price             NUMERIC(18,6) NOT NULL CHECK (price >= 0),
	currency          TEXT NOT NULL DEFAULT 'USD',
	in_stock          BOOLEAN NOT NULL DEFAULT TRUE,
	observed_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	bid_count         INTEGER,
	is_auction_active BOOLEAN
);

CREATE INDEX IF NOT EXISTS idx_price_history_product_time
	ON price_history (product_id, observed_at DESC);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Migrate creates the tracker tables if they do not exist yet.
func (s *hybridStore) Migrate(ctx context.Context) error {
	if s.pg == nil {
		return fmt.Errorf("postgres unavailable")
	}
	if _, err := s.pg.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
