package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pricewatch/tracker/pkg/model"
)

const (
	settingDefaultFrequency = "default_scan_frequency"
	settingVendorOverrides  = "vendor_scan_overrides"

	latestObsKeyPrefix = "latest_obs:"
	latestObsTTL       = time.Hour
)

// Store defines the contract for persisting and reading tracked vendors,
// products, the price observation log and the scan policy.
type Store interface {
	CreateVendor(ctx context.Context, v *model.Vendor) error
	GetVendor(ctx context.Context, id int64) (*model.Vendor, error)
	ListVendors(ctx context.Context) ([]model.Vendor, error)
	UpdateVendor(ctx context.Context, id int64, upd model.VendorUpdate) (*model.Vendor, error)
	DeleteVendor(ctx context.Context, id int64) error

	CreateProduct(ctx context.Context, p *model.Product) error
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	ListProducts(ctx context.Context, f model.ProductFilter) ([]model.Product, error)
	UpdateProduct(ctx context.Context, id int64, upd model.ProductUpdate) (*model.Product, error)
	DeleteProduct(ctx context.Context, id int64) error

	// ApplyScanFrequency conditionally writes the effective frequency onto a
	// product row. Returns true only when the stored value actually changed,
	// so propagation counts are a meaningful diff.
	ApplyScanFrequency(ctx context.Context, id int64, minutes int) (bool, error)

	AppendObservation(ctx context.Context, obs *model.PriceObservation) error
	ListObservations(ctx context.Context, productID int64, since *time.Time) ([]model.PriceObservation, error)
	// LatestObservations returns up to limit observations, newest first.
	// This is the single "current price" primitive shared by the stats and
	// dashboard aggregators.
	LatestObservations(ctx context.Context, productID int64, limit int) ([]model.PriceObservation, error)

	CountProducts(ctx context.Context) (int64, error)
	CountVendors(ctx context.Context) (int64, error)
	CountObservations(ctx context.Context) (int64, error)

	GetScanPolicy(ctx context.Context) (model.ScanPolicy, error)
	SaveScanPolicy(ctx context.Context, p model.ScanPolicy) error

	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) error

	Migrate(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// ErrCacheMiss is returned by GetJSON when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

type hybridStore struct {
	redis  *redis.Client
	pg     *pgxpool.Pool
	logger *zap.Logger
}

// PGPoolConfig tunes the pgx connection pool.
type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// NewHybrid creates a Redis-first, Postgres-backed store.
func NewHybrid(redisAddr string, redisDB int, redisPass, pgURL string, pgPoolConfig PGPoolConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		DB:       redisDB,
		Password: redisPass,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	var pgPool *pgxpool.Pool
	if pgURL != "" {
		cfg, err := pgxpool.ParseConfig(pgURL)
		if err != nil {
			return nil, fmt.Errorf("invalid pg config: %w", err)
		}
		if pgPoolConfig.MaxConns > 0 {
			cfg.MaxConns = pgPoolConfig.MaxConns
		}
		if pgPoolConfig.MinConns > 0 {
			cfg.MinConns = pgPoolConfig.MinConns
		}
		if pgPoolConfig.MaxConnLifetime > 0 {
			cfg.MaxConnLifetime = pgPoolConfig.MaxConnLifetime
		}
		if pgPoolConfig.MaxConnIdleTime > 0 {
			cfg.MaxConnIdleTime = pgPoolConfig.MaxConnIdleTime
		}
		if pgPoolConfig.HealthCheckPeriod > 0 {
			cfg.HealthCheckPeriod = pgPoolConfig.HealthCheckPeriod
		}
		pgPool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	}

	return &hybridStore{redis: rdb, pg: pgPool, logger: logger}, nil
}

// --- vendors ---

func (s *hybridStore) CreateVendor(ctx context.Context, v *model.Vendor) error {
	if s.pg == nil {
		return fmt.Errorf("postgres unavailable")
	}
	return s.pg.QueryRow(ctx, `
		INSERT INTO vendors (name, domain, is_active)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, v.Name, v.Domain, v.IsActive).Scan(&v.ID, &v.CreatedAt)
}

func (s *hybridStore) GetVendor(ctx context.Context, id int64) (*model.Vendor, error) {
	if s.pg == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	var v model.Vendor
	err := s.pg.QueryRow(ctx, `
		SELECT id, name, domain, is_active, created_at
		FROM vendors WHERE id = $1
	`, id).Scan(&v.ID, &v.Name, &v.Domain, &v.IsActive, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("vendor %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *hybridStore) ListVendors(ctx context.Context) ([]model.Vendor, error) {
	if s.pg == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	rows, err := s.pg.Query(ctx, `
		SELECT id, name, domain, is_active, created_at
		FROM vendors ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.Vendor
	for rows.Next() {
		var v model.Vendor
		if err := rows.Scan(&v.ID, &v.Name, &v.Domain, &v.IsActive, &v.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, rows.Err()
}

func (s *hybridStore) UpdateVendor(ctx context.Context, id int64, upd model.VendorUpdate) (*model.Vendor, error) {
	if s.pg == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	tag, err := s.pg.Exec(ctx, `
		UPDATE vendors SET
			name      = COALESCE($2, name),
			domain    = COALESCE($3, domain),
			is_active = COALESCE($4, is_active)
		WHERE id = $1
	`, id, upd.Name, upd.Domain, upd.IsActive)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("vendor %d: %w", id, model.ErrNotFound)
	}
	return s.GetVendor(ctx, id)
}

func (s *hybridStore) DeleteVendor(ctx context.Context, id int64) error {
	if s.pg == nil {
		return fmt.Errorf("postgres unavailable")
	}
	var productCount int64
	if err := s.pg.QueryRow(ctx,
		`SELECT COUNT(*) FROM products WHERE vendor_id = $1`, id).Scan(&productCount); err != nil {
		return err
	}
	if productCount > 0 {
		return fmt.Errorf("vendor %d owns %d products: %w", id, productCount, model.ErrVendorHasProducts)
	}
	tag, err := s.pg.Exec(ctx, `DELETE FROM vendors WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("vendor %d: %w", id, model.ErrNotFound)
	}
	return nil
}

// --- products ---

const productColumns = `
	id, name, url, vendor_id, image_url, description,
	scan_frequency_minutes, is_active, created_at, last_scanned_at,
	is_auction, auction_end_time, current_bid_count, buy_it_now_price::text
`

func scanProduct(row pgx.Row, p *model.Product) error {
	var buyItNow *string
	if err := row.Scan(
		&p.ID, &p.Name, &p.URL, &p.VendorID, &p.ImageURL, &p.Description,
		&p.ScanFrequencyMinutes, &p.IsActive, &p.CreatedAt, &p.LastScannedAt,
		&p.IsAuction, &p.AuctionEndTime, &p.CurrentBidCount, &buyItNow,
	); err != nil {
		return err
	}
	if buyItNow != nil {
		d, err := decimal.NewFromString(*buyItNow)
		if err != nil {
			return fmt.Errorf("bad buy_it_now_price %q: %w", *buyItNow, err)
		}
		p.BuyItNowPrice = &d
	} else {
		p.BuyItNowPrice = nil
	}
	return nil
}

func (s *hybridStore) CreateProduct(ctx context.Context, p *model.Product) error {
	if s.pg == nil {
		return fmt.Errorf("postgres unavailable")
	}
	var buyItNow *string
	if p.BuyItNowPrice != nil {
		v := p.BuyItNowPrice.String()
		buyItNow = &v
	}
	return s.pg.QueryRow(ctx, `
		INSERT INTO products (
			name, url, vendor_id, image_url, description,
			scan_frequency_minutes, is_active,
			is_auction, auction_end_time, current_bid_count, buy_it_now_price
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::numeric)
		RETURNING id, created_at
	`, p.Name, p.URL, p.VendorID, p.ImageURL, p.Description,
		p.ScanFrequencyMinutes, p.IsActive,
		p.IsAuction, p.AuctionEndTime, p.CurrentBidCount, buyItNow,
	).Scan(&p.ID, &p.CreatedAt)
}

func (s *hybridStore) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	if s.pg == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	var p model.Product
	row := s.pg.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	err := scanProduct(row, &p)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *hybridStore) ListProducts(ctx context.Context, f model.ProductFilter) ([]model.Product, error) {
	if s.pg == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	args := []any{}
	if f.ActiveOnly {
		query += ` AND is_active`
	}
	if f.VendorID != nil {
		args = append(args, *f.VendorID)
		query += ` AND vendor_id = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pg.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.Product
	for rows.Next() {
		var p model.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

func (s *hybridStore) UpdateProduct(ctx context.Context, id int64, upd model.ProductUpdate) (*model.Product, error) {
	if s.pg == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	var buyItNow *string
	if upd.BuyItNowPrice != nil {
		v := upd.BuyItNowPrice.String()
		buyItNow = &v
	}
	tag, err := s.pg.Exec(ctx, `
		UPDATE products SET
			name                   = COALESCE($2, name),
			url                    = COALESCE($3, url),
			vendor_id              = COALESCE($4, vendor_id),
			image_url              = COALESCE($5, image_url),
			description            = COALESCE($6, description),
			is_active              = COALESCE($7, is_active),
			scan_frequency_minutes = COALESCE($8, scan_frequency_minutes),
			is_auction             = COALESCE($9, is_auction),
			auction_end_time       = COALESCE($10, auction_end_time),
			current_bid_count      = COALESCE($11, current_bid_count),
			buy_it_now_price       = COALESCE($12::numeric, buy_it_now_price)
		WHERE id = $1
	`, id, upd.Name, upd.URL, upd.VendorID, upd.ImageURL, upd.Description,
		upd.IsActive, upd.ScanFrequencyMinutes,
		upd.IsAuction, upd.AuctionEndTime, upd.CurrentBidCount, buyItNow)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("product %d: %w", id, model.ErrNotFound)
	}
	return s.GetProduct(ctx, id)
}

func (s *hybridStore) DeleteProduct(ctx context.Context, id int64) error {
	if s.pg == nil {
		return fmt.Errorf("postgres unavailable")
	}
	tag, err := s.pg.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", id, model.ErrNotFound)
	}
	if err := s.redis.Del(ctx, latestObsKey(id)).Err(); err != nil {
		s.logger.Warn("store.redis.del_failed", zap.Int64("product_id", id), zap.Error(err))
	}
	return nil
}

func (s *hybridStore) ApplyScanFrequency(ctx context.Context, id int64, minutes int) (bool, error) {
	if s.pg == nil {
		return false, fmt.Errorf("postgres unavailable")
	}
	tag, err := s.pg.Exec(ctx, `
		UPDATE products SET scan_frequency_minutes = $2
		WHERE id = $1 AND scan_frequency_minutes <> $2
	`, id, minutes)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// --- observations ---

func latestObsKey(productID int64) string {
	return latestObsKeyPrefix + strconv.FormatInt(productID, 10)
}

func (s *hybridStore) AppendObservation(ctx context.Context, obs *model.PriceObservation) error {
	if s.pg == nil {
		return fmt.Errorf("postgres unavailable")
	}
	if obs.ID == uuid.Nil {
		obs.ID = uuid.New()
	}
	if obs.ObservedAt.IsZero() {
		obs.ObservedAt = time.Now().UTC()
	}

	tx, err := s.pg.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO price_history (
			id, product_id, price, currency, in_stock, observed_at,
			bid_count, is_auction_active
		)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8)
	`, obs.ID.String(), obs.ProductID, obs.Price.String(), obs.Currency,
		obs.InStock, obs.ObservedAt, obs.BidCount, obs.IsAuctionActive)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`UPDATE products SET last_scanned_at = $2 WHERE id = $1`,
		obs.ProductID, obs.ObservedAt)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.cacheLatest(ctx, *obs)
	return nil
}

// cacheLatest refreshes the redis latest-observation key for a product.
// Backfilled rows older than the cached latest leave the cache untouched.
func (s *hybridStore) cacheLatest(ctx context.Context, obs model.PriceObservation) {
	if data, err := s.redis.Get(ctx, latestObsKey(obs.ProductID)).Bytes(); err == nil {
		var cached model.PriceObservation
		if json.Unmarshal(data, &cached) == nil && obs.ObservedAt.Before(cached.ObservedAt) {
			return
		}
	}

	data, err := json.Marshal(obs)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, latestObsKey(obs.ProductID), data, latestObsTTL).Err(); err != nil {
		s.logger.Warn("store.redis.cache_latest_failed",
			zap.Int64("product_id", obs.ProductID), zap.Error(err))
	}
}

func (s *hybridStore) ListObservations(ctx context.Context, productID int64, since *time.Time) ([]model.PriceObservation, error) {
	if s.pg == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	query := `
		SELECT id::text, product_id, price::text, currency, in_stock, observed_at,
		       bid_count, is_auction_active
		FROM price_history WHERE product_id = $1`
	args := []any{productID}
	if since != nil {
		args = append(args, *since)
		query += ` AND observed_at >= $2`
	}
	query += ` ORDER BY observed_at ASC, id ASC`

	rows, err := s.pg.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectObservations(rows)
}

func (s *hybridStore) LatestObservations(ctx context.Context, productID int64, limit int) ([]model.PriceObservation, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit %d: %w", limit, model.ErrInvalidArgument)
	}

	// The single-latest lookup is redis-first; anything deeper hits Postgres.
	if limit == 1 {
		data, err := s.redis.Get(ctx, latestObsKey(productID)).Bytes()
		if err == nil {
			var obs model.PriceObservation
			if jsonErr := json.Unmarshal(data, &obs); jsonErr == nil {
				return []model.PriceObservation{obs}, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("store.redis.latest_read_failed",
				zap.Int64("product_id", productID), zap.Error(err))
		}
	}

	if s.pg == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	rows, err := s.pg.Query(ctx, `
		SELECT id::text, product_id, price::text, currency, in_stock, observed_at,
		       bid_count, is_auction_active
		FROM price_history
		WHERE product_id = $1
		ORDER BY observed_at DESC, id DESC
		LIMIT $2
	`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results, err := collectObservations(rows)
	if err != nil {
		return nil, err
	}
	if limit == 1 && len(results) == 1 {
		s.cacheLatest(ctx, results[0])
	}
	return results, nil
}

func collectObservations(rows pgx.Rows) ([]model.PriceObservation, error) {
	var results []model.PriceObservation
	for rows.Next() {
		var (
			obs      model.PriceObservation
			idText   string
			priceStr string
		)
		if err := rows.Scan(&idText, &obs.ProductID, &priceStr, &obs.Currency,
			&obs.InStock, &obs.ObservedAt, &obs.BidCount, &obs.IsAuctionActive); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(idText)
		if err != nil {
			return nil, fmt.Errorf("bad observation id %q: %w", idText, err)
		}
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("bad price %q: %w", priceStr, err)
		}
		obs.ID = id
		obs.Price = price
		results = append(results, obs)
	}
	return results, rows.Err()
}

// --- counts ---

func (s *hybridStore) CountProducts(ctx context.Context) (int64, error) {
	return s.countRows(ctx, `SELECT COUNT(*) FROM products`)
}

func (s *hybridStore) CountVendors(ctx context.Context) (int64, error) {
	return s.countRows(ctx, `SELECT COUNT(*) FROM vendors`)
}

func (s *hybridStore) CountObservations(ctx context.Context) (int64, error) {
	return s.countRows(ctx, `SELECT COUNT(*) FROM price_history`)
}

func (s *hybridStore) countRows(ctx context.Context, query string) (int64, error) {
	if s.pg == nil {
		return 0, fmt.Errorf("postgres unavailable")
	}
	var n int64
	if err := s.pg.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// --- scan policy ---

func (s *hybridStore) GetScanPolicy(ctx context.Context) (model.ScanPolicy, error) {
	policy := model.ScanPolicy{
		DefaultFrequencyMinutes: 60,
		Overrides:               map[int64]int{},
	}
	if s.pg == nil {
		return policy, fmt.Errorf("postgres unavailable")
	}

	rows, err := s.pg.Query(ctx,
		`SELECT key, value FROM settings WHERE key = ANY($1)`,
		[]string{settingDefaultFrequency, settingVendorOverrides})
	if err != nil {
		return policy, err
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return policy, err
		}
		switch key {
		case settingDefaultFrequency:
			n, err := strconv.Atoi(value)
			if err != nil {
				return policy, fmt.Errorf("bad %s %q: %w", key, value, err)
			}
			policy.DefaultFrequencyMinutes = n
		case settingVendorOverrides:
			overrides := map[int64]int{}
			if err := json.Unmarshal([]byte(value), &overrides); err != nil {
				return policy, fmt.Errorf("bad %s: %w", key, err)
			}
			policy.Overrides = overrides
		}
	}
	if err := rows.Err(); err != nil {
		return policy, err
	}
	return policy, nil
}

func (s *hybridStore) SaveScanPolicy(ctx context.Context, p model.ScanPolicy) error {
	if s.pg == nil {
		return fmt.Errorf("postgres unavailable")
	}
	overridesJSON, err := json.Marshal(p.Overrides)
	if err != nil {
		return err
	}

	tx, err := s.pg.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const upsert = `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := tx.Exec(ctx, upsert, settingDefaultFrequency,
		strconv.Itoa(p.DefaultFrequencyMinutes)); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, upsert, settingVendorOverrides,
		string(overridesJSON)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// --- generic JSON cache helpers ---

func (s *hybridStore) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, data, ttl).Err()
}

func (s *hybridStore) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := s.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// --- lifecycle ---

func (s *hybridStore) HealthCheck(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if s.pg != nil {
		if err := s.pg.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	return nil
}

func (s *hybridStore) Close() error {
	if s.pg != nil {
		s.pg.Close()
	}
	return s.redis.Close()
}
