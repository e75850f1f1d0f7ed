package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/pricewatch/tracker/internal/scanner"
	"github.com/pricewatch/tracker/pkg/model"
)

// Catalog is the store subset the CRUD handlers need.
type Catalog interface {
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

	ListObservations(ctx context.Context, productID int64, since *time.Time) ([]model.PriceObservation, error)
}

// StatsService computes per-product price statistics.
type StatsService interface {
	ComputeStats(ctx context.Context, productID int64, windowDays int) (*model.PriceStatsResult, error)
}

// PolicyService manages the scan-frequency policy and its propagation.
type PolicyService interface {
	Settings(ctx context.Context) (model.ScanPolicy, error)
	ResolveEffective(ctx context.Context, vendorID int64) (int, error)
	SetDefault(ctx context.Context, minutes int) error
	SetOverride(ctx context.Context, vendorID int64, minutes *int) error
	Replace(ctx context.Context, p model.ScanPolicy) error
	ApplyToProducts(ctx context.Context, vendorID *int64) (model.ApplyResult, error)
}

// DashboardService serves the dashboard read models.
type DashboardService interface {
	GetSummary(ctx context.Context) (*model.DashboardSummary, error)
	ListProductsWithLatestPrice(ctx context.Context) ([]model.ProductWithLatestPrice, error)
}

// ScanService drives manual scans.
type ScanService interface {
	ScanProduct(ctx context.Context, id int64) (*model.PriceObservation, error)
	SweepOnce(ctx context.Context) (int, error)
	Status() scanner.Status
}

// Handler holds the HTTP handlers for the tracker API.
type Handler struct {
	logger    *zap.Logger
	catalog   Catalog
	stats     StatsService
	policy    PolicyService
	dashboard DashboardService
	scans     ScanService
}

// NewHandler creates a Handler. scans may be nil when the scanner is
// disabled; the scan endpoints then return 503.
func NewHandler(logger *zap.Logger, catalog Catalog, stats StatsService, policy PolicyService, dashboard DashboardService, scans ScanService) *Handler {
	return &Handler{
		logger:    logger,
		catalog:   catalog,
		stats:     stats,
		policy:    policy,
		dashboard: dashboard,
		scans:     scans,
	}
}

// fail maps domain errors to HTTP statuses. Unknown errors are logged and
// hidden behind a 500.
func (h *Handler) fail(c *fiber.Ctx, op string, err error) error {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, model.ErrInvalidArgument):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, model.ErrPropagationConflict), errors.Is(err, model.ErrVendorHasProducts):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, model.ErrNoPrice):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}
	h.logger.Error("api."+op+".failed", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}

func pathID(c *fiber.Ctx, name string) (int64, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return int64(id), nil
}
