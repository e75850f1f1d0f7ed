package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/pricewatch/tracker/pkg/model"
)

// CreateProductHandler starts tracking a listing. When no scan frequency is
// supplied, the effective policy for the owning vendor is stamped onto the
// row so the sweeper can schedule it immediately.
func (h *Handler) CreateProductHandler(c *fiber.Ctx) error {
	var req ProductCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if _, err := h.catalog.GetVendor(c.Context(), req.VendorID); err != nil {
		return h.fail(c, "create_product", err)
	}

	freq := req.ScanFrequencyMinutes
	if freq == 0 {
		resolved, err := h.policy.ResolveEffective(c.Context(), req.VendorID)
		if err != nil {
			return h.fail(c, "create_product", err)
		}
		freq = resolved
	}

	p := &model.Product{
		Name:                 req.Name,
		URL:                  req.URL,
		VendorID:             req.VendorID,
		ImageURL:             req.ImageURL,
		Description:          req.Description,
		ScanFrequencyMinutes: freq,
		IsActive:             true,
		IsAuction:            req.IsAuction,
	}
	if err := h.catalog.CreateProduct(c.Context(), p); err != nil {
		return h.fail(c, "create_product", err)
	}

	h.logger.Info("api.product_created",
		zap.Int64("product_id", p.ID),
		zap.Int64("vendor_id", p.VendorID),
		zap.Int("scan_frequency_minutes", p.ScanFrequencyMinutes))
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *Handler) GetProductHandler(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	p, err := h.catalog.GetProduct(c.Context(), id)
	if err != nil {
		return h.fail(c, "get_product", err)
	}
	return c.JSON(p)
}

func (h *Handler) ListProductsHandler(c *fiber.Ctx) error {
	filter := model.ProductFilter{
		ActiveOnly: c.QueryBool("active_only", false),
		Offset:     c.QueryInt("skip", 0),
		Limit:      c.QueryInt("limit", 0),
	}
	if v := c.QueryInt("vendor_id", 0); v > 0 {
		vendorID := int64(v)
		filter.VendorID = &vendorID
	}

	products, err := h.catalog.ListProducts(c.Context(), filter)
	if err != nil {
		return h.fail(c, "list_products", err)
	}
	if products == nil {
		products = []model.Product{}
	}
	return c.JSON(products)
}

func (h *Handler) UpdateProductHandler(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	var upd model.ProductUpdate
	if err := c.BodyParser(&upd); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if upd.ScanFrequencyMinutes != nil && *upd.ScanFrequencyMinutes <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "scan_frequency_minutes must be positive"})
	}
	p, err := h.catalog.UpdateProduct(c.Context(), id, upd)
	if err != nil {
		return h.fail(c, "update_product", err)
	}
	return c.JSON(p)
}

func (h *Handler) DeleteProductHandler(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := h.catalog.DeleteProduct(c.Context(), id); err != nil {
		return h.fail(c, "delete_product", err)
	}
	h.logger.Info("api.product_deleted", zap.Int64("product_id", id))
	return c.SendStatus(fiber.StatusNoContent)
}

// ListProductHistoryHandler returns the raw observations for a product,
// optionally windowed by ?days=N.
func (h *Handler) ListProductHistoryHandler(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if _, err := h.catalog.GetProduct(c.Context(), id); err != nil {
		return h.fail(c, "product_history", err)
	}

	var since *time.Time
	if days := c.QueryInt("days", 0); days != 0 {
		if days < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "days must be positive"})
		}
		cutoff := time.Now().UTC().AddDate(0, 0, -days)
		since = &cutoff
	}

	history, err := h.catalog.ListObservations(c.Context(), id, since)
	if err != nil {
		return h.fail(c, "product_history", err)
	}
	if history == nil {
		history = []model.PriceObservation{}
	}
	return c.JSON(history)
}

// ScanProductHandler force-scans one product immediately.
func (h *Handler) ScanProductHandler(c *fiber.Ctx) error {
	if h.scans == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "scanner disabled"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	obs, err := h.scans.ScanProduct(c.Context(), id)
	if err != nil {
		return h.fail(c, "scan_product", err)
	}
	return c.Status(fiber.StatusCreated).JSON(obs)
}

// ScanAllHandler sweeps every due product immediately.
func (h *Handler) ScanAllHandler(c *fiber.Ctx) error {
	if h.scans == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "scanner disabled"})
	}
	scanned, err := h.scans.SweepOnce(c.Context())
	if err != nil {
		return h.fail(c, "scan_all", err)
	}
	h.logger.Info("api.scan_all_complete", zap.Int("scanned", scanned))
	return c.JSON(fiber.Map{"scanned": scanned})
}

func (h *Handler) ScannerStatusHandler(c *fiber.Ctx) error {
	if h.scans == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "scanner disabled"})
	}
	return c.JSON(h.scans.Status())
}
