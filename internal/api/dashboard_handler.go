package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pricewatch/tracker/pkg/model"
)

// GetSummaryHandler serves the dashboard header counts.
func (h *Handler) GetSummaryHandler(c *fiber.Ctx) error {
	summary, err := h.dashboard.GetSummary(c.Context())
	if err != nil {
		return h.fail(c, "summary", err)
	}
	return c.JSON(summary)
}

// ListDashboardProductsHandler serves the main dashboard grid: every active
// product joined with its latest-price view and vendor name.
func (h *Handler) ListDashboardProductsHandler(c *fiber.Ctx) error {
	rows, err := h.dashboard.ListProductsWithLatestPrice(c.Context())
	if err != nil {
		return h.fail(c, "dashboard_products", err)
	}
	if rows == nil {
		rows = []model.ProductWithLatestPrice{}
	}
	return c.JSON(rows)
}

// GetProductStatsHandler computes windowed price statistics for one
// product. ?days=N sets the window (default 30).
func (h *Handler) GetProductStatsHandler(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	days := c.QueryInt("days", 30)

	result, err := h.stats.ComputeStats(c.Context(), id, days)
	if err != nil {
		return h.fail(c, "product_stats", err)
	}
	return c.JSON(result)
}
