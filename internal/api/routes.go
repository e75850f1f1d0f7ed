package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pricewatch/tracker/internal/store"
)

func RegisterRoutes(app *fiber.App, nc *nats.Conn, st store.Store, h *Handler) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		checks := map[string]string{
			"nats":  "ok",
			"store": "ok",
		}
		status := "ok"
		code := fiber.StatusOK

		if nc == nil {
			checks["nats"] = "disabled"
		} else if !nc.IsConnected() {
			checks["nats"] = "disconnected"
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}

		healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := st.HealthCheck(healthCtx); err != nil {
			checks["store"] = err.Error()
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	})

	v1 := app.Group("/api/v1")

	vendors := v1.Group("/vendors")
	vendors.Get("/", h.ListVendorsHandler)
	vendors.Post("/", h.CreateVendorHandler)
	vendors.Get("/:id", h.GetVendorHandler)
	vendors.Put("/:id", h.UpdateVendorHandler)
	vendors.Delete("/:id", h.DeleteVendorHandler)

	products := v1.Group("/products")
	products.Get("/", h.ListProductsHandler)
	products.Post("/", h.CreateProductHandler)
	products.Get("/:id", h.GetProductHandler)
	products.Put("/:id", h.UpdateProductHandler)
	products.Delete("/:id", h.DeleteProductHandler)
	products.Get("/:id/history", h.ListProductHistoryHandler)
	products.Get("/:id/stats", h.GetProductStatsHandler)
	products.Post("/:id/scan", h.ScanProductHandler)

	dashboard := v1.Group("/dashboard")
	dashboard.Get("/summary", h.GetSummaryHandler)
	dashboard.Get("/products", h.ListDashboardProductsHandler)
	dashboard.Get("/products/:id/stats", h.GetProductStatsHandler)

	settings := v1.Group("/settings/scan-frequency")
	settings.Get("/", h.GetScanPolicyHandler)
	settings.Put("/", h.PutScanPolicyHandler)
	settings.Post("/apply-to-products", h.ApplyPolicyHandler)
	settings.Put("/vendors/:id", h.PutVendorOverrideHandler)
	settings.Delete("/vendors/:id", h.DeleteVendorOverrideHandler)
	settings.Get("/vendors/:id/effective", h.GetEffectiveFrequencyHandler)

	scanner := v1.Group("/scanner")
	scanner.Post("/scan-all", h.ScanAllHandler)
	scanner.Get("/status", h.ScannerStatusHandler)
}
