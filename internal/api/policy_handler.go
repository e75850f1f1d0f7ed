package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// GetScanPolicyHandler returns the current scan-frequency policy.
func (h *Handler) GetScanPolicyHandler(c *fiber.Ctx) error {
	p, err := h.policy.Settings(c.Context())
	if err != nil {
		return h.fail(c, "get_policy", err)
	}
	return c.JSON(p)
}

// PutScanPolicyHandler replaces the whole policy (default plus overrides).
func (h *Handler) PutScanPolicyHandler(c *fiber.Ctx) error {
	var req PolicyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := h.policy.Replace(c.Context(), req.toPolicy()); err != nil {
		return h.fail(c, "put_policy", err)
	}
	p, err := h.policy.Settings(c.Context())
	if err != nil {
		return h.fail(c, "put_policy", err)
	}
	h.logger.Info("api.policy_replaced",
		zap.Int("default_minutes", p.DefaultFrequencyMinutes),
		zap.Int("overrides", len(p.Overrides)))
	return c.JSON(p)
}

// PutVendorOverrideHandler sets or clears one vendor's override. A null
// minutes in the body clears it.
func (h *Handler) PutVendorOverrideHandler(c *fiber.Ctx) error {
	vendorID, err := pathID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	var req OverrideRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := h.policy.SetOverride(c.Context(), vendorID, req.Minutes); err != nil {
		return h.fail(c, "put_override", err)
	}
	p, err := h.policy.Settings(c.Context())
	if err != nil {
		return h.fail(c, "put_override", err)
	}
	return c.JSON(p)
}

// DeleteVendorOverrideHandler clears one vendor's override.
func (h *Handler) DeleteVendorOverrideHandler(c *fiber.Ctx) error {
	vendorID, err := pathID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := h.policy.SetOverride(c.Context(), vendorID, nil); err != nil {
		return h.fail(c, "delete_override", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetEffectiveFrequencyHandler resolves the cadence one vendor would get.
func (h *Handler) GetEffectiveFrequencyHandler(c *fiber.Ctx) error {
	vendorID, err := pathID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	minutes, err := h.policy.ResolveEffective(c.Context(), vendorID)
	if err != nil {
		return h.fail(c, "resolve_effective", err)
	}
	return c.JSON(fiber.Map{
		"vendor_id":         vendorID,
		"effective_minutes": minutes,
	})
}

// ApplyPolicyHandler propagates the policy onto product rows. With
// ?vendor_id=N only that vendor's products are touched; otherwise all
// active products are.
func (h *Handler) ApplyPolicyHandler(c *fiber.Ctx) error {
	var vendorID *int64
	if raw := c.Query("vendor_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid vendor_id"})
		}
		vendorID = &id
	}

	result, err := h.policy.ApplyToProducts(c.Context(), vendorID)
	if err != nil {
		return h.fail(c, "apply_policy", err)
	}

	fields := []zap.Field{zap.Int("updated_count", result.UpdatedCount)}
	if vendorID != nil {
		fields = append(fields, zap.Int64("vendor_id", *vendorID))
	}
	h.logger.Info("api.policy_applied", fields...)
	return c.JSON(result)
}
