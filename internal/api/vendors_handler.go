package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/pricewatch/tracker/pkg/model"
)

// CreateVendorHandler registers a new storefront.
func (h *Handler) CreateVendorHandler(c *fiber.Ctx) error {
	var req VendorCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	v := &model.Vendor{
		Name:     req.Name,
		Domain:   req.Domain,
		IsActive: true,
	}
	if req.IsActive != nil {
		v.IsActive = *req.IsActive
	}

	if err := h.catalog.CreateVendor(c.Context(), v); err != nil {
		return h.fail(c, "create_vendor", err)
	}

	h.logger.Info("api.vendor_created",
		zap.Int64("vendor_id", v.ID),
		zap.String("domain", v.Domain))
	return c.Status(fiber.StatusCreated).JSON(v)
}

func (h *Handler) GetVendorHandler(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	v, err := h.catalog.GetVendor(c.Context(), id)
	if err != nil {
		return h.fail(c, "get_vendor", err)
	}
	return c.JSON(v)
}

func (h *Handler) ListVendorsHandler(c *fiber.Ctx) error {
	vendors, err := h.catalog.ListVendors(c.Context())
	if err != nil {
		return h.fail(c, "list_vendors", err)
	}
	if vendors == nil {
		vendors = []model.Vendor{}
	}
	return c.JSON(vendors)
}

func (h *Handler) UpdateVendorHandler(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	var upd model.VendorUpdate
	if err := c.BodyParser(&upd); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	v, err := h.catalog.UpdateVendor(c.Context(), id, upd)
	if err != nil {
		return h.fail(c, "update_vendor", err)
	}
	return c.JSON(v)
}

// DeleteVendorHandler removes a vendor. Vendors that still own products are
// rejected with a conflict.
func (h *Handler) DeleteVendorHandler(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := h.catalog.DeleteVendor(c.Context(), id); err != nil {
		return h.fail(c, "delete_vendor", err)
	}
	h.logger.Info("api.vendor_deleted", zap.Int64("vendor_id", id))
	return c.SendStatus(fiber.StatusNoContent)
}
