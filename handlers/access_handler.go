package handlers

import (
	"strings"

	"github.com/anjiri1684/drivesmart/middleware"
	"github.com/anjiri1684/drivesmart/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type AccessHandler struct {
	access *services.AccessService
}

func NewAccessHandler(access *services.AccessService) *AccessHandler {
	return &AccessHandler{access: access}
}

type GrantAccessRequest struct {
	UserID    string `json:"user_id" validate:"required,uuid"`
	PackageID string `json:"package_id" validate:"required,uuid"`
}

func (h *AccessHandler) MyAccess(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return serviceError(c, err)
	}
	views, err := h.access.ActiveAccess(c.UserContext(), userID)
	if err != nil {
		return serviceError(c, err)
	}
	return success(c, fiber.StatusOK, "Active access", views)
}

// ListPackages returns the active catalogue; ?topic= narrows it to one topic.
func (h *AccessHandler) ListPackages(c *fiber.Ctx) error {
	pkgs, err := h.access.ActivePackages(c.UserContext(), strings.TrimSpace(c.Query("topic")))
	if err != nil {
		return serviceError(c, err)
	}
	return success(c, fiber.StatusOK, "Packages", pkgs)
}

func (h *AccessHandler) GetPackage(c *fiber.Ctx) error {
	packageID, err := uuid.Parse(c.Params("packageId"))
	if err != nil {
		return serviceError(c, services.ErrPackageNotFound)
	}
	pkg, err := h.access.Package(c.UserContext(), packageID)
	if err != nil {
		return serviceError(c, err)
	}
	return success(c, fiber.StatusOK, "Package", pkg)
}

func (h *AccessHandler) CheckAccess(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return serviceError(c, err)
	}
	packageID, err := uuid.Parse(c.Params("packageId"))
	if err != nil {
		return serviceError(c, services.ErrPackageNotFound)
	}
	ok, err := h.access.HasAccess(c.UserContext(), userID, packageID)
	if err != nil {
		return serviceError(c, err)
	}
	return success(c, fiber.StatusOK, "Access check", fiber.Map{"package_id": packageID, "has_access": ok})
}

// GrantAccess credits a package to a user after an out-of-band purchase.
func (h *AccessHandler) GrantAccess(c *fiber.Ctx) error {
	var req GrantAccessRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, string(services.KindValidation), "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}
	access, err := h.access.Grant(c.UserContext(), uuid.MustParse(req.UserID), uuid.MustParse(req.PackageID))
	if err != nil {
		return serviceError(c, err)
	}
	return success(c, fiber.StatusCreated, "Access granted", access)
}
