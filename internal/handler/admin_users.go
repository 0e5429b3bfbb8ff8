package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trading-storefront/internal/middleware"
	"github.com/iliyamo/trading-storefront/internal/service"
)

// AdminUserHandler serves /admin/users.
type AdminUserHandler struct {
	Admin *service.AdminService
}

func NewAdminUserHandler(admin *service.AdminService) *AdminUserHandler {
	return &AdminUserHandler{Admin: admin}
}

func (h *AdminUserHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	users, err := h.Admin.ListUsers(ctx)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"users": users})
}

func (h *AdminUserHandler) Update(c echo.Context) error {
	var patch service.UserPatch
	if err := c.Bind(&patch); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Admin.UpdateUser(ctx, middleware.UserID(c), c.Param("id"), patch)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "User updated successfully", "user": u})
}

func (h *AdminUserHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Admin.DeleteUser(ctx, middleware.UserID(c), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "User deleted successfully"})
}
