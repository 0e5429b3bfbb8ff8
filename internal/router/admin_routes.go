package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trading-storefront/internal/handler"
	"github.com/iliyamo/trading-storefront/internal/middleware"
)

// RegisterAdmin registers admin-scoped endpoints under /api.  All routes
// require a valid JWT and the admin role.  Product writes purge the
// cached public catalog.
func RegisterAdmin(e *echo.Echo, cat *handler.CatalogHandler, users *handler.AdminUserHandler, g Guards) {
	a := g.api(e, g.bearer(), middleware.RequireAdmin(), middleware.CSRF(g.CSRF))

	// ---- Products ----
	products := a.Group("/admin/products", g.Cache.PurgeOnWrite())
	products.GET("", cat.AdminListProducts)
	products.POST("", cat.CreateProduct)
	products.PATCH("/:id", cat.UpdateProduct)
	products.DELETE("/:id", cat.DeleteProduct)

	// ---- Promo codes ----
	a.GET("/admin/promo-codes", cat.ListPromos)
	a.POST("/admin/promo-codes", cat.CreatePromo)
	a.PATCH("/admin/promo-codes/:id", cat.UpdatePromo)
	a.DELETE("/admin/promo-codes/:id", cat.DeletePromo)

	// ---- Users ----
	a.GET("/admin/users", users.List)
	a.PATCH("/admin/users/:id", users.Update)
	a.DELETE("/admin/users/:id", users.Delete)
}

// RegisterAdminOrders registers the order ledger endpoints that only
// admins may call.
func RegisterAdminOrders(e *echo.Echo, h *handler.OrderHandler, g Guards) {
	a := g.api(e, g.bearer(), middleware.RequireAdmin(), middleware.CSRF(g.CSRF))
	a.GET("/orders", h.List)
	a.GET("/orders/stats", h.Stats)
	a.PATCH("/orders/:orderId/status", h.UpdateStatus)
}
