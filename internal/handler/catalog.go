package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trading-storefront/internal/service"
)

// CatalogHandler serves products and promo codes, public and admin.
type CatalogHandler struct {
	Catalog *service.CatalogService
}

func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{Catalog: catalog}
}

// ListProducts returns active products, optionally filtered by ?type=.
func (h *CatalogHandler) ListProducts(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	products, err := h.Catalog.ListProducts(ctx, c.QueryParam("type"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"products": products})
}

func (h *CatalogHandler) GetProduct(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Catalog.GetProduct(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"product": p})
}

// ---- admin products ----

func (h *CatalogHandler) AdminListProducts(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	products, err := h.Catalog.ListAllProducts(ctx)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"products": products})
}

func (h *CatalogHandler) CreateProduct(c echo.Context) error {
	var in service.ProductInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Catalog.CreateProduct(ctx, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "Product created successfully", "product": p})
}

func (h *CatalogHandler) UpdateProduct(c echo.Context) error {
	var in service.ProductInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Catalog.UpdateProduct(ctx, c.Param("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Product updated successfully", "product": p})
}

func (h *CatalogHandler) DeleteProduct(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Catalog.DeleteProduct(ctx, c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Product deleted successfully"})
}

// ---- promo codes ----

func (h *CatalogHandler) ListPromos(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	promos, err := h.Catalog.ListPromos(ctx)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"promoCodes": promos})
}

func (h *CatalogHandler) CreatePromo(c echo.Context) error {
	var in service.PromoInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Catalog.CreatePromo(ctx, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *CatalogHandler) UpdatePromo(c echo.Context) error {
	var in service.PromoInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Catalog.UpdatePromo(ctx, c.Param("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *CatalogHandler) DeletePromo(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Catalog.DeletePromo(ctx, c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Promo code deleted successfully"})
}

type validatePromoReq struct {
	PromoCode string `json:"promoCode"`
	ProductID string `json:"productId"`
}

// ValidatePromo quotes a code against a product.  Rule failures answer
// {"valid": false, "message": ...} rather than the usual error envelope.
func (h *CatalogHandler) ValidatePromo(c echo.Context) error {
	var req validatePromoReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	q, err := h.Catalog.ValidatePromo(ctx, req.PromoCode, req.ProductID)
	if err != nil {
		switch service.KindOf(err) {
		case service.KindValidation, service.KindNotFound:
			status, body := errorBody(err)
			return c.JSON(status, echo.Map{"valid": false, "message": body["error"]})
		}
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"valid": true,
		"promoCode": echo.Map{
			"id":              q.Promo.ID,
			"code":            q.Promo.Code,
			"discountType":    q.Promo.DiscountType,
			"discountValue":   q.Promo.DiscountValue,
			"minimumPurchase": q.Promo.MinimumPurchase,
		},
		"originalPrice": q.OriginalPrice,
		"discount":      q.Discount,
		"finalPrice":    q.FinalPrice,
	})
}
