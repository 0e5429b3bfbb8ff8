package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/iliyamo/trading-storefront/internal/logging"
	"github.com/iliyamo/trading-storefront/internal/model"
	"github.com/iliyamo/trading-storefront/internal/repository"
)

const (
	MsgInvalidPromo        = "Invalid promo code"
	MsgPromoInactive       = "This promo code is inactive"
	MsgPromoExpired        = "This promo code has expired"
	MsgPromoExhausted      = "This promo code has reached maximum usage limit"
	MsgPromoNotApplicable  = "This promo code is not applicable for this product"
	MsgProductNotFound     = "Product not found"
	MsgPromoCodeNotFound   = "Promo code not found"
	msgPercentageOver100   = "Percentage discount cannot exceed 100%"
	msgNegativeDiscount    = "Discount value cannot be negative"
	msgInvalidExpiry       = "Invalid expiry date"
	msgInvalidDiscountType = "Discount type must be \"Percentage\" or \"Fixed Amount\""
)

// CatalogService manages products and promo codes.
type CatalogService struct {
	products *repository.ProductRepo
	promos   *repository.PromoRepo
	log      *zap.Logger
	now      func() time.Time
}

func NewCatalogService(products *repository.ProductRepo, promos *repository.PromoRepo, log *zap.Logger) *CatalogService {
	return &CatalogService{products: products, promos: promos, log: log, now: time.Now}
}

// ---- products ----

// ProductInput is the admin create/update payload.  On update nil fields
// are left unchanged.
type ProductInput struct {
	Name          *string      `json:"name"`
	Type          *string      `json:"type"`
	Price         *float64     `json:"price"`
	Description   *string      `json:"description"`
	ThumbnailURL  *string      `json:"thumbnailUrl"`
	GalleryImages *[]string    `json:"galleryImages"`
	YoutubeLink   *string      `json:"youtubeLink"`
	FAQ           *[]model.FAQ `json:"faq"`
	IsActive      *bool        `json:"isActive"`
}

func (in *ProductInput) normalize() {
	trim := func(p *string) {
		if p != nil {
			*p = strings.TrimSpace(*p)
		}
	}
	trim(in.Name)
	trim(in.Description)
	trim(in.ThumbnailURL)
	trim(in.YoutubeLink)
	if in.Type != nil {
		*in.Type = strings.ToLower(strings.TrimSpace(*in.Type))
	}
}

// problems validates the fields present.  creating additionally requires
// name, type and price.
func (in ProductInput) problems(creating bool) []string {
	var out []string
	if in.Name != nil {
		if n := utf8.RuneCountInString(*in.Name); n < 2 || n > 200 {
			out = append(out, "Name must be between 2 and 200 characters")
		}
	} else if creating {
		out = append(out, "Name is required")
	}
	if in.Type != nil {
		if !model.ValidProductType(*in.Type) {
			out = append(out, "Type must be one of: product, indicator, strategy")
		}
	} else if creating {
		out = append(out, "Type is required")
	}
	if in.Price != nil {
		if *in.Price < 0 || math.IsNaN(*in.Price) || math.IsInf(*in.Price, 0) {
			out = append(out, "Price must be a non-negative number")
		}
	} else if creating {
		out = append(out, "Price is required")
	}
	if in.ThumbnailURL != nil && *in.ThumbnailURL != "" && !validURL(*in.ThumbnailURL) {
		out = append(out, "Thumbnail URL must be a valid URL")
	}
	if in.YoutubeLink != nil && *in.YoutubeLink != "" && !validURL(*in.YoutubeLink) {
		out = append(out, "Youtube link must be a valid URL")
	}
	if in.GalleryImages != nil {
		for _, g := range *in.GalleryImages {
			if !validURL(strings.TrimSpace(g)) {
				out = append(out, "Gallery images must be valid URLs")
				break
			}
		}
	}
	if in.FAQ != nil {
		for _, f := range *in.FAQ {
			if strings.TrimSpace(f.Question) == "" || strings.TrimSpace(f.Answer) == "" {
				out = append(out, "Each FAQ entry needs a question and an answer")
				break
			}
		}
	}
	return out
}

func validURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ListProducts returns active products, optionally filtered by type.
func (s *CatalogService) ListProducts(ctx context.Context, productType string) ([]model.Product, error) {
	all, err := s.products.List(ctx)
	if err != nil {
		return nil, external(s.log, err, "Failed to fetch products")
	}
	productType = strings.ToLower(strings.TrimSpace(productType))
	out := make([]model.Product, 0, len(all))
	for _, p := range all {
		if !p.IsActive || (productType != "" && p.Type != productType) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// ListAllProducts returns every product, active or not, for the back office.
func (s *CatalogService) ListAllProducts(ctx context.Context) ([]model.Product, error) {
	all, err := s.products.List(ctx)
	if err != nil {
		return nil, external(s.log, err, "Failed to fetch products")
	}
	return all, nil
}

// GetProduct returns an active product.  Inactive products are reported
// as not found.
func (s *CatalogService) GetProduct(ctx context.Context, id string) (model.Product, error) {
	p, err := s.product(ctx, id)
	if err != nil {
		return model.Product{}, err
	}
	if !p.IsActive {
		return model.Product{}, notFound(MsgProductNotFound)
	}
	return p, nil
}

func (s *CatalogService) product(ctx context.Context, id string) (model.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Product{}, notFound(MsgProductNotFound)
	}
	if err != nil {
		return model.Product{}, external(s.log, err, "Failed to fetch product", logging.ProductID(id))
	}
	return p, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (model.Product, error) {
	in.normalize()
	if problems := in.problems(true); len(problems) > 0 {
		return model.Product{}, validationError("Validation failed", problems...)
	}
	p := model.Product{Name: *in.Name, Type: *in.Type, Price: *in.Price, IsActive: true}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.ThumbnailURL != nil {
		p.ThumbnailURL = *in.ThumbnailURL
	}
	if in.GalleryImages != nil {
		p.GalleryImages = *in.GalleryImages
	}
	if in.YoutubeLink != nil {
		p.YoutubeLink = *in.YoutubeLink
	}
	if in.FAQ != nil {
		p.FAQ = *in.FAQ
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	created, err := s.products.Create(ctx, p)
	if err != nil {
		return model.Product{}, external(s.log, err, "Failed to create product")
	}
	s.log.Info("product created", logging.ProductID(created.ID))
	return created, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id string, in ProductInput) (model.Product, error) {
	in.normalize()
	if problems := in.problems(false); len(problems) > 0 {
		return model.Product{}, validationError("Validation failed", problems...)
	}
	if _, err := s.product(ctx, id); err != nil {
		return model.Product{}, err
	}
	p, err := s.products.Update(ctx, id, repository.ProductUpdate{
		Name:          in.Name,
		Type:          in.Type,
		Price:         in.Price,
		Description:   in.Description,
		ThumbnailURL:  in.ThumbnailURL,
		GalleryImages: in.GalleryImages,
		YoutubeLink:   in.YoutubeLink,
		FAQ:           in.FAQ,
		IsActive:      in.IsActive,
	})
	if err != nil {
		return model.Product{}, external(s.log, err, "Failed to update product", logging.ProductID(id))
	}
	return p, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	if _, err := s.product(ctx, id); err != nil {
		return err
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return external(s.log, err, "Failed to delete product", logging.ProductID(id))
	}
	s.log.Info("product deleted", logging.ProductID(id))
	return nil
}

// ---- promo codes ----

// PromoInput is the admin create/update payload.  ExpiryDate accepts
// YYYY-MM-DD or RFC 3339; an empty string clears it on update, as does a
// zero MaxUses or MinimumPurchase.
type PromoInput struct {
	Code               *string   `json:"promoCode"`
	DiscountType       *string   `json:"discountType"`
	DiscountValue      *float64  `json:"discountValue"`
	ExpiryDate         *string   `json:"expiryDate"`
	MaxUses            *int      `json:"maxUses"`
	IsActive           *bool     `json:"isActive"`
	ApplicableProducts *[]string `json:"applicableProducts"`
	MinimumPurchase    *float64  `json:"minimumPurchase"`
}

// parseExpiry returns nil for an empty value.
func parseExpiry(s string) (*time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, true
		}
	}
	return nil, false
}

// validateDiscount checks type/value consistency.
func validateDiscount(typ string, value float64) *Error {
	if typ != model.DiscountPercentage && typ != model.DiscountFixed {
		return validationError(msgInvalidDiscountType)
	}
	if value < 0 || math.IsNaN(value) {
		return validationError(msgNegativeDiscount)
	}
	if typ == model.DiscountPercentage && value > 100 {
		return validationError(msgPercentageOver100)
	}
	return nil
}

func (s *CatalogService) ListPromos(ctx context.Context) ([]model.PromoCode, error) {
	out, err := s.promos.List(ctx)
	if err != nil {
		return nil, external(s.log, err, "Failed to fetch promo codes")
	}
	return out, nil
}

func (s *CatalogService) CreatePromo(ctx context.Context, in PromoInput) (model.PromoCode, error) {
	if in.Code == nil || strings.TrimSpace(*in.Code) == "" {
		return model.PromoCode{}, validationError("Promo code is required")
	}
	if in.DiscountType == nil || in.DiscountValue == nil {
		return model.PromoCode{}, validationError("Discount type and value are required")
	}
	if e := validateDiscount(*in.DiscountType, *in.DiscountValue); e != nil {
		return model.PromoCode{}, e
	}
	p := model.PromoCode{
		Code:          strings.ToUpper(strings.TrimSpace(*in.Code)),
		DiscountType:  *in.DiscountType,
		DiscountValue: *in.DiscountValue,
		IsActive:      true,
	}
	if in.ExpiryDate != nil {
		exp, ok := parseExpiry(*in.ExpiryDate)
		if !ok {
			return model.PromoCode{}, validationError(msgInvalidExpiry)
		}
		p.ExpiryDate = exp
	}
	if in.MaxUses != nil && *in.MaxUses > 0 {
		p.MaxUses = in.MaxUses
	}
	if in.MinimumPurchase != nil && *in.MinimumPurchase > 0 {
		p.MinimumPurchase = in.MinimumPurchase
	}
	if in.ApplicableProducts != nil {
		p.ApplicableProducts = *in.ApplicableProducts
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}

	if _, err := s.promos.GetByCode(ctx, p.Code); err == nil {
		return model.PromoCode{}, newError(KindConflict, "Promo code already exists")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.PromoCode{}, external(s.log, err, "Failed to create promo code")
	}
	created, err := s.promos.Create(ctx, p)
	if err != nil {
		return model.PromoCode{}, external(s.log, err, "Failed to create promo code")
	}
	s.log.Info("promo code created", zap.String("promo_id", created.ID), zap.String("code", created.Code))
	return created, nil
}

func (s *CatalogService) UpdatePromo(ctx context.Context, id string, in PromoInput) (model.PromoCode, error) {
	cur, err := s.promo(ctx, id)
	if err != nil {
		return model.PromoCode{}, err
	}
	upd := repository.PromoUpdate{
		DiscountType:       in.DiscountType,
		DiscountValue:      in.DiscountValue,
		IsActive:           in.IsActive,
		ApplicableProducts: in.ApplicableProducts,
	}
	if in.Code != nil {
		code := strings.ToUpper(strings.TrimSpace(*in.Code))
		if code == "" {
			return model.PromoCode{}, validationError("Promo code is required")
		}
		if other, err := s.promos.GetByCode(ctx, code); err == nil && other.ID != id {
			return model.PromoCode{}, newError(KindConflict, "Promo code already exists")
		} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return model.PromoCode{}, external(s.log, err, "Failed to update promo code")
		}
		upd.Code = &code
	}
	if in.DiscountType != nil || in.DiscountValue != nil {
		typ, val := cur.DiscountType, cur.DiscountValue
		if in.DiscountType != nil {
			typ = *in.DiscountType
		}
		if in.DiscountValue != nil {
			val = *in.DiscountValue
		}
		if e := validateDiscount(typ, val); e != nil {
			return model.PromoCode{}, e
		}
	}
	if in.ExpiryDate != nil {
		exp, ok := parseExpiry(*in.ExpiryDate)
		if !ok {
			return model.PromoCode{}, validationError(msgInvalidExpiry)
		}
		upd.ExpiryDate, upd.ClearExpiry = exp, exp == nil
	}
	if in.MaxUses != nil {
		if *in.MaxUses > 0 {
			upd.MaxUses = in.MaxUses
		} else {
			upd.ClearMaxUses = true
		}
	}
	if in.MinimumPurchase != nil {
		if *in.MinimumPurchase > 0 {
			upd.MinimumPurchase = in.MinimumPurchase
		} else {
			upd.ClearMinimum = true
		}
	}
	p, err := s.promos.Update(ctx, id, upd)
	if err != nil {
		return model.PromoCode{}, external(s.log, err, "Failed to update promo code")
	}
	return p, nil
}

func (s *CatalogService) DeletePromo(ctx context.Context, id string) error {
	if _, err := s.promo(ctx, id); err != nil {
		return err
	}
	if err := s.promos.Delete(ctx, id); err != nil {
		return external(s.log, err, "Failed to delete promo code")
	}
	return nil
}

func (s *CatalogService) promo(ctx context.Context, id string) (model.PromoCode, error) {
	p, err := s.promos.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.PromoCode{}, notFound(MsgPromoCodeNotFound)
	}
	if err != nil {
		return model.PromoCode{}, external(s.log, err, "Failed to fetch promo code")
	}
	return p, nil
}

// PromoQuote is the outcome of applying a promo code to a product.
type PromoQuote struct {
	Promo         model.PromoCode
	OriginalPrice float64
	Discount      float64
	FinalPrice    float64
}

// EvaluatePromo applies the usage rules in order: active, not expired,
// under its usage cap, applicable to the product, minimum purchase met.
// An expiry date is honored through the end of that UTC day.  The final
// price is rounded to cents and never negative.
func EvaluatePromo(p model.PromoCode, product model.Product, now time.Time) (PromoQuote, error) {
	if !p.IsActive {
		return PromoQuote{}, validationError(MsgPromoInactive)
	}
	if p.ExpiryDate != nil {
		y, m, d := p.ExpiryDate.UTC().Date()
		endOfDay := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
		if !now.UTC().Before(endOfDay) {
			return PromoQuote{}, validationError(MsgPromoExpired)
		}
	}
	if p.MaxUses != nil && p.TimesUsed >= *p.MaxUses {
		return PromoQuote{}, validationError(MsgPromoExhausted)
	}
	if !p.AppliesTo(product.ID) {
		return PromoQuote{}, validationError(MsgPromoNotApplicable)
	}
	if p.MinimumPurchase != nil && product.Price < *p.MinimumPurchase {
		return PromoQuote{}, validationError(fmt.Sprintf("Minimum purchase of $%.2f required for this promo code", *p.MinimumPurchase))
	}

	var discount float64
	switch p.DiscountType {
	case model.DiscountPercentage:
		discount = product.Price * p.DiscountValue / 100
	case model.DiscountFixed:
		discount = p.DiscountValue
	default:
		return PromoQuote{}, validationError(msgInvalidDiscountType)
	}
	final := roundCents(product.Price - discount)
	if final < 0 {
		final = 0
	}
	return PromoQuote{
		Promo:         p,
		OriginalPrice: product.Price,
		Discount:      roundCents(product.Price - final),
		FinalPrice:    final,
	}, nil
}

func roundCents(v float64) float64 { return math.Round(v*100) / 100 }

// ValidatePromo looks a code up case-insensitively and evaluates it
// against an active product.
func (s *CatalogService) ValidatePromo(ctx context.Context, code, productID string) (PromoQuote, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return PromoQuote{}, validationError("Promo code is required")
	}
	if strings.TrimSpace(productID) == "" {
		return PromoQuote{}, validationError("Product ID is required")
	}
	p, err := s.promos.GetByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return PromoQuote{}, notFound(MsgInvalidPromo)
	}
	if err != nil {
		return PromoQuote{}, external(s.log, err, "Failed to validate promo code")
	}
	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return PromoQuote{}, err
	}
	return EvaluatePromo(p, product, s.now())
}

// quoteByID evaluates a promo referenced by id at checkout time.
func (s *CatalogService) quoteByID(ctx context.Context, promoID string, product model.Product) (PromoQuote, error) {
	p, err := s.promos.GetByID(ctx, promoID)
	if errors.Is(err, repository.ErrNotFound) {
		return PromoQuote{}, validationError(MsgInvalidPromo)
	}
	if err != nil {
		return PromoQuote{}, external(s.log, err, "Failed to validate promo code")
	}
	return EvaluatePromo(p, product, s.now())
}

// incrementUsage bumps the usage counter.  Concurrent bumps may lose an
// increment; the store offers no atomic add.
func (s *CatalogService) incrementUsage(ctx context.Context, promoID string) error {
	p, err := s.promos.GetByID(ctx, promoID)
	if err != nil {
		return err
	}
	n := p.TimesUsed + 1
	_, err = s.promos.Update(ctx, promoID, repository.PromoUpdate{TimesUsed: &n})
	return err
}
