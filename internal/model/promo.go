package model

import "time"

// Discount types.  The strings are the values stored in the promo table.
const (
	DiscountPercentage = "Percentage"
	DiscountFixed      = "Fixed Amount"
)

// PromoCode is a discount rule.  Code is stored upper-cased.  An empty
// ApplicableProducts list means the code applies to every product.
type PromoCode struct {
	ID                 string     `json:"id"`
	Code               string     `json:"code"`
	DiscountType       string     `json:"discountType"`
	DiscountValue      float64    `json:"discountValue"`
	ExpiryDate         *time.Time `json:"expiryDate,omitempty"`
	MaxUses            *int       `json:"maxUses,omitempty"`
	TimesUsed          int        `json:"timesUsed"`
	IsActive           bool       `json:"isActive"`
	ApplicableProducts []string   `json:"applicableProducts"`
	MinimumPurchase    *float64   `json:"minimumPurchase,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// AppliesTo reports whether the code may be used for productID.
func (p PromoCode) AppliesTo(productID string) bool {
	if len(p.ApplicableProducts) == 0 {
		return true
	}
	for _, id := range p.ApplicableProducts {
		if id == productID {
			return true
		}
	}
	return false
}
