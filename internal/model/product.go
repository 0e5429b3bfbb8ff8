package model

import "time"

// Product types offered in the catalog.
const (
	ProductTypeProduct   = "product"
	ProductTypeIndicator = "indicator"
	ProductTypeStrategy  = "strategy"
)

// ValidProductType reports whether t names a catalog type.
func ValidProductType(t string) bool {
	switch t {
	case ProductTypeProduct, ProductTypeIndicator, ProductTypeStrategy:
		return true
	}
	return false
}

// FAQ is one question/answer pair.  The list is stored serialized as text.
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Product is a sellable catalog entry.
type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Type          string    `json:"type"`
	Price         float64   `json:"price"`
	Description   string    `json:"description"`
	ThumbnailURL  string    `json:"thumbnailUrl,omitempty"`
	GalleryImages []string  `json:"galleryImages,omitempty"`
	YoutubeLink   string    `json:"youtubeLink,omitempty"`
	FAQ           []FAQ     `json:"faq,omitempty"`
	IsActive      bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
}
