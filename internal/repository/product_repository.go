package repository

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/iliyamo/trading-storefront/internal/model"
	"github.com/iliyamo/trading-storefront/internal/recordstore"
)

// Field names of the Products table.
const (
	fProductName        = "Name / Title"
	fProductType        = "Type"
	fProductPrice       = "Price"
	fProductDescription = "Description"
	fProductThumbnail   = "Thumbnail URL"
	fProductGallery     = "Gallery Images"
	fProductYoutube     = "Youtube Link"
	fProductFAQ         = "FAQ"
	fProductActive      = "IsActive"
)

// ProductRepo is the product catalog adapter.
type ProductRepo struct {
	store recordstore.Store
	table string
}

func NewProductRepo(store recordstore.Store, table string) *ProductRepo {
	return &ProductRepo{store: store, table: table}
}

// ProductUpdate is a partial update; nil fields are left untouched.
type ProductUpdate struct {
	Name          *string
	Type          *string
	Price         *float64
	Description   *string
	ThumbnailURL  *string
	GalleryImages *[]string
	YoutubeLink   *string
	FAQ           *[]model.FAQ
	IsActive      *bool
}

func (r *ProductRepo) List(ctx context.Context) ([]model.Product, error) {
	recs, err := r.store.List(ctx, r.table, recordstore.ListOptions{})
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]model.Product, 0, len(recs))
	for _, rec := range recs {
		out = append(out, decodeProduct(rec))
	}
	return out, nil
}

func (r *ProductRepo) GetByID(ctx context.Context, id string) (model.Product, error) {
	rec, err := r.store.Get(ctx, r.table, id)
	if err != nil {
		return model.Product{}, mapErr(err)
	}
	return decodeProduct(rec), nil
}

func (r *ProductRepo) Create(ctx context.Context, p model.Product) (model.Product, error) {
	fields := recordstore.Fields{
		fProductName:        p.Name,
		fProductType:        storedType(p.Type),
		fProductPrice:       p.Price,
		fProductDescription: p.Description,
		fProductThumbnail:   p.ThumbnailURL,
		fProductGallery:     joinList(p.GalleryImages),
		fProductYoutube:     p.YoutubeLink,
		fProductFAQ:         encodeFAQ(p.FAQ),
		fProductActive:      p.IsActive,
	}
	rec, err := r.store.Create(ctx, r.table, fields)
	if err != nil {
		return model.Product{}, mapErr(err)
	}
	return decodeProduct(rec), nil
}

func (r *ProductRepo) Update(ctx context.Context, id string, upd ProductUpdate) (model.Product, error) {
	fields := recordstore.Fields{}
	if upd.Name != nil {
		fields[fProductName] = *upd.Name
	}
	if upd.Type != nil {
		fields[fProductType] = storedType(*upd.Type)
	}
	if upd.Price != nil {
		fields[fProductPrice] = *upd.Price
	}
	if upd.Description != nil {
		fields[fProductDescription] = *upd.Description
	}
	if upd.ThumbnailURL != nil {
		fields[fProductThumbnail] = *upd.ThumbnailURL
	}
	if upd.GalleryImages != nil {
		fields[fProductGallery] = joinList(*upd.GalleryImages)
	}
	if upd.YoutubeLink != nil {
		fields[fProductYoutube] = *upd.YoutubeLink
	}
	if upd.FAQ != nil {
		fields[fProductFAQ] = encodeFAQ(*upd.FAQ)
	}
	if upd.IsActive != nil {
		fields[fProductActive] = *upd.IsActive
	}
	rec, err := r.store.Update(ctx, r.table, id, fields)
	if err != nil {
		return model.Product{}, mapErr(err)
	}
	return decodeProduct(rec), nil
}

func (r *ProductRepo) Delete(ctx context.Context, id string) error {
	return mapErr(r.store.Delete(ctx, r.table, id))
}

// storedType capitalizes the type the way the catalog table expects it
// ("indicator" -> "Indicator").
func storedType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if t == "" {
		return t
	}
	return strings.ToUpper(t[:1]) + t[1:]
}

func encodeFAQ(items []model.FAQ) string {
	if len(items) == 0 {
		return ""
	}
	b, err := json.Marshal(items)
	if err != nil {
		return ""
	}
	return string(b)
}

// decodeFAQ accepts the JSON list written by encodeFAQ.  Free text typed
// directly into the table becomes a single answer with no question.
func decodeFAQ(s string) []model.FAQ {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var items []model.FAQ
	if err := json.Unmarshal([]byte(s), &items); err == nil {
		return items
	}
	return []model.FAQ{{Answer: s}}
}

func decodeProduct(rec recordstore.Record) model.Product {
	f := rec.Fields
	price, _ := f.Float(fProductPrice)
	p := model.Product{
		ID:            rec.ID,
		Name:          f.String(fProductName),
		Type:          strings.ToLower(f.String(fProductType)),
		Price:         price,
		Description:   f.String(fProductDescription),
		ThumbnailURL:  f.String(fProductThumbnail),
		GalleryImages: splitList(strings.ReplaceAll(f.String(fProductGallery), "\n", ",")),
		YoutubeLink:   f.String(fProductYoutube),
		FAQ:           decodeFAQ(f.String(fProductFAQ)),
		IsActive:      true,
		CreatedAt:     rec.CreatedTime,
	}
	// an untouched checkbox column is absent; only an explicit false hides
	if f.Has(fProductActive) {
		p.IsActive = f.Bool(fProductActive)
	}
	return p
}
