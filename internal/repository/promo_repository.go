package repository

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/trading-storefront/internal/model"
	"github.com/iliyamo/trading-storefront/internal/recordstore"
)

// Field names of the Promo Codes table.
const (
	fPromoCode        = "Promo Code"
	fPromoType        = "Discount Type"
	fPromoValue       = "Discount Value"
	fPromoExpiry      = "Expiry Date"
	fPromoMaxUses     = "Max Uses"
	fPromoTimesUsed   = "Times Used"
	fPromoActive      = "IsActive"
	fPromoApplicable  = "Applicable Products"
	fPromoMinPurchase = "Minimum Purchase"
	fPromoCreatedAt   = "Created At"
)

// PromoRepo is the promo-code catalog adapter.
type PromoRepo struct {
	store recordstore.Store
	table string
}

func NewPromoRepo(store recordstore.Store, table string) *PromoRepo {
	return &PromoRepo{store: store, table: table}
}

// PromoUpdate is a partial update.  ClearExpiry, ClearMaxUses and
// ClearMinimum null their columns.
type PromoUpdate struct {
	Code               *string
	DiscountType       *string
	DiscountValue      *float64
	ExpiryDate         *time.Time
	ClearExpiry        bool
	MaxUses            *int
	ClearMaxUses       bool
	TimesUsed          *int
	IsActive           *bool
	ApplicableProducts *[]string
	MinimumPurchase    *float64
	ClearMinimum       bool
}

func (r *PromoRepo) List(ctx context.Context) ([]model.PromoCode, error) {
	recs, err := r.store.List(ctx, r.table, recordstore.ListOptions{})
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]model.PromoCode, 0, len(recs))
	for _, rec := range recs {
		out = append(out, decodePromo(rec))
	}
	return out, nil
}

func (r *PromoRepo) GetByID(ctx context.Context, id string) (model.PromoCode, error) {
	rec, err := r.store.Get(ctx, r.table, id)
	if err != nil {
		return model.PromoCode{}, mapErr(err)
	}
	return decodePromo(rec), nil
}

// GetByCode matches the code case-insensitively.
func (r *PromoRepo) GetByCode(ctx context.Context, code string) (model.PromoCode, error) {
	recs, err := r.store.List(ctx, r.table, recordstore.ListOptions{
		Filter:     recordstore.EqFold(fPromoCode, strings.TrimSpace(code)),
		MaxRecords: 1,
	})
	if err != nil {
		return model.PromoCode{}, mapErr(err)
	}
	if len(recs) == 0 {
		return model.PromoCode{}, ErrNotFound
	}
	return decodePromo(recs[0]), nil
}

func (r *PromoRepo) Create(ctx context.Context, p model.PromoCode) (model.PromoCode, error) {
	fields := recordstore.Fields{
		fPromoCode:       strings.ToUpper(strings.TrimSpace(p.Code)),
		fPromoType:       p.DiscountType,
		fPromoValue:      p.DiscountValue,
		fPromoTimesUsed:  p.TimesUsed,
		fPromoActive:     p.IsActive,
		fPromoApplicable: joinList(p.ApplicableProducts),
		fPromoCreatedAt:  p.CreatedAt.UTC().Format(dateLayout),
	}
	if p.ExpiryDate != nil {
		fields[fPromoExpiry] = p.ExpiryDate.UTC().Format(dateLayout)
	}
	if p.MaxUses != nil {
		fields[fPromoMaxUses] = *p.MaxUses
	}
	if p.MinimumPurchase != nil {
		fields[fPromoMinPurchase] = *p.MinimumPurchase
	}
	rec, err := r.store.Create(ctx, r.table, fields)
	if err != nil {
		return model.PromoCode{}, mapErr(err)
	}
	return decodePromo(rec), nil
}

func (r *PromoRepo) Update(ctx context.Context, id string, upd PromoUpdate) (model.PromoCode, error) {
	fields := recordstore.Fields{}
	if upd.Code != nil {
		fields[fPromoCode] = strings.ToUpper(strings.TrimSpace(*upd.Code))
	}
	if upd.DiscountType != nil {
		fields[fPromoType] = *upd.DiscountType
	}
	if upd.DiscountValue != nil {
		fields[fPromoValue] = *upd.DiscountValue
	}
	if upd.ClearExpiry {
		fields[fPromoExpiry] = nil
	} else if upd.ExpiryDate != nil {
		fields[fPromoExpiry] = upd.ExpiryDate.UTC().Format(dateLayout)
	}
	if upd.ClearMaxUses {
		fields[fPromoMaxUses] = nil
	} else if upd.MaxUses != nil {
		fields[fPromoMaxUses] = *upd.MaxUses
	}
	if upd.TimesUsed != nil {
		fields[fPromoTimesUsed] = *upd.TimesUsed
	}
	if upd.IsActive != nil {
		fields[fPromoActive] = *upd.IsActive
	}
	if upd.ApplicableProducts != nil {
		fields[fPromoApplicable] = joinList(*upd.ApplicableProducts)
	}
	if upd.ClearMinimum {
		fields[fPromoMinPurchase] = nil
	} else if upd.MinimumPurchase != nil {
		fields[fPromoMinPurchase] = *upd.MinimumPurchase
	}
	rec, err := r.store.Update(ctx, r.table, id, fields)
	if err != nil {
		return model.PromoCode{}, mapErr(err)
	}
	return decodePromo(rec), nil
}

func (r *PromoRepo) Delete(ctx context.Context, id string) error {
	return mapErr(r.store.Delete(ctx, r.table, id))
}

func decodePromo(rec recordstore.Record) model.PromoCode {
	f := rec.Fields
	value, _ := f.Float(fPromoValue)
	used, _ := f.Float(fPromoTimesUsed)
	p := model.PromoCode{
		ID:                 rec.ID,
		Code:               f.String(fPromoCode),
		DiscountType:       f.String(fPromoType),
		DiscountValue:      value,
		ExpiryDate:         f.Time(fPromoExpiry),
		TimesUsed:          int(used),
		IsActive:           f.Bool(fPromoActive),
		ApplicableProducts: splitList(f.String(fPromoApplicable)),
		CreatedAt:          rec.CreatedTime,
	}
	if p.ApplicableProducts == nil {
		p.ApplicableProducts = []string{}
	}
	// zero means unlimited, as for an empty column
	if n, ok := f.Float(fPromoMaxUses); ok && n > 0 {
		m := int(n)
		p.MaxUses = &m
	}
	if n, ok := f.Float(fPromoMinPurchase); ok && n > 0 {
		p.MinimumPurchase = &n
	}
	if t := f.Time(fPromoCreatedAt); t != nil {
		p.CreatedAt = *t
	}
	return p
}
