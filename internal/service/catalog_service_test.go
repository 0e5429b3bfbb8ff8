package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/trading-storefront/internal/model"
)

func TestCreatePromoValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.catalog.CreatePromo(ctx, PromoInput{Code: ptr("BIG"), DiscountType: ptr(model.DiscountPercentage), DiscountValue: ptr(110.0)})
	se := requireKind(t, err, KindValidation)
	assert.Equal(t, "Percentage discount cannot exceed 100%", se.Message)

	_, err = f.catalog.CreatePromo(ctx, PromoInput{Code: ptr("NEG"), DiscountType: ptr(model.DiscountFixed), DiscountValue: ptr(-1.0)})
	requireKind(t, err, KindValidation)
	_, err = f.catalog.CreatePromo(ctx, PromoInput{Code: ptr("ODD"), DiscountType: ptr("Bogus"), DiscountValue: ptr(1.0)})
	requireKind(t, err, KindValidation)
	_, err = f.catalog.CreatePromo(ctx, PromoInput{Code: ptr("DATE"), DiscountType: ptr(model.DiscountFixed), DiscountValue: ptr(1.0), ExpiryDate: ptr("31/12/2030")})
	requireKind(t, err, KindValidation)

	p, err := f.catalog.CreatePromo(ctx, PromoInput{Code: ptr(" spring "), DiscountType: ptr(model.DiscountFixed), DiscountValue: ptr(150.0), ExpiryDate: ptr("2030-12-31")})
	require.NoError(t, err)
	assert.Equal(t, "SPRING", p.Code)
	assert.True(t, p.IsActive)

	_, err = f.catalog.CreatePromo(ctx, PromoInput{Code: ptr("Spring"), DiscountType: ptr(model.DiscountFixed), DiscountValue: ptr(1.0)})
	requireKind(t, err, KindConflict)

	// switching to percentage with the stored value of 150 is refused
	_, err = f.catalog.UpdatePromo(ctx, p.ID, PromoInput{DiscountType: ptr(model.DiscountPercentage)})
	requireKind(t, err, KindValidation)
}

func TestUpdatePromoRenameKeepsCodesUnique(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.catalog.CreatePromo(ctx, PromoInput{Code: ptr("ALPHA"), DiscountType: ptr(model.DiscountFixed), DiscountValue: ptr(5.0)})
	require.NoError(t, err)
	b, err := f.catalog.CreatePromo(ctx, PromoInput{Code: ptr("BETA"), DiscountType: ptr(model.DiscountFixed), DiscountValue: ptr(5.0)})
	require.NoError(t, err)

	_, err = f.catalog.UpdatePromo(ctx, b.ID, PromoInput{Code: ptr("alpha")})
	requireKind(t, err, KindConflict)

	// re-saving a promo under its own code is fine
	got, err := f.catalog.UpdatePromo(ctx, a.ID, PromoInput{Code: ptr("Alpha")})
	require.NoError(t, err)
	assert.Equal(t, "ALPHA", got.Code)

	got, err = f.catalog.UpdatePromo(ctx, b.ID, PromoInput{Code: ptr("gamma")})
	require.NoError(t, err)
	assert.Equal(t, "GAMMA", got.Code)
}

func TestValidatePromoRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, "edge", 200)
	other := f.seedProduct(t, "other", 200)
	yesterday := f.clock.Now().AddDate(0, 0, -1)
	today := f.clock.Now()

	f.seedPromo(t, model.PromoCode{Code: "OFF", DiscountType: model.DiscountPercentage, DiscountValue: 10, IsActive: false})
	f.seedPromo(t, model.PromoCode{Code: "GONE", DiscountType: model.DiscountPercentage, DiscountValue: 10, IsActive: true, ExpiryDate: &yesterday})
	f.seedPromo(t, model.PromoCode{Code: "TODAY", DiscountType: model.DiscountPercentage, DiscountValue: 10, IsActive: true, ExpiryDate: &today})
	f.seedPromo(t, model.PromoCode{Code: "USED", DiscountType: model.DiscountPercentage, DiscountValue: 10, IsActive: true, MaxUses: ptr(2), TimesUsed: 2})
	f.seedPromo(t, model.PromoCode{Code: "ONLY", DiscountType: model.DiscountPercentage, DiscountValue: 10, IsActive: true, ApplicableProducts: []string{other.ID}})
	f.seedPromo(t, model.PromoCode{Code: "MIN", DiscountType: model.DiscountFixed, DiscountValue: 10, IsActive: true, MinimumPurchase: ptr(500.0)})
	f.seedPromo(t, model.PromoCode{Code: "HUGE", DiscountType: model.DiscountFixed, DiscountValue: 999, IsActive: true})

	cases := map[string]string{
		"off":  MsgPromoInactive,
		"gone": MsgPromoExpired,
		"used": MsgPromoExhausted,
		"only": MsgPromoNotApplicable,
	}
	for code, msg := range cases {
		_, err := f.catalog.ValidatePromo(ctx, code, product.ID)
		se := requireKind(t, err, KindValidation)
		assert.Equal(t, msg, se.Message, code)
	}

	_, err := f.catalog.ValidatePromo(ctx, "MIN", product.ID)
	requireKind(t, err, KindValidation)

	_, err = f.catalog.ValidatePromo(ctx, "missing", product.ID)
	se := requireKind(t, err, KindNotFound)
	assert.Equal(t, MsgInvalidPromo, se.Message)

	q, err := f.catalog.ValidatePromo(ctx, "today", product.ID)
	require.NoError(t, err)
	assert.InDelta(t, 180, q.FinalPrice, 0.0001)
	assert.InDelta(t, 20, q.Discount, 0.0001)

	q, err = f.catalog.ValidatePromo(ctx, "huge", product.ID)
	require.NoError(t, err)
	assert.Zero(t, q.FinalPrice)
}

func TestEvaluatePromoExpiryIsInclusiveOfDay(t *testing.T) {
	exp := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)
	promo := model.PromoCode{Code: "X", DiscountType: model.DiscountFixed, DiscountValue: 1, IsActive: true, ExpiryDate: &exp}
	product := model.Product{ID: "recP", Price: 10}

	_, err := EvaluatePromo(promo, product, exp.Add(23*time.Hour+59*time.Minute))
	assert.NoError(t, err)
	_, err = EvaluatePromo(promo, product, exp.Add(24*time.Hour))
	assert.Error(t, err)
}

func TestProductCRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.catalog.CreateProduct(ctx, ProductInput{Name: ptr("X"), Type: ptr("course"), Price: ptr(-1.0), ThumbnailURL: ptr("not a url")})
	se := requireKind(t, err, KindValidation)
	assert.Len(t, se.Details, 4)

	p, err := f.catalog.CreateProduct(ctx, ProductInput{
		Name:  ptr("Momentum Pro"),
		Type:  ptr("Indicator"),
		Price: ptr(99.0),
		FAQ:   &[]model.FAQ{{Question: "Repaint?", Answer: "No."}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.ProductTypeIndicator, p.Type)
	require.Len(t, p.FAQ, 1)

	hidden := f.seedProduct(t, "hidden", 5)
	_, err = f.catalog.UpdateProduct(ctx, hidden.ID, ProductInput{IsActive: ptr(false)})
	require.NoError(t, err)

	list, err := f.catalog.ListProducts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	list, err = f.catalog.ListProducts(ctx, "strategy")
	require.NoError(t, err)
	assert.Empty(t, list)
	all, err := f.catalog.ListAllProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.catalog.GetProduct(ctx, hidden.ID)
	requireKind(t, err, KindNotFound)

	require.NoError(t, f.catalog.DeleteProduct(ctx, p.ID))
	requireKind(t, f.catalog.DeleteProduct(ctx, p.ID), KindNotFound)
}
