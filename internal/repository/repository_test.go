package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/trading-storefront/internal/model"
	"github.com/iliyamo/trading-storefront/internal/recordstore"
)

func TestUserRepoTokenPairsMoveTogether(t *testing.T) {
	ctx := context.Background()
	store := recordstore.NewMemoryStore()
	repo := NewUserRepo(store, "Users")

	u, err := repo.Create(ctx, model.User{Name: "Jo", Email: "jo@gmail.com", Role: model.RoleUser, IsActive: true})
	require.NoError(t, err)

	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	u, err = repo.Update(ctx, u.ID, UserUpdate{Reset: &TokenPair{Hash: "h", Exp: &exp}})
	require.NoError(t, err)
	assert.Equal(t, "h", u.ResetHash)
	require.NotNil(t, u.ResetExp)
	assert.True(t, exp.Equal(*u.ResetExp))

	// a hash without an expiry is written as cleared
	u, err = repo.Update(ctx, u.ID, UserUpdate{Reset: &TokenPair{Hash: "x"}})
	require.NoError(t, err)
	assert.Empty(t, u.ResetHash)
	assert.Nil(t, u.ResetExp)

	rec, err := store.Get(ctx, "Users", u.ID)
	require.NoError(t, err)
	assert.False(t, rec.Fields.Has(fUserResetToken))
	assert.False(t, rec.Fields.Has(fUserResetExpiry))
}

func TestUserRepoGetByEmailIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(recordstore.NewMemoryStore(), "Users")
	_, err := repo.Create(ctx, model.User{Name: "Jo", Email: "jo@gmail.com"})
	require.NoError(t, err)

	u, err := repo.GetByEmail(ctx, "JO@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, "Jo", u.Name)
	assert.Equal(t, model.RoleUser, u.Role)

	_, err = repo.GetByEmail(ctx, "nobody@gmail.com")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetByID(ctx, "recMissing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOrderRepoFindByPaymentRefAndStats(t *testing.T) {
	ctx := context.Background()
	store := recordstore.NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	store.SetClock(func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Minute) })
	repo := NewOrderRepo(store, "Orders")

	for _, o := range []model.Order{
		{ProductID: "p1", Amount: 49.5, Status: model.OrderCompleted, PaymentRef: "pi_1", CustomerEmail: "a@x.io"},
		{ProductID: "p2", Amount: 10, Status: model.OrderPending, PaymentRef: "pi_2", CustomerEmail: "b@x.io"},
		{ProductID: "p1", Amount: 20, Status: model.OrderRefunded, PaymentRef: "pi_3", CustomerEmail: "a@x.io"},
		{ProductID: "p3", Amount: 0.5, Status: model.OrderCompleted, PaymentRef: "pi_4", CustomerEmail: "c@x.io"},
	} {
		_, err := repo.Create(ctx, o)
		require.NoError(t, err)
	}

	got, err := repo.FindByPaymentRef(ctx, "pi_3")
	require.NoError(t, err)
	assert.Equal(t, 20.0, got.Amount)
	assert.Equal(t, model.OrderRefunded, got.Status)
	_, err = repo.FindByPaymentRef(ctx, "pi_404")
	assert.ErrorIs(t, err, ErrNotFound)

	mine, err := repo.ListByCustomerEmail(ctx, "A@x.io")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "pi_3", mine[0].PaymentRef, "newest first")

	st, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStats{TotalOrders: 4, TotalRevenue: 50, Completed: 2, Pending: 1, Refunded: 1}, st)
}

func TestProductRepoMapping(t *testing.T) {
	ctx := context.Background()
	store := recordstore.NewMemoryStore()
	repo := NewProductRepo(store, "Products")

	p, err := repo.Create(ctx, model.Product{
		Name:          "Trend Scout",
		Type:          "indicator",
		Price:         99,
		GalleryImages: []string{"https://a/1.png", " https://a/2.png "},
		FAQ:           []model.FAQ{{Question: "Q?", Answer: "A."}},
		IsActive:      true,
	})
	require.NoError(t, err)

	rec, err := store.Get(ctx, "Products", p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Indicator", rec.Fields.String(fProductType))

	assert.Equal(t, "indicator", p.Type)
	assert.Equal(t, []string{"https://a/1.png", "https://a/2.png"}, p.GalleryImages)
	assert.Equal(t, []model.FAQ{{Question: "Q?", Answer: "A."}}, p.FAQ)

	inactive := false
	p, err = repo.Update(ctx, p.ID, ProductUpdate{IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, p.IsActive)
}

func TestPromoRepoDecodesListsAndLimits(t *testing.T) {
	ctx := context.Background()
	store := recordstore.NewMemoryStore()
	repo := NewPromoRepo(store, "Promo Codes")

	_, err := store.Create(ctx, "Promo Codes", recordstore.Fields{
		fPromoCode:       "SAVE10",
		fPromoType:       model.DiscountPercentage,
		fPromoValue:      float64(10),
		fPromoMaxUses:    float64(5),
		fPromoTimesUsed:  float64(2),
		fPromoActive:     true,
		fPromoApplicable: "recA, recB,",
		fPromoExpiry:     "2031-06-30",
	})
	require.NoError(t, err)

	p, err := repo.GetByCode(ctx, "save10")
	require.NoError(t, err)
	assert.Equal(t, []string{"recA", "recB"}, p.ApplicableProducts)
	require.NotNil(t, p.MaxUses)
	assert.Equal(t, 5, *p.MaxUses)
	assert.Equal(t, 2, p.TimesUsed)
	require.NotNil(t, p.ExpiryDate)
	assert.Equal(t, time.June, p.ExpiryDate.Month())
	assert.Nil(t, p.MinimumPurchase)

	used := 3
	p, err = repo.Update(ctx, p.ID, PromoUpdate{TimesUsed: &used, ClearMaxUses: true})
	require.NoError(t, err)
	assert.Equal(t, 3, p.TimesUsed)
	assert.Nil(t, p.MaxUses)
}
