package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/trading-storefront/internal/model"
)

func TestOrderServiceListingAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProduct(t, "vwap", 30)

	mk := func(ref, email string, status model.OrderStatus, amount float64) model.Order {
		o, err := f.orders.Create(ctx, model.Order{ProductID: p.ID, ProductName: p.Name, Amount: amount, Status: status, PaymentRef: ref, CustomerEmail: email})
		require.NoError(t, err)
		return o
	}
	mk("pi_1", "amy@example.com", model.OrderCompleted, 30)
	mk("pi_2", "amy@example.com", model.OrderRefunded, 30)
	mk("pi_3", "bob@example.com", model.OrderCompleted, 15)
	o := mk("pi_4", "bob@example.com", model.OrderPending, 15)
	_, err := f.orders.Create(ctx, model.Order{ProductID: "recGone", ProductName: "gone", Amount: 1, Status: model.OrderFailed, PaymentRef: "pi_5", CustomerEmail: "bob@example.com"})
	require.NoError(t, err)

	all, err := f.ordersvc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for _, o := range all {
		if o.ProductID == p.ID {
			assert.Equal(t, p.ThumbnailURL, o.ProductThumbnail)
			assert.Equal(t, model.ProductTypeIndicator, o.ProductType)
		} else {
			assert.Empty(t, o.ProductThumbnail)
		}
	}

	mine, err := f.ordersvc.ListMine(ctx, "AMY@example.com")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	st, err := f.ordersvc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, st.TotalOrders)
	assert.Equal(t, 2, st.Completed)
	assert.Equal(t, 1, st.Pending)
	assert.Equal(t, 1, st.Refunded)
	assert.Equal(t, 1, st.Failed)
	assert.InDelta(t, 45, st.TotalRevenue, 0.0001)

	_, err = f.ordersvc.UpdateStatus(ctx, o.ID, "shipped")
	se := requireKind(t, err, KindValidation)
	assert.Equal(t, MsgInvalidStatus, se.Message)
	_, err = f.ordersvc.UpdateStatus(ctx, "recMissing", "completed")
	requireKind(t, err, KindNotFound)
	updated, err := f.ordersvc.UpdateStatus(ctx, o.ID, "Completed")
	require.NoError(t, err)
	assert.Equal(t, model.OrderCompleted, updated.Status)
}

func TestAdminUserManagement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, "admin@example.com", true, true)
	u := f.seedUser(t, "member@example.com", true, true)

	_, err := f.admin.UpdateUser(ctx, admin.ID, u.ID, UserPatch{Role: ptr("owner")})
	requireKind(t, err, KindValidation)
	_, err = f.admin.UpdateUser(ctx, admin.ID, admin.ID, UserPatch{IsActive: ptr(false)})
	requireKind(t, err, KindValidation)

	pub, err := f.admin.UpdateUser(ctx, admin.ID, u.ID, UserPatch{Role: ptr("ADMIN"), IsActive: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, pub.Role)
	assert.False(t, pub.IsActive)

	list, err := f.admin.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, f.admin.DeleteUser(ctx, admin.ID, u.ID))
	requireKind(t, f.admin.DeleteUser(ctx, admin.ID, u.ID), KindNotFound)
}
