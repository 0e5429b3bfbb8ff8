package repository

import (
	"context"
	"sort"

	"github.com/iliyamo/trading-storefront/internal/model"
	"github.com/iliyamo/trading-storefront/internal/recordstore"
)

// Field names of the Orders table.
const (
	fOrderProductID   = "Product ID"
	fOrderProductName = "Product Name"
	fOrderAmount      = "Amount"
	fOrderStatus      = "Status"
	fOrderPaymentRef  = "Stripe Payment ID"
	fOrderEmail       = "Customer Email"
	fOrderName        = "Customer Name"
	fOrderContact     = "Contact Info"
	fOrderCardHolder  = "Card Holder"
)

// OrderRepo is the order ledger adapter.
type OrderRepo struct {
	store recordstore.Store
	table string
}

func NewOrderRepo(store recordstore.Store, table string) *OrderRepo {
	return &OrderRepo{store: store, table: table}
}

// Create stores a new order.  The creation timestamp is assigned by the
// store.
func (r *OrderRepo) Create(ctx context.Context, o model.Order) (model.Order, error) {
	fields := recordstore.Fields{
		fOrderProductID:   o.ProductID,
		fOrderProductName: o.ProductName,
		fOrderAmount:      o.Amount,
		fOrderStatus:      string(o.Status),
		fOrderPaymentRef:  o.PaymentRef,
		fOrderEmail:       o.CustomerEmail,
		fOrderName:        o.CustomerName,
	}
	if o.ContactInfo != "" {
		fields[fOrderContact] = o.ContactInfo
	}
	if o.CardHolder != "" {
		fields[fOrderCardHolder] = o.CardHolder
	}
	rec, err := r.store.Create(ctx, r.table, fields)
	if err != nil {
		return model.Order{}, mapErr(err)
	}
	return decodeOrder(rec), nil
}

// FindByPaymentRef returns the order recorded for a processor payment id,
// or ErrNotFound.
func (r *OrderRepo) FindByPaymentRef(ctx context.Context, ref string) (model.Order, error) {
	recs, err := r.store.List(ctx, r.table, recordstore.ListOptions{
		Filter:     recordstore.Eq(fOrderPaymentRef, ref),
		MaxRecords: 1,
	})
	if err != nil {
		return model.Order{}, mapErr(err)
	}
	if len(recs) == 0 {
		return model.Order{}, ErrNotFound
	}
	return decodeOrder(recs[0]), nil
}

func (r *OrderRepo) GetByID(ctx context.Context, id string) (model.Order, error) {
	rec, err := r.store.Get(ctx, r.table, id)
	if err != nil {
		return model.Order{}, mapErr(err)
	}
	return decodeOrder(rec), nil
}

// List returns all orders, newest first.
func (r *OrderRepo) List(ctx context.Context) ([]model.Order, error) {
	return r.list(ctx, nil)
}

// ListByCustomerEmail returns the orders snapshotted with the given
// normalized address, newest first.
func (r *OrderRepo) ListByCustomerEmail(ctx context.Context, email string) ([]model.Order, error) {
	return r.list(ctx, recordstore.EqFold(fOrderEmail, email))
}

func (r *OrderRepo) list(ctx context.Context, f *recordstore.Filter) ([]model.Order, error) {
	recs, err := r.store.List(ctx, r.table, recordstore.ListOptions{Filter: f})
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]model.Order, 0, len(recs))
	for _, rec := range recs {
		out = append(out, decodeOrder(rec))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// UpdateStatus overwrites the status column.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id string, status model.OrderStatus) (model.Order, error) {
	rec, err := r.store.Update(ctx, r.table, id, recordstore.Fields{fOrderStatus: string(status)})
	if err != nil {
		return model.Order{}, mapErr(err)
	}
	return decodeOrder(rec), nil
}

// Stats aggregates the whole ledger by linear scan.
func (r *OrderRepo) Stats(ctx context.Context) (model.OrderStats, error) {
	orders, err := r.List(ctx)
	if err != nil {
		return model.OrderStats{}, err
	}
	return ComputeStats(orders), nil
}

// ComputeStats counts orders per status; revenue sums completed orders.
func ComputeStats(orders []model.Order) model.OrderStats {
	var st model.OrderStats
	st.TotalOrders = len(orders)
	for _, o := range orders {
		switch o.Status {
		case model.OrderCompleted:
			st.Completed++
			st.TotalRevenue += o.Amount
		case model.OrderPending:
			st.Pending++
		case model.OrderRefunded:
			st.Refunded++
		case model.OrderFailed:
			st.Failed++
		}
	}
	return st
}

func decodeOrder(rec recordstore.Record) model.Order {
	f := rec.Fields
	amount, _ := f.Float(fOrderAmount)
	return model.Order{
		ID:            rec.ID,
		ProductID:     f.String(fOrderProductID),
		ProductName:   f.String(fOrderProductName),
		Amount:        amount,
		Status:        model.OrderStatus(f.String(fOrderStatus)),
		PaymentRef:    f.String(fOrderPaymentRef),
		CustomerEmail: f.String(fOrderEmail),
		CustomerName:  f.String(fOrderName),
		ContactInfo:   f.String(fOrderContact),
		CardHolder:    f.String(fOrderCardHolder),
		CreatedAt:     rec.CreatedTime,
	}
}
