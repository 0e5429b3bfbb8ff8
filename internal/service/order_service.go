package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/trading-storefront/internal/logging"
	"github.com/iliyamo/trading-storefront/internal/model"
	"github.com/iliyamo/trading-storefront/internal/repository"
	"github.com/iliyamo/trading-storefront/internal/utils"
)

const MsgInvalidStatus = "Invalid status. Must be one of: pending, completed, refunded, failed"

// enrichConcurrency bounds the product lookups made while listing orders.
const enrichConcurrency = 5

// OrderService serves the order ledger to admins and customers.
type OrderService struct {
	orders   *repository.OrderRepo
	products *repository.ProductRepo
	log      *zap.Logger
}

func NewOrderService(orders *repository.OrderRepo, products *repository.ProductRepo, log *zap.Logger) *OrderService {
	return &OrderService{orders: orders, products: products, log: log}
}

// ListAll returns every order, newest first, with the product thumbnail
// and type attached.  Products that no longer exist leave those blank.
func (s *OrderService) ListAll(ctx context.Context) ([]model.Order, error) {
	orders, err := s.orders.List(ctx)
	if err != nil {
		return nil, external(s.log, err, "Failed to fetch orders")
	}
	if err := s.enrich(ctx, orders); err != nil {
		return nil, external(s.log, err, "Failed to fetch orders")
	}
	return orders, nil
}

func (s *OrderService) enrich(ctx context.Context, orders []model.Order) error {
	ids := make(map[string]struct{})
	for _, o := range orders {
		if o.ProductID != "" {
			ids[o.ProductID] = struct{}{}
		}
	}
	found := make(map[string]model.Product, len(ids))
	results := make(chan model.Product, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for id := range ids {
		g.Go(func() error {
			p, err := s.products.GetByID(gctx, id)
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			results <- p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	close(results)
	for p := range results {
		found[p.ID] = p
	}
	for i := range orders {
		if p, ok := found[orders[i].ProductID]; ok {
			orders[i].ProductThumbnail = p.ThumbnailURL
			orders[i].ProductType = p.Type
		}
	}
	return nil
}

// ListMine returns the orders snapshotted with the caller's address,
// enriched like ListAll.
func (s *OrderService) ListMine(ctx context.Context, email string) ([]model.Order, error) {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return nil, newError(KindAuth, "Authentication required")
	}
	orders, err := s.orders.ListByCustomerEmail(ctx, email)
	if err == nil {
		err = s.enrich(ctx, orders)
	}
	if err != nil {
		return nil, external(s.log, err, "Failed to fetch orders", logging.Email(email))
	}
	return orders, nil
}

func (s *OrderService) Stats(ctx context.Context) (model.OrderStats, error) {
	st, err := s.orders.Stats(ctx)
	if err != nil {
		return model.OrderStats{}, external(s.log, err, "Failed to fetch order statistics")
	}
	return st, nil
}

// UpdateStatus sets an order's status after validating it against the
// known statuses.
func (s *OrderService) UpdateStatus(ctx context.Context, id, status string) (model.Order, error) {
	st := model.OrderStatus(strings.ToLower(strings.TrimSpace(status)))
	if !st.Valid() {
		return model.Order{}, validationError(MsgInvalidStatus)
	}
	if _, err := s.orders.GetByID(ctx, id); errors.Is(err, repository.ErrNotFound) {
		return model.Order{}, notFound("Order not found")
	} else if err != nil {
		return model.Order{}, external(s.log, err, "Failed to update order status", logging.OrderID(id))
	}
	o, err := s.orders.UpdateStatus(ctx, id, st)
	if err != nil {
		return model.Order{}, external(s.log, err, "Failed to update order status", logging.OrderID(id))
	}
	s.log.Info("order status updated", logging.OrderID(id), zap.String("status", string(st)))
	return o, nil
}
