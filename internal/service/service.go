package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/iurnickita/shopdash/internal/analytics"
	"github.com/iurnickita/shopdash/internal/collection"
	"github.com/iurnickita/shopdash/internal/model"
	"github.com/iurnickita/shopdash/internal/service/config"
)

type Service interface {
	Orders(ctx context.Context) collection.View[model.Order]
	CreateOrder(ctx context.Context, draft model.OrderDraft) (model.Order, error)
	DeleteOrder(ctx context.Context, id string) error
	UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) (model.Order, error)
	Customers(ctx context.Context, query string) collection.View[model.Customer]
	CreateCustomer(ctx context.Context, draft model.CustomerDraft) (model.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error
	Products(query string) []model.Product
	Revenue(ctx context.Context, days int) ([]model.RevenuePoint, error)
	TopProducts(ctx context.Context, limit int) ([]model.ProductSales, error)
	Summary(ctx context.Context, days int) (model.Summary, error)
	Refresh(ctx context.Context) error
}

var ErrInsufficientData = errors.New("insufficient data")

type Deps struct {
	Orders    *collection.Store[model.Order]
	Customers *collection.Store[model.Customer]
	Source    OrderSource
	Catalog   []model.Product
	Now       func() time.Time
}

type service struct {
	cfg       config.Config
	orders    *collection.Store[model.Order]
	customers *collection.Store[model.Customer]
	source    OrderSource
	catalog   []model.Product
	now       func() time.Time
	validator *validator.Validate
}

func NewService(cfg config.Config, deps Deps) (Service, error) {
	if deps.Orders == nil || deps.Customers == nil || deps.Source == nil {
		return nil, fmt.Errorf("service: %w", ErrInsufficientData)
	}
	if cfg.TopLimit <= 0 {
		cfg.TopLimit = analytics.DefaultTopLimit
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	service := service{
		cfg:       cfg,
		orders:    deps.Orders,
		customers: deps.Customers,
		source:    deps.Source,
		catalog:   deps.Catalog,
		now:       now,
		validator: newValidator(),
	}

	return &service, nil
}

// Заказы

func (service *service) Orders(ctx context.Context) collection.View[model.Order] {
	return service.orders.Read(ctx)
}

func (service *service) CreateOrder(ctx context.Context, draft model.OrderDraft) (model.Order, error) {
	draft.Customer = strings.TrimSpace(draft.Customer)
	verr := service.validate(draft)
	if draft.Total.IsNegative() {
		if verr == nil {
			verr = &ValidationError{Fields: map[string]string{}}
		}
		verr.Fields["total"] = "must not be negative"
	}
	if verr != nil {
		return model.Order{}, verr
	}

	return service.orders.Create(ctx, draft)
}

func (service *service) DeleteOrder(ctx context.Context, id string) error {
	if id == "" {
		return ErrInsufficientData
	}
	return service.orders.Delete(ctx, id)
}

func (service *service) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) (model.Order, error) {
	if id == "" {
		return model.Order{}, ErrInsufficientData
	}
	if !status.Valid() {
		return model.Order{}, &ValidationError{Fields: map[string]string{"status": "is invalid"}}
	}
	return service.orders.Update(ctx, id, model.OrderStatusPatch{Status: status})
}

// Покупатели

func (service *service) Customers(ctx context.Context, query string) collection.View[model.Customer] {
	v := service.customers.Read(ctx)

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return v
	}
	filtered := make([]model.Customer, 0, len(v.Items))
	for _, c := range v.Items {
		if strings.Contains(strings.ToLower(c.Name), query) || strings.Contains(strings.ToLower(c.Email), query) {
			filtered = append(filtered, c)
		}
	}
	v.Items = filtered
	return v
}

func (service *service) CreateCustomer(ctx context.Context, draft model.CustomerDraft) (model.Customer, error) {
	draft.Name = strings.TrimSpace(draft.Name)
	draft.Email = strings.TrimSpace(draft.Email)
	draft.Phone = strings.TrimSpace(draft.Phone)
	if verr := service.validate(draft); verr != nil {
		return model.Customer{}, verr
	}
	return service.customers.Create(ctx, draft)
}

func (service *service) DeleteCustomer(ctx context.Context, id string) error {
	if id == "" {
		return ErrInsufficientData
	}
	return service.customers.Delete(ctx, id)
}

// Каталог

func (service *service) Products(query string) []model.Product {
	query = strings.ToLower(strings.TrimSpace(query))
	products := make([]model.Product, 0, len(service.catalog))
	for _, p := range service.catalog {
		if query == "" || strings.Contains(strings.ToLower(p.Name), query) {
			products = append(products, p)
		}
	}
	return products
}

// Аналитика

func (service *service) Revenue(ctx context.Context, days int) ([]model.RevenuePoint, error) {
	orders, err := service.source.Orders(ctx)
	if err != nil {
		return nil, err
	}
	return analytics.RevenueSeries(orders, days, service.now())
}

func (service *service) TopProducts(ctx context.Context, limit int) ([]model.ProductSales, error) {
	if limit == 0 {
		limit = service.cfg.TopLimit
	}
	orders, err := service.source.Orders(ctx)
	if err != nil {
		return nil, err
	}
	return analytics.TopProducts(orders, limit)
}

func (service *service) Summary(ctx context.Context, days int) (model.Summary, error) {
	orders, err := service.source.Orders(ctx)
	if err != nil {
		return model.Summary{}, err
	}
	return analytics.Summarize(orders, days, service.now())
}

// Refresh reloads orders and customers concurrently and reports every failure.
func (service *service) Refresh(ctx context.Context) error {
	var ordersErr, customersErr error

	var g errgroup.Group
	g.Go(func() error {
		ordersErr = service.orders.Refresh(ctx)
		return ordersErr
	})
	g.Go(func() error {
		customersErr = service.customers.Refresh(ctx)
		return customersErr
	})
	// Wait возвращает только первую ошибку, поэтому собираем обе
	if err := g.Wait(); err == nil {
		return nil
	}
	return multierr.Combine(ordersErr, customersErr)
}
