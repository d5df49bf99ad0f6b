package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iurnickita/shopdash/internal/model"
)

// SampleSource serves the demo orders, dated relative to its clock.
type SampleSource struct {
	Now func() time.Time
}

func (source SampleSource) Orders(context.Context) ([]model.Order, error) {
	now := time.Now
	if source.Now != nil {
		now = source.Now
	}
	return SampleOrders(now()), nil
}

// SampleOrders builds a fresh set of demo orders relative to now.
func SampleOrders(now time.Time) []model.Order {
	ago := func(days int) model.Timestamp {
		return model.NewTimestamp(now.AddDate(0, 0, -days))
	}
	d := decimal.RequireFromString

	return []model.Order{
		{
			ID: "1", Date: ago(1), Customer: "John Doe", Total: d("125.50"), Status: model.OrderStatusDelivered,
			Items: model.Items{
				{Name: "Wireless Mouse", Quantity: 1, Price: d("25.50")},
				{Name: "USB-C Hub", Quantity: 2, Price: d("50.00")},
			},
		},
		{
			ID: "2", Date: ago(5), Customer: "Jane Smith", Total: d("1575.50"), Status: model.OrderStatusShipped,
			Items: model.Items{
				{Name: "Laptop Pro", Quantity: 1, Price: d("1500.00")},
				{Name: "Laptop Stand", Quantity: 1, Price: d("50.00")},
				{Name: "Wireless Mouse", Quantity: 1, Price: d("25.50")},
			},
		},
		{
			ID: "3", Date: ago(20), Customer: "Peter Jones", Total: d("80.00"), Status: model.OrderStatusDelivered,
			Items: model.Items{
				{Name: "Mechanical Keyboard", Quantity: 1, Price: d("80.00")},
			},
		},
		{
			ID: "4", Date: ago(45), Customer: "Mary Poppins", Total: d("1525.50"), Status: model.OrderStatusDelivered,
			Items: model.Items{
				{Name: "Laptop Pro", Quantity: 1, Price: d("1500.00")},
				{Name: "Wireless Mouse", Quantity: 1, Price: d("25.50")},
			},
		},
		{
			ID: "5", Date: ago(80), Customer: "Gregory House", Total: d("130.00"), Status: model.OrderStatusDelivered,
			Items: model.Items{
				{Name: "Mechanical Keyboard", Quantity: 1, Price: d("80.00")},
				{Name: "Laptop Stand", Quantity: 1, Price: d("50.00")},
			},
		},
	}
}

// SampleCatalog is the demo product catalog.
func SampleCatalog() []model.Product {
	d := decimal.RequireFromString
	return []model.Product{
		{ID: "1", Name: "Premium Headphones", Price: d("299.99"), Stock: 15, Category: "Electronics", Image: "https://placehold.co/300x200"},
		{ID: "2", Name: "Wireless Mouse", Price: d("49.99"), Stock: 30, Category: "Accessories", Image: "https://placehold.co/300x200"},
		{ID: "3", Name: "Mechanical Keyboard", Price: d("129.99"), Stock: 20, Category: "Electronics", Image: "https://placehold.co/300x200"},
	}
}
