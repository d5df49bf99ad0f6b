package service

import (
	"context"
	"time"

	"github.com/iurnickita/shopdash/internal/collection"
	"github.com/iurnickita/shopdash/internal/model"
	"github.com/iurnickita/shopdash/internal/store"
)

// OrderSource supplies the orders the analytics view is computed from.
type OrderSource interface {
	Orders(ctx context.Context) ([]model.Order, error)
}

// RemoteSource reads the orders store snapshot, loading it first if it was never loaded.
type RemoteSource struct {
	Store *collection.Store[model.Order]
}

func (source RemoteSource) Orders(ctx context.Context) ([]model.Order, error) {
	if !source.Store.State().Loaded {
		if err := source.Store.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	return source.Store.Snapshot(), nil
}

// StoreSource reads orders from Postgres.
type StoreSource struct {
	Store store.Store
}

func (source StoreSource) Orders(ctx context.Context) ([]model.Order, error) {
	return source.Store.OrderGet(ctx, time.Time{})
}
