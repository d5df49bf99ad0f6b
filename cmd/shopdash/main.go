package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/iurnickita/shopdash/internal/apiclient"
	"github.com/iurnickita/shopdash/internal/auth"
	"github.com/iurnickita/shopdash/internal/collection"
	"github.com/iurnickita/shopdash/internal/config"
	"github.com/iurnickita/shopdash/internal/handler"
	"github.com/iurnickita/shopdash/internal/logger"
	"github.com/iurnickita/shopdash/internal/metrics"
	"github.com/iurnickita/shopdash/internal/model"
	"github.com/iurnickita/shopdash/internal/service"
	serviceConfig "github.com/iurnickita/shopdash/internal/service/config"
	"github.com/iurnickita/shopdash/internal/store"
	"github.com/iurnickita/shopdash/internal/token"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	zaplog, err := logger.NewZapLog(cfg.Logger)
	if err != nil {
		return err
	}
	defer zaplog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	issuer, err := token.NewIssuer(cfg.Token)
	if err != nil {
		return err
	}
	auth := auth.NewAuth(issuer)

	registry := metrics.NewRegistry()
	client, err := apiclient.NewClient(cfg.APIClient, zaplog)
	if err != nil {
		return err
	}

	opts := []collection.Option{
		collection.WithTimeout(cfg.APIClient.Timeout),
		collection.WithLogger(zaplog),
		collection.WithMetrics(registry.Collection),
	}
	orders := collection.New[model.Order]("orders", client, issuer, opts...)
	customers := collection.New[model.Customer]("customers", client, issuer, opts...)

	source, closeSource, err := newOrderSource(ctx, cfg, orders, zaplog)
	if err != nil {
		return err
	}
	defer closeSource()

	service, err := service.NewService(cfg.Service, service.Deps{
		Orders:    orders,
		Customers: customers,
		Source:    source,
		Catalog:   service.SampleCatalog(),
	})
	if err != nil {
		return err
	}

	zaplog.Info("starting server",
		zap.String("addr", cfg.Handler.ServerAddr),
		zap.String("analytics_source", cfg.Service.AnalyticsSource),
	)
	err = handler.Serve(ctx, cfg.Handler, auth, service, registry.Handler(), zaplog)
	orders.Wait()
	customers.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// newOrderSource выбирает источник заказов для аналитики
func newOrderSource(ctx context.Context, cfg config.Config, orders *collection.Store[model.Order], zaplog *zap.Logger) (service.OrderSource, func(), error) {
	noop := func() {}

	switch cfg.Service.AnalyticsSource {
	case serviceConfig.SourceRemote:
		return service.RemoteSource{Store: orders}, noop, nil
	case serviceConfig.SourcePostgres:
		db, err := store.NewStore(cfg.Store)
		if err != nil {
			return nil, noop, err
		}
		if cfg.Service.SeedSample {
			if err := seedSample(ctx, db); err != nil {
				db.Close()
				return nil, noop, err
			}
			zaplog.Info("sample orders seeded")
		}
		return service.StoreSource{Store: db}, func() { db.Close() }, nil
	}
	return service.SampleSource{}, noop, nil
}

func seedSample(ctx context.Context, db store.Store) error {
	for _, order := range service.SampleOrders(time.Now()) {
		err := db.OrderPost(ctx, order)
		if err != nil && !errors.Is(err, store.ErrAlreadyExists) {
			return err
		}
	}
	return nil
}
