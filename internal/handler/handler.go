package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/iurnickita/shopdash/internal/analytics"
	"github.com/iurnickita/shopdash/internal/auth"
	"github.com/iurnickita/shopdash/internal/handler/config"
	"github.com/iurnickita/shopdash/internal/logger"
	"github.com/iurnickita/shopdash/internal/model"
	"github.com/iurnickita/shopdash/internal/service"
)

func Serve(ctx context.Context, cfg config.Config, auth auth.Auth, service service.Service, metrics http.Handler, zaplog *zap.Logger) error {
	h := newHandler(auth, service, metrics, zaplog)

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           h.newRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type handler struct {
	auth    auth.Auth
	service service.Service
	metrics http.Handler
	zaplog  *zap.Logger
}

func newHandler(auth auth.Auth, service service.Service, metrics http.Handler, zaplog *zap.Logger) *handler {
	if metrics == nil {
		metrics = http.NotFoundHandler()
	}
	return &handler{
		auth:    auth,
		service: service,
		metrics: metrics,
		zaplog:  zaplog,
	}
}

func (h *handler) newRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(logger.RequestID, logger.RequestLogMdlw(h.zaplog))

	r.Get("/health", h.GetHealth)
	r.Method(http.MethodGet, "/metrics", h.metrics)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.auth.Middleware)

		r.Get("/orders", h.GetOrders)
		r.Post("/orders", h.PostOrder)
		r.Get("/orders/statuses", h.GetOrderStatuses)
		r.Put("/orders/{id}", h.PutOrder)
		r.Delete("/orders/{id}", h.DeleteOrder)

		r.Get("/customers", h.GetCustomers)
		r.Post("/customers", h.PostCustomer)
		r.Delete("/customers/{id}", h.DeleteCustomer)

		r.Get("/products", h.GetProducts)

		r.Get("/analytics/revenue", h.GetRevenue)
		r.Get("/analytics/top-products", h.GetTopProducts)
		r.Get("/analytics/summary", h.GetSummary)

		r.Post("/refresh", h.PostRefresh)
	})

	return r
}

func (h *handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Заказы

func (h *handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	writeList(w, h.service.Orders(r.Context()))
}

func (h *handler) PostOrder(w http.ResponseWriter, r *http.Request) {
	var draft model.OrderDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, h.zaplog, invalidBody(err))
		return
	}

	order, err := h.service.CreateOrder(r.Context(), draft)
	if err != nil {
		writeError(w, h.zaplog, err)
		return
	}
	writeJSON(w, http.StatusCreated, dataResponse{Data: order})
}

func (h *handler) GetOrderStatuses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dataResponse{Data: model.OrderStatuses()})
}

func (h *handler) PutOrder(w http.ResponseWriter, r *http.Request) {
	var patch model.OrderStatusPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, h.zaplog, invalidBody(err))
		return
	}

	order, err := h.service.UpdateOrderStatus(r.Context(), chi.URLParam(r, "id"), patch.Status)
	if err != nil {
		writeError(w, h.zaplog, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: order})
}

func (h *handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.zaplog, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Покупатели

func (h *handler) GetCustomers(w http.ResponseWriter, r *http.Request) {
	writeList(w, h.service.Customers(r.Context(), r.URL.Query().Get("q")))
}

func (h *handler) PostCustomer(w http.ResponseWriter, r *http.Request) {
	var draft model.CustomerDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, h.zaplog, invalidBody(err))
		return
	}

	customer, err := h.service.CreateCustomer(r.Context(), draft)
	if err != nil {
		writeError(w, h.zaplog, err)
		return
	}
	writeJSON(w, http.StatusCreated, dataResponse{Data: customer})
}

func (h *handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCustomer(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.zaplog, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Каталог

func (h *handler) GetProducts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dataResponse{Data: h.service.Products(r.URL.Query().Get("q"))})
}

// Аналитика

func (h *handler) GetRevenue(w http.ResponseWriter, r *http.Request) {
	days, err := analytics.ParseWindow(r.URL.Query().Get("days"))
	if err != nil {
		writeError(w, h.zaplog, err)
		return
	}

	series, err := h.service.Revenue(r.Context(), days)
	if err != nil {
		writeError(w, h.zaplog, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: series})
}

func (h *handler) GetTopProducts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if value := r.URL.Query().Get("limit"); value != "" {
		var err error
		limit, err = strconv.Atoi(value)
		if err != nil || limit <= 0 {
			writeError(w, h.zaplog, fmt.Errorf("%w: limit %q", analytics.ErrInvalidArgument, value))
			return
		}
	}

	top, err := h.service.TopProducts(r.Context(), limit)
	if err != nil {
		writeError(w, h.zaplog, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: top})
}

func (h *handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	days, err := analytics.ParseWindow(r.URL.Query().Get("days"))
	if err != nil {
		writeError(w, h.zaplog, err)
		return
	}

	summary, err := h.service.Summary(r.Context(), days)
	if err != nil {
		writeError(w, h.zaplog, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: summary})
}

func (h *handler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Refresh(r.Context()); err != nil {
		writeError(w, h.zaplog, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
