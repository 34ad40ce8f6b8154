package router

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Renal37/orderbridge/internal/logger"
	"github.com/Renal37/orderbridge/internal/middlewares"
	"github.com/Renal37/orderbridge/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	maxWebhookBodySize = 1 << 20
	shutdownTimeout    = 10 * time.Second
)

type Config struct {
	// Endpoint адрес и порт, на которых сервер будет слушать входящие запросы.
	Endpoint string
}

type Router struct {
	config   Config
	services middlewares.Services
}

// New создает новый экземпляр Router с заданными зависимостями.
func New(config Config, services middlewares.Services) *Router {
	return &Router{
		config:   config,
		services: services,
	}
}

// get возвращает настроенный роутер.
func (router *Router) get() chi.Router {
	r := chi.NewRouter()

	r.Use(
		middlewares.ServiceInjectorMiddleware(router.services),
		logger.RequestLogger,
		// Вебхук подписывается отдельно, метрики открыты для сборщика.
		middlewares.AuthMiddleware().WithExcludedPaths(
			"/api/operator/",
			"/api/webhooks/",
			"/metrics",
		).Middleware,
	)

	r.Route("/api/operator", func(r chi.Router) {
		r.With(middlewares.JSONMiddleware[models.UnknownOperator]).Post("/register", Register)
		r.With(middlewares.JSONMiddleware[models.UnknownOperator]).Post("/login", Login)
	})

	r.Route("/api/orders", func(r chi.Router) {
		r.Get("/", GetOrders)
		r.Get("/{id}", GetOrder)
		r.With(middlewares.JSONMiddleware[models.StatusChange]).Post("/{id}/status", ChangeOrderStatus)
	})

	r.Route("/api/sync", func(r chi.Router) {
		r.Post("/", TriggerSync)
		r.Get("/", GetSyncSummary)
	})

	r.With(middlewares.RawBodyMiddleware(maxWebhookBodySize)).Post("/api/webhooks/marketplace", MarketplaceWebhook)

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Run слушает Endpoint, пока не отменён ctx, затем мягко останавливает сервер.
func (router *Router) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              router.config.Endpoint,
		Handler:           router.get(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("http server started", zap.String("address", router.config.Endpoint))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Log.Info("http server stopped")

	return nil
}
