package middlewares

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Renal37/orderbridge/internal/models"
)

type key int

const (
	AuthServiceKey key = iota
	JwtServiceKey
	OrderServiceKey
	SyncTriggerKey
	WebhookServiceKey
)

// Services is everything the HTTP handlers reach through the request context.
// Sync is nil when polling is not active for the merchant.
type Services struct {
	Auth    models.AuthService
	JWT     models.JWTService
	Order   models.OrderService
	Sync    models.SyncTrigger
	Webhook models.WebhookService
}

func ServiceInjectorMiddleware(services Services) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), AuthServiceKey, services.Auth)
			ctx = context.WithValue(ctx, JwtServiceKey, services.JWT)
			ctx = context.WithValue(ctx, OrderServiceKey, services.Order)
			ctx = context.WithValue(ctx, WebhookServiceKey, services.Webhook)
			if services.Sync != nil {
				ctx = context.WithValue(ctx, SyncTriggerKey, services.Sync)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LookupService returns the service stored under serviceKey, if any.
func LookupService[Service interface{}](r *http.Request, serviceKey key) (Service, bool) {
	foundService, ok := r.Context().Value(serviceKey).(Service)
	return foundService, ok
}

// GetServiceFromContext is LookupService that answers 500 when the service is missing.
func GetServiceFromContext[Service interface{}](w http.ResponseWriter, r *http.Request, serviceKey key) (Service, bool) {
	foundService, ok := LookupService[Service](r, serviceKey)
	if !ok {
		http.Error(w, fmt.Sprintf("Service wasn't found in context by key %v", serviceKey), http.StatusInternalServerError)
	}

	return foundService, ok
}
