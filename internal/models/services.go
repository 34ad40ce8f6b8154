package models

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

//go:generate mockgen -destination=mocks/mock_auth.go . AuthService
type AuthService interface {
	Register(ctx context.Context, operator UnknownOperator) error

	Login(ctx context.Context, operator UnknownOperator) error

	GetOperator(ctx context.Context, login string) (*Operator, error)
}

//go:generate mockgen -destination=mocks/mock_jwt.go . JWTService
type JWTService interface {
	GenerateJWT(subject string) (string, error)

	ValidateToken(token string) (*jwt.Token, error)
}

//go:generate mockgen -destination=mocks/mock_order.go . OrderService
type OrderService interface {
	GetOrders(ctx context.Context, limit int) ([]Order, error)

	GetOrder(ctx context.Context, orderID string) (*Order, error)

	ChangeStatus(ctx context.Context, orderID string, status LocalStatus) error
}

//go:generate mockgen -destination=mocks/mock_sync.go . SyncTrigger
type SyncTrigger interface {
	TriggerNow() bool

	LastSummary() (SyncSummary, bool)
}

//go:generate mockgen -destination=mocks/mock_webhook.go . WebhookService
type WebhookService interface {
	Ingest(ctx context.Context, body []byte, signature string) (ReconcileResult, error)
}

//go:generate mockgen -destination=mocks/mock_marketplace.go . MarketplaceClient
type MarketplaceClient interface {
	Authenticate(ctx context.Context) error

	GetOrderDetails(ctx context.Context, remoteOrderID string) (*RemoteOrder, error)

	UpdateOrderStatus(ctx context.Context, remoteOrderID string, target EventCode) (StatusUpdateResult, error)

	PollEvents(ctx context.Context) ([]RemoteEvent, error)

	AcknowledgeEvents(ctx context.Context, eventIDs []string) error
}
