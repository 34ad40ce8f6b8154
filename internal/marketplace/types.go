package marketplace

import (
	"strings"
	"time"

	"github.com/Renal37/orderbridge/internal/models"
	"github.com/shopspring/decimal"
)

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	Type        string `json:"type"`
	ExpiresIn   int    `json:"expiresIn"`
}

type orderResponse struct {
	ID        string `json:"id"`
	DisplayID string `json:"displayId"`
	OrderType string `json:"orderType"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
	Customer  struct {
		Name string `json:"name"`
	} `json:"customer"`
	Items []orderItemResponse `json:"items"`
	Total struct {
		OrderAmount decimal.NullDecimal `json:"orderAmount"`
	} `json:"total"`
}

type orderItemResponse struct {
	ID           string          `json:"id"`
	ExternalCode string          `json:"externalCode"`
	Name         string          `json:"name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
}

type acknowledgment struct {
	ID string `json:"id"`
}

type cancellationRequest struct {
	Reason           string `json:"reason"`
	CancellationCode string `json:"cancellationCode"`
}

func (o orderResponse) toModel() *models.RemoteOrder {
	order := &models.RemoteOrder{
		ID:           o.ID,
		DisplayID:    o.DisplayID,
		Kind:         models.KindDelivery,
		CustomerName: o.Customer.Name,
		Total:        o.Total.OrderAmount,
		Items:        make([]models.RemoteOrderItem, 0, len(o.Items)),
	}

	if strings.EqualFold(o.OrderType, string(models.KindTakeout)) {
		order.Kind = models.KindTakeout
	}

	if createdAt, err := time.Parse(time.RFC3339Nano, o.CreatedAt); err == nil {
		order.CreatedAt = createdAt
	}

	if o.Status != "" {
		order.Status = models.CanonicalCode(o.Status)
	}

	for _, item := range o.Items {
		order.Items = append(order.Items, models.RemoteOrderItem{
			ID:        item.ID,
			SKU:       item.ExternalCode,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}

	return order
}

// statusActions maps a canonical code to the marketplace endpoint that performs the transition.
var statusActions = map[models.EventCode]string{
	models.CodeConfirmed:             "confirm",
	models.CodePreparationStarted:    "startPreparation",
	models.CodeSeparationStarted:     "startPreparation",
	models.CodeReadyToPickup:         "readyToPickup",
	models.CodeDispatched:            "dispatch",
	models.CodeCancellationRequested: "requestCancellation",
	models.CodeCancelled:             "requestCancellation",
}
