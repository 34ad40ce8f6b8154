package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RemoteOrder is the marketplace view of an order, as returned by the details endpoint.
// Total is invalid when the marketplace sent no amount; a zero amount is a real total.
type RemoteOrder struct {
	ID           string
	DisplayID    string
	Kind         OrderKind
	CustomerName string
	Items        []RemoteOrderItem
	Total        decimal.NullDecimal
	Status       EventCode
	CreatedAt    time.Time
}

type RemoteOrderItem struct {
	ID        string
	SKU       string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}
