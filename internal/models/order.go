package models

import (
	"github.com/Renal37/orderbridge/internal/utils"
	"github.com/shopspring/decimal"
)

// LocalStatus is the restaurant-side order lifecycle.
type LocalStatus string

const (
	StatusPending   LocalStatus = "PENDING"
	StatusPreparing LocalStatus = "PREPARING"
	StatusReady     LocalStatus = "READY"
	StatusDelivered LocalStatus = "DELIVERED"
	StatusClosed    LocalStatus = "CLOSED"
	StatusCancelled LocalStatus = "CANCELLED"
)

var statusRank = map[LocalStatus]int{
	StatusPending:   0,
	StatusPreparing: 1,
	StatusReady:     2,
	StatusDelivered: 3,
	StatusClosed:    4,
}

// IsValid reports whether s is one of the known local statuses.
func (s LocalStatus) IsValid() bool {
	_, ok := statusRank[s]
	return ok || s == StatusCancelled
}

// IsTerminal reports whether no further transition is allowed out of s.
func (s LocalStatus) IsTerminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

// CanAdvanceTo reports whether moving from s to next keeps the lifecycle monotonic:
// forward along Pending → Preparing → Ready → Delivered → Closed (staying put included),
// or a jump to Cancelled from any non-terminal status.
func (s LocalStatus) CanAdvanceTo(next LocalStatus) bool {
	if s == next {
		return true
	}
	if s.IsTerminal() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	from, okFrom := statusRank[s]
	to, okTo := statusRank[next]
	return okFrom && okTo && to > from
}

// OrderKind tells how the order leaves the restaurant.
type OrderKind string

const (
	KindDelivery OrderKind = "DELIVERY"
	KindTakeout  OrderKind = "TAKEOUT"
)

// OrderItem is one order line. ProductID is nil when the line is not mapped to the catalog.
type OrderItem struct {
	ProductID    *string         `json:"product_id"`
	RemoteLineID string          `json:"remote_line_id,omitempty"`
	SKU          string          `json:"sku,omitempty"`
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
}

type Order struct {
	ID              string             `json:"id"`
	RemoteOrderID   string             `json:"remote_order_id"`
	RemoteDisplayID string             `json:"remote_display_id,omitempty"`
	Customer        string             `json:"customer"`
	Kind            OrderKind          `json:"kind"`
	Items           []OrderItem        `json:"items,omitempty"`
	Total           decimal.Decimal    `json:"total"`
	Status          LocalStatus        `json:"status"`
	RemoteStatus    EventCode          `json:"remote_status,omitempty"`
	CreatedAt       utils.RFC3339Date  `json:"created_at"`
	ClosedAt        *utils.RFC3339Date `json:"closed_at,omitempty"`
}

// StatusChange is the body of the operator status change route.
type StatusChange struct {
	Status *LocalStatus `json:"status"`
}
