package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrMalformedPayload    = errors.New("event payload is malformed")
	ErrUnrecognizedPayload = errors.New("event payload has neither code nor order id")
	ErrIncompletePayload   = errors.New("event payload misses code or order id")
)

// rawEvent lists every field a marketplace event may carry, on either channel:
//   - id:        "id", "eventId"
//   - code:      "code", "fullCode", "event"
//   - order id:  "orderId", "payload.orderId", "order.id"
//   - createdAt: "createdAt" (RFC 3339)
//   - metadata:  "metadata" (object)
type rawEvent struct {
	ID       string `json:"id"`
	EventID  string `json:"eventId"`
	Code     string `json:"code"`
	FullCode string `json:"fullCode"`
	Event    string `json:"event"`
	OrderID  string `json:"orderId"`
	Payload  *struct {
		OrderID string `json:"orderId"`
	} `json:"payload"`
	Order *struct {
		ID string `json:"id"`
	} `json:"order"`
	CreatedAt string         `json:"createdAt"`
	Metadata  map[string]any `json:"metadata"`
}

// NormalizeEvent turns a raw event body into a RemoteEvent. receivedAt is used when the
// payload has no createdAt.
//
// The returned event is filled with whatever could be extracted even when an error is
// returned, so callers can still acknowledge an event that has an id.
func NormalizeEvent(data []byte, receivedAt time.Time) (RemoteEvent, error) {
	var raw rawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return RemoteEvent{}, fmt.Errorf("%w: %s", ErrMalformedPayload, err.Error())
	}

	event := RemoteEvent{
		ID:        firstNonEmpty(raw.ID, raw.EventID),
		OrderID:   raw.OrderID,
		CreatedAt: receivedAt,
	}

	if code := firstNonEmpty(raw.Code, raw.FullCode, raw.Event); code != "" {
		event.Code = CanonicalCode(code)
	}

	if event.OrderID == "" && raw.Payload != nil {
		event.OrderID = raw.Payload.OrderID
	}
	if event.OrderID == "" && raw.Order != nil {
		event.OrderID = raw.Order.ID
	}

	if len(raw.Metadata) > 0 {
		event.Metadata = make(map[string]string, len(raw.Metadata))
		for key, value := range raw.Metadata {
			event.Metadata[key] = metadataString(value)
		}
	}

	if raw.CreatedAt != "" {
		createdAt, err := time.Parse(time.RFC3339Nano, raw.CreatedAt)
		if err != nil {
			return event, fmt.Errorf("%w: createdAt %q", ErrMalformedPayload, raw.CreatedAt)
		}
		event.CreatedAt = createdAt
	}

	switch {
	case event.Code == "" && event.OrderID == "":
		return event, ErrUnrecognizedPayload
	case event.Code == "" || event.OrderID == "":
		return event, ErrIncompletePayload
	}

	return event, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func metadataString(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return string(b)
}
