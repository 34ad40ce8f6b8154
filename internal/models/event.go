package models

import (
	"strings"
	"time"
)

// EventCode is the canonical (long, upper-cased) marketplace lifecycle code.
type EventCode string

const (
	CodePlaced                    EventCode = "PLACED"
	CodeConfirmed                 EventCode = "CONFIRMED"
	CodeSeparationStarted         EventCode = "SEPARATION_STARTED"
	CodeSeparationEnded           EventCode = "SEPARATION_ENDED"
	CodePreparationStarted        EventCode = "PREPARATION_STARTED"
	CodeReadyToPickup             EventCode = "READY_TO_PICKUP"
	CodeDispatched                EventCode = "DISPATCHED"
	CodeConcluded                 EventCode = "CONCLUDED"
	CodeCancelled                 EventCode = "CANCELLED"
	CodeCancellationRequested     EventCode = "CANCELLATION_REQUESTED"
	CodeCancellationRequestFailed EventCode = "CANCELLATION_REQUEST_FAILED"
)

// codeAliases collapses short codes and alternative spellings into canonical codes.
var codeAliases = map[string]EventCode{
	"PLC":                 CodePlaced,
	"NEW":                 CodePlaced,
	"CFM":                 CodeConfirmed,
	"SPS":                 CodeSeparationStarted,
	"SPE":                 CodeSeparationEnded,
	"PRS":                 CodePreparationStarted,
	"RTP":                 CodeReadyToPickup,
	"DSP":                 CodeDispatched,
	"CON":                 CodeConcluded,
	"CAN":                 CodeCancelled,
	"CAR":                 CodeCancellationRequested,
	"CARF":                CodeCancellationRequestFailed,
	"CANCELLATION_FAILED": CodeCancellationRequestFailed,
}

// CanonicalCode normalizes a raw code. Codes that are not known are returned upper-cased
// so they can still be logged, Classify reports them as EventClassUnknown.
func CanonicalCode(raw string) EventCode {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if alias, ok := codeAliases[code]; ok {
		return alias
	}
	return EventCode(code)
}

// EventClass groups codes by the effect they have on an order.
type EventClass int

const (
	EventClassUnknown EventClass = iota
	EventClassCreation
	EventClassStatusAdvance
	EventClassCancellation
	EventClassCancellationRequested
	EventClassCancellationFailed
)

func (c EventClass) String() string {
	switch c {
	case EventClassCreation:
		return "creation"
	case EventClassStatusAdvance:
		return "status_advance"
	case EventClassCancellation:
		return "cancellation"
	case EventClassCancellationRequested:
		return "cancellation_requested"
	case EventClassCancellationFailed:
		return "cancellation_failed"
	default:
		return "unknown"
	}
}

// Classify returns the class of a canonical code.
func Classify(code EventCode) EventClass {
	switch code {
	case CodePlaced:
		return EventClassCreation
	case CodeConfirmed, CodeSeparationStarted, CodeSeparationEnded, CodePreparationStarted,
		CodeReadyToPickup, CodeDispatched, CodeConcluded:
		return EventClassStatusAdvance
	case CodeCancelled:
		return EventClassCancellation
	case CodeCancellationRequested:
		return EventClassCancellationRequested
	case CodeCancellationRequestFailed:
		return EventClassCancellationFailed
	default:
		return EventClassUnknown
	}
}

// localStatusByCode is the only mapping between marketplace codes and local statuses.
var localStatusByCode = map[EventCode]LocalStatus{
	CodePlaced:             StatusPending,
	CodeConfirmed:          StatusPreparing,
	CodeSeparationStarted:  StatusPreparing,
	CodeSeparationEnded:    StatusPreparing,
	CodePreparationStarted: StatusPreparing,
	CodeReadyToPickup:      StatusReady,
	CodeDispatched:         StatusDelivered,
	CodeConcluded:          StatusClosed,
	CodeCancelled:          StatusCancelled,
}

// LocalStatusFor maps a canonical code to the local status it implies.
func LocalStatusFor(code EventCode) (LocalStatus, bool) {
	status, ok := localStatusByCode[code]
	return status, ok
}

// RemoteEvent is a single lifecycle notification, whichever channel delivered it.
type RemoteEvent struct {
	ID        string
	Code      EventCode
	OrderID   string
	CreatedAt time.Time
	Metadata  map[string]string
}

// ReconcileResult is what one reconciliation pass reports back to its caller.
type ReconcileResult struct {
	AcknowledgeIDs []string
	Created        int
	Updated        int
	Skipped        int
	Errors         int
}

// SyncSummary aggregates one full polling cycle for the admin surface.
type SyncSummary struct {
	Polled       int       `json:"polled"`
	Synced       int       `json:"synced"`
	Updated      int       `json:"updated"`
	Errors       int       `json:"errors"`
	Acknowledged int       `json:"acknowledged"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// StatusUpdateResult is the marketplace answer to a status push.
type StatusUpdateResult struct {
	Success bool
	IsAsync bool
}
