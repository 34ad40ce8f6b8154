package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		code  EventCode
		class EventClass
	}{
		{CodePlaced, EventClassCreation},
		{CodeConfirmed, EventClassStatusAdvance},
		{CodeSeparationStarted, EventClassStatusAdvance},
		{CodePreparationStarted, EventClassStatusAdvance},
		{CodeReadyToPickup, EventClassStatusAdvance},
		{CodeDispatched, EventClassStatusAdvance},
		{CodeConcluded, EventClassStatusAdvance},
		{CodeCancelled, EventClassCancellation},
		{CodeCancellationRequested, EventClassCancellationRequested},
		{CodeCancellationRequestFailed, EventClassCancellationFailed},
		{"XYZ123", EventClassUnknown},
	}

	for _, tc := range testCases {
		t.Run(string(tc.code), func(t *testing.T) {
			assert.Equal(t, tc.class, Classify(tc.code))
		})
	}
}

func TestLocalStatusFor(t *testing.T) {
	status, ok := LocalStatusFor(CodeSeparationEnded)
	assert.True(t, ok)
	assert.Equal(t, StatusPreparing, status)

	status, ok = LocalStatusFor(CodeConcluded)
	assert.True(t, ok)
	assert.Equal(t, StatusClosed, status)

	_, ok = LocalStatusFor(CodeCancellationRequested)
	assert.False(t, ok)
}

func TestCanAdvanceTo(t *testing.T) {
	testCases := []struct {
		from LocalStatus
		to   LocalStatus
		want bool
	}{
		{StatusPending, StatusPreparing, true},
		{StatusPending, StatusDelivered, true},
		{StatusPreparing, StatusPreparing, true},
		{StatusReady, StatusPreparing, false},
		{StatusDelivered, StatusClosed, true},
		{StatusPreparing, StatusCancelled, true},
		{StatusClosed, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusCancelled, true},
		{StatusPending, "COOKING", false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.from.CanAdvanceTo(tc.to))
		})
	}
}

func TestLocalStatusIsValid(t *testing.T) {
	assert.True(t, StatusCancelled.IsValid())
	assert.True(t, StatusReady.IsValid())
	assert.False(t, LocalStatus("COOKING").IsValid())
	assert.True(t, StatusClosed.IsTerminal())
	assert.False(t, StatusDelivered.IsTerminal())
}
