package services

import "errors"

var (
	// ErrTrigger means the remote data-collection job could not be started.
	ErrTrigger = errors.New("snapshot trigger failed")
	// ErrNetwork is a transport failure at any call to the remote service.
	ErrNetwork = errors.New("snapshot network failure")
	// ErrParse means the snapshot payload was not in the expected tabular shape.
	ErrParse = errors.New("snapshot payload parse failed")
	// ErrPollTimeout means the poll loop exhausted its attempt budget.
	ErrPollTimeout = errors.New("snapshot poll attempts exhausted")

	// ErrListingNotFound means the requested listing id is not in the store.
	ErrListingNotFound = errors.New("listing not found")
)

// Failure reason codes carried on cached failed results.
const (
	ReasonTrigger = "trigger_error"
	ReasonNetwork = "network_error"
	ReasonParse   = "parse_error"
	ReasonTimeout = "timeout"
)

// failureReason maps a retrieval error to its cached reason code.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrTrigger):
		return ReasonTrigger
	case errors.Is(err, ErrParse):
		return ReasonParse
	case errors.Is(err, ErrPollTimeout):
		return ReasonTimeout
	default:
		return ReasonNetwork
	}
}
