package models

// HistoryState is the terminal outcome of one snapshot retrieval.
// The transient trigger/poll states live inside the snapshot service;
// only terminal results cross package boundaries and get cached.
type HistoryState int

const (
	HistoryEmpty HistoryState = iota
	HistoryReady
	HistoryFailed
)

func (s HistoryState) String() string {
	switch s {
	case HistoryEmpty:
		return "empty"
	case HistoryReady:
		return "ready"
	case HistoryFailed:
		return "failed"
	default:
		return "failed"
	}
}

// PriceHistoryRecord is one historic price point for a listing.
// Date is normalized to calendar-date granularity as YYYY-MM-DD.
type PriceHistoryRecord struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// HistoryResult is a resolved snapshot retrieval. Once produced it is
// immutable: the retrieval cache hands the same value to every caller.
type HistoryResult struct {
	State   HistoryState
	Records []PriceHistoryRecord
	// Reason is the failure code ("trigger_error", "network_error",
	// "parse_error", "timeout"); set only when State is HistoryFailed.
	Reason string
}
