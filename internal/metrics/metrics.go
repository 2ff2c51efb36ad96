package metrics

import "time"

// Recorder receives counters and latencies from the sale components.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// Event names.
const (
	QuoteRequested    = "quote_requested"
	QuoteFailed       = "quote_failed"
	PurchaseSubmitted = "purchase_submitted"
	PurchaseSucceeded = "purchase_succeeded"
	PurchaseFailed    = "purchase_failed"
	ApprovalSubmitted = "approval_submitted"
	StatusRefreshed   = "status_refreshed"
	StatusFailed      = "status_failed"
	SessionConnected  = "session_connected"
	SessionReset      = "session_reset"
)

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
