// Package notify fans engine events out to notification sinks and the
// event journal. Delivery is one-way and best-effort: a dead sink must
// never fail or delay a trading action.
package notify

import "time"

// Kind identifies an engine event.
type Kind string

const (
	KindScanComplete   Kind = "scan_complete"
	KindSignalDetected Kind = "signal_detected"
	KindEntryFilled    Kind = "entry_filled"
	KindExitFilled     Kind = "exit_filled"
	KindBreakerTripped Kind = "breaker_tripped"
	KindLimitReached   Kind = "limit_reached"
	KindEngineError    Kind = "engine_error"
	KindPaused         Kind = "paused"
	KindResumed        Kind = "resumed"
)

// Event is one discrete notification.
type Event struct {
	Kind    Kind      `json:"kind"`
	Symbol  string    `json:"symbol,omitempty"`
	Text    string    `json:"text"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}
