package exchange

import "strings"

// APIError wraps the exchange's error array. A single call can surface
// several error strings at once (e.g. a warning plus the actual failure).
type APIError struct {
	Messages []string
}

func (e *APIError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// IsUnknownOrder reports whether err is the exchange's "Unknown order"
// error, which CancelOrder and the OrderPlacementEngine both treat as an
// idempotent success: the order is already gone, which is the caller's
// desired end state.
func IsUnknownOrder(err error) bool {
	apiErr, ok := err.(*APIError)
	if !ok {
		return false
	}
	for _, m := range apiErr.Messages {
		if strings.Contains(m, "Unknown order") {
			return true
		}
	}
	return false
}

// IsVolumeError reports whether err is the exchange's minimum-volume
// rejection, which the OrderPlacementEngine retries against per the
// PostLimit retry ladder.
func IsVolumeError(err error) bool {
	apiErr, ok := err.(*APIError)
	if !ok {
		return false
	}
	for _, m := range apiErr.Messages {
		if strings.Contains(m, "volume") {
			return true
		}
	}
	return false
}
