package apiclient

// attempt tracks the one-shot retry of a single logical request.
//
//	fresh --401--> retried (refresh, re-issue once)
//	retried --401--> failed (clear session, ErrLoginRequired)
//
// Any other response ends the request in its current state.
type attempt int

const (
	attemptFresh attempt = iota
	attemptRetried
	attemptFailed
)

func (a attempt) String() string {
	switch a {
	case attemptFresh:
		return "fresh"
	case attemptRetried:
		return "retried"
	case attemptFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// onUnauthorized returns the state after a 401 and whether a refresh-and-reissue
// should follow. Only a fresh request earns a retry.
func (a attempt) onUnauthorized() (attempt, bool) {
	if a == attemptFresh {
		return attemptRetried, true
	}
	return attemptFailed, false
}
