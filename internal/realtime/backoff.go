package realtime

import "time"

// Backoff decides whether and when to retry after a lost connection.
type Backoff interface {
	// Next receives the number of reconnects already scheduled since the
	// last successful open and returns the delay for the next one.
	Next(attempts int) (time.Duration, bool)
}

// LinearBackoff waits Base, 2*Base, 3*Base... and gives up after
// MaxAttempts reconnects.
type LinearBackoff struct {
	Base        time.Duration
	MaxAttempts int
}

// DefaultBackoff is 5s steps with a ceiling of five reconnects.
func DefaultBackoff() LinearBackoff {
	return LinearBackoff{Base: 5 * time.Second, MaxAttempts: 5}
}

func (b LinearBackoff) Next(attempts int) (time.Duration, bool) {
	if attempts >= b.MaxAttempts {
		return 0, false
	}
	return b.Base * time.Duration(attempts+1), true
}
