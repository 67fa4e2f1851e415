package client

import "time"

const (
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultMaxAttempts = 5
)

// Delay returns min(base*2^attempt, max). attempt counts from zero.
func Delay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		if d >= max || d > max/2 {
			return max
		}
		d *= 2
	}
	if d > max {
		return max
	}

	return d
}
