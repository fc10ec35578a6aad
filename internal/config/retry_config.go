package config

import (
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

// ReleaseBackOff returns the backoff policy for the lock-release write. In test
// environments it gives up quickly.
func (c Config) ReleaseBackOff() backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.ReleaseBackoffInitial
	expo.MaxElapsedTime = c.ReleaseBackoffMax
	if c.IsTest() {
		expo.InitialInterval = 5 * time.Millisecond
		expo.MaxElapsedTime = 100 * time.Millisecond
	}
	return expo
}
