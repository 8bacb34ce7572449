// Package state persists small client-side values across sessions: grid
// layouts, quick filters and cache snapshots. Values expire after a
// retention period and read as absent once expired.
package state

import (
	"context"
	"errors"
	"time"
)

// DefaultRetention is how long persisted values survive without being
// rewritten.
const DefaultRetention = 90 * 24 * time.Hour

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("state store closed")

// Store is a string key/value store with per-key expiry.
type Store interface {
	// Get returns the value of a key and whether it was present and unexpired.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes a value that expires after ttl; ttl <= 0 uses DefaultRetention.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes a key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		ttl = DefaultRetention
	}
	return now.Add(ttl)
}
