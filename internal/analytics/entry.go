// Package analytics caches the per-(user, filter) dashboard data set and
// serves it stale-while-revalidate.
package analytics

import (
	"strings"
	"time"

	"finboard/internal/aggregate"
	"finboard/internal/budget"
	"finboard/internal/core"
)

// DefaultTTL is how long an entry counts as fresh.
const DefaultTTL = 5 * time.Minute

// Entry is one cached data set.
type Entry struct {
	Transactions []core.Transaction
	RingLimits   budget.Limits
	Bundle       *aggregate.Bundle
	FetchedAt    time.Time
	// Degraded marks substituted empty data after a failed fetch. Degraded
	// entries are never cached.
	Degraded bool
	// Version identifies the fetch that produced the entry.
	Version uint64
	Err     error
}

// IsFresh reports whether now - FetchedAt is under ttl.
func IsFresh(e Entry, now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FetchedAt) < ttl
}

// Key is the cache key for a (user, filter) pair.
func Key(userID, filterID string) string {
	return userID + "|" + filterID
}

// SplitKey reverses Key.
func SplitKey(key string) (userID, filterID string) {
	userID, filterID, _ = strings.Cut(key, "|")
	return userID, filterID
}

func emptyEntry(now time.Time, err error) Entry {
	return Entry{
		Transactions: []core.Transaction{},
		RingLimits:   budget.Limits{},
		FetchedAt:    now,
		Degraded:     true,
		Err:          err,
	}
}
