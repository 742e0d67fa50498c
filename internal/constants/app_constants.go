// Package constants holds fixed key prefixes and durations shared across
// the storage and caching layers, kept in one place so a key scheme change
// never becomes a multi-file grep.
package constants

import "time"

const (
	// SearchCachePrefix namespaces Redis keys holding cached final pipeline
	// results, keyed by a signature of (query, searchType, k).
	SearchCachePrefix = "search:result:"

	// SearchCacheDuration is how long a cached search result stays valid.
	// Short-lived: this is a dedup/perf guard, not a durability layer.
	SearchCacheDuration = 2 * time.Minute

	// SearchLockPrefix namespaces the distributed locks that collapse
	// concurrent identical in-flight searches into one D/E/F/G run.
	SearchLockPrefix = "search:lock:"

	// SearchLockTTL bounds how long a search lock is held before it is
	// considered abandoned and releasable by another caller.
	SearchLockTTL = 30 * time.Second

	// SearchLockPollInterval is how often a caller that lost the race for
	// the search lock re-checks the cache for the winner's result.
	SearchLockPollInterval = 200 * time.Millisecond

	// SearchLockPollAttempts bounds how many times a caller polls before
	// giving up and running the search itself rather than waiting longer.
	SearchLockPollAttempts = 5

	// ConversationHistoryPrefix namespaces in-process conversation memory
	// lookups for logging; conversation state itself never touches Redis.
	ConversationHistoryPrefix = "conversation:"
)
