// Package cache defines the Cacher pluggable contract of spec §6: "the
// broker never inspects cached values."
package cache

import "time"

// Cacher is the pluggable cache contract. All methods are synchronous in
// this Go port — the spec's "return futures" requirement is satisfied by
// callers wrapping these in a goroutine where non-blocking behavior
// matters, same as the rest of the pluggables.
type Cacher interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration)
	Del(key string)
	// Clean removes every key matching pattern (a glob over colon-joined
	// key segments, e.g. "math.add:*").
	Clean(pattern string) error
}
