// Package cache stores session-independent detection signals keyed by
// normalized text. A hit skips every detection stage; session risk and the
// final decision are never stored here, which is the invariant that keeps
// the cache from freezing per-session behavior.
package cache

import (
	"context"

	"github.com/cespare/xxhash/v2"

	"github.com/bastionai/bastion/pkg/detect"
)

// SignalCache is the result cache contract. Implementations must be safe
// for concurrent use; a duplicate computation on racing misses is fine, a
// corrupted or partially written entry is not.
type SignalCache interface {
	// Get returns the cached signal set for key, or ok=false on miss.
	// Backend failures read as misses.
	Get(ctx context.Context, key uint64) (signals []detect.Signal, ok bool)

	// Put stores the signal set for key. Best effort.
	Put(ctx context.Context, key uint64, signals []detect.Signal)
}

// Key hashes normalized text into a cache key. The key covers the text
// only, never the session: identical normalized text must hit the same
// entry regardless of who sent it.
func Key(normalizedText string) uint64 {
	return xxhash.Sum64String(normalizedText)
}

// clone guards against callers mutating a slice the cache still holds.
func clone(signals []detect.Signal) []detect.Signal {
	if signals == nil {
		return nil
	}
	out := make([]detect.Signal, len(signals))
	copy(out, signals)
	return out
}
