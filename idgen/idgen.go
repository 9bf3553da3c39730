// Package idgen generates 64-bit user ids and deterministic
// conversation ids, grounded on original_source's IdGenerator but
// reshaped to the snowflake-style scheme spec.md's data model calls for:
// a 42-bit millisecond timestamp since a custom epoch, shifted left 22
// bits, OR'd with a 22-bit weak random suffix. Collisions are tolerated;
// the database's uniqueness constraint is the real backstop.
package idgen

import (
	"fmt"
	"math/rand"
	"time"
)

// epoch is the reference point for the 42-bit timestamp component,
// 2024-01-01T00:00:00Z.
var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

const (
	randomBits = 22
	randomMask = 1<<randomBits - 1
)

// NewUserID returns a fresh 64-bit id: (ms-since-epoch << 22) | weak
// random suffix. Not monotonic across calls made within the same
// millisecond; not guaranteed unique without a DB-level check.
func NewUserID() uint64 {
	millis := uint64(time.Since(epoch).Milliseconds())
	suffix := uint64(rand.Uint32()) & randomMask
	return millis<<randomBits | suffix
}

// ConversationID returns the deterministic, order-independent id for the
// channel between two users: the smaller id, an underscore, the larger.
// Used as the partition key of the conversation-history row; the inbox
// and sent-box rows are keyed by user id instead.
func ConversationID(a, b uint64) string {
	small, large := a, b
	if small > large {
		small, large = large, small
	}
	return fmt.Sprintf("%d_%d", small, large)
}
