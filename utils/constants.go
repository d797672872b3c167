// File: utils/constants.go
package utils

import "time"

// IdempotencyPrefix is the prefix used for Redis payment idempotency keys.
const IdempotencyPrefix = "idem:"

// IdempotencyTTL is how long an idempotency key keeps mapping to its
// original charge. Longer than any client retry horizon.
const IdempotencyTTL = 48 * time.Hour
