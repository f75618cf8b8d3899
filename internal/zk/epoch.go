package zk

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// DefaultEpochWindow is the fixed bucketing width for external nullifiers.
// Prover and verifier must agree on the width or the anti-replay guarantee
// breaks, so it is an explicit constant rather than a raw timestamp.
const DefaultEpochWindow = 10 * time.Second

// Epoch returns the decimal unix-millisecond label of the window containing
// now. Two proofs inside one window share an external nullifier; across
// windows they are unlinkable.
func Epoch(now time.Time, window time.Duration) string {
	if window <= 0 {
		window = DefaultEpochWindow
	}
	return strconv.FormatInt(now.Truncate(window).UnixMilli(), 10)
}

// ExternalNullifier maps an epoch label to the proof input binding a signal
// to that window.
func ExternalNullifier(epoch string) string {
	sum := sha256.Sum256([]byte(epoch))
	return hex.EncodeToString(sum[:])
}
