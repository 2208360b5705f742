// Package checksum computes content digests for session files.
//
// An [Engine] owns the digest policy end to end: which [Algorithm] is in
// use, the streaming chunk size, the buffered-vs-mapped read strategy, an
// optional IO throttle, and the auto-checksum size threshold below which
// records are hashed eagerly at construction.
//
// Before an Engine can be constructed it must reproduce the algorithm's
// fixed self-test vector; a mismatch returns [ErrSelfTest] and no digest
// from the broken implementation can reach a store.
//
// Digests are fixed-width uppercase hexadecimal strings. This rendering is
// persisted and compared verbatim - it is a wire contract, not a display
// choice.
package checksum
