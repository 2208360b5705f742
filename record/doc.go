// Package record models the identity of a session file: where it lives, how
// big it is, and the digest of its contents.
//
// A [File] is an immutable value. Its path is the identifier of a location;
// the (size, checksum) pair is the proxy for content identity. Records with
// no checksum are partially-known identities and participate in a restricted
// subset of [MatchKind] outcomes. Changing either half of the identity means
// constructing a new record - stores treat records as append-only.
//
// [Classify] relates two records through a ranked decision table. Ranks are
// part of the public contract: callers select backup-relevant relationships
// through contiguous rank ranges such as [KindsBetween], never through
// individual kinds in isolation.
package record
