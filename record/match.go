package record

import "strings"

// MatchKind is the ranked relationship between two file records.
//
// The numeric values are part of the public contract: downstream code
// selects backup-relevant relationships through contiguous rank ranges
// (see [KindsBetween]) rather than individual kinds. The two NO_CHECKSUM
// kinds are deliberately asymmetric - swapping subject and other swaps the
// outcome; every other kind is symmetric once both records carry checksums.
type MatchKind int

const (
	// Unknown means insufficient information to relate the records.
	Unknown MatchKind = -1

	// Unrelated files differ in name, size, and checksum.
	Unrelated MatchKind = 0

	// Self is the same location with the same content identity.
	Self MatchKind = 5

	// SelfNoChecksum is the same location and size where the subject lacks
	// a checksum but the other record carries one - the exchange case.
	SelfNoChecksum MatchKind = 6

	// OtherNoChecksum is the same location and size where the other record
	// lacks a checksum but the subject carries one.
	OtherNoChecksum MatchKind = 7

	// ChecksumCollision is an equal digest over different sizes and names.
	ChecksumCollision MatchKind = 10

	// UnsyncedData shares a name across paths but differs in both size and
	// checksum - an out-of-sync or incomplete transfer.
	UnsyncedData MatchKind = 11

	// UnsyncedChecksum shares a name and checksum across paths but differs
	// in size - a stale stored checksum needing regeneration.
	UnsyncedChecksum MatchKind = 12

	// UnsyncedOrCorruptData shares a name and size across paths with a
	// different checksum - possible corruption.
	UnsyncedOrCorruptData MatchKind = 13

	// ValidCopySameName is a byte-identical copy at a different path with
	// the same file name.
	ValidCopySameName MatchKind = 21

	// ValidCopyRenamed is a byte-identical copy at a different path under a
	// different file name.
	ValidCopyRenamed MatchKind = 22
)

var matchKindNames = map[MatchKind]string{
	Unknown:               "UNKNOWN",
	Unrelated:             "UNRELATED",
	Self:                  "SELF",
	SelfNoChecksum:        "SELF_NO_CHECKSUM",
	OtherNoChecksum:       "OTHER_NO_CHECKSUM",
	ChecksumCollision:     "CHECKSUM_COLLISION",
	UnsyncedData:          "UNSYNCED_DATA",
	UnsyncedChecksum:      "UNSYNCED_CHECKSUM",
	UnsyncedOrCorruptData: "UNSYNCED_OR_CORRUPT_DATA",
	ValidCopySameName:     "VALID_COPY_SAME_NAME",
	ValidCopyRenamed:      "VALID_COPY_RENAMED",
}

func (k MatchKind) String() string {
	if s, ok := matchKindNames[k]; ok {
		return s
	}
	return "UNKNOWN"
}

// IsValidCopy reports whether k is a byte-identical copy elsewhere.
func (k MatchKind) IsValidCopy() bool {
	return k == ValidCopySameName || k == ValidCopyRenamed
}

// IsInvalidCopy reports whether k looks like a failed or suspect copy.
func (k MatchKind) IsInvalidCopy() bool {
	return k >= ChecksumCollision && k <= UnsyncedOrCorruptData
}

// allKinds is ordered by rank.
var allKinds = []MatchKind{
	Unknown, Unrelated, Self, SelfNoChecksum, OtherNoChecksum,
	ChecksumCollision, UnsyncedData, UnsyncedChecksum,
	UnsyncedOrCorruptData, ValidCopySameName, ValidCopyRenamed,
}

// KindsBetween returns all kinds in the contiguous rank range [lo, hi].
func KindsBetween(lo, hi MatchKind) []MatchKind {
	var kinds []MatchKind
	for _, k := range allKinds {
		if k >= lo && k <= hi {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// ValidCopyKinds is the rank range accepted as proof of a backup.
func ValidCopyKinds() []MatchKind {
	return KindsBetween(ValidCopySameName, ValidCopyRenamed)
}

// InvalidCopyKinds is the rank range surfaced for audit before deletion.
func InvalidCopyKinds() []MatchKind {
	return KindsBetween(ChecksumCollision, UnsyncedOrCorruptData)
}

// BackupKinds is the full backup-worthy rank range.
func BackupKinds() []MatchKind {
	return KindsBetween(ChecksumCollision, ValidCopyRenamed)
}

// Classify relates subject to other through a priority ladder: rules are
// checked in order and the first satisfied rule wins, because the conditions
// are not mutually exclusive by construction.
func Classify(subject, other *File) MatchKind {
	sCS, sHasCS := subject.Checksum()
	oCS, oHasCS := other.Checksum()
	sSize, sHasSize := subject.Size()
	oSize, oHasSize := other.Size()

	bothCS := sHasCS && oHasCS
	csEq := bothCS && sCS == oCS
	csNe := bothCS && sCS != oCS
	sizesKnown := sHasSize && oHasSize
	sizeEq := sizesKnown && sSize == oSize
	sizeNe := sizesKnown && sSize != oSize
	pathEq := subject.Key() == other.Key()
	nameEq := strings.EqualFold(subject.Name(), other.Name())

	// Self tolerates two fully-unknown identities at the same location so
	// that classify(a, a) is SELF for every record.
	selfIdentity := sCS == oCS && (sizeEq || (!sHasSize && !oHasSize))

	switch {
	case pathEq && selfIdentity:
		return Self
	case sizeEq && pathEq && !sHasCS && oHasCS:
		return SelfNoChecksum
	case sizeEq && pathEq && sHasCS && !oHasCS:
		return OtherNoChecksum
	case csEq && sizeEq && nameEq && !pathEq:
		return ValidCopySameName
	case csEq && sizeEq && !nameEq && !pathEq:
		return ValidCopyRenamed
	case bothCS && nameEq && !pathEq && sizeNe && csNe:
		return UnsyncedData
	case bothCS && nameEq && !pathEq && sizeNe && csEq:
		return UnsyncedChecksum
	case bothCS && nameEq && !pathEq && sizeEq && csNe:
		return UnsyncedOrCorruptData
	case csEq && sizeNe && !nameEq:
		return ChecksumCollision
	case csNe && sizeNe && !nameEq:
		return Unrelated
	default:
		return Unknown
	}
}
