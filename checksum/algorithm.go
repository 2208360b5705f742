package checksum

import (
	"hash"
	"hash/crc32"
)

// Algorithm produces content digests. Implementations are injected at
// engine construction; there is no global algorithm state.
//
// Digests are rendered as fixed-width uppercase hexadecimal strings (8
// characters for a 32-bit algorithm). The rendered form is part of the
// persisted store contract and must remain stable.
type Algorithm interface {
	// Name identifies the algorithm in stores and logs, e.g. "crc32".
	Name() string

	// New returns a fresh hash state.
	New() hash.Hash

	// Check returns the fixed self-test vector: a known input and the
	// digest it must produce.
	Check() (input []byte, digest string)
}

// checkInput is the standard CRC check string; its digest under every
// common CRC polynomial is published, which keeps the self-test vectors
// independently verifiable.
var checkInput = []byte("123456789")

// CRC32 is the default algorithm: CRC-32/ISO-HDLC (the zlib polynomial).
// It matches every digest previously persisted by the acquisition tooling.
type CRC32 struct{}

func (CRC32) Name() string { return "crc32" }

func (CRC32) New() hash.Hash { return crc32.NewIEEE() }

func (CRC32) Check() ([]byte, string) { return checkInput, "CBF43926" }

// crc32cTable is pre-computed once for the Castagnoli polynomial.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C is CRC-32/Castagnoli, hardware-accelerated on x86 (SSE4.2) and ARM.
// Digests are NOT interchangeable with [CRC32]; a store written with one
// algorithm must be read with the same one.
type CRC32C struct{}

func (CRC32C) Name() string { return "crc32c" }

func (CRC32C) New() hash.Hash { return crc32.New(crc32cTable) }

func (CRC32C) Check() ([]byte, string) { return checkInput, "E3069283" }
