package services

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"raffler/domain/entities"
)

// SeedLength is the decoded length in bytes of every draw seed
const SeedLength = 32

// Sequence is a deterministic pseudo-random integer stream derived from a
// seed. Block i of the stream is SHA-256(seed || uint64_be(i)) and the
// i-th raw value is the first 8 bytes of that block read big-endian. Only
// fixed-width unsigned arithmetic is used, so any implementation of the
// same construction reproduces the stream exactly.
type Sequence struct {
	seed    []byte
	counter uint64
	buf     []byte
}

// NewSequence creates a sequence from a hex-encoded 32-byte seed
func NewSequence(seedHex string) (*Sequence, error) {
	seed, err := DecodeSeed(seedHex)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, len(seed)+8)
	copy(buf, seed)
	return &Sequence{seed: seed, buf: buf}, nil
}

// DecodeSeed validates and decodes a hex seed
func DecodeSeed(seedHex string) ([]byte, error) {
	seed, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(seedHex), "0x"))
	if err != nil {
		return nil, entities.NewInvalidConfigurationError("seed is not valid hex: %v", err)
	}
	if len(seed) != SeedLength {
		return nil, entities.NewInvalidConfigurationError("seed must be %d bytes, got %d", SeedLength, len(seed))
	}
	return seed, nil
}

// NextUint64 returns the next raw 64-bit value
func (s *Sequence) NextUint64() uint64 {
	binary.BigEndian.PutUint64(s.buf[len(s.seed):], s.counter)
	s.counter++
	sum := sha256.Sum256(s.buf)
	return binary.BigEndian.Uint64(sum[:8])
}

// NextUniformInt returns an integer uniformly distributed in [lo, hi).
// Raw values at or above the largest multiple of the span are rejected and
// redrawn, so there is no modulo bias.
func (s *Sequence) NextUniformInt(lo, hi int64) (int64, error) {
	if hi <= lo {
		return 0, fmt.Errorf("invalid range [%d, %d)", lo, hi)
	}
	span := uint64(hi) - uint64(lo)
	// 2^64 mod span
	rem := -span % span
	for {
		x := s.NextUint64()
		if rem != 0 && x >= -rem {
			continue
		}
		return int64(uint64(lo) + x%span), nil
	}
}

// Draws returns how many raw values have been consumed
func (s *Sequence) Draws() uint64 {
	return s.counter
}
