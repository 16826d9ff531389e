package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"raffler/domain/entities"
	"raffler/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// VerifiableRandomnessSource seeds draws from the hash of a finalized
// settlement chain block. Anyone can refetch the block at the recorded
// height and confirm the seed.
type VerifiableRandomnessSource struct {
	chain         interfaces.ChainReader
	finalityDepth int64
	timeout       time.Duration
}

// NewVerifiableRandomnessSource creates a block hash randomness source.
// The seed block is finalityDepth blocks below the chain tip.
func NewVerifiableRandomnessSource(chain interfaces.ChainReader, finalityDepth int64, timeout time.Duration) *VerifiableRandomnessSource {
	return &VerifiableRandomnessSource{
		chain:         chain,
		finalityDepth: finalityDepth,
		timeout:       timeout,
	}
}

// Generate returns the hash of the most recent finalized block as the seed
func (s *VerifiableRandomnessSource) Generate(ctx context.Context) (*entities.Seed, error) {
	if s.chain == nil {
		return nil, entities.NewRandomnessUnavailableError(fmt.Errorf("no chain reader configured"))
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	tip, err := s.chain.LatestBlock(ctx)
	if err != nil {
		return nil, entities.NewRandomnessUnavailableError(fmt.Errorf("failed to get latest block: %w", err))
	}

	height := tip.Number - s.finalityDepth
	if height < 0 {
		return nil, entities.NewRandomnessUnavailableError(
			fmt.Errorf("chain height %d is below finality depth %d", tip.Number, s.finalityDepth))
	}

	block := tip
	if height != tip.Number {
		block, err = s.chain.BlockAt(ctx, height)
		if err != nil {
			return nil, entities.NewRandomnessUnavailableError(fmt.Errorf("failed to get block %d: %w", height, err))
		}
	}

	hash := strings.ToLower(block.Hash)
	if _, err := DecodeSeed(hash); err != nil {
		return nil, entities.NewRandomnessUnavailableError(fmt.Errorf("block %d has malformed hash: %w", height, err))
	}

	log.WithFields(log.Fields{
		"block_number": height,
		"block_hash":   hash,
		"chain_tip":    tip.Number,
	}).Info("Derived draw seed from finalized block")

	number := height
	return &entities.Seed{
		Value:       hash,
		Mode:        entities.RandomnessModeVerifiable,
		BlockNumber: &number,
		BlockHash:   &hash,
	}, nil
}

// OpaqueRandomnessSource seeds draws from a locally generated secure
// random value. Only the operator can reproduce a draw, from the stored
// seed.
type OpaqueRandomnessSource struct {
	reader io.Reader
}

// NewOpaqueRandomnessSource creates a crypto/rand backed randomness source
func NewOpaqueRandomnessSource() *OpaqueRandomnessSource {
	return &OpaqueRandomnessSource{reader: rand.Reader}
}

// Generate returns 32 random bytes, hex encoded
func (s *OpaqueRandomnessSource) Generate(ctx context.Context) (*entities.Seed, error) {
	if err := ctx.Err(); err != nil {
		return nil, entities.NewRandomnessUnavailableError(err)
	}
	buf := make([]byte, SeedLength)
	if _, err := io.ReadFull(s.reader, buf); err != nil {
		return nil, entities.NewRandomnessUnavailableError(fmt.Errorf("failed to read random bytes: %w", err))
	}
	return &entities.Seed{
		Value: hex.EncodeToString(buf),
		Mode:  entities.RandomnessModeOpaque,
	}, nil
}

// RandomnessSources picks the source matching a raffle's randomness mode.
// There is no fallback from one mode to the other.
type RandomnessSources struct {
	Verifiable interfaces.RandomnessSource
	Opaque     interfaces.RandomnessSource
}

// For returns the source for mode
func (r RandomnessSources) For(mode entities.RandomnessMode) (interfaces.RandomnessSource, error) {
	var source interfaces.RandomnessSource
	switch mode {
	case entities.RandomnessModeVerifiable:
		source = r.Verifiable
	case entities.RandomnessModeOpaque:
		source = r.Opaque
	default:
		return nil, entities.NewInvalidConfigurationError("unknown randomness mode %q", mode)
	}
	if source == nil {
		return nil, entities.NewRandomnessUnavailableError(fmt.Errorf("no %s randomness source configured", mode))
	}
	return source, nil
}
