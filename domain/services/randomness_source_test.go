package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"raffler/domain/entities"
	"raffler/domain/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const blockHashUpper = "ABCDEF0123456789ABCDEF0123456789ABCDEF0123456789ABCDEF0123456789"

func TestVerifiableRandomnessSource_UsesFinalizedBlock(t *testing.T) {
	t.Parallel()

	chain := new(testhelpers.MockChainReader)
	chain.On("LatestBlock", mock.Anything).Return(&entities.BlockRef{Number: 1006, Hash: zeroSeed}, nil)
	chain.On("BlockAt", mock.Anything, int64(1000)).Return(&entities.BlockRef{Number: 1000, Hash: blockHashUpper}, nil)

	source := NewVerifiableRandomnessSource(chain, 6, time.Second)
	seed, err := source.Generate(context.Background())
	require.NoError(t, err)

	want := strings.ToLower(blockHashUpper)
	assert.Equal(t, want, seed.Value)
	assert.Equal(t, entities.RandomnessModeVerifiable, seed.Mode)
	require.NotNil(t, seed.BlockNumber)
	assert.Equal(t, int64(1000), *seed.BlockNumber)
	require.NotNil(t, seed.BlockHash)
	assert.Equal(t, want, *seed.BlockHash)
	chain.AssertExpectations(t)
}

func TestVerifiableRandomnessSource_ZeroDepthUsesTip(t *testing.T) {
	t.Parallel()

	chain := new(testhelpers.MockChainReader)
	chain.On("LatestBlock", mock.Anything).Return(&entities.BlockRef{Number: 42, Hash: zeroSeed}, nil)

	seed, err := NewVerifiableRandomnessSource(chain, 0, 0).Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, zeroSeed, seed.Value)
	chain.AssertNotCalled(t, "BlockAt", mock.Anything, mock.Anything)
}

func TestVerifiableRandomnessSource_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(*testhelpers.MockChainReader)
	}{
		{
			name: "latest block unavailable",
			setup: func(c *testhelpers.MockChainReader) {
				c.On("LatestBlock", mock.Anything).Return(nil, errors.New("connection refused"))
			},
		},
		{
			name: "chain shorter than finality depth",
			setup: func(c *testhelpers.MockChainReader) {
				c.On("LatestBlock", mock.Anything).Return(&entities.BlockRef{Number: 3, Hash: zeroSeed}, nil)
			},
		},
		{
			name: "finalized block lookup fails",
			setup: func(c *testhelpers.MockChainReader) {
				c.On("LatestBlock", mock.Anything).Return(&entities.BlockRef{Number: 100, Hash: zeroSeed}, nil)
				c.On("BlockAt", mock.Anything, int64(94)).Return(nil, context.DeadlineExceeded)
			},
		},
		{
			name: "malformed block hash",
			setup: func(c *testhelpers.MockChainReader) {
				c.On("LatestBlock", mock.Anything).Return(&entities.BlockRef{Number: 100, Hash: zeroSeed}, nil)
				c.On("BlockAt", mock.Anything, int64(94)).Return(&entities.BlockRef{Number: 94, Hash: "xyz"}, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			chain := new(testhelpers.MockChainReader)
			tt.setup(chain)

			seed, err := NewVerifiableRandomnessSource(chain, 6, time.Second).Generate(context.Background())
			assert.Nil(t, seed)
			assert.ErrorIs(t, err, entities.ErrRandomnessUnavailable)
		})
	}
}

func TestOpaqueRandomnessSource_Generate(t *testing.T) {
	t.Parallel()

	source := NewOpaqueRandomnessSource()
	first, err := source.Generate(context.Background())
	require.NoError(t, err)
	second, err := source.Generate(context.Background())
	require.NoError(t, err)

	assert.Len(t, first.Value, 2*SeedLength)
	assert.Equal(t, entities.RandomnessModeOpaque, first.Mode)
	assert.Nil(t, first.BlockNumber)
	assert.NotEqual(t, first.Value, second.Value)

	_, err = NewSequence(first.Value)
	assert.NoError(t, err)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestOpaqueRandomnessSource_ReaderFailure(t *testing.T) {
	t.Parallel()

	source := &OpaqueRandomnessSource{reader: failingReader{}}
	_, err := source.Generate(context.Background())
	assert.ErrorIs(t, err, entities.ErrRandomnessUnavailable)
}

func TestRandomnessSources_For(t *testing.T) {
	t.Parallel()

	opaque := NewOpaqueRandomnessSource()
	sources := RandomnessSources{Opaque: opaque}

	got, err := sources.For(entities.RandomnessModeOpaque)
	require.NoError(t, err)
	assert.Same(t, opaque, got)

	_, err = sources.For(entities.RandomnessModeVerifiable)
	assert.ErrorIs(t, err, entities.ErrRandomnessUnavailable, "no fallback to opaque")

	_, err = sources.For("dice")
	assert.ErrorIs(t, err, entities.ErrInvalidConfiguration)
}
