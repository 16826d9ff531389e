package testhelpers

import (
	"context"

	"raffler/domain/entities"

	"github.com/stretchr/testify/mock"
)

// MockChainReader is a mock implementation of ChainReader
type MockChainReader struct {
	mock.Mock
}

func (m *MockChainReader) LatestBlock(ctx context.Context) (*entities.BlockRef, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.BlockRef), args.Error(1)
}

func (m *MockChainReader) BlockAt(ctx context.Context, number int64) (*entities.BlockRef, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.BlockRef), args.Error(1)
}

func (m *MockChainReader) GetTransaction(ctx context.Context, txHash string) (*entities.TransferReceipt, error) {
	args := m.Called(ctx, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.TransferReceipt), args.Error(1)
}

// MockTransferExecutor is a mock implementation of TransferExecutor
type MockTransferExecutor struct {
	mock.Mock
}

func (m *MockTransferExecutor) Send(ctx context.Context, wallet string, amount int64, reference string) (string, error) {
	args := m.Called(ctx, wallet, amount, reference)
	return args.String(0), args.Error(1)
}

func (m *MockTransferExecutor) FindTransfer(ctx context.Context, reference string) (string, error) {
	args := m.Called(ctx, reference)
	return args.String(0), args.Error(1)
}

// MockRandomnessSource is a mock implementation of RandomnessSource
type MockRandomnessSource struct {
	mock.Mock
}

func (m *MockRandomnessSource) Generate(ctx context.Context) (*entities.Seed, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Seed), args.Error(1)
}

// MockReceiptCache is a mock implementation of ReceiptCache
type MockReceiptCache struct {
	mock.Mock
}

func (m *MockReceiptCache) Get(txHash string) (*entities.TransferReceipt, bool) {
	args := m.Called(txHash)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*entities.TransferReceipt), args.Bool(1)
}

func (m *MockReceiptCache) Set(txHash string, receipt *entities.TransferReceipt) {
	m.Called(txHash, receipt)
}
