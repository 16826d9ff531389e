package interfaces

import (
	"context"
	"time"

	"raffler/domain/entities"
)

// ChainReader reads the settlement chain
type ChainReader interface {
	// LatestBlock returns the chain tip
	LatestBlock(ctx context.Context) (*entities.BlockRef, error)

	// BlockAt returns the block at height number
	BlockAt(ctx context.Context, number int64) (*entities.BlockRef, error)

	// GetTransaction returns nil, nil when the chain does not know the hash
	GetTransaction(ctx context.Context, txHash string) (*entities.TransferReceipt, error)
}

// TransferExecutor submits outbound prize transfers
type TransferExecutor interface {
	// Send transfers amount minor units to wallet and returns the transaction
	// id. reference is stored with the transfer so FindTransfer can match it.
	Send(ctx context.Context, wallet string, amount int64, reference string) (string, error)

	// FindTransfer returns the id of an outbound transfer made with reference,
	// or "" if there is none
	FindTransfer(ctx context.Context, reference string) (string, error)
}

// RandomnessSource produces draw seeds
type RandomnessSource interface {
	Generate(ctx context.Context) (*entities.Seed, error)
}

// ReceiptCache caches transfer receipts by transaction hash
type ReceiptCache interface {
	Get(txHash string) (*entities.TransferReceipt, bool)
	Set(txHash string, receipt *entities.TransferReceipt)
}

// CreateRaffleParams holds operator input for a new raffle
type CreateRaffleParams struct {
	Type             entities.RaffleType
	Title            string
	EntryPrice       int64
	StartTime        time.Time
	EndTime          time.Time
	WinnerCount      int
	PrizeTiers       []entities.PrizeTier
	PlatformFeeBps   int64
	FixedPrizeAmount int64
	RandomnessMode   entities.RandomnessMode
	OneWinPerWallet  *bool
}

// EntryParams holds a verified entry purchase
type EntryParams struct {
	RaffleID       int64
	Wallet         string
	Units          int64
	AmountPaid     int64
	TransferTxHash string
}

// RetryRequest is an operator's request to reopen a failed payout
type RetryRequest struct {
	WinnerID    int64
	RequestedBy string
	Reason      string
}

// DrawPreparation is the outcome of the first draw phase
type DrawPreparation struct {
	Raffle *entities.Raffle
	// Existing is set when the raffle was already drawn
	Existing *entities.DrawResult
}

// WinnerMismatch describes one stored winner that recomputation disagrees with
type WinnerMismatch struct {
	Position int    `json:"position"`
	Field    string `json:"field"`
	Stored   string `json:"stored"`
	Computed string `json:"computed"`
}

// DrawAudit is the full report of a draw re-verification
type DrawAudit struct {
	RaffleID       int64                   `json:"raffle_id"`
	Seed           string                  `json:"seed"`
	RandomnessMode entities.RandomnessMode `json:"randomness_mode"`
	TotalTickets   int64                   `json:"total_tickets"`
	Mismatches     []WinnerMismatch        `json:"mismatches"`
	// SeedConfirmed is set for verifiable draws when the chain was consulted
	SeedConfirmed *bool `json:"seed_confirmed,omitempty"`
	Match         bool  `json:"match"`
}

// RaffleService defines raffle life-cycle operations within one unit of work
type RaffleService interface {
	CreateRaffle(ctx context.Context, params CreateRaffleParams) (*entities.Raffle, error)
	GetRaffle(ctx context.Context, raffleID int64) (*entities.Raffle, error)
	Activate(ctx context.Context, raffleID int64) (*entities.Raffle, error)
	Pause(ctx context.Context, raffleID int64) (*entities.Raffle, error)
	Resume(ctx context.Context, raffleID int64) (*entities.Raffle, error)
	EndEntries(ctx context.Context, raffleID int64) (*entities.Raffle, error)
	Cancel(ctx context.Context, raffleID int64, reason string) (*entities.Raffle, error)
	ActivateDue(ctx context.Context) ([]*entities.Raffle, error)
	CloseDue(ctx context.Context) ([]*entities.Raffle, error)
	GetStatusHistory(ctx context.Context, raffleID int64) ([]*entities.RaffleStatusChange, error)
}

// EntryService records verified entries within one unit of work
type EntryService interface {
	RecordEntry(ctx context.Context, params EntryParams) (*entities.Entry, error)
	GetEntries(ctx context.Context, raffleID int64) ([]*entities.Entry, error)
}

// DrawService runs the transactional phases of a draw
type DrawService interface {
	PrepareDraw(ctx context.Context, raffleID int64) (*DrawPreparation, error)
	CommitSeed(ctx context.Context, raffleID int64, seed *entities.Seed) (*entities.Raffle, error)
	FinalizeDraw(ctx context.Context, raffleID int64) (*entities.DrawResult, error)
	AbortDraw(ctx context.Context, raffleID int64, reason string) (*entities.Raffle, error)
	GetDrawResult(ctx context.Context, raffleID int64) (*entities.DrawResult, error)
}

// PayoutService runs the transactional steps of the payout state machine
type PayoutService interface {
	ClaimPayout(ctx context.Context, winnerID int64) (*entities.Winner, *entities.PayoutRecord, error)
	RecordPayoutSuccess(ctx context.Context, winnerID, recordID int64, transactionID string) (*entities.PayoutRecord, error)
	RecordPayoutFailure(ctx context.Context, winnerID, recordID int64, reason string) (*entities.PayoutRecord, error)
	RequestRetry(ctx context.Context, request RetryRequest) (*entities.PayoutRecord, error)
	GetPendingWinners(ctx context.Context, raffleID int64) ([]*entities.Winner, error)
	GetWinners(ctx context.Context, raffleID int64) ([]*entities.Winner, error)
	GetPayoutHistory(ctx context.Context, winnerID int64) ([]*entities.PayoutRecord, error)
}

// VerificationService re-derives draws and validates inbound transfers
type VerificationService interface {
	VerifyDraw(ctx context.Context, raffleID int64) (bool, error)
	AuditDraw(ctx context.Context, raffleID int64) (*DrawAudit, error)
	VerifyInboundTransfer(ctx context.Context, check entities.TransferCheck) (*entities.TransferReceipt, error)
}
