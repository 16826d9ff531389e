package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"raffler/domain/entities"
	"raffler/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// VerificationConfig holds the settings inbound transfer checks depend on
type VerificationConfig struct {
	PlatformAddress  string
	MinConfirmations int64
	RPCTimeout       time.Duration
}

// verificationService re-derives draws and validates inbound transfers.
// It never writes.
type verificationService struct {
	raffleRepo     interfaces.RaffleRepository
	entryRepo      interfaces.EntryRepository
	drawResultRepo interfaces.DrawResultRepository
	winnerRepo     interfaces.WinnerRepository
	chain          interfaces.ChainReader
	receipts       interfaces.ReceiptCache
	config         VerificationConfig
}

// NewVerificationService creates a new verification service. chain and
// receipts may be nil; draws can still be audited without a chain, but
// inbound transfers cannot be verified.
func NewVerificationService(
	raffleRepo interfaces.RaffleRepository,
	entryRepo interfaces.EntryRepository,
	drawResultRepo interfaces.DrawResultRepository,
	winnerRepo interfaces.WinnerRepository,
	chain interfaces.ChainReader,
	receipts interfaces.ReceiptCache,
	config VerificationConfig,
) interfaces.VerificationService {
	return &verificationService{
		raffleRepo:     raffleRepo,
		entryRepo:      entryRepo,
		drawResultRepo: drawResultRepo,
		winnerRepo:     winnerRepo,
		chain:          chain,
		receipts:       receipts,
		config:         config,
	}
}

// VerifyDraw reports whether recomputing the draw reproduces the stored winners
func (s *verificationService) VerifyDraw(ctx context.Context, raffleID int64) (bool, error) {
	audit, err := s.AuditDraw(ctx, raffleID)
	if err != nil {
		return false, err
	}
	return audit.Match, nil
}

// AuditDraw recomputes the whole selection pipeline from the stored seed
// and entry set and compares it with the stored winners field by field
func (s *verificationService) AuditDraw(ctx context.Context, raffleID int64) (*interfaces.DrawAudit, error) {
	raffle, err := s.raffleRepo.GetByID(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get raffle: %w", err)
	}
	if raffle == nil {
		return nil, entities.NewNotFoundError("raffle", raffleID)
	}

	result, err := s.drawResultRepo.GetByRaffle(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get draw result: %w", err)
	}
	if result == nil {
		return nil, entities.NewNotFoundError("draw result for raffle", raffleID)
	}

	stored, err := s.winnerRepo.GetByRaffle(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get winners: %w", err)
	}

	entries, err := s.entryRepo.GetByRaffle(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get entries: %w", err)
	}

	audit := &interfaces.DrawAudit{
		RaffleID:       raffleID,
		Seed:           result.Seed,
		RandomnessMode: result.RandomnessMode,
		Mismatches:     []interfaces.WinnerMismatch{},
	}

	pool, err := BuildTicketPool(entries)
	if err != nil {
		return nil, err
	}
	selection, err := SelectWinners(SelectionInput{
		Pool:            pool,
		PrizePool:       result.PrizePool,
		WinnerCount:     raffle.WinnerCount,
		Tiers:           raffle.PrizeTiers,
		Seed:            result.Seed,
		OneWinPerWallet: raffle.OneWinPerWallet,
	})
	if err != nil {
		return nil, err
	}
	audit.TotalTickets = selection.TotalTickets

	if selection.TotalTickets != result.TotalTickets {
		audit.Mismatches = append(audit.Mismatches, interfaces.WinnerMismatch{
			Field:    "total_tickets",
			Stored:   strconv.FormatInt(result.TotalTickets, 10),
			Computed: strconv.FormatInt(selection.TotalTickets, 10),
		})
	}
	audit.Mismatches = append(audit.Mismatches, compareWinners(stored, selection.Winners)...)

	if result.RandomnessMode == entities.RandomnessModeVerifiable {
		if result.BlockHash == nil || !strings.EqualFold(*result.BlockHash, result.Seed) {
			audit.Mismatches = append(audit.Mismatches, interfaces.WinnerMismatch{
				Field:    "seed",
				Stored:   result.Seed,
				Computed: stringOrEmpty(result.BlockHash),
			})
		} else if s.chain != nil && result.BlockNumber != nil {
			audit.SeedConfirmed = s.confirmSeedBlock(ctx, *result.BlockNumber, *result.BlockHash)
		}
	}

	audit.Match = len(audit.Mismatches) == 0 && (audit.SeedConfirmed == nil || *audit.SeedConfirmed)

	log.WithFields(log.Fields{
		"raffle_id":  raffleID,
		"match":      audit.Match,
		"mismatches": len(audit.Mismatches),
	}).Info("Audited raffle draw")
	return audit, nil
}

// confirmSeedBlock refetches the seed block and compares hashes. It returns
// nil when the chain cannot be reached.
func (s *verificationService) confirmSeedBlock(ctx context.Context, number int64, hash string) *bool {
	if s.config.RPCTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RPCTimeout)
		defer cancel()
	}
	block, err := s.chain.BlockAt(ctx, number)
	if err != nil {
		log.WithError(err).WithField("block_number", number).Warn("Could not refetch seed block")
		return nil
	}
	confirmed := strings.EqualFold(block.Hash, hash)
	return &confirmed
}

func compareWinners(stored []*entities.Winner, computed []SelectedWinner) []interfaces.WinnerMismatch {
	var mismatches []interfaces.WinnerMismatch
	if len(stored) != len(computed) {
		mismatches = append(mismatches, interfaces.WinnerMismatch{
			Field:    "winner_count",
			Stored:   strconv.Itoa(len(stored)),
			Computed: strconv.Itoa(len(computed)),
		})
	}

	byPosition := make(map[int]*entities.Winner, len(stored))
	for _, w := range stored {
		byPosition[w.Position] = w
	}

	for _, c := range computed {
		w, ok := byPosition[c.Position]
		if !ok {
			mismatches = append(mismatches, interfaces.WinnerMismatch{
				Position: c.Position,
				Field:    "position",
				Computed: strconv.Itoa(c.Position),
			})
			continue
		}
		if w.Wallet != c.Ticket.Owner {
			mismatches = append(mismatches, interfaces.WinnerMismatch{
				Position: c.Position, Field: "wallet", Stored: w.Wallet, Computed: c.Ticket.Owner,
			})
		}
		if w.TicketIndex != c.Ticket.Index {
			mismatches = append(mismatches, interfaces.WinnerMismatch{
				Position: c.Position,
				Field:    "ticket_index",
				Stored:   strconv.FormatInt(w.TicketIndex, 10),
				Computed: strconv.FormatInt(c.Ticket.Index, 10),
			})
		}
		if w.PrizeAmount != c.Amount {
			mismatches = append(mismatches, interfaces.WinnerMismatch{
				Position: c.Position,
				Field:    "amount",
				Stored:   strconv.FormatInt(w.PrizeAmount, 10),
				Computed: strconv.FormatInt(c.Amount, 10),
			})
		}
	}
	return mismatches
}

// VerifyInboundTransfer confirms that a transfer backs an entry: it exists,
// succeeded with enough confirmations, paid the expected amount to the
// platform from the expected sender and has not backed an earlier entry.
func (s *verificationService) VerifyInboundTransfer(ctx context.Context, check entities.TransferCheck) (*entities.TransferReceipt, error) {
	txHash := strings.TrimSpace(check.TxHash)
	if txHash == "" {
		return nil, entities.NewTransferVerificationError("transaction hash is required")
	}
	recipient := check.Recipient
	if recipient == "" {
		recipient = s.config.PlatformAddress
	}
	if recipient == "" {
		return nil, entities.NewTransferVerificationError("no platform receiving address configured")
	}

	used, err := s.entryRepo.GetByTransferTxHash(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("failed to check transfer hash: %w", err)
	}
	if used != nil {
		return nil, entities.NewDuplicateTransactionError(txHash)
	}

	receipt, err := s.receipt(ctx, txHash)
	if err != nil {
		return nil, err
	}

	if !receipt.Succeeded {
		return nil, entities.NewTransferVerificationError("transaction %s did not succeed", txHash)
	}
	if receipt.Confirmations < s.config.MinConfirmations {
		return nil, entities.NewTransferVerificationError("transaction %s has %d confirmations, need %d",
			txHash, receipt.Confirmations, s.config.MinConfirmations)
	}
	if paid := receipt.AmountTo(recipient); paid != check.ExpectedAmount {
		return nil, entities.NewTransferVerificationError("transaction %s paid %d to %s, expected %d",
			txHash, paid, recipient, check.ExpectedAmount)
	}
	if check.ExpectedSender != "" && receipt.Sender != check.ExpectedSender {
		return nil, entities.NewTransferVerificationError("transaction %s was sent by %s, expected %s",
			txHash, receipt.Sender, check.ExpectedSender)
	}

	log.WithFields(log.Fields{
		"tx_hash":       txHash,
		"sender":        receipt.Sender,
		"amount":        check.ExpectedAmount,
		"confirmations": receipt.Confirmations,
	}).Debug("Verified inbound transfer")
	return receipt, nil
}

func (s *verificationService) receipt(ctx context.Context, txHash string) (*entities.TransferReceipt, error) {
	if s.receipts != nil {
		if cached, ok := s.receipts.Get(txHash); ok {
			return cached, nil
		}
	}
	if s.chain == nil {
		return nil, entities.NewTransferVerificationError("no chain reader configured")
	}

	if s.config.RPCTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RPCTimeout)
		defer cancel()
	}
	receipt, err := s.chain.GetTransaction(ctx, txHash)
	if err != nil {
		return nil, &entities.RaffleError{
			Kind:   entities.ErrorKindTransferVerificationFailed,
			Reason: fmt.Sprintf("could not look up transaction %s", txHash),
			Err:    err,
		}
	}
	if receipt == nil {
		return nil, entities.NewTransferVerificationError("transaction %s not found", txHash)
	}

	// Only settled receipts are cached; confirmations still grow otherwise
	if s.receipts != nil && receipt.Succeeded && receipt.Confirmations >= s.config.MinConfirmations {
		s.receipts.Set(txHash, receipt)
	}
	return receipt, nil
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
