package repository

import (
	"context"
	"errors"
	"fmt"

	"raffler/database"
	"raffler/domain/entities"
	"raffler/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

const entryColumns = `id, raffle_id, wallet, units, amount_paid, transfer_tx_hash, refunded, created_at`

// EntryRepository implements entry data access
type EntryRepository struct {
	q Queryable
}

// NewEntryRepository creates an entry repository on the connection pool
func NewEntryRepository(db *database.DB) interfaces.EntryRepository {
	return &EntryRepository{q: db.Pool}
}

func newEntryRepositoryWithTx(tx Queryable) interfaces.EntryRepository {
	return &EntryRepository{q: tx}
}

func scanEntry(row pgx.Row) (*entities.Entry, error) {
	var e entities.Entry
	err := row.Scan(
		&e.ID,
		&e.RaffleID,
		&e.Wallet,
		&e.Units,
		&e.AmountPaid,
		&e.TransferTxHash,
		&e.Refunded,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts an entry. The unique transfer hash constraint rejects reuse
// even if two submissions race past the service checks.
func (r *EntryRepository) Create(ctx context.Context, entry *entities.Entry) error {
	query := `
		INSERT INTO entries (raffle_id, wallet, units, amount_paid, transfer_tx_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, refunded, created_at
	`

	err := r.q.QueryRow(ctx, query,
		entry.RaffleID,
		entry.Wallet,
		entry.Units,
		entry.AmountPaid,
		entry.TransferTxHash,
	).Scan(&entry.ID, &entry.Refunded, &entry.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "entries_transfer_tx_hash_key") {
			return entities.NewDuplicateTransactionError(entry.TransferTxHash)
		}
		return fmt.Errorf("failed to create entry: %w", err)
	}

	return nil
}

// GetByRaffle returns every entry of a raffle in creation order
func (r *EntryRepository) GetByRaffle(ctx context.Context, raffleID int64) ([]*entities.Entry, error) {
	query := `SELECT ` + entryColumns + `
		FROM entries
		WHERE raffle_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.q.Query(ctx, query, raffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get entries for raffle %d: %w", raffleID, err)
	}
	defer rows.Close()

	var entries []*entities.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}

	return entries, nil
}

// GetByTransferTxHash returns the entry backed by txHash, or nil
func (r *EntryRepository) GetByTransferTxHash(ctx context.Context, txHash string) (*entities.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE transfer_tx_hash = $1`

	entry, err := scanEntry(r.q.QueryRow(ctx, query, txHash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry by transfer hash: %w", err)
	}

	return entry, nil
}

// HasWalletEntered reports whether wallet already holds an entry in the raffle
func (r *EntryRepository) HasWalletEntered(ctx context.Context, raffleID int64, wallet string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM entries WHERE raffle_id = $1 AND wallet = $2)`

	var exists bool
	if err := r.q.QueryRow(ctx, query, raffleID, wallet).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check wallet entry: %w", err)
	}

	return exists, nil
}

// MarkRefundedByRaffle flags every entry of a raffle as refunded
func (r *EntryRepository) MarkRefundedByRaffle(ctx context.Context, raffleID int64) (int64, error) {
	query := `UPDATE entries SET refunded = TRUE WHERE raffle_id = $1 AND refunded = FALSE`

	result, err := r.q.Exec(ctx, query, raffleID)
	if err != nil {
		return 0, fmt.Errorf("failed to refund entries for raffle %d: %w", raffleID, err)
	}

	return result.RowsAffected(), nil
}
