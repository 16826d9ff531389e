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

const payoutRecordColumns = `
	id, winner_id, raffle_id, wallet, amount, attempt, status, reference::text,
	transaction_id, failure_reason, created_at, updated_at, completed_at`

// PayoutRecordRepository implements payout attempt data access
type PayoutRecordRepository struct {
	q Queryable
}

// NewPayoutRecordRepository creates a payout record repository on the connection pool
func NewPayoutRecordRepository(db *database.DB) interfaces.PayoutRecordRepository {
	return &PayoutRecordRepository{q: db.Pool}
}

func newPayoutRecordRepositoryWithTx(tx Queryable) interfaces.PayoutRecordRepository {
	return &PayoutRecordRepository{q: tx}
}

func scanPayoutRecord(row pgx.Row) (*entities.PayoutRecord, error) {
	var p entities.PayoutRecord
	err := row.Scan(
		&p.ID,
		&p.WinnerID,
		&p.RaffleID,
		&p.Wallet,
		&p.Amount,
		&p.Attempt,
		&p.Status,
		&p.Reference,
		&p.TransactionID,
		&p.FailureReason,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a payout attempt. The partial unique indexes reject a
// second open attempt or a second paid attempt for the same winner.
func (r *PayoutRecordRepository) Create(ctx context.Context, record *entities.PayoutRecord) error {
	query := `
		INSERT INTO payout_records (winner_id, raffle_id, wallet, amount, attempt, status, reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7::uuid)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		record.WinnerID,
		record.RaffleID,
		record.Wallet,
		record.Amount,
		record.Attempt,
		record.Status,
		record.Reference,
	).Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "idx_payout_records_one_active") {
			return entities.NewPayoutInProgressError(record.WinnerID)
		}
		if isUniqueViolation(err, "idx_payout_records_one_paid") {
			return entities.NewPayoutAlreadyProcessedError(record.WinnerID)
		}
		return fmt.Errorf("failed to create payout record: %w", err)
	}

	return nil
}

// Update persists the status and outcome of a payout attempt
func (r *PayoutRecordRepository) Update(ctx context.Context, record *entities.PayoutRecord) error {
	query := `
		UPDATE payout_records
		SET status = $2,
		    transaction_id = $3,
		    failure_reason = $4,
		    completed_at = $5,
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.q.Exec(ctx, query,
		record.ID,
		record.Status,
		record.TransactionID,
		record.FailureReason,
		record.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "idx_payout_records_one_paid") {
			return entities.NewPayoutAlreadyProcessedError(record.WinnerID)
		}
		return fmt.Errorf("failed to update payout record %d: %w", record.ID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("payout record with ID %d not found", record.ID)
	}

	return nil
}

// GetActiveByWinner returns the winner's pending or processing attempt, or nil
func (r *PayoutRecordRepository) GetActiveByWinner(ctx context.Context, winnerID int64) (*entities.PayoutRecord, error) {
	query := `SELECT ` + payoutRecordColumns + `
		FROM payout_records
		WHERE winner_id = $1
		  AND status IN ('pending', 'processing')`

	record, err := scanPayoutRecord(r.q.QueryRow(ctx, query, winnerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active payout for winner %d: %w", winnerID, err)
	}

	return record, nil
}

// GetByWinner returns every attempt for a winner ordered by attempt number
func (r *PayoutRecordRepository) GetByWinner(ctx context.Context, winnerID int64) ([]*entities.PayoutRecord, error) {
	query := `SELECT ` + payoutRecordColumns + `
		FROM payout_records
		WHERE winner_id = $1
		ORDER BY attempt ASC`

	rows, err := r.q.Query(ctx, query, winnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payouts for winner %d: %w", winnerID, err)
	}
	defer rows.Close()

	var records []*entities.PayoutRecord
	for rows.Next() {
		record, err := scanPayoutRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payout record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payout records: %w", err)
	}

	return records, nil
}
