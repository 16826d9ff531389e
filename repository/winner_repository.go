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

const winnerColumns = `
	id, raffle_id, draw_result_id, position, wallet, ticket_index, total_tickets,
	entry_id, tier_label, prize_amount, payout_status, created_at, updated_at`

// WinnerRepository implements winner data access
type WinnerRepository struct {
	q Queryable
}

// NewWinnerRepository creates a winner repository on the connection pool
func NewWinnerRepository(db *database.DB) interfaces.WinnerRepository {
	return &WinnerRepository{q: db.Pool}
}

func newWinnerRepositoryWithTx(tx Queryable) interfaces.WinnerRepository {
	return &WinnerRepository{q: tx}
}

func scanWinner(row pgx.Row) (*entities.Winner, error) {
	var w entities.Winner
	err := row.Scan(
		&w.ID,
		&w.RaffleID,
		&w.DrawResultID,
		&w.Position,
		&w.Wallet,
		&w.TicketIndex,
		&w.TotalTickets,
		&w.EntryID,
		&w.TierLabel,
		&w.PrizeAmount,
		&w.PayoutStatus,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// CreateBatch inserts all winners of a draw in one round trip
func (r *WinnerRepository) CreateBatch(ctx context.Context, winners []*entities.Winner) error {
	if len(winners) == 0 {
		return nil
	}

	query := `
		INSERT INTO winners (
			raffle_id, draw_result_id, position, wallet, ticket_index, total_tickets,
			entry_id, tier_label, prize_amount, payout_status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`

	batch := &pgx.Batch{}
	for _, w := range winners {
		batch.Queue(query,
			w.RaffleID,
			w.DrawResultID,
			w.Position,
			w.Wallet,
			w.TicketIndex,
			w.TotalTickets,
			w.EntryID,
			w.TierLabel,
			w.PrizeAmount,
			w.PayoutStatus,
		)
	}

	results := r.q.SendBatch(ctx, batch)
	defer results.Close()

	for _, w := range winners {
		if err := results.QueryRow().Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return fmt.Errorf("failed to create winner at position %d: %w", w.Position, err)
		}
	}

	return nil
}

// GetByID retrieves a winner by its ID
func (r *WinnerRepository) GetByID(ctx context.Context, id int64) (*entities.Winner, error) {
	query := `SELECT ` + winnerColumns + ` FROM winners WHERE id = $1`

	winner, err := scanWinner(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get winner by ID %d: %w", id, err)
	}

	return winner, nil
}

// GetByRaffle returns winners ordered by position
func (r *WinnerRepository) GetByRaffle(ctx context.Context, raffleID int64) ([]*entities.Winner, error) {
	query := `SELECT ` + winnerColumns + `
		FROM winners
		WHERE raffle_id = $1
		ORDER BY position ASC`

	return r.queryWinners(ctx, query, raffleID)
}

// GetByRaffleAndStatus returns winners of a raffle in one payout status
func (r *WinnerRepository) GetByRaffleAndStatus(ctx context.Context, raffleID int64, status entities.PayoutStatus) ([]*entities.Winner, error) {
	query := `SELECT ` + winnerColumns + `
		FROM winners
		WHERE raffle_id = $1
		  AND payout_status = $2
		ORDER BY position ASC`

	return r.queryWinners(ctx, query, raffleID, status)
}

// CompareAndSwapPayoutStatus moves the winner to `to` only while it is in `from`
func (r *WinnerRepository) CompareAndSwapPayoutStatus(ctx context.Context, winnerID int64, from, to entities.PayoutStatus) (bool, error) {
	query := `
		UPDATE winners
		SET payout_status = $3,
		    updated_at = NOW()
		WHERE id = $1
		  AND payout_status = $2
	`

	result, err := r.q.Exec(ctx, query, winnerID, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to update payout status of winner %d: %w", winnerID, err)
	}

	return result.RowsAffected() == 1, nil
}

func (r *WinnerRepository) queryWinners(ctx context.Context, query string, args ...any) ([]*entities.Winner, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query winners: %w", err)
	}
	defer rows.Close()

	var winners []*entities.Winner
	for rows.Next() {
		winner, err := scanWinner(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan winner: %w", err)
		}
		winners = append(winners, winner)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate winners: %w", err)
	}

	return winners, nil
}
