package repository

import (
	"context"
	"fmt"

	"raffler/database"
	"raffler/domain/entities"
	"raffler/domain/interfaces"
)

// RaffleStatusHistoryRepository stores raffle state transitions
type RaffleStatusHistoryRepository struct {
	q Queryable
}

// NewRaffleStatusHistoryRepository creates a status history repository on the connection pool
func NewRaffleStatusHistoryRepository(db *database.DB) interfaces.RaffleStatusHistoryRepository {
	return &RaffleStatusHistoryRepository{q: db.Pool}
}

func newRaffleStatusHistoryRepositoryWithTx(tx Queryable) interfaces.RaffleStatusHistoryRepository {
	return &RaffleStatusHistoryRepository{q: tx}
}

// Record appends a transition
func (r *RaffleStatusHistoryRepository) Record(ctx context.Context, change *entities.RaffleStatusChange) error {
	query := `
		INSERT INTO raffle_status_history (raffle_id, from_status, to_status, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query, change.RaffleID, change.FromStatus, change.ToStatus, change.Reason).
		Scan(&change.ID, &change.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record status change for raffle %d: %w", change.RaffleID, err)
	}

	return nil
}

// GetByRaffle returns the transitions of a raffle in the order they happened
func (r *RaffleStatusHistoryRepository) GetByRaffle(ctx context.Context, raffleID int64) ([]*entities.RaffleStatusChange, error) {
	query := `
		SELECT id, raffle_id, from_status, to_status, reason, created_at
		FROM raffle_status_history
		WHERE raffle_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.q.Query(ctx, query, raffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get status history for raffle %d: %w", raffleID, err)
	}
	defer rows.Close()

	var changes []*entities.RaffleStatusChange
	for rows.Next() {
		var c entities.RaffleStatusChange
		if err := rows.Scan(&c.ID, &c.RaffleID, &c.FromStatus, &c.ToStatus, &c.Reason, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status change: %w", err)
		}
		changes = append(changes, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate status history: %w", err)
	}

	return changes, nil
}
