package repository

import (
	"context"
	"fmt"

	"raffler/database"
	"raffler/domain/entities"
	"raffler/domain/interfaces"
)

// PayoutRetryRepository implements the retry request audit trail
type PayoutRetryRepository struct {
	q Queryable
}

// NewPayoutRetryRepository creates a retry request repository on the connection pool
func NewPayoutRetryRepository(db *database.DB) interfaces.PayoutRetryRepository {
	return &PayoutRetryRepository{q: db.Pool}
}

func newPayoutRetryRepositoryWithTx(tx Queryable) interfaces.PayoutRetryRepository {
	return &PayoutRetryRepository{q: tx}
}

// Create records an operator retry request
func (r *PayoutRetryRepository) Create(ctx context.Context, request *entities.PayoutRetryRequest) error {
	query := `
		INSERT INTO payout_retry_requests (winner_id, requested_by, reason)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query, request.WinnerID, request.RequestedBy, request.Reason).
		Scan(&request.ID, &request.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payout retry request: %w", err)
	}

	return nil
}

// GetByWinner returns the retry requests for a winner, oldest first
func (r *PayoutRetryRepository) GetByWinner(ctx context.Context, winnerID int64) ([]*entities.PayoutRetryRequest, error) {
	query := `
		SELECT id, winner_id, requested_by, reason, created_at
		FROM payout_retry_requests
		WHERE winner_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.q.Query(ctx, query, winnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get retry requests for winner %d: %w", winnerID, err)
	}
	defer rows.Close()

	var requests []*entities.PayoutRetryRequest
	for rows.Next() {
		var req entities.PayoutRetryRequest
		if err := rows.Scan(&req.ID, &req.WinnerID, &req.RequestedBy, &req.Reason, &req.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan retry request: %w", err)
		}
		requests = append(requests, &req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate retry requests: %w", err)
	}

	return requests, nil
}
