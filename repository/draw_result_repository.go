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

// DrawResultRepository implements draw result data access
type DrawResultRepository struct {
	q Queryable
}

// NewDrawResultRepository creates a draw result repository on the connection pool
func NewDrawResultRepository(db *database.DB) interfaces.DrawResultRepository {
	return &DrawResultRepository{q: db.Pool}
}

func newDrawResultRepositoryWithTx(tx Queryable) interfaces.DrawResultRepository {
	return &DrawResultRepository{q: tx}
}

// Create inserts the draw result. A second result for the same raffle is
// rejected by the raffle_id unique constraint.
func (r *DrawResultRepository) Create(ctx context.Context, result *entities.DrawResult) error {
	query := `
		INSERT INTO draw_results (
			raffle_id, seed, randomness_mode, block_number, block_hash,
			total_tickets, prize_pool, total_prize_distributed
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		result.RaffleID,
		result.Seed,
		result.RandomnessMode,
		result.BlockNumber,
		result.BlockHash,
		result.TotalTickets,
		result.PrizePool,
		result.TotalPrizeDistributed,
	).Scan(&result.ID, &result.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "draw_results_raffle_id_key") {
			return entities.NewRaffleNotDrawableError(entities.DrawReasonAlreadyDrawn)
		}
		return fmt.Errorf("failed to create draw result: %w", err)
	}

	return nil
}

// GetByRaffle returns the draw result of a raffle without its winners
func (r *DrawResultRepository) GetByRaffle(ctx context.Context, raffleID int64) (*entities.DrawResult, error) {
	query := `
		SELECT id, raffle_id, seed, randomness_mode, block_number, block_hash,
		       total_tickets, prize_pool, total_prize_distributed, created_at
		FROM draw_results
		WHERE raffle_id = $1
	`

	var result entities.DrawResult
	err := r.q.QueryRow(ctx, query, raffleID).Scan(
		&result.ID,
		&result.RaffleID,
		&result.Seed,
		&result.RandomnessMode,
		&result.BlockNumber,
		&result.BlockHash,
		&result.TotalTickets,
		&result.PrizePool,
		&result.TotalPrizeDistributed,
		&result.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draw result for raffle %d: %w", raffleID, err)
	}

	return &result, nil
}
