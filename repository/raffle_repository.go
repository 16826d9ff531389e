package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"raffler/database"
	"raffler/domain/entities"
	"raffler/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

const raffleColumns = `
	id, raffle_type, title, entry_price, start_time, end_time, winner_count,
	prize_tiers, platform_fee_bps, fixed_prize_amount, randomness_mode,
	one_win_per_wallet, total_entries, total_participants, pool_value, status,
	pending_seed, pending_block_number, pending_block_hash, created_at, updated_at`

// RaffleRepository implements raffle data access
type RaffleRepository struct {
	q Queryable
}

// NewRaffleRepository creates a raffle repository on the connection pool
func NewRaffleRepository(db *database.DB) interfaces.RaffleRepository {
	return &RaffleRepository{q: db.Pool}
}

func newRaffleRepositoryWithTx(tx Queryable) interfaces.RaffleRepository {
	return &RaffleRepository{q: tx}
}

func scanRaffle(row pgx.Row) (*entities.Raffle, error) {
	var r entities.Raffle
	err := row.Scan(
		&r.ID,
		&r.Type,
		&r.Title,
		&r.EntryPrice,
		&r.StartTime,
		&r.EndTime,
		&r.WinnerCount,
		&r.PrizeTiers,
		&r.PlatformFeeBps,
		&r.FixedPrizeAmount,
		&r.RandomnessMode,
		&r.OneWinPerWallet,
		&r.TotalEntries,
		&r.TotalParticipants,
		&r.PoolValue,
		&r.Status,
		&r.PendingSeed,
		&r.PendingBlockNumber,
		&r.PendingBlockHash,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// prizeTiersParam keeps the NOT NULL jsonb column populated for raffles
// that use the default tier table
func prizeTiersParam(tiers []entities.PrizeTier) []entities.PrizeTier {
	if tiers == nil {
		return []entities.PrizeTier{}
	}
	return tiers
}

// Create inserts a raffle
func (r *RaffleRepository) Create(ctx context.Context, raffle *entities.Raffle) error {
	query := `
		INSERT INTO raffles (
			raffle_type, title, entry_price, start_time, end_time, winner_count,
			prize_tiers, platform_fee_bps, fixed_prize_amount, randomness_mode,
			one_win_per_wallet, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		raffle.Type,
		raffle.Title,
		raffle.EntryPrice,
		raffle.StartTime,
		raffle.EndTime,
		raffle.WinnerCount,
		prizeTiersParam(raffle.PrizeTiers),
		raffle.PlatformFeeBps,
		raffle.FixedPrizeAmount,
		raffle.RandomnessMode,
		raffle.OneWinPerWallet,
		raffle.Status,
	).Scan(&raffle.ID, &raffle.CreatedAt, &raffle.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create raffle: %w", err)
	}

	return nil
}

// GetByID retrieves a raffle by its ID
func (r *RaffleRepository) GetByID(ctx context.Context, id int64) (*entities.Raffle, error) {
	query := `SELECT ` + raffleColumns + ` FROM raffles WHERE id = $1`

	raffle, err := scanRaffle(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get raffle by ID %d: %w", id, err)
	}

	return raffle, nil
}

// GetByIDForUpdate retrieves a raffle by ID with a row lock
func (r *RaffleRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entities.Raffle, error) {
	query := `SELECT ` + raffleColumns + ` FROM raffles WHERE id = $1 FOR UPDATE`

	raffle, err := scanRaffle(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get raffle for update by ID %d: %w", id, err)
	}

	return raffle, nil
}

// Update persists the mutable raffle columns
func (r *RaffleRepository) Update(ctx context.Context, raffle *entities.Raffle) error {
	query := `
		UPDATE raffles
		SET end_time = $2,
		    total_entries = $3,
		    total_participants = $4,
		    pool_value = $5,
		    status = $6,
		    pending_seed = $7,
		    pending_block_number = $8,
		    pending_block_hash = $9,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.q.QueryRow(ctx, query,
		raffle.ID,
		raffle.EndTime,
		raffle.TotalEntries,
		raffle.TotalParticipants,
		raffle.PoolValue,
		raffle.Status,
		raffle.PendingSeed,
		raffle.PendingBlockNumber,
		raffle.PendingBlockHash,
	).Scan(&raffle.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("raffle with ID %d not found", raffle.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update raffle %d: %w", raffle.ID, err)
	}

	return nil
}

// GetByStatus lists raffles in any of the given statuses
func (r *RaffleRepository) GetByStatus(ctx context.Context, statuses ...entities.RaffleStatus) ([]*entities.Raffle, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	query := `SELECT ` + raffleColumns + `
		FROM raffles
		WHERE status = ANY($1)
		ORDER BY end_time ASC, id ASC`

	return r.queryRaffles(ctx, query, names)
}

// GetDueForActivation lists scheduled raffles whose start time has passed
func (r *RaffleRepository) GetDueForActivation(ctx context.Context, now time.Time) ([]*entities.Raffle, error) {
	query := `SELECT ` + raffleColumns + `
		FROM raffles
		WHERE status = 'scheduled'
		  AND start_time <= $1
		ORDER BY start_time ASC, id ASC`

	return r.queryRaffles(ctx, query, now)
}

// GetDueForClosing lists active raffles whose end time has passed
func (r *RaffleRepository) GetDueForClosing(ctx context.Context, now time.Time) ([]*entities.Raffle, error) {
	query := `SELECT ` + raffleColumns + `
		FROM raffles
		WHERE status = 'active'
		  AND end_time <= $1
		ORDER BY end_time ASC, id ASC`

	return r.queryRaffles(ctx, query, now)
}

func (r *RaffleRepository) queryRaffles(ctx context.Context, query string, args ...any) ([]*entities.Raffle, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query raffles: %w", err)
	}
	defer rows.Close()

	var raffles []*entities.Raffle
	for rows.Next() {
		raffle, err := scanRaffle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan raffle: %w", err)
		}
		raffles = append(raffles, raffle)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate raffles: %w", err)
	}

	return raffles, nil
}
