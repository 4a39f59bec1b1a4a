package registrations

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventhub/backend/internal/models"
)

var (
	// ErrAlreadyRegistered is returned when the (event, user) pair exists.
	ErrAlreadyRegistered = errors.New("already registered")
	// ErrCapacityReached is returned when the event has no free spots left.
	ErrCapacityReached = errors.New("capacity reached")
	// ErrNotRegistered is returned when there is nothing to unregister.
	ErrNotRegistered = errors.New("not registered")
)

// Repository handles registration persistence. Register and Unregister each
// run the row change and the counter change in one transaction so the
// capacity bound holds under concurrent requests.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Register inserts a registration for (eventID, userID) and increments the
// event's counter, but only while the counter is below capacity. Either both
// writes commit or neither does.
func (r *Repository) Register(ctx context.Context, eventID, userID int64) (*models.Registration, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var reg models.Registration
	err = tx.QueryRow(ctx,
		`INSERT INTO registrations (event_id, user_id) VALUES ($1, $2)
		RETURNING id, event_id, user_id, created_at`,
		eventID, userID,
	).Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAlreadyRegistered
		}
		return nil, err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE events SET current_registrations = current_registrations + 1, updated_at = NOW()
		WHERE id = $1 AND current_registrations < capacity`,
		eventID,
	)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		// Full; the deferred rollback discards the insert.
		return nil, ErrCapacityReached
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Unregister deletes the registration for (eventID, userID) and decrements
// the event's counter, which never drops below zero.
func (r *Repository) Unregister(ctx context.Context, eventID, userID int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`DELETE FROM registrations WHERE event_id = $1 AND user_id = $2`,
		eventID, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotRegistered
	}

	if _, err := tx.Exec(ctx,
		`UPDATE events SET current_registrations = current_registrations - 1, updated_at = NOW()
		WHERE id = $1 AND current_registrations > 0`,
		eventID,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ListByUser returns a user's registrations, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]models.Registration, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, event_id, user_id, created_at FROM registrations WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Registration
	for rows.Next() {
		var reg models.Registration
		if err := rows.Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, reg)
	}
	return list, rows.Err()
}
