package events

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventhub/backend/internal/models"
)

// ErrNotFound is returned when no matching event exists.
var ErrNotFound = errors.New("event not found")

// UpdateParams holds the mutable event fields for Update. Status is
// deliberately absent; it only changes through UpdateStatus.
type UpdateParams struct {
	Title       string
	Description string
	Date        time.Time
	Location    string
	Capacity    int
}

// ListFilter narrows the public listing. Day, when set, selects the UTC
// calendar day [Day, Day+24h). Location is a case-insensitive substring.
type ListFilter struct {
	Day      *time.Time
	Location string
}

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const eventColumns = `id, title, description, date, location, capacity, current_registrations, status, creator_id, created_at, updated_at`

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Date, &e.Location, &e.Capacity,
		&e.CurrentRegistrations, &e.Status, &e.CreatorID, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts a new event with status "pending".
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (title, description, date, location, capacity, creator_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, current_registrations, status, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, e.Title, e.Description, e.Date, e.Location, e.Capacity, e.CreatorID).
		Scan(&e.ID, &e.CurrentRegistrations, &e.Status, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID returns an event by ID.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	return scanEvent(r.pool.QueryRow(ctx, q, id))
}

// Update persists field changes, leaving status and the registration counter
// untouched, and returns the updated record.
func (r *Repository) Update(ctx context.Context, id int64, p UpdateParams) (*models.Event, error) {
	const q = `UPDATE events SET title = $2, description = $3, date = $4, location = $5, capacity = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + eventColumns
	return scanEvent(r.pool.QueryRow(ctx, q, id, p.Title, p.Description, p.Date, p.Location, p.Capacity))
}

// UpdateStatus changes only the event's status and returns the updated record.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status models.EventStatus) (*models.Event, error) {
	const q = `UPDATE events SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + eventColumns
	return scanEvent(r.pool.QueryRow(ctx, q, id, string(status)))
}

// Delete removes an event; registrations go with it via the foreign key
// cascade.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns approved events matching the filter, ordered by date
// ascending, each annotated with its registration count.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.EventWithCount, error) {
	q := `SELECT e.id, e.title, e.description, e.date, e.location, e.capacity, e.current_registrations,
		e.status, e.creator_id, e.created_at, e.updated_at,
		(SELECT COUNT(*) FROM registrations r WHERE r.event_id = e.id) AS registration_count
		FROM events e WHERE e.status = 'approved'`
	var args []interface{}
	if f.Day != nil {
		day := f.Day.UTC().Truncate(24 * time.Hour)
		args = append(args, day, day.Add(24*time.Hour))
		q += ` AND e.date >= $1 AND e.date < $2`
	}
	if f.Location != "" {
		args = append(args, "%"+f.Location+"%")
		if f.Day != nil {
			q += ` AND e.location ILIKE $3`
		} else {
			q += ` AND e.location ILIKE $1`
		}
	}
	q += ` ORDER BY e.date ASC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.EventWithCount
	for rows.Next() {
		var e models.EventWithCount
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Date, &e.Location, &e.Capacity,
			&e.CurrentRegistrations, &e.Status, &e.CreatorID, &e.CreatedAt, &e.UpdatedAt,
			&e.RegistrationCount); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}
