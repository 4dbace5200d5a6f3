package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrDuplicate means a record for the same person and day already exists.
	ErrDuplicate = errors.New("attendance record already exists for this day")
	// ErrAlreadyCheckedOut means the conditional check-out update matched nothing.
	ErrAlreadyCheckedOut = errors.New("attendance record already checked out")
)

const recordColumns = `id, person_id, date, status, check_in, check_out, created_at, updated_at`

// Repository persists attendance records in Postgres. The unique
// (person_id, date) constraint is what serializes concurrent check-ins.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FindToday returns the person's record for date, or nil.
func (r *Repository) FindToday(ctx context.Context, personID string, date time.Time) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE person_id = $1 AND date = $2
	`, personID, date)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create inserts rec. Losing a race for the same person and day returns ErrDuplicate.
func (r *Repository) Create(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, person_id, date, status, check_in, check_out)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (person_id, date) DO NOTHING
		RETURNING `+recordColumns,
		rec.ID, rec.PersonID, rec.Date, string(rec.Status), rec.CheckIn, rec.CheckOut)
	created, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrDuplicate
	}
	return created, err
}

// SetCheckout sets check_out once. A record that already has one is left
// untouched and ErrAlreadyCheckedOut is returned.
func (r *Repository) SetCheckout(ctx context.Context, id string, at time.Time) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE attendance_records
		SET check_out = $2, updated_at = NOW()
		WHERE id = $1 AND check_out IS NULL
		RETURNING `+recordColumns,
		id, at)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrAlreadyCheckedOut
	}
	return rec, err
}

// ListByDate returns one page of the day's records with person names.
func (r *Repository) ListByDate(ctx context.Context, date time.Time, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.person_id, a.date, a.status, a.check_in, a.check_out, a.created_at, a.updated_at, p.name
		FROM attendance_records a
		JOIN persons p ON p.id = a.person_id
		WHERE a.date = $1
		ORDER BY a.check_in ASC NULLS LAST, a.id
		LIMIT $2 OFFSET $3
	`, date, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		var (
			rec    Record
			status string
		)
		if err := rows.Scan(&rec.ID, &rec.PersonID, &rec.Date, &status, &rec.CheckIn, &rec.CheckOut, &rec.CreatedAt, &rec.UpdatedAt, &rec.PersonName); err != nil {
			return nil, err
		}
		rec.Status = Status(status)
		res = append(res, rec)
	}
	return res, rows.Err()
}

// CountByDate returns how many records exist for date.
func (r *Repository) CountByDate(ctx context.Context, date time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance_records WHERE date = $1`, date).Scan(&n)
	return n, err
}

func scanRecord(row *sql.Row) (Record, error) {
	var (
		rec    Record
		status string
	)
	if err := row.Scan(&rec.ID, &rec.PersonID, &rec.Date, &status, &rec.CheckIn, &rec.CheckOut, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	rec.Status = Status(status)
	return rec, nil
}
