package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"presence/internal/model"
)

const personColumns = `id, name, email, photo, class_id, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanPerson(row scanner) (model.Person, error) {
	var p model.Person
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Photo, &p.ClassID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// GetPerson returns the person with id, or nil when there is none.
func (r *Repository) GetPerson(ctx context.Context, id string) (*model.Person, error) {
	if !validID(id) {
		return nil, nil
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+personColumns+` FROM persons WHERE id = $1`, id)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// EmailTaken reports whether another person than excludeID uses email.
func (r *Repository) EmailTaken(ctx context.Context, email, excludeID string) (bool, error) {
	var taken bool
	var exclude *string
	if validID(excludeID) {
		exclude = &excludeID
	}
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM persons
			WHERE email = $1 AND ($2::uuid IS NULL OR id <> $2::uuid)
		)
	`, email, exclude).Scan(&taken)
	return taken, err
}

// InsertPerson stores a new person referencing photo.
func (r *Repository) InsertPerson(ctx context.Context, in model.PersonInput, photo *string) (model.Person, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO persons (id, name, email, photo, class_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+personColumns,
		uuid.NewString(), in.Name, in.Email, photo, nullable(in.ClassID))
	p, err := scanPerson(row)
	if err != nil {
		return model.Person{}, mapPersonWrite(err)
	}
	return p, nil
}

// UpdatePerson applies patch and, when photo is non-nil, points the person at
// it. The row is locked while the change is applied so the returned
// superseded reference is exactly the photo this write replaced. superseded
// is nil when no photo was replaced.
func (r *Repository) UpdatePerson(ctx context.Context, id string, patch model.PersonPatch, photo *string) (updated model.Person, superseded *string, err error) {
	if !validID(id) {
		return model.Person{}, nil, ErrPersonNotFound
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Person{}, nil, err
	}
	defer tx.Rollback()

	current, err := scanPerson(tx.QueryRowContext(ctx, `SELECT `+personColumns+` FROM persons WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Person{}, nil, ErrPersonNotFound
	}
	if err != nil {
		return model.Person{}, nil, fmt.Errorf("lock person: %w", err)
	}

	next := current
	if patch.Name != nil {
		next.Name = *patch.Name
	}
	if patch.Email != nil {
		next.Email = *patch.Email
	}
	if patch.ClassID != nil {
		next.ClassID = nullable(patch.ClassID)
	}
	if photo != nil {
		next.Photo = photo
		if current.Photo != nil && *current.Photo != *photo {
			old := *current.Photo
			superseded = &old
		}
	}

	updated, err = scanPerson(tx.QueryRowContext(ctx, `
		UPDATE persons
		SET name = $2, email = $3, photo = $4, class_id = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+personColumns,
		id, next.Name, next.Email, next.Photo, next.ClassID))
	if err != nil {
		return model.Person{}, nil, mapPersonWrite(err)
	}
	if err := tx.Commit(); err != nil {
		return model.Person{}, nil, mapPersonWrite(err)
	}
	return updated, superseded, nil
}

// RestorePerson writes snapshot back, but only while the row still
// references expectedPhoto. It reports whether the row was restored.
func (r *Repository) RestorePerson(ctx context.Context, snapshot model.Person, expectedPhoto string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE persons
		SET name = $2, email = $3, photo = $4, class_id = $5, updated_at = $6
		WHERE id = $1 AND photo = $7
	`, snapshot.ID, snapshot.Name, snapshot.Email, snapshot.Photo, snapshot.ClassID, snapshot.UpdatedAt, expectedPhoto)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeletePerson removes the person and returns the deleted row.
func (r *Repository) DeletePerson(ctx context.Context, id string) (model.Person, error) {
	if !validID(id) {
		return model.Person{}, ErrPersonNotFound
	}
	p, err := scanPerson(r.db.QueryRowContext(ctx, `DELETE FROM persons WHERE id = $1 RETURNING `+personColumns, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Person{}, ErrPersonNotFound
	}
	return p, err
}

// ListPersons returns one page of persons, oldest first.
func (r *Repository) ListPersons(ctx context.Context, limit, offset int) ([]model.Person, error) {
	limit, offset = pageArgs(limit, offset)
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+personColumns+`
		FROM persons
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectPersons(rows)
}

func (r *Repository) CountPersons(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM persons`).Scan(&n)
	return n, err
}

// ListPersonsByClass returns every person in the class.
func (r *Repository) ListPersonsByClass(ctx context.Context, classID string) ([]model.Person, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+personColumns+`
		FROM persons
		WHERE class_id = $1
		ORDER BY name, id
	`, classID)
	if err != nil {
		return nil, err
	}
	return collectPersons(rows)
}

func collectPersons(rows *sql.Rows) ([]model.Person, error) {
	defer rows.Close()
	persons := []model.Person{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		persons = append(persons, p)
	}
	return persons, rows.Err()
}

// nullable maps an empty class reference to NULL.
func nullable(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
