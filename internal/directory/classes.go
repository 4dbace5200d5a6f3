package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"presence/internal/model"
)

const classColumns = `id, name, created_at, updated_at`

func scanClass(row scanner) (model.Class, error) {
	var c model.Class
	err := row.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// ClassExists reports whether a class with id exists.
func (r *Repository) ClassExists(ctx context.Context, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	var ok bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM classes WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

// GetClass returns the class with its students.
func (r *Repository) GetClass(ctx context.Context, id string) (model.ClassDetail, error) {
	if !validID(id) {
		return model.ClassDetail{}, ErrClassNotFound
	}
	c, err := scanClass(r.db.QueryRowContext(ctx, `SELECT `+classColumns+` FROM classes WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.ClassDetail{}, ErrClassNotFound
	}
	if err != nil {
		return model.ClassDetail{}, err
	}
	students, err := r.ListPersonsByClass(ctx, id)
	if err != nil {
		return model.ClassDetail{}, fmt.Errorf("list students: %w", err)
	}
	return model.ClassDetail{Class: c, Students: students}, nil
}

// ListClasses returns one page of classes, oldest first.
func (r *Repository) ListClasses(ctx context.Context, limit, offset int) ([]model.Class, error) {
	limit, offset = pageArgs(limit, offset)
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+classColumns+`
		FROM classes
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	classes := []model.Class{}
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		classes = append(classes, c)
	}
	return classes, rows.Err()
}

func (r *Repository) CountClasses(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM classes`).Scan(&n)
	return n, err
}

func (r *Repository) InsertClass(ctx context.Context, name string) (model.Class, error) {
	return scanClass(r.db.QueryRowContext(ctx, `
		INSERT INTO classes (id, name) VALUES ($1, $2)
		RETURNING `+classColumns,
		uuid.NewString(), name))
}

// RenameClass changes the name when one is given and returns the class.
func (r *Repository) RenameClass(ctx context.Context, id string, name *string) (model.Class, error) {
	if !validID(id) {
		return model.Class{}, ErrClassNotFound
	}
	var (
		c   model.Class
		err error
	)
	if name == nil {
		c, err = scanClass(r.db.QueryRowContext(ctx, `SELECT `+classColumns+` FROM classes WHERE id = $1`, id))
	} else {
		c, err = scanClass(r.db.QueryRowContext(ctx, `
			UPDATE classes SET name = $2, updated_at = NOW()
			WHERE id = $1
			RETURNING `+classColumns,
			id, *name))
	}
	if errors.Is(err, sql.ErrNoRows) {
		return model.Class{}, ErrClassNotFound
	}
	return c, err
}

// DeleteClass removes a class nobody references. The class row is locked
// before counting so a concurrent enrollment into it waits on the delete.
func (r *Repository) DeleteClass(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrClassNotFound
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var locked string
	err = tx.QueryRowContext(ctx, `SELECT id FROM classes WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrClassNotFound
	}
	if err != nil {
		return fmt.Errorf("lock class: %w", err)
	}

	var students int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM persons WHERE class_id = $1`, id).Scan(&students); err != nil {
		return fmt.Errorf("count students: %w", err)
	}
	if students > 0 {
		return ErrClassInUse
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return ErrClassInUse.Wrap(err)
		}
		return err
	}
	return tx.Commit()
}
