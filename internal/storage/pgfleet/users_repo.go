package pgfleet

import (
	"context"
	"time"

	"github.com/BearBump/FleetTrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const userColumns = ` id, name, email, password_hash, role, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Storage) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	now := time.Now().UTC()
	out, err := scanUser(s.db.QueryRow(ctx, `
INSERT INTO users (name, email, password_hash, role, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$5)
RETURNING`+userColumns, u.Name, u.Email, u.PasswordHash, u.Role, now))
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return nil, errors.Wrapf(models.ErrConflict, "email %q already registered", u.Email)
		}
		return nil, errors.Wrap(err, "insert user")
	}
	return out, nil
}

func (s *Storage) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT`+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundIfNoRows(err, "user", id, "select user")
	}
	return u, nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT`+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(models.ErrNotFound, "user %q", email)
		}
		return nil, errors.Wrap(err, "select user by email")
	}
	return u, nil
}

func (s *Storage) ListUsers(ctx context.Context, role string) ([]*models.User, error) {
	rows, err := s.db.Query(ctx, `
SELECT`+userColumns+`
FROM users
WHERE ($1 = '' OR role = $1)
ORDER BY id ASC
`, role)
	if err != nil {
		return nil, errors.Wrap(err, "select users")
	}
	defer rows.Close()

	out := make([]*models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan user")
		}
		out = append(out, u)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
