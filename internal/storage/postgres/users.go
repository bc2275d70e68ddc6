package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/trackforge/authcore"
)

const (
	constraintUsername = "users_username_key"
	constraintEmail    = "users_email_key"
)

const userColumns = `id::text, username, email, password_hash, role, is_active,
	failed_login_attempts, locked_until, last_login, created_at, updated_at`

var _ authcore.UserRepository = (*Storage)(nil)

func scanUser(row pgx.Row) (*authcore.User, error) {
	var (
		u    authcore.User
		role string
	)
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&role,
		&u.IsActive,
		&u.FailedLoginAttempts,
		&u.LockedUntil,
		&u.LastLogin,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Role = authcore.Role(role)
	return &u, nil
}

// lookupError maps "no row" and malformed ids to ErrUserNotFound.
func lookupError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, authcore.ErrUserNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.InvalidTextRepresentation {
		return fmt.Errorf("%s: %w", op, authcore.ErrUserNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// FindByUsernameOrEmail matches the username exactly or the email without
// regard to case.
func (s *Storage) FindByUsernameOrEmail(ctx context.Context, identifier string) (*authcore.User, error) {
	const op = "storage.postgres.FindByUsernameOrEmail"

	query := `SELECT ` + userColumns + `
		FROM users
		WHERE username = $1 OR lower(email) = lower($1)
		ORDER BY (username = $1) DESC
		LIMIT 1`

	u, err := scanUser(s.db.QueryRow(ctx, query, identifier))
	if err != nil {
		return nil, lookupError(op, err)
	}
	return u, nil
}

// FindByID loads a user by primary key.
func (s *Storage) FindByID(ctx context.Context, id string) (*authcore.User, error) {
	const op = "storage.postgres.FindByID"

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1::uuid`

	u, err := scanUser(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, lookupError(op, err)
	}
	return u, nil
}

func (s *Storage) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	const op = "storage.postgres.ExistsByUsername"

	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

func (s *Storage) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	const op = "storage.postgres.ExistsByEmail"

	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE lower(email) = lower($1))`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// Create inserts user. A unique violation becomes ErrDuplicateUsername or
// ErrDuplicateEmail depending on the constraint hit.
func (s *Storage) Create(ctx context.Context, user *authcore.User) error {
	const op = "storage.postgres.Create"

	query := `
		INSERT INTO users(id, username, email, password_hash, role, is_active, created_at, updated_at)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			switch pgErr.ConstraintName {
			case constraintEmail:
				return fmt.Errorf("%s: %w", op, authcore.ErrDuplicateEmail)
			case constraintUsername:
				return fmt.Errorf("%s: %w", op, authcore.ErrDuplicateUsername)
			}
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	const op = "storage.postgres.UpdatePasswordHash"

	return s.execOne(ctx, op,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1::uuid`,
		id, hash,
	)
}

// RecordLoginFailure increments the failure count in a single statement so
// concurrent failures are all counted.
func (s *Storage) RecordLoginFailure(ctx context.Context, id string, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	const op = "storage.postgres.RecordLoginFailure"

	var (
		attempts    int
		lockedUntil *time.Time
	)
	err := s.db.QueryRow(ctx,
		`UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
			locked_until = CASE
				WHEN $2::int > 0 AND failed_login_attempts + 1 >= $2::int THEN $3::timestamptz
				ELSE locked_until
			END,
			updated_at = now()
		WHERE id = $1::uuid
		RETURNING failed_login_attempts, locked_until`,
		id, threshold, lockUntil,
	).Scan(&attempts, &lockedUntil)
	if err != nil {
		return 0, nil, lookupError(op, err)
	}

	return attempts, lockedUntil, nil
}

func (s *Storage) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	const op = "storage.postgres.RecordLoginSuccess"

	return s.execOne(ctx, op,
		`UPDATE users
		SET failed_login_attempts = 0, locked_until = NULL, last_login = $2, updated_at = now()
		WHERE id = $1::uuid`,
		id, at,
	)
}

func (s *Storage) ClearLockout(ctx context.Context, id string) error {
	const op = "storage.postgres.ClearLockout"

	return s.execOne(ctx, op,
		`UPDATE users
		SET failed_login_attempts = 0, locked_until = NULL, updated_at = now()
		WHERE id = $1::uuid`,
		id,
	)
}

func (s *Storage) SetActive(ctx context.Context, id string, active bool) error {
	const op = "storage.postgres.SetActive"

	return s.execOne(ctx, op,
		`UPDATE users SET is_active = $2, updated_at = now() WHERE id = $1::uuid`,
		id, active,
	)
}

// execOne runs an UPDATE that must touch exactly one row.
func (s *Storage) execOne(ctx context.Context, op, query string, args ...any) error {
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return lookupError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, authcore.ErrUserNotFound)
	}
	return nil
}
