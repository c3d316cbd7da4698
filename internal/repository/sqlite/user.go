package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/authors-haven/internal/apperror"
	"github.com/sakif/authors-haven/internal/model"
	"github.com/sakif/authors-haven/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, firstname, lastname, username, email, password_hash, role_id,
	reset_used, reset_token_id, provider, external_id, image, created_at, updated_at`

// CreateUser inserts a new user. Email is stored lowercased; a second
// account with the same address is a Conflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.RoleID == 0 {
		user.RoleID = model.RoleUser
	}
	if user.Provider == "" {
		user.Provider = "local"
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Firstname,
		user.Lastname,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.RoleID,
		user.ResetUsed,
		user.ResetTokenID,
		user.Provider,
		user.ExternalID,
		user.Image,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}
	return nil
}

// GetUserByID retrieves a user by their internal ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByEmail matches the address case-insensitively.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

func (db *DB) ArmPasswordReset(ctx context.Context, userID, tokenID string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET reset_used = 0, reset_token_id = ?, updated_at = ?
		 WHERE id = ?`,
		tokenID, time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: arming password reset for %s: %w", userID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("user", userID)
	}
	return nil
}

// CommitPasswordReset is the single conditional UPDATE that makes a reset
// credential single-use. Of any number of concurrent callers holding the
// same tokenID, exactly one sees a row change.
func (db *DB) CommitPasswordReset(ctx context.Context, userID, email, tokenID, passwordHash string) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET password_hash = ?, reset_used = 1, updated_at = ?
		 WHERE id = ? AND email = ? AND reset_used = 0 AND reset_token_id = ?`,
		passwordHash, time.Now().UTC(), userID, strings.ToLower(email), tokenID,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: committing password reset for %s: %w", userID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n == 1, nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Firstname,
		&u.Lastname,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.RoleID,
		&u.ResetUsed,
		&u.ResetTokenID,
		&u.Provider,
		&u.ExternalID,
		&u.Image,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
