package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prepvault/storefront/internal/model"
)

const userColumns = `id, email, password_hash, first_name, last_name, role, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *Postgres) CreateUser(ctx context.Context, user model.User) (*model.User, error) {
	query := `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING ` + userColumns
	return scanUser(db.Pool.QueryRow(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Role,
	))
}

// UpsertGuestUser creates a password-less user for email, or returns the
// existing user that already owns it.
func (db *Postgres) UpsertGuestUser(ctx context.Context, id, email, firstName string) (*model.User, error) {
	query := `
		INSERT INTO users (id, email, first_name, role, created_at, updated_at)
		VALUES ($1, $2, $3, 'user', NOW(), NOW())
		ON CONFLICT (email) DO UPDATE SET updated_at = NOW()
		RETURNING ` + userColumns
	return scanUser(db.Pool.QueryRow(ctx, query, id, email, firstName))
}

// CreateAnonymousUser inserts a guest with no email.
func (db *Postgres) CreateAnonymousUser(ctx context.Context, id string) (*model.User, error) {
	query := `
		INSERT INTO users (id, first_name, role, created_at, updated_at)
		VALUES ($1, 'Customer', 'user', NOW(), NOW())
		RETURNING ` + userColumns
	return scanUser(db.Pool.QueryRow(ctx, query, id))
}

func (db *Postgres) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(db.Pool.QueryRow(ctx, query, email))
}

func (db *Postgres) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(db.Pool.QueryRow(ctx, query, userID))
}

func (db *Postgres) SetUserRole(ctx context.Context, email, role string) error {
	tag, err := db.Pool.Exec(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE email = $1`, email, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (db *Postgres) InsertRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	query := `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, NOW())
	`
	_, err := db.Pool.Exec(ctx, query, userID, tokenHash, expiresAt)
	return err
}

// ClaimRefreshToken deletes the token row and returns it. The delete is the
// claim: of two concurrent callers only one gets the row back.
func (db *Postgres) ClaimRefreshToken(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE token_hash = $1
		RETURNING id, user_id, token_hash, expires_at, created_at
	`
	var token model.RefreshToken
	err := db.Pool.QueryRow(ctx, query, tokenHash).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (db *Postgres) DeleteRefreshToken(ctx context.Context, tokenHash string) error {
	_, err := db.Pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
	return err
}

func (db *Postgres) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (db *Postgres) CreateAdminSession(ctx context.Context, session model.AdminSession) error {
	query := `
		INSERT INTO admin_sessions (token_hash, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, NOW())
	`
	_, err := db.Pool.Exec(ctx, query, session.TokenHash, session.UserID, session.ExpiresAt)
	return err
}

// GetAdminSession returns only unexpired sessions.
func (db *Postgres) GetAdminSession(ctx context.Context, tokenHash string, now time.Time) (*model.AdminSession, error) {
	query := `
		SELECT token_hash, user_id, expires_at, created_at
		FROM admin_sessions
		WHERE token_hash = $1 AND expires_at > $2
	`
	var session model.AdminSession
	err := db.Pool.QueryRow(ctx, query, tokenHash, now).Scan(
		&session.TokenHash,
		&session.UserID,
		&session.ExpiresAt,
		&session.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (db *Postgres) DeleteAdminSession(ctx context.Context, tokenHash string) error {
	_, err := db.Pool.Exec(ctx, `DELETE FROM admin_sessions WHERE token_hash = $1`, tokenHash)
	return err
}

func (db *Postgres) DeleteExpiredAdminSessions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM admin_sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
