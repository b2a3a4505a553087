package identity

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"apsconnect/internal/apperr"
)

// Repository persists user accounts in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, auth_id, name, email, password_hash, role, status, branch, semester, remark, created_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.AuthID, &u.Name, &u.Email, &u.PasswordHash,
		&u.Role, &u.Status, &u.Branch, &u.Semester, &u.Remark, &u.CreatedAt)
	return u, err
}

// InsertUser writes a new account row.
func (r *Repository) InsertUser(ctx context.Context, u User) (User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.AuthID == "" {
		u.AuthID = u.ID
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, auth_id, name, email, password_hash, role, status, branch, semester, remark)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at
	`, u.ID, u.AuthID, u.Name, u.Email, u.PasswordHash, u.Role, u.Status, u.Branch, u.Semester, u.Remark)
	if err := row.Scan(&u.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, apperr.New(apperr.Conflict, "email %s already registered", u.Email)
		}
		return User{}, err
	}
	return u, nil
}

// GetByID returns a user by internal id.
func (r *Repository) GetByID(ctx context.Context, id string) (User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, apperr.New(apperr.NotFound, "user %s not found", id)
	}
	return u, err
}

// GetByEmail returns a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, apperr.New(apperr.NotFound, "no account for %s", email)
	}
	return u, err
}

// SetStatus overwrites status and remark. Re-running a transition on a
// terminal account simply overwrites, matching the approval workflow.
func (r *Repository) SetStatus(ctx context.Context, id string, status Status, remark string) (User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `
		UPDATE users SET status = $2, remark = $3
		WHERE id = $1
		RETURNING `+userColumns, id, status, remark))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, apperr.New(apperr.NotFound, "user %s not found", id)
	}
	return u, err
}

// ListPending returns pending accounts, optionally filtered by scope.
func (r *Repository) ListPending(ctx context.Context, branch string, semester int) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE status = 'pending'`
	args := []any{}
	if branch != "" {
		args = append(args, branch)
		query += ` AND branch = $1`
	}
	if semester > 0 {
		args = append(args, semester)
		if len(args) == 1 {
			query += ` AND semester = $1`
		} else {
			query += ` AND semester = $2`
		}
	}
	query += ` ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (user_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, userID, token, expiresAt)
	return err
}

// RevokeRefreshToken marks a token revoked.
func (r *Repository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	return err
}

// RefreshTokenActive reports whether a stored refresh token is usable.
func (r *Repository) RefreshTokenActive(ctx context.Context, token string) (bool, error) {
	var active bool
	err := r.db.QueryRowContext(ctx, `
		SELECT NOT revoked AND expires_at > NOW()
		FROM refresh_tokens WHERE token = $1
	`, token).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return active, err
}
