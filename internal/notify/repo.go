package notify

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"apsconnect/internal/apperr"
)

// Repository persists notifications in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes a notification row.
func (r *Repository) Insert(ctx context.Context, n Notification) (Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	var userID, role, branch any
	var semester any
	if n.UserID != "" {
		userID = n.UserID
	}
	if n.Role != "" {
		role = n.Role
	}
	if n.Branch != "" {
		branch = n.Branch
	}
	if n.Semester > 0 {
		semester = n.Semester
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO notifications (id, user_id, role_target, branch, semester, title, message)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at
	`, n.ID, userID, role, branch, semester, n.Title, n.Message)
	if err := row.Scan(&n.CreatedAt); err != nil {
		return Notification{}, err
	}
	return n, nil
}

// Get returns a notification by id.
func (r *Repository) Get(ctx context.Context, id string) (Notification, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(user_id, ''), COALESCE(role_target, ''),
		       COALESCE(branch, ''), COALESCE(semester, 0),
		       title, message, read, created_at
		FROM notifications WHERE id = $1
	`, id)
	var n Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Role, &n.Branch, &n.Semester,
		&n.Title, &n.Message, &n.Read, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Notification{}, apperr.New(apperr.NotFound, "notification %s not found", id)
	}
	return n, err
}

// ListForUser merges targeted rows with broadcasts matching the user's
// role, branch and semester, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID, role, branch string, semester, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, COALESCE(user_id, ''), COALESCE(role_target, ''),
		       COALESCE(branch, ''), COALESCE(semester, 0),
		       title, message, read, created_at
		FROM notifications
		WHERE user_id = $1
		   OR (user_id IS NULL AND role_target = $2
		       AND (branch IS NULL OR branch = $3)
		       AND (semester IS NULL OR semester = $4))
		ORDER BY created_at DESC
		LIMIT $5
	`, userID, role, branch, semester, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Role, &n.Branch, &n.Semester,
			&n.Title, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flags a targeted notification as read by its owner.
func (r *Repository) MarkRead(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET read = TRUE
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.NotFound, "notification %s not found", id)
	}
	return nil
}
