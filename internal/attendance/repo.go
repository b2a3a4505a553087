package attendance

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"apsconnect/internal/apperr"
)

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InsertSession writes a new session.
func (r *Repository) InsertSession(ctx context.Context, s Session) (Session, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	var token, start, end any
	if s.QRToken != "" {
		token = s.QRToken
	}
	if s.StartTime != "" {
		start = s.StartTime
	}
	if s.EndTime != "" {
		end = s.EndTime
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_sessions
			(id, branch, semester, subject, faculty_id, session_date, start_time, end_time, qr_token, qr_expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at
	`, s.ID, s.Branch, s.Semester, s.Subject, s.FacultyID, s.SessionDate, start, end, token, s.QRExpiresAt)
	if err := row.Scan(&s.CreatedAt); err != nil {
		return Session{}, err
	}
	return s, nil
}

// GetSession returns a session by id.
func (r *Repository) GetSession(ctx context.Context, id string) (Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, branch, semester, subject, faculty_id, session_date,
		       COALESCE(start_time, ''), COALESCE(end_time, ''),
		       COALESCE(qr_token, ''), qr_expires_at, created_at
		FROM attendance_sessions WHERE id = $1
	`, id)
	var s Session
	err := row.Scan(&s.ID, &s.Branch, &s.Semester, &s.Subject, &s.FacultyID,
		&s.SessionDate, &s.StartTime, &s.EndTime, &s.QRToken, &s.QRExpiresAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, apperr.New(apperr.NotFound, "session %s not found", id)
	}
	return s, err
}

// UpsertRecord writes a mark keyed on (session_id, student_id). A resubmit
// overwrites rather than duplicating.
func (r *Repository) UpsertRecord(ctx context.Context, rec Record) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (session_id, student_id, status, marked_by, marked_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (session_id, student_id) DO UPDATE SET
			status = EXCLUDED.status,
			marked_by = EXCLUDED.marked_by,
			marked_at = EXCLUDED.marked_at
		RETURNING marked_at
	`, rec.SessionID, rec.StudentID, rec.Status, rec.MarkedBy, rec.MarkedAt)
	if err := row.Scan(&rec.MarkedAt); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ListRecords returns all marks for a session.
func (r *Repository) ListRecords(ctx context.Context, sessionID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT session_id, student_id, status, marked_by, marked_at
		FROM attendance_records WHERE session_id = $1
		ORDER BY student_id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var recs []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.SessionID, &rec.StudentID, &rec.Status, &rec.MarkedBy, &rec.MarkedAt); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// CountForScope returns a student's present count and the total sessions
// held for the given branch/semester.
func (r *Repository) CountForScope(ctx context.Context, studentID, branch string, semester int) (present, total int, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE rec.status = 'present'),
			COUNT(DISTINCT s.id)
		FROM attendance_sessions s
		LEFT JOIN attendance_records rec
			ON rec.session_id = s.id AND rec.student_id = $1
		WHERE s.branch = $2 AND s.semester = $3
	`, studentID, branch, semester).Scan(&present, &total)
	return present, total, err
}

// SubjectBreakdown buckets a student's marked records by subject.
func (r *Repository) SubjectBreakdown(ctx context.Context, studentID string) ([]SubjectSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.subject,
		       COUNT(*) FILTER (WHERE rec.status = 'present'),
		       COUNT(*)
		FROM attendance_records rec
		JOIN attendance_sessions s ON s.id = rec.session_id
		WHERE rec.student_id = $1
		GROUP BY s.subject
		ORDER BY s.subject
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SubjectSummary
	for rows.Next() {
		var sub SubjectSummary
		if err := rows.Scan(&sub.Subject, &sub.Present, &sub.Total); err != nil {
			return nil, err
		}
		if sub.Total > 0 {
			sub.Percent = float64(sub.Present) / float64(sub.Total) * 100
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// ListSessions returns sessions for a scope, newest first.
func (r *Repository) ListSessions(ctx context.Context, branch string, semester, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, branch, semester, subject, faculty_id, session_date,
		       COALESCE(start_time, ''), COALESCE(end_time, ''),
		       COALESCE(qr_token, ''), qr_expires_at, created_at
		FROM attendance_sessions
		WHERE branch = $1 AND semester = $2
		ORDER BY session_date DESC, created_at DESC
		LIMIT $3
	`, branch, semester, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.Branch, &s.Semester, &s.Subject, &s.FacultyID,
			&s.SessionDate, &s.StartTime, &s.EndTime, &s.QRToken, &s.QRExpiresAt, &s.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
