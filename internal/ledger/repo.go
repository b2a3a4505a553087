package ledger

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"apsconnect/internal/apperr"
)

// Repository persists results and fees in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// UpsertResult writes a mark keyed on (exam_id, student_id, subject). A
// resubmit overwrites marks and grade.
func (r *Repository) UpsertResult(ctx context.Context, res Result) (Result, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO results (exam_id, student_id, subject, marks, max_marks, grade, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,NOW())
		ON CONFLICT (exam_id, student_id, subject) DO UPDATE SET
			marks = EXCLUDED.marks,
			max_marks = EXCLUDED.max_marks,
			grade = EXCLUDED.grade,
			updated_at = NOW()
		RETURNING updated_at
	`, res.ExamID, res.StudentID, res.Subject, res.Marks, res.MaxMarks, res.Grade)
	if err := row.Scan(&res.UpdatedAt); err != nil {
		return Result{}, err
	}
	return res, nil
}

// ListResultsByStudent returns a student's rows, optionally for one exam.
func (r *Repository) ListResultsByStudent(ctx context.Context, studentID, examID string) ([]Result, error) {
	query := `
		SELECT exam_id, student_id, subject, marks, max_marks, grade, updated_at
		FROM results WHERE student_id = $1`
	args := []any{studentID}
	if examID != "" {
		query += ` AND exam_id = $2`
		args = append(args, examID)
	}
	query += ` ORDER BY exam_id, subject`
	return r.queryResults(ctx, query, args...)
}

// ListResultsByExam returns all rows for an exam, for the CSV export.
func (r *Repository) ListResultsByExam(ctx context.Context, examID string) ([]Result, error) {
	return r.queryResults(ctx, `
		SELECT exam_id, student_id, subject, marks, max_marks, grade, updated_at
		FROM results WHERE exam_id = $1
		ORDER BY student_id, subject
	`, examID)
}

func (r *Repository) queryResults(ctx context.Context, query string, args ...any) ([]Result, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Result
	for rows.Next() {
		var res Result
		if err := rows.Scan(&res.ExamID, &res.StudentID, &res.Subject, &res.Marks, &res.MaxMarks, &res.Grade, &res.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// InsertFee writes a fee row.
func (r *Repository) InsertFee(ctx context.Context, f Fee) (Fee, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO fees (id, student_id, amount, status, due_date, screenshot_url, remark)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at
	`, f.ID, f.StudentID, f.Amount, f.Status, f.DueDate, f.ScreenshotURL, f.Remark)
	if err := row.Scan(&f.CreatedAt); err != nil {
		return Fee{}, err
	}
	return f, nil
}

// GetFee returns a fee row.
func (r *Repository) GetFee(ctx context.Context, id string) (Fee, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_id, amount, status, due_date, screenshot_url, remark, created_at
		FROM fees WHERE id = $1
	`, id)
	var f Fee
	err := row.Scan(&f.ID, &f.StudentID, &f.Amount, &f.Status, &f.DueDate, &f.ScreenshotURL, &f.Remark, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Fee{}, apperr.New(apperr.NotFound, "fee %s not found", id)
	}
	return f, err
}

// SetFeeStatus flips a fee from one status to another in a single
// conditional update. Zero rows means the fee is missing or not in the
// expected state, so concurrent reviews cannot both pass the check.
func (r *Repository) SetFeeStatus(ctx context.Context, id string, from, to FeeStatus, remark string) (Fee, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE fees SET status = $2, remark = $3
		WHERE id = $1 AND status = $4
		RETURNING id, student_id, amount, status, due_date, screenshot_url, remark, created_at
	`, id, to, remark, from)
	var f Fee
	err := row.Scan(&f.ID, &f.StudentID, &f.Amount, &f.Status, &f.DueDate, &f.ScreenshotURL, &f.Remark, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		current, gerr := r.GetFee(ctx, id)
		if gerr != nil {
			return Fee{}, gerr
		}
		return Fee{}, apperr.New(apperr.Conflict, "fee is %s, only %s fees can be %s", current.Status, from, to)
	}
	return f, err
}

// ListFeesByStudent returns a student's fee rows, newest first.
func (r *Repository) ListFeesByStudent(ctx context.Context, studentID string) ([]Fee, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, amount, status, due_date, screenshot_url, remark, created_at
		FROM fees WHERE student_id = $1
		ORDER BY created_at DESC
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var fees []Fee
	for rows.Next() {
		var f Fee
		if err := rows.Scan(&f.ID, &f.StudentID, &f.Amount, &f.Status, &f.DueDate, &f.ScreenshotURL, &f.Remark, &f.CreatedAt); err != nil {
			return nil, err
		}
		fees = append(fees, f)
	}
	return fees, rows.Err()
}
