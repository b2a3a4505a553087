package library

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"apsconnect/internal/apperr"
)

// Repository persists the circulation ledger in Postgres. Issue and return
// each run in a single transaction with conditional updates, so the copy
// count can never leave [0, total_copies] under concurrent requests.
type Repository struct {
	db         *sql.DB
	finePerDay int
}

// NewRepository creates a repo charging finePerDay for overdue returns.
func NewRepository(db *sql.DB, finePerDay int) *Repository {
	return &Repository{db: db, finePerDay: finePerDay}
}

// InsertBook adds a catalog entry with all copies available.
func (r *Repository) InsertBook(ctx context.Context, b Book) (Book, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO library_books (id, title, author, isbn, total_copies, available_copies)
		VALUES ($1,$2,$3,$4,$5,$5)
		RETURNING available_copies, created_at
	`, b.ID, b.Title, b.Author, b.ISBN, b.TotalCopies)
	if err := row.Scan(&b.AvailableCopies, &b.CreatedAt); err != nil {
		return Book{}, err
	}
	return b, nil
}

// GetBook returns a catalog entry.
func (r *Repository) GetBook(ctx context.Context, id string) (Book, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, author, isbn, total_copies, available_copies, created_at
		FROM library_books WHERE id = $1
	`, id)
	var b Book
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.TotalCopies, &b.AvailableCopies, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Book{}, apperr.New(apperr.NotFound, "book %s not found", id)
	}
	return b, err
}

// ListBooks returns the catalog ordered by title.
func (r *Repository) ListBooks(ctx context.Context) ([]Book, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, author, isbn, total_copies, available_copies, created_at
		FROM library_books ORDER BY title
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var books []Book
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.TotalCopies, &b.AvailableCopies, &b.CreatedAt); err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// Issue atomically claims a copy and records the loan. The decrement is
// conditional on available_copies > 0; zero rows affected means either no
// copies (Conflict) or no such book (NotFound), never a negative count.
func (r *Repository) Issue(ctx context.Context, bookID, studentID string, dueDate time.Time) (Transaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE library_books
		SET available_copies = available_copies - 1
		WHERE id = $1 AND available_copies > 0
	`, bookID)
	if err != nil {
		return Transaction{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM library_books WHERE id = $1)`, bookID).Scan(&exists); err != nil {
			return Transaction{}, err
		}
		if !exists {
			return Transaction{}, apperr.New(apperr.NotFound, "book %s not found", bookID)
		}
		return Transaction{}, apperr.New(apperr.Conflict, "no copies available")
	}

	loan := Transaction{
		ID:        uuid.NewString(),
		BookID:    bookID,
		StudentID: studentID,
		DueDate:   dueDate,
		Status:    StatusIssued,
	}
	row := tx.QueryRowContext(ctx, `
		INSERT INTO library_transactions (id, book_id, student_id, due_date, status)
		VALUES ($1,$2,$3,$4,'issued')
		RETURNING issued_at
	`, loan.ID, loan.BookID, loan.StudentID, loan.DueDate)
	if err := row.Scan(&loan.IssuedAt); err != nil {
		return Transaction{}, err
	}
	if err := tx.Commit(); err != nil {
		return Transaction{}, err
	}
	return loan, nil
}

// Return flips an issued loan to returned, charges the overdue fine, and
// releases the copy. Flipping is conditional on status = 'issued', so a
// double return yields Conflict and never double-increments.
func (r *Repository) Return(ctx context.Context, txID string, returnedAt time.Time) (Transaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback()

	var loan Transaction
	var status LoanStatus
	err = tx.QueryRowContext(ctx, `
		SELECT id, book_id, student_id, issued_at, due_date, status
		FROM library_transactions WHERE id = $1
		FOR UPDATE
	`, txID).Scan(&loan.ID, &loan.BookID, &loan.StudentID, &loan.IssuedAt, &loan.DueDate, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return Transaction{}, apperr.New(apperr.NotFound, "transaction %s not found", txID)
	}
	if err != nil {
		return Transaction{}, err
	}
	if status == StatusReturned {
		return Transaction{}, apperr.New(apperr.Conflict, "transaction already returned")
	}

	fine := OverdueFine(loan.DueDate, returnedAt, r.finePerDay)
	if _, err := tx.ExecContext(ctx, `
		UPDATE library_transactions
		SET status = 'returned', fine_amount = $2, returned_at = $3
		WHERE id = $1
	`, txID, fine, returnedAt); err != nil {
		return Transaction{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE library_books
		SET available_copies = available_copies + 1
		WHERE id = $1 AND available_copies < total_copies
	`, loan.BookID); err != nil {
		return Transaction{}, err
	}
	if err := tx.Commit(); err != nil {
		return Transaction{}, err
	}

	loan.Status = StatusReturned
	loan.FineAmount = fine
	loan.ReturnedAt = &returnedAt
	return loan, nil
}

// ListTransactions returns a student's loans, newest first.
func (r *Repository) ListTransactions(ctx context.Context, studentID string) ([]Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, book_id, student_id, issued_at, due_date, returned_at, status, fine_amount
		FROM library_transactions
		WHERE student_id = $1
		ORDER BY issued_at DESC
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var loans []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.BookID, &t.StudentID, &t.IssuedAt, &t.DueDate, &t.ReturnedAt, &t.Status, &t.FineAmount); err != nil {
			return nil, err
		}
		loans = append(loans, t)
	}
	return loans, rows.Err()
}
