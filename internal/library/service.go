package library

import (
	"context"
	"time"

	"go.uber.org/zap"

	"apsconnect/internal/apperr"
	"apsconnect/internal/metrics"
)

// Store is the persistence surface the service needs. Implementations must
// make Issue and Return atomic with respect to the copy count.
type Store interface {
	InsertBook(ctx context.Context, b Book) (Book, error)
	GetBook(ctx context.Context, id string) (Book, error)
	ListBooks(ctx context.Context) ([]Book, error)
	Issue(ctx context.Context, bookID, studentID string, dueDate time.Time) (Transaction, error)
	Return(ctx context.Context, txID string, returnedAt time.Time) (Transaction, error)
	ListTransactions(ctx context.Context, studentID string) ([]Transaction, error)
}

// Service runs the circulation ledger.
type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a service backed by a store.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// AddBook registers a catalog entry.
func (s *Service) AddBook(ctx context.Context, b Book) (Book, error) {
	if b.Title == "" || b.Author == "" {
		return Book{}, apperr.New(apperr.BadRequest, "title and author are required")
	}
	if b.TotalCopies <= 0 {
		return Book{}, apperr.New(apperr.BadRequest, "total_copies must be positive")
	}
	return s.store.InsertBook(ctx, b)
}

// Books lists the catalog.
func (s *Service) Books(ctx context.Context) ([]Book, error) {
	return s.store.ListBooks(ctx)
}

// Issue loans a copy to a student.
func (s *Service) Issue(ctx context.Context, studentID, bookID string, dueDate time.Time) (Transaction, error) {
	if bookID == "" {
		return Transaction{}, apperr.New(apperr.BadRequest, "library_id is required")
	}
	if dueDate.IsZero() || dueDate.Before(s.now()) {
		return Transaction{}, apperr.New(apperr.BadRequest, "due_date must be in the future")
	}
	loan, err := s.store.Issue(ctx, bookID, studentID, dueDate)
	if err != nil {
		if apperr.IsKind(err, apperr.Conflict) {
			metrics.IssuesTotal.WithLabelValues("conflict").Inc()
		} else {
			metrics.IssuesTotal.WithLabelValues("error").Inc()
		}
		return Transaction{}, err
	}
	metrics.IssuesTotal.WithLabelValues("ok").Inc()
	s.logger.Info("copy issued",
		zap.String("book_id", bookID),
		zap.String("student_id", studentID),
		zap.Time("due", dueDate))
	return loan, nil
}

// Return closes a loan and charges any overdue fine.
func (s *Service) Return(ctx context.Context, txID string) (Transaction, error) {
	if txID == "" {
		return Transaction{}, apperr.New(apperr.BadRequest, "transaction_id is required")
	}
	loan, err := s.store.Return(ctx, txID, s.now().UTC())
	if err != nil {
		if apperr.IsKind(err, apperr.Conflict) {
			metrics.ReturnsTotal.WithLabelValues("conflict").Inc()
		} else {
			metrics.ReturnsTotal.WithLabelValues("error").Inc()
		}
		return Transaction{}, err
	}
	metrics.ReturnsTotal.WithLabelValues("ok").Inc()
	s.logger.Info("copy returned",
		zap.String("transaction_id", txID),
		zap.Int("fine", loan.FineAmount))
	return loan, nil
}

// Loans lists a student's transactions.
func (s *Service) Loans(ctx context.Context, studentID string) ([]Transaction, error) {
	return s.store.ListTransactions(ctx, studentID)
}
