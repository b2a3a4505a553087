package ledger

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"go.uber.org/zap"

	"apsconnect/internal/apperr"
)

// Store is the persistence surface the service needs.
type Store interface {
	UpsertResult(ctx context.Context, res Result) (Result, error)
	ListResultsByStudent(ctx context.Context, studentID, examID string) ([]Result, error)
	ListResultsByExam(ctx context.Context, examID string) ([]Result, error)
	InsertFee(ctx context.Context, f Fee) (Fee, error)
	GetFee(ctx context.Context, id string) (Fee, error)
	SetFeeStatus(ctx context.Context, id string, from, to FeeStatus, remark string) (Fee, error)
	ListFeesByStudent(ctx context.Context, studentID string) ([]Fee, error)
}

// Service runs the results and fee ledgers.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a service backed by a store.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// RecordResult upserts a mark row. Marks must satisfy 0 <= marks <= max.
func (s *Service) RecordResult(ctx context.Context, res Result) (Result, error) {
	if res.ExamID == "" || res.StudentID == "" || res.Subject == "" {
		return Result{}, apperr.New(apperr.BadRequest, "exam_id, student_id and subject are required")
	}
	if res.MaxMarks <= 0 || res.Marks < 0 || res.Marks > res.MaxMarks {
		return Result{}, apperr.New(apperr.BadRequest, "marks must be within [0, max_marks]")
	}
	out, err := s.store.UpsertResult(ctx, res)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.Internal, err, "upsert result")
	}
	return out, nil
}

// ResultSummary aggregates a student's marks, optionally for one exam.
func (s *Service) ResultSummary(ctx context.Context, studentID, examID string) (ResultSummary, error) {
	results, err := s.store.ListResultsByStudent(ctx, studentID, examID)
	if err != nil {
		return ResultSummary{}, apperr.Wrap(apperr.Internal, err, "list results")
	}
	sum := ResultSummary{StudentID: studentID, Results: results}
	for _, r := range results {
		sum.TotalMarks += r.Marks
		sum.TotalMax += r.MaxMarks
	}
	if sum.TotalMax > 0 {
		sum.Percent = float64(sum.TotalMarks) / float64(sum.TotalMax) * 100
		sum.Passed = sum.Percent >= PassPercent
	}
	return sum, nil
}

// ExportCSV streams an exam's rows as CSV.
func (s *Service) ExportCSV(ctx context.Context, examID string, w io.Writer) error {
	if examID == "" {
		return apperr.New(apperr.BadRequest, "exam_id is required")
	}
	results, err := s.store.ListResultsByExam(ctx, examID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "list results")
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"exam_id", "student_id", "subject", "marks", "max_marks", "grade"}); err != nil {
		return apperr.Wrap(apperr.Internal, err, "write csv")
	}
	for _, r := range results {
		row := []string{r.ExamID, r.StudentID, r.Subject,
			strconv.Itoa(r.Marks), strconv.Itoa(r.MaxMarks), r.Grade}
		if err := cw.Write(row); err != nil {
			return apperr.Wrap(apperr.Internal, err, "write csv")
		}
	}
	cw.Flush()
	return cw.Error()
}

// CreateFee records an admin-issued payment demand.
func (s *Service) CreateFee(ctx context.Context, studentID string, amount int, dueDate *time.Time) (Fee, error) {
	if studentID == "" || amount <= 0 {
		return Fee{}, apperr.New(apperr.BadRequest, "student_id and a positive amount are required")
	}
	return s.store.InsertFee(ctx, Fee{
		StudentID: studentID,
		Amount:    amount,
		Status:    FeePending,
		DueDate:   dueDate,
	})
}

// PayFee records a student-submitted payment with its screenshot evidence.
func (s *Service) PayFee(ctx context.Context, studentID string, amount int, screenshotURL string, dueDate *time.Time) (Fee, error) {
	if amount <= 0 {
		return Fee{}, apperr.New(apperr.BadRequest, "amount must be positive")
	}
	f, err := s.store.InsertFee(ctx, Fee{
		StudentID:     studentID,
		Amount:        amount,
		Status:        FeePaid,
		DueDate:       dueDate,
		ScreenshotURL: screenshotURL,
	})
	if err != nil {
		return Fee{}, apperr.Wrap(apperr.Internal, err, "insert fee")
	}
	s.logger.Info("fee payment submitted",
		zap.String("fee_id", f.ID),
		zap.String("student_id", studentID),
		zap.Int("amount", amount))
	return f, nil
}

// VerifyFee confirms a paid fee. Only the paid -> verified edge exists.
func (s *Service) VerifyFee(ctx context.Context, id, remark string) (Fee, error) {
	return s.setFeeStatus(ctx, id, FeeVerified, remark)
}

// RejectFee rejects a paid fee with a remark.
func (s *Service) RejectFee(ctx context.Context, id, remark string) (Fee, error) {
	return s.setFeeStatus(ctx, id, FeeRejected, remark)
}

// setFeeStatus takes the paid -> reviewed edge. The store applies it as one
// conditional write, so two concurrent reviews cannot both win.
func (s *Service) setFeeStatus(ctx context.Context, id string, status FeeStatus, remark string) (Fee, error) {
	if id == "" {
		return Fee{}, apperr.New(apperr.BadRequest, "fee id is required")
	}
	return s.store.SetFeeStatus(ctx, id, FeePaid, status, remark)
}

// FeeSummaryFor sums a student's ledger: verified and paid amounts count as
// paid, pending demands as pending.
func (s *Service) FeeSummaryFor(ctx context.Context, studentID string) (FeeSummary, error) {
	fees, err := s.store.ListFeesByStudent(ctx, studentID)
	if err != nil {
		return FeeSummary{}, apperr.Wrap(apperr.Internal, err, "list fees")
	}
	sum := FeeSummary{StudentID: studentID, Fees: fees}
	for _, f := range fees {
		switch f.Status {
		case FeePaid, FeeVerified:
			sum.PaidTotal += f.Amount
		case FeePending:
			sum.PendingTotal += f.Amount
		}
	}
	return sum, nil
}
