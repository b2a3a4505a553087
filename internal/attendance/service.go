package attendance

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"apsconnect/internal/apperr"
	"apsconnect/internal/identity"
	"apsconnect/internal/metrics"
)

// Store is the persistence surface the service needs.
type Store interface {
	InsertSession(ctx context.Context, s Session) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	UpsertRecord(ctx context.Context, rec Record) (Record, error)
	ListRecords(ctx context.Context, sessionID string) ([]Record, error)
	CountForScope(ctx context.Context, studentID, branch string, semester int) (present, total int, err error)
	SubjectBreakdown(ctx context.Context, studentID string) ([]SubjectSummary, error)
	ListSessions(ctx context.Context, branch string, semester, limit int) ([]Session, error)
}

// Service runs the session and marking engine.
type Service struct {
	store        Store
	qrDefaultTTL time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// NewService creates a service backed by a store.
func NewService(store Store, qrDefaultTTL time.Duration, logger *zap.Logger) *Service {
	if qrDefaultTTL <= 0 {
		qrDefaultTTL = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, qrDefaultTTL: qrDefaultTTL, logger: logger, now: time.Now}
}

// CreateSessionInput carries a session creation request.
type CreateSessionInput struct {
	Branch      string `json:"branch"`
	Semester    int    `json:"semester"`
	Subject     string `json:"subject"`
	SessionDate string `json:"session_date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	UseQR       bool   `json:"use_qr"`
	QRMinutes   int    `json:"qr_minutes"`
}

// CreateSession records a new sitting. With UseQR set it mints an opaque
// token valid for QRMinutes (default from config). Sessions are immutable
// once created.
func (s *Service) CreateSession(ctx context.Context, facultyID string, in CreateSessionInput) (Session, error) {
	if in.Branch == "" || in.Semester <= 0 || in.Subject == "" || in.SessionDate == "" {
		return Session{}, apperr.New(apperr.BadRequest, "branch, semester, subject and session_date are required")
	}
	date, err := time.Parse("2006-01-02", in.SessionDate)
	if err != nil {
		return Session{}, apperr.New(apperr.BadRequest, "session_date must be YYYY-MM-DD")
	}

	sess := Session{
		Branch:      in.Branch,
		Semester:    in.Semester,
		Subject:     in.Subject,
		FacultyID:   facultyID,
		SessionDate: date,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
	}
	if in.UseQR {
		token, err := newToken()
		if err != nil {
			return Session{}, apperr.Wrap(apperr.Internal, err, "generate qr token")
		}
		ttl := s.qrDefaultTTL
		if in.QRMinutes > 0 {
			ttl = time.Duration(in.QRMinutes) * time.Minute
		}
		exp := s.now().Add(ttl)
		sess.QRToken = token
		sess.QRExpiresAt = &exp
	}

	created, err := s.store.InsertSession(ctx, sess)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.Internal, err, "insert session")
	}
	s.logger.Info("session created",
		zap.String("session_id", created.ID),
		zap.String("subject", created.Subject),
		zap.Bool("qr", created.HasQR()))
	return created, nil
}

// newToken mints the shared classroom secret embedded in the QR code. It is
// a static per-session value valid until expiry; there is no per-scan
// rotation.
func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// QRPNG renders the session's scannable code. Conflict when the session has
// no token or the token has expired.
func (s *Service) QRPNG(ctx context.Context, sessionID string) ([]byte, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.HasQR() {
		return nil, apperr.New(apperr.Conflict, "session has no qr token")
	}
	if sess.QRExpiresAt != nil && s.now().After(*sess.QRExpiresAt) {
		return nil, apperr.New(apperr.Conflict, "qr token expired")
	}
	payload := fmt.Sprintf("apsconnect://attend?session=%s&token=%s", sess.ID, sess.QRToken)
	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "encode qr")
	}
	return png, nil
}

// MarkInput carries a single marking request for the calling student.
type MarkInput struct {
	SessionID string     `json:"session_id"`
	Method    Method     `json:"method"`
	QRToken   string     `json:"qr_token"`
	Status    MarkStatus `json:"status"`
}

// Mark records the caller's attendance for a session. QR marking validates
// the token, its expiry, and the caller's branch/semester scope; any
// failure leaves no record. The write is an upsert, so a student scanning
// twice lands on the same row.
func (s *Service) Mark(ctx context.Context, caller identity.User, in MarkInput) (Record, error) {
	if in.SessionID == "" {
		return Record{}, apperr.New(apperr.BadRequest, "session_id is required")
	}
	status := in.Status
	if status == "" {
		status = StatusPresent
	}
	if !status.Valid() {
		return Record{}, apperr.New(apperr.BadRequest, "invalid status %q", status)
	}

	sess, err := s.store.GetSession(ctx, in.SessionID)
	if err != nil {
		metrics.MarksTotal.WithLabelValues(string(in.Method), "not_found").Inc()
		return Record{}, err
	}

	switch in.Method {
	case MethodManual:
		// No further validation: session existence is the only gate.
	case MethodQR:
		if err := s.validateQR(sess, caller, in.QRToken); err != nil {
			metrics.MarksTotal.WithLabelValues("qr", "rejected").Inc()
			return Record{}, err
		}
	default:
		return Record{}, apperr.New(apperr.BadRequest, "method must be manual or qr")
	}

	rec, err := s.store.UpsertRecord(ctx, Record{
		SessionID: sess.ID,
		StudentID: caller.ID,
		Status:    status,
		MarkedBy:  caller.ID,
		MarkedAt:  s.now().UTC(),
	})
	if err != nil {
		metrics.MarksTotal.WithLabelValues(string(in.Method), "error").Inc()
		return Record{}, apperr.Wrap(apperr.Internal, err, "write mark")
	}
	metrics.MarksTotal.WithLabelValues(string(in.Method), "ok").Inc()
	return rec, nil
}

func (s *Service) validateQR(sess Session, caller identity.User, token string) error {
	if !sess.HasQR() || token == "" || token != sess.QRToken {
		return apperr.New(apperr.Forbidden, "invalid qr token")
	}
	if sess.QRExpiresAt == nil || s.now().After(*sess.QRExpiresAt) {
		return apperr.New(apperr.Forbidden, "qr token expired")
	}
	if caller.Branch != sess.Branch || caller.Semester != sess.Semester {
		return apperr.New(apperr.Forbidden, "session outside your branch/semester")
	}
	return nil
}

// BulkEntry is one student's mark in a bulk request.
type BulkEntry struct {
	StudentID string     `json:"student_id"`
	Status    MarkStatus `json:"status"`
}

// BulkMark upserts marks for many students at once. Faculty must match the
// session's scope; admin bypasses the check.
func (s *Service) BulkMark(ctx context.Context, actor identity.User, sessionID string, entries []BulkEntry) (int, error) {
	if sessionID == "" || len(entries) == 0 {
		return 0, apperr.New(apperr.BadRequest, "session_id and marks are required")
	}
	if actor.Status != identity.StatusApproved {
		return 0, apperr.New(apperr.Forbidden, "account %s is not approved", actor.ID)
	}
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if actor.Role == identity.RoleFaculty &&
		(actor.Branch != sess.Branch || actor.Semester != sess.Semester) {
		return 0, apperr.New(apperr.Forbidden, "session outside your branch/semester scope")
	}

	updated := 0
	now := s.now().UTC()
	for _, e := range entries {
		if e.StudentID == "" || !e.Status.Valid() {
			return updated, apperr.New(apperr.BadRequest, "each mark needs student_id and a valid status")
		}
		if _, err := s.store.UpsertRecord(ctx, Record{
			SessionID: sess.ID,
			StudentID: e.StudentID,
			Status:    e.Status,
			MarkedBy:  actor.ID,
			MarkedAt:  now,
		}); err != nil {
			return updated, apperr.Wrap(apperr.Internal, err, "write mark")
		}
		updated++
		metrics.MarksTotal.WithLabelValues("bulk", "ok").Inc()
	}
	return updated, nil
}

// Summary computes a student's attendance percentage over all sessions in
// their scope, with a per-subject breakdown.
func (s *Service) Summary(ctx context.Context, student identity.User) (Summary, error) {
	present, total, err := s.store.CountForScope(ctx, student.ID, student.Branch, student.Semester)
	if err != nil {
		return Summary{}, apperr.Wrap(apperr.Internal, err, "count attendance")
	}
	bySubject, err := s.store.SubjectBreakdown(ctx, student.ID)
	if err != nil {
		return Summary{}, apperr.Wrap(apperr.Internal, err, "subject breakdown")
	}

	sum := Summary{
		StudentID:     student.ID,
		Present:       present,
		TotalSessions: total,
		BySubject:     bySubject,
	}
	if total > 0 {
		sum.Percent = float64(present) / float64(total) * 100
	}
	sum.Bucket = BucketFor(sum.Percent)
	return sum, nil
}

// Sessions lists recent sessions for a scope.
func (s *Service) Sessions(ctx context.Context, branch string, semester, limit int) ([]Session, error) {
	if branch == "" || semester <= 0 {
		return nil, apperr.New(apperr.BadRequest, "branch and semester are required")
	}
	return s.store.ListSessions(ctx, branch, semester, limit)
}
