package attendance

import "time"

// MarkStatus is a per-student attendance outcome.
type MarkStatus string

const (
	StatusPresent MarkStatus = "present"
	StatusAbsent  MarkStatus = "absent"
	StatusLate    MarkStatus = "late"
)

// Valid reports whether the status is a supported value.
func (s MarkStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate:
		return true
	default:
		return false
	}
}

// Method is how a mark was recorded.
type Method string

const (
	MethodManual Method = "manual"
	MethodQR     Method = "qr"
)

// Attendance percentage thresholds used for reporting buckets. These are a
// presentation convention, never enforced on writes.
const (
	ThresholdCompliant = 75.0
	ThresholdAtRisk    = 50.0
)

// Session is a single class sitting. Immutable once created.
type Session struct {
	ID          string     `json:"id"`
	Branch      string     `json:"branch"`
	Semester    int        `json:"semester"`
	Subject     string     `json:"subject"`
	FacultyID   string     `json:"faculty_id"`
	SessionDate time.Time  `json:"session_date"`
	StartTime   string     `json:"start_time,omitempty"`
	EndTime     string     `json:"end_time,omitempty"`
	QRToken     string     `json:"-"`
	QRExpiresAt *time.Time `json:"qr_expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// HasQR reports whether the session was created with a scannable token.
func (s Session) HasQR() bool { return s.QRToken != "" }

// Record is one student's mark for one session. At most one row exists per
// (session, student); marking upserts, so retries are idempotent.
type Record struct {
	SessionID string     `json:"session_id"`
	StudentID string     `json:"student_id"`
	Status    MarkStatus `json:"status"`
	MarkedBy  string     `json:"marked_by"`
	MarkedAt  time.Time  `json:"marked_at"`
}

// SubjectSummary buckets a student's marks by subject.
type SubjectSummary struct {
	Subject string  `json:"subject"`
	Present int     `json:"present"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// Summary is a student's aggregate attendance view.
type Summary struct {
	StudentID     string           `json:"student_id"`
	Present       int              `json:"present"`
	TotalSessions int              `json:"total_sessions"`
	Percent       float64          `json:"percent"`
	Bucket        string           `json:"bucket"`
	BySubject     []SubjectSummary `json:"by_subject"`
}

// BucketFor labels a percentage per the reporting convention.
func BucketFor(percent float64) string {
	switch {
	case percent >= ThresholdCompliant:
		return "compliant"
	case percent >= ThresholdAtRisk:
		return "at_risk"
	default:
		return "shortage"
	}
}
