package ledger

import "time"

// Result is a mark row keyed uniquely by (exam, student, subject).
type Result struct {
	ExamID    string    `json:"exam_id"`
	StudentID string    `json:"student_id"`
	Subject   string    `json:"subject"`
	Marks     int       `json:"marks"`
	MaxMarks  int       `json:"max_marks"`
	Grade     string    `json:"grade"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PassPercent is the derived pass/fail cutoff used in summaries.
const PassPercent = 40.0

// ResultSummary aggregates a student's marks across an exam or overall.
type ResultSummary struct {
	StudentID  string   `json:"student_id"`
	TotalMarks int      `json:"total_marks"`
	TotalMax   int      `json:"total_max"`
	Percent    float64  `json:"percent"`
	Passed     bool     `json:"passed"`
	Results    []Result `json:"results"`
}

// FeeStatus is a fee row's lifecycle state.
type FeeStatus string

const (
	FeePending  FeeStatus = "pending"
	FeePaid     FeeStatus = "paid"
	FeeVerified FeeStatus = "verified"
	FeeRejected FeeStatus = "rejected"
)

// Fee is a payment demand or a student-submitted payment record.
type Fee struct {
	ID            string     `json:"id"`
	StudentID     string     `json:"student_id"`
	Amount        int        `json:"amount"`
	Status        FeeStatus  `json:"status"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	ScreenshotURL string     `json:"screenshot_url,omitempty"`
	Remark        string     `json:"remark,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Verified mirrors the legacy boolean flag some clients still read.
func (f Fee) Verified() bool { return f.Status == FeeVerified }

// FeeSummary sums a student's ledger by status.
type FeeSummary struct {
	StudentID    string `json:"student_id"`
	PaidTotal    int    `json:"paid_total"`
	PendingTotal int    `json:"pending_total"`
	Fees         []Fee  `json:"fees"`
}
