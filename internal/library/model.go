package library

import "time"

// LoanStatus is a transaction's lifecycle state.
type LoanStatus string

const (
	StatusIssued   LoanStatus = "issued"
	StatusReturned LoanStatus = "returned"
)

// Book is a catalog entry with copy counts. availableCopies stays within
// [0, totalCopies] under any interleaving of issue/return.
type Book struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	ISBN            string    `json:"isbn"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	CreatedAt       time.Time `json:"created_at"`
}

// Transaction is one copy's loan record.
type Transaction struct {
	ID         string     `json:"id"`
	BookID     string     `json:"book_id"`
	StudentID  string     `json:"student_id"`
	IssuedAt   time.Time  `json:"issued_at"`
	DueDate    time.Time  `json:"due_date"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
	Status     LoanStatus `json:"status"`
	FineAmount int        `json:"fine_amount"`
}

// OverdueFine charges perDay for each whole day past the due date, rounding
// a partial day up.
func OverdueFine(dueDate, returnedAt time.Time, perDay int) int {
	if !returnedAt.After(dueDate) {
		return 0
	}
	overdue := returnedAt.Sub(dueDate)
	days := int(overdue / (24 * time.Hour))
	if overdue%(24*time.Hour) > 0 {
		days++
	}
	return days * perDay
}
