package notify

import "time"

// Target addresses a notification: a single user id, or a broadcast matched
// at read time by role/branch/semester. Exactly one addressing mode is set.
type Target struct {
	UserID   string `json:"user_id,omitempty"`
	Role     string `json:"role,omitempty"`
	Branch   string `json:"branch,omitempty"`
	Semester int    `json:"semester,omitempty"`
}

// Broadcast reports whether the target is a role/scope broadcast.
func (t Target) Broadcast() bool { return t.UserID == "" && t.Role != "" }

// Notification is a delivered (or deliverable) message row.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Role      string    `json:"role,omitempty"`
	Branch    string    `json:"branch,omitempty"`
	Semester  int       `json:"semester,omitempty"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
