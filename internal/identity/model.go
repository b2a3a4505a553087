package identity

import "time"

// Role is the closed set of account roles.
type Role string

const (
	RoleStudent Role = "student"
	RoleFaculty Role = "faculty"
	RoleAdmin   Role = "admin"
	RoleAlumni  Role = "alumni"
)

// Valid reports whether the role is a supported value.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleFaculty, RoleAdmin, RoleAlumni:
		return true
	default:
		return false
	}
}

// Status is an account's admission status.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// User is an internal account record linked to an authenticated principal.
type User struct {
	ID           string    `json:"id"`
	AuthID       string    `json:"auth_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Status       Status    `json:"status"`
	Branch       string    `json:"branch,omitempty"`
	Semester     int       `json:"semester,omitempty"`
	Remark       string    `json:"remark,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// CanTransition reports whether actor may change target's admission status.
// Admin may act on anyone; faculty only on students whose branch and
// semester both match the faculty's own scope.
func CanTransition(actor, target User) bool {
	switch actor.Role {
	case RoleAdmin:
		return true
	case RoleFaculty:
		return target.Role == RoleStudent &&
			target.Branch == actor.Branch &&
			target.Semester == actor.Semester
	default:
		return false
	}
}
