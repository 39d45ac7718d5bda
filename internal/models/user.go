package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RoleStaff      UserRole = "STAFF"
	RoleAccounting UserRole = "ACCOUNTING"
	RoleStudent    UserRole = "STUDENT"
)

// OfficerRoles are roles allowed to verify or reject payments.
var OfficerRoles = []UserRole{RoleAdmin, RoleStaff, RoleAccounting}

// StaffRoles are roles allowed to advance request status.
var StaffRoles = []UserRole{RoleAdmin, RoleStaff}

// IsOfficer reports whether the role may act on payment verification.
func (r UserRole) IsOfficer() bool {
	return r == RoleAdmin || r == RoleStaff || r == RoleAccounting
}

// IsStaff reports whether the role may drive the request lifecycle.
func (r UserRole) IsStaff() bool {
	return r == RoleAdmin || r == RoleStaff
}

// User represents an application user stored in the users table.
type User struct {
	ID            string     `db:"id" json:"id"`
	StudentNumber string     `db:"student_number" json:"student_number"`
	Email         string     `db:"email" json:"email"`
	PasswordHash  string     `db:"password_hash" json:"-"`
	FirstName     string     `db:"first_name" json:"first_name"`
	LastName      string     `db:"last_name" json:"last_name"`
	ContactNumber string     `db:"contact_number" json:"contact_number"`
	Course        string     `db:"course" json:"course"`
	YearLevel     string     `db:"year_level" json:"year_level"`
	Role          UserRole   `db:"role" json:"role"`
	Active        bool       `db:"active" json:"active"`
	LastLogin     *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name for display and notifications.
func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
