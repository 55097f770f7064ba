package models

import (
	"strings"
	"time"
)

// Account is the read-only snapshot of a provisioned user, resolved at login time.
// A nil RoleID and a blank RoleName both mean the account carries no role.
type Account struct {
	AccountID int64  `json:"account_id" db:"account_id"`
	UserID    int64  `json:"user_id" db:"user_id"`
	Email     string `json:"email" db:"email"`
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	RoleID    *int   `json:"role_id,omitempty" db:"role_id"`
	RoleName  string `json:"role_name,omitempty" db:"role_name"`
}

// FullName joins first and last name with a single space
func (a *Account) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(a.FirstName) + " " + strings.TrimSpace(a.LastName))
}

// HasRole reports whether the account carries any role reference
func (a *Account) HasRole() bool {
	return a.RoleID != nil || strings.TrimSpace(a.RoleName) != ""
}

// User is a person known to the classroom application
type User struct {
	ID        int64     `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Role is a named permission level (e.g. Manager, Teacher, Student)
type Role struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Well-known role names seeded into the roles table
const (
	RoleAdministrator = "Administrator"
	RoleManager       = "Manager"
	RoleTeacher       = "Teacher"
	RoleStudent       = "Student"
)
