package models

import "time"

// Roles understood by the authorization layer. Admins pass every role guard.
const (
	RoleAdmin      = "admin"
	RoleInstructor = "instructor"
	RoleStudent    = "student"
)

// User is an account within a tenant. Students may be assigned to an
// instructor; only exams created by that instructor are visible to them.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:80;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"size:256;not null" json:"-"`
	Role         string    `gorm:"size:20;not null" json:"role"`
	FullName     string    `gorm:"size:120" json:"full_name"`
	TenantID     uint      `gorm:"not null;index" json:"tenant_id"`
	Tenant       Tenant    `gorm:"foreignKey:TenantID" json:"-"`
	InstructorID *uint     `json:"instructor_id,omitempty"`
	Timezone     string    `gorm:"size:64" json:"timezone,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleInstructor, RoleStudent:
		return true
	}
	return false
}
