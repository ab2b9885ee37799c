package models

import "time"

// ExamDeletionLog preserves a record of soft-deleted exams for admin review.
type ExamDeletionLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ExamID       uint      `gorm:"not null" json:"exam_id"`
	ExamTitle    string    `gorm:"size:200" json:"exam_title"`
	InstructorID uint      `gorm:"not null" json:"instructor_id"`
	TenantID     uint      `gorm:"not null" json:"tenant_id"`
	DeletedAt    time.Time `gorm:"not null" json:"deleted_at"`
	Note         string    `gorm:"type:text" json:"note,omitempty"`
}

// AccessLog is one recorded HTTP request. Written best-effort by middleware;
// user and tenant are nil for anonymous traffic.
type AccessLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	IP        string    `gorm:"size:64" json:"ip"`
	Path      string    `gorm:"size:400" json:"path"`
	Method    string    `gorm:"size:10" json:"method"`
	UserAgent string    `gorm:"size:400" json:"user_agent"`
	UserID    *uint     `json:"user_id,omitempty"`
	TenantID  *uint     `json:"tenant_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// All returns every model for migration.
func All() []any {
	return []any{
		&Tenant{}, &User{}, &Exam{}, &Question{}, &Choice{},
		&Attempt{}, &Answer{}, &ExamProgress{}, &ExamDeletionLog{}, &AccessLog{},
	}
}
