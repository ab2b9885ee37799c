package models

import "time"

// Exam is a timed assessment scoped to a tenant and owned by its creator.
// Start/end are stored in UTC; Timezone records the wall-clock zone the
// instructor authored the window in.
type Exam struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Title           string     `gorm:"size:200;not null" json:"title"`
	Description     string     `gorm:"type:text" json:"description"`
	StartAt         time.Time  `gorm:"not null" json:"start_at"`
	EndAt           time.Time  `gorm:"not null" json:"end_at"`
	DurationMinutes int        `gorm:"not null" json:"duration_minutes"`
	CreatedBy       uint       `gorm:"not null;index" json:"created_by"`
	TenantID        uint       `gorm:"not null;index" json:"tenant_id"`
	Timezone        string     `gorm:"size:64;not null;default:UTC" json:"timezone"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
	QuestionLimit   *int       `json:"question_limit,omitempty"`
	IsClosed        bool       `gorm:"default:false" json:"is_closed"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	Questions []Question `gorm:"foreignKey:ExamID" json:"-"`
}

// IsActive reports whether the exam window is open at the given instant.
func (e Exam) IsActive(now time.Time) bool {
	if e.IsClosed {
		return false
	}
	return !now.Before(e.StartAt) && !now.After(e.EndAt)
}

// HasAnswerKey reports whether every question carries at least one correct
// choice. Exams without a complete key are not startable by students.
// Questions and their choices must be loaded.
func (e Exam) HasAnswerKey() bool {
	if len(e.Questions) == 0 {
		return false
	}
	for _, q := range e.Questions {
		keyed := false
		for _, c := range q.Choices {
			if c.IsCorrect {
				keyed = true
				break
			}
		}
		if !keyed {
			return false
		}
	}
	return true
}
