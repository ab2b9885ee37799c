package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Attempt is a student's single timed run through an exam. QuestionOrder
// freezes the shuffled question ids served to the student; grading walks
// that order.
type Attempt struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	ExamID        uint           `gorm:"not null;index" json:"exam_id"`
	StudentID     uint           `gorm:"not null;index" json:"student_id"`
	StartedAt     time.Time      `gorm:"not null" json:"started_at"`
	SubmittedAt   *time.Time     `json:"submitted_at,omitempty"`
	ScorePercent  *float64       `json:"score_percent,omitempty"`
	NumCorrect    *int           `json:"num_correct,omitempty"`
	NumQuestions  int            `json:"num_questions"`
	QuestionOrder datatypes.JSON `gorm:"not null" json:"-"`
	TenantID      uint           `gorm:"not null;index" json:"tenant_id"`

	Exam    Exam `gorm:"foreignKey:ExamID" json:"-"`
	Student User `gorm:"foreignKey:StudentID" json:"-"`
}

// OrderList decodes the frozen question order. A corrupt column yields an
// empty order, which grades to zero.
func (a Attempt) OrderList() []uint {
	var order []uint
	if err := json.Unmarshal(a.QuestionOrder, &order); err != nil {
		return nil
	}
	return order
}

// EndTime is the instant the attempt expires.
func (a Attempt) EndTime() time.Time {
	return a.StartedAt.Add(time.Duration(a.Exam.DurationMinutes) * time.Minute)
}

// Answer records one chosen choice for a question within an attempt. A
// multiple-choice question produces one row per selected choice.
type Answer struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	AttemptID  uint `gorm:"not null;index" json:"attempt_id"`
	QuestionID uint `gorm:"not null;index" json:"question_id"`
	ChoiceID   uint `gorm:"not null" json:"choice_id"`
	TenantID   uint `gorm:"not null" json:"tenant_id"`
}

// ExamProgress tracks which questions a student has already been served
// across attempts of one exam, so limited exams rotate through the pool
// before repeating.
type ExamProgress struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ExamID         uint           `gorm:"not null;index:idx_progress_exam_student" json:"exam_id"`
	StudentID      uint           `gorm:"not null;index:idx_progress_exam_student" json:"student_id"`
	TenantID       uint           `gorm:"not null" json:"tenant_id"`
	AskedQuestions datatypes.JSON `json:"-"`
}

// AskedSet decodes the asked-question ids into a set.
func (p ExamProgress) AskedSet() map[uint]struct{} {
	var ids []uint
	if len(p.AskedQuestions) > 0 {
		_ = json.Unmarshal(p.AskedQuestions, &ids)
	}
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
