package models

// Question types. Single-choice questions keep exactly one correct choice.
const (
	QuestionTypeSingle   = "single"
	QuestionTypeMultiple = "multiple"
)

// Question belongs to an exam. Text and reason may contain sanitized HTML
// produced by the rich-text editor; image paths are relative to the upload
// folder (uploads/...).
type Question struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	ExamID          uint   `gorm:"not null;index" json:"exam_id"`
	Text            string `gorm:"type:text;not null" json:"text"`
	QType           string `gorm:"size:20;not null" json:"qtype"`
	TenantID        uint   `gorm:"not null;index" json:"tenant_id"`
	ImagePath       string `gorm:"size:300" json:"image_path,omitempty"`
	Reason          string `gorm:"type:text" json:"reason,omitempty"`
	ReasonImagePath string `gorm:"size:300" json:"reason_image_path,omitempty"`

	Choices []Choice `gorm:"foreignKey:QuestionID" json:"choices"`
}

// CorrectChoiceIDs returns the set of correct choice ids.
func (q Question) CorrectChoiceIDs() map[uint]struct{} {
	ids := make(map[uint]struct{})
	for _, c := range q.Choices {
		if c.IsCorrect {
			ids[c.ID] = struct{}{}
		}
	}
	return ids
}

// Choice is one selectable option of a question.
type Choice struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	QuestionID uint   `gorm:"not null;index" json:"question_id"`
	Text       string `gorm:"size:400;not null" json:"text"`
	ImagePath  string `gorm:"size:300" json:"image_path,omitempty"`
	IsCorrect  bool   `gorm:"default:false" json:"-"`
	TenantID   uint   `gorm:"not null;index" json:"tenant_id"`
}
