package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/examdesk/examdesk-api/internal/models"
)

// ProgressRepository persists the per-student rotation state of an exam.
type ProgressRepository interface {
	Get(ctx context.Context, examID, studentID uint) (models.ExamProgress, error)
	Save(ctx context.Context, progress *models.ExamProgress) error
}

type progressRepository struct {
	db *gorm.DB
}

// NewProgressRepository instantiates a GORM-backed repository.
func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepository{db: db}
}

func (r *progressRepository) Get(ctx context.Context, examID, studentID uint) (models.ExamProgress, error) {
	var progress models.ExamProgress
	err := r.db.WithContext(ctx).
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		First(&progress).Error
	if err != nil {
		return models.ExamProgress{}, err
	}
	return progress, nil
}

func (r *progressRepository) Save(ctx context.Context, progress *models.ExamProgress) error {
	return r.db.WithContext(ctx).Save(progress).Error
}
