package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/examdesk/examdesk-api/internal/models"
)

// AttemptRepository defines persistence operations for attempts and their
// answers.
type AttemptRepository interface {
	GetByID(ctx context.Context, id uint) (models.Attempt, error)
	FindOpen(ctx context.Context, examID, studentID uint) (models.Attempt, error)
	ListByStudent(ctx context.Context, studentID uint) ([]models.Attempt, error)
	ListByExam(ctx context.Context, examID uint) ([]models.Attempt, error)
	ListRecent(ctx context.Context, limit int) ([]models.Attempt, error)
	Create(ctx context.Context, attempt *models.Attempt) error
	Update(ctx context.Context, attempt *models.Attempt) error
	Count(ctx context.Context) (int64, error)

	ListAnswers(ctx context.Context, attemptID uint) ([]models.Answer, error)
	ReplaceAnswers(ctx context.Context, attemptID, questionID uint, answers []models.Answer) error
}

type attemptRepository struct {
	db *gorm.DB
}

// NewAttemptRepository instantiates a GORM-backed repository.
func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

func (r *attemptRepository) GetByID(ctx context.Context, id uint) (models.Attempt, error) {
	var attempt models.Attempt
	if err := r.db.WithContext(ctx).Preload("Exam").First(&attempt, id).Error; err != nil {
		return models.Attempt{}, err
	}
	return attempt, nil
}

func (r *attemptRepository) FindOpen(ctx context.Context, examID, studentID uint) (models.Attempt, error) {
	var attempt models.Attempt
	err := r.db.WithContext(ctx).Preload("Exam").
		Where("exam_id = ? AND student_id = ? AND submitted_at IS NULL", examID, studentID).
		First(&attempt).Error
	if err != nil {
		return models.Attempt{}, err
	}
	return attempt, nil
}

func (r *attemptRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.Attempt, error) {
	var attempts []models.Attempt
	err := r.db.WithContext(ctx).Where("student_id = ?", studentID).Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

func (r *attemptRepository) ListByExam(ctx context.Context, examID uint) ([]models.Attempt, error) {
	var attempts []models.Attempt
	err := r.db.WithContext(ctx).Preload("Student").
		Where("exam_id = ?", examID).
		Order("started_at DESC").
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

func (r *attemptRepository) ListRecent(ctx context.Context, limit int) ([]models.Attempt, error) {
	var attempts []models.Attempt
	err := r.db.WithContext(ctx).Preload("Student").Preload("Exam").
		Order("submitted_at DESC").
		Limit(limit).
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

func (r *attemptRepository) Create(ctx context.Context, attempt *models.Attempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *attemptRepository) Update(ctx context.Context, attempt *models.Attempt) error {
	return r.db.WithContext(ctx).Omit("Exam", "Student").Save(attempt).Error
}

func (r *attemptRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Attempt{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *attemptRepository) ListAnswers(ctx context.Context, attemptID uint) ([]models.Answer, error) {
	var answers []models.Answer
	err := r.db.WithContext(ctx).Where("attempt_id = ?", attemptID).Find(&answers).Error
	if err != nil {
		return nil, err
	}
	return answers, nil
}

func (r *attemptRepository) ReplaceAnswers(ctx context.Context, attemptID, questionID uint, answers []models.Answer) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("attempt_id = ? AND question_id = ?", attemptID, questionID).
			Delete(&models.Answer{}).Error
		if err != nil {
			return err
		}
		if len(answers) == 0 {
			return nil
		}
		return tx.Create(&answers).Error
	})
}
