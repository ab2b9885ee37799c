package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/examdesk/examdesk-api/internal/models"
)

// QuestionRepository defines persistence operations for questions and their
// choices. Mutations that touch choices also purge answers referencing them,
// since stored answers are meaningless once the choice set changes.
type QuestionRepository interface {
	GetByID(ctx context.Context, id uint) (models.Question, error)
	GetMany(ctx context.Context, ids []uint) ([]models.Question, error)
	Create(ctx context.Context, question *models.Question) error
	CreateBatch(ctx context.Context, questions []*models.Question) error
	Update(ctx context.Context, question *models.Question) error
	ReplaceChoices(ctx context.Context, question *models.Question, choices []models.Choice) error
	Delete(ctx context.Context, examID uint, ids []uint) (int64, error)
	SetCorrectChoices(ctx context.Context, questionID uint, correctIDs []uint) error
}

type questionRepository struct {
	db *gorm.DB
}

// NewQuestionRepository instantiates a GORM-backed repository.
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) GetByID(ctx context.Context, id uint) (models.Question, error) {
	var question models.Question
	err := r.db.WithContext(ctx).
		Preload("Choices", func(db *gorm.DB) *gorm.DB { return db.Order("choices.id ASC") }).
		First(&question, id).Error
	if err != nil {
		return models.Question{}, err
	}
	return question, nil
}

func (r *questionRepository) GetMany(ctx context.Context, ids []uint) ([]models.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var questions []models.Question
	err := r.db.WithContext(ctx).
		Preload("Choices", func(db *gorm.DB) *gorm.DB { return db.Order("choices.id ASC") }).
		Where("id IN ?", ids).
		Find(&questions).Error
	if err != nil {
		return nil, err
	}
	return questions, nil
}

func (r *questionRepository) Create(ctx context.Context, question *models.Question) error {
	return r.db.WithContext(ctx).Create(question).Error
}

func (r *questionRepository) CreateBatch(ctx context.Context, questions []*models.Question) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, question := range questions {
			if err := tx.Create(question).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *questionRepository) Update(ctx context.Context, question *models.Question) error {
	return r.db.WithContext(ctx).Omit("Choices").Save(question).Error
}

func (r *questionRepository) ReplaceChoices(ctx context.Context, question *models.Question, choices []models.Choice) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", question.ID).Delete(&models.Answer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("question_id = ?", question.ID).Delete(&models.Choice{}).Error; err != nil {
			return err
		}
		for i := range choices {
			choices[i].ID = 0
			choices[i].QuestionID = question.ID
			choices[i].TenantID = question.TenantID
		}
		if err := tx.Create(&choices).Error; err != nil {
			return err
		}
		question.Choices = choices
		return tx.Omit("Choices").Save(question).Error
	})
}

func (r *questionRepository) Delete(ctx context.Context, examID uint, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var questions []models.Question
		if err := tx.Where("exam_id = ? AND id IN ?", examID, ids).Find(&questions).Error; err != nil {
			return err
		}
		if len(questions) == 0 {
			return gorm.ErrRecordNotFound
		}
		for _, q := range questions {
			if err := tx.Where("question_id = ?", q.ID).Delete(&models.Answer{}).Error; err != nil {
				return err
			}
			if err := tx.Where("question_id = ?", q.ID).Delete(&models.Choice{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&models.Question{}, q.ID).Error; err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

func (r *questionRepository) SetCorrectChoices(ctx context.Context, questionID uint, correctIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Choice{}).Where("question_id = ?", questionID).
			Update("is_correct", false).Error; err != nil {
			return err
		}
		if len(correctIDs) == 0 {
			return nil
		}
		return tx.Model(&models.Choice{}).
			Where("question_id = ? AND id IN ?", questionID, correctIDs).
			Update("is_correct", true).Error
	})
}
