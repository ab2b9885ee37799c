package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/examdesk/examdesk-api/internal/dto"
	"github.com/examdesk/examdesk-api/internal/models"
	"github.com/examdesk/examdesk-api/internal/repository"
)

var (
	// ErrQuestionNotFound indicates the question does not exist on this exam.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrChoiceInvalid indicates an answer key entry referenced a choice that
	// does not belong to the question.
	ErrChoiceInvalid = errors.New("choice does not belong to question")
	// ErrCorrectChoiceRequired indicates a manually entered question whose
	// choices mark nothing as correct.
	ErrCorrectChoiceRequired = errors.New("at least one correct choice is required")
)

// newMarkupPolicy permits basic text formatting in question content. Inline
// media is stripped; images travel through the dedicated image-path fields.
func newMarkupPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "i", "em", "strong", "u", "s", "sub", "sup", "code", "pre", "p", "br", "blockquote")
	p.AllowLists()
	return p
}

// FileUploader abstracts storing binary data and returning its public location.
type FileUploader interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// QuestionService exposes question authoring use cases.
type QuestionService interface {
	Get(ctx context.Context, examID, questionID uint, actor Actor) (dto.KeyedQuestionResponse, error)
	Create(ctx context.Context, examID uint, actor Actor, payload dto.QuestionCreateRequest) (dto.KeyedQuestionResponse, error)
	Update(ctx context.Context, examID, questionID uint, actor Actor, payload dto.QuestionUpdateRequest) (dto.KeyedQuestionResponse, error)
	Delete(ctx context.Context, examID uint, actor Actor, payload dto.DeleteQuestionsRequest) (int64, error)
	SaveAnswerKey(ctx context.Context, examID uint, actor Actor, payload dto.AnswerKeyRequest) error
	UploadImage(ctx context.Context, actor Actor, file *multipart.FileHeader) (dto.UploadResponse, error)
}

type questionService struct {
	questions repository.QuestionRepository
	exams     repository.ExamRepository
	validator *validator.Validate
	uploader  FileUploader
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewQuestionService builds a new question service.
func NewQuestionService(questions repository.QuestionRepository, exams repository.ExamRepository, validate *validator.Validate, uploader FileUploader, logger zerolog.Logger) QuestionService {
	return &questionService{
		questions: questions,
		exams:     exams,
		validator: validate,
		uploader:  uploader,
		sanitizer: newMarkupPolicy(),
		logger:    logger.With().Str("component", "question_service").Logger(),
	}
}

func (s *questionService) Get(ctx context.Context, examID, questionID uint, actor Actor) (dto.KeyedQuestionResponse, error) {
	if _, err := s.loadExam(ctx, examID, actor); err != nil {
		return dto.KeyedQuestionResponse{}, err
	}

	question, err := s.loadQuestion(ctx, examID, questionID)
	if err != nil {
		return dto.KeyedQuestionResponse{}, err
	}
	return dto.NewKeyedQuestionResponse(question), nil
}

func (s *questionService) Create(ctx context.Context, examID uint, actor Actor, payload dto.QuestionCreateRequest) (dto.KeyedQuestionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.KeyedQuestionResponse{}, err
	}

	exam, err := s.loadExam(ctx, examID, actor)
	if err != nil {
		return dto.KeyedQuestionResponse{}, err
	}

	qtype := normalizeQType(payload.QType)
	choices := s.buildChoices(payload.Choices, qtype, exam.TenantID)
	if !anyCorrect(choices) {
		return dto.KeyedQuestionResponse{}, ErrCorrectChoiceRequired
	}

	question := models.Question{
		ExamID:          exam.ID,
		TenantID:        exam.TenantID,
		Text:            s.sanitizer.Sanitize(strings.TrimSpace(payload.Text)),
		QType:           qtype,
		Reason:          s.sanitizer.Sanitize(strings.TrimSpace(payload.Reason)),
		ImagePath:       strings.TrimSpace(payload.ImagePath),
		ReasonImagePath: strings.TrimSpace(payload.ReasonImagePath),
		Choices:         choices,
	}

	if err := s.questions.Create(ctx, &question); err != nil {
		return dto.KeyedQuestionResponse{}, err
	}

	s.logger.Info().Uint("exam_id", exam.ID).Uint("question_id", question.ID).Msg("question created")
	return dto.NewKeyedQuestionResponse(question), nil
}

func (s *questionService) Update(ctx context.Context, examID, questionID uint, actor Actor, payload dto.QuestionUpdateRequest) (dto.KeyedQuestionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.KeyedQuestionResponse{}, err
	}

	if _, err := s.loadExam(ctx, examID, actor); err != nil {
		return dto.KeyedQuestionResponse{}, err
	}

	question, err := s.loadQuestion(ctx, examID, questionID)
	if err != nil {
		return dto.KeyedQuestionResponse{}, err
	}

	question.Text = s.sanitizer.Sanitize(strings.TrimSpace(payload.Text))
	question.QType = normalizeQType(payload.QType)
	question.Reason = s.sanitizer.Sanitize(strings.TrimSpace(payload.Reason))
	if payload.ImagePath != nil {
		question.ImagePath = strings.TrimSpace(*payload.ImagePath)
	}
	if payload.ReasonImagePath != nil {
		question.ReasonImagePath = strings.TrimSpace(*payload.ReasonImagePath)
	}

	// Replacing choices invalidates any stored answers for the question.
	choices := s.buildChoices(payload.Choices, question.QType, question.TenantID)
	if !anyCorrect(choices) {
		return dto.KeyedQuestionResponse{}, ErrCorrectChoiceRequired
	}
	if err := s.questions.ReplaceChoices(ctx, &question, choices); err != nil {
		return dto.KeyedQuestionResponse{}, err
	}

	s.logger.Info().Uint("question_id", question.ID).Msg("question updated")
	return dto.NewKeyedQuestionResponse(question), nil
}

func (s *questionService) Delete(ctx context.Context, examID uint, actor Actor, payload dto.DeleteQuestionsRequest) (int64, error) {
	if err := s.validator.Struct(payload); err != nil {
		return 0, err
	}

	if _, err := s.loadExam(ctx, examID, actor); err != nil {
		return 0, err
	}

	deleted, err := s.questions.Delete(ctx, examID, payload.QuestionIDs)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrQuestionNotFound
		}
		return 0, err
	}

	s.logger.Info().Uint("exam_id", examID).Int64("deleted", deleted).Msg("questions deleted")
	return deleted, nil
}

func (s *questionService) SaveAnswerKey(ctx context.Context, examID uint, actor Actor, payload dto.AnswerKeyRequest) error {
	if err := s.validator.Struct(payload); err != nil {
		return err
	}

	if _, err := s.loadExam(ctx, examID, actor); err != nil {
		return err
	}

	for _, entry := range payload.Entries {
		question, err := s.loadQuestion(ctx, examID, entry.QuestionID)
		if err != nil {
			return err
		}

		valid := make(map[uint]struct{}, len(question.Choices))
		for _, c := range question.Choices {
			valid[c.ID] = struct{}{}
		}
		for _, id := range entry.ChoiceIDs {
			if _, ok := valid[id]; !ok {
				return ErrChoiceInvalid
			}
		}

		ids := entry.ChoiceIDs
		if question.QType == models.QuestionTypeSingle && len(ids) > 1 {
			ids = ids[:1]
		}
		if err := s.questions.SetCorrectChoices(ctx, question.ID, ids); err != nil {
			return err
		}
	}

	s.logger.Info().Uint("exam_id", examID).Int("entries", len(payload.Entries)).Msg("answer key saved")
	return nil
}

func (s *questionService) UploadImage(ctx context.Context, actor Actor, file *multipart.FileHeader) (dto.UploadResponse, error) {
	src, err := file.Open()
	if err != nil {
		return dto.UploadResponse{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()

	location, err := s.uploader.Upload(ctx, file.Filename, src)
	if err != nil {
		return dto.UploadResponse{}, fmt.Errorf("failed to upload file: %w", err)
	}

	s.logger.Info().Uint("user_id", actor.ID).Str("location", location).Msg("question image uploaded")
	return dto.UploadResponse{Location: location}, nil
}

func (s *questionService) loadExam(ctx context.Context, examID uint, actor Actor) (models.Exam, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Exam{}, ErrExamNotFound
		}
		return models.Exam{}, err
	}
	if err := authorizeExam(exam, actor); err != nil {
		return models.Exam{}, err
	}
	return exam, nil
}

func (s *questionService) loadQuestion(ctx context.Context, examID, questionID uint) (models.Question, error) {
	question, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Question{}, ErrQuestionNotFound
		}
		return models.Question{}, err
	}
	if question.ExamID != examID {
		return models.Question{}, ErrQuestionNotFound
	}
	return question, nil
}

func (s *questionService) buildChoices(payloads []dto.ChoicePayload, qtype string, tenantID uint) []models.Choice {
	choices := make([]models.Choice, 0, len(payloads))
	correctSeen := false
	for _, p := range payloads {
		correct := p.Correct
		// Single-answer questions keep only the first marked choice.
		if qtype == models.QuestionTypeSingle && correct {
			if correctSeen {
				correct = false
			}
			correctSeen = true
		}
		choices = append(choices, models.Choice{
			Text:      s.sanitizer.Sanitize(strings.TrimSpace(p.Text)),
			ImagePath: strings.TrimSpace(p.ImagePath),
			IsCorrect: correct,
			TenantID:  tenantID,
		})
	}
	return choices
}

func anyCorrect(choices []models.Choice) bool {
	for _, c := range choices {
		if c.IsCorrect {
			return true
		}
	}
	return false
}

func normalizeQType(qtype string) string {
	if strings.ToLower(strings.TrimSpace(qtype)) == models.QuestionTypeMultiple {
		return models.QuestionTypeMultiple
	}
	return models.QuestionTypeSingle
}
