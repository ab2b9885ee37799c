package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/examdesk/examdesk-api/internal/dto"
	"github.com/examdesk/examdesk-api/internal/models"
	"github.com/examdesk/examdesk-api/internal/observability"
	"github.com/examdesk/examdesk-api/internal/repository"
	"github.com/examdesk/examdesk-api/internal/timeutil"
)

var (
	// ErrExamNotFound indicates the requested exam does not exist or was deleted.
	ErrExamNotFound = errors.New("exam not found")
	// ErrExamForbidden indicates the actor may not touch this exam.
	ErrExamForbidden = errors.New("exam belongs to another instructor")
	// ErrExamWindowInvalid indicates the end of the window is not after its start.
	ErrExamWindowInvalid = errors.New("exam end must be after its start")
)

// ExamService exposes instructor exam management use cases.
type ExamService interface {
	List(ctx context.Context, actor Actor) ([]dto.ExamResponse, error)
	Get(ctx context.Context, id uint, actor Actor) (dto.ExamResponse, error)
	GetWithQuestions(ctx context.Context, id uint, actor Actor) (dto.ExamResponse, []dto.KeyedQuestionResponse, error)
	Create(ctx context.Context, actor Actor, payload dto.ExamCreateRequest) (dto.ExamResponse, error)
	Update(ctx context.Context, id uint, actor Actor, payload dto.ExamUpdateRequest) (dto.ExamResponse, error)
	Delete(ctx context.Context, id uint, actor Actor, note string) error
	SetClosed(ctx context.Context, id uint, actor Actor, closed bool) (dto.ExamResponse, error)
	Results(ctx context.Context, id uint, actor Actor) (dto.ExamResultsResponse, error)
}

type examService struct {
	exams     repository.ExamRepository
	attempts  repository.AttemptRepository
	audit     repository.AuditRepository
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewExamService builds a new exam service.
func NewExamService(exams repository.ExamRepository, attempts repository.AttemptRepository, audit repository.AuditRepository, validate *validator.Validate, logger zerolog.Logger) ExamService {
	return &examService{
		exams:     exams,
		attempts:  attempts,
		audit:     audit,
		validator: validate,
		logger:    logger.With().Str("component", "exam_service").Logger(),
		now:       time.Now,
	}
}

func (s *examService) List(ctx context.Context, actor Actor) ([]dto.ExamResponse, error) {
	filter := repository.ExamFilter{OrderByStart: "desc"}
	if !actor.IsAdmin() {
		tenantID := actor.TenantID
		filter.TenantID = &tenantID
		createdBy := actor.ID
		filter.CreatedBy = &createdBy
	}

	exams, err := s.exams.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return dto.NewExamResponseSlice(exams, actor.Timezone), nil
}

func (s *examService) Get(ctx context.Context, id uint, actor Actor) (dto.ExamResponse, error) {
	exam, err := s.load(ctx, id, actor)
	if err != nil {
		return dto.ExamResponse{}, err
	}
	return dto.NewExamResponse(exam, actor.Timezone), nil
}

func (s *examService) GetWithQuestions(ctx context.Context, id uint, actor Actor) (dto.ExamResponse, []dto.KeyedQuestionResponse, error) {
	exam, err := s.exams.GetWithQuestions(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExamResponse{}, nil, ErrExamNotFound
		}
		return dto.ExamResponse{}, nil, err
	}
	if err := authorizeExam(exam, actor); err != nil {
		return dto.ExamResponse{}, nil, err
	}

	return dto.NewExamResponse(exam, actor.Timezone), dto.NewKeyedQuestionResponseSlice(exam.Questions), nil
}

func (s *examService) Create(ctx context.Context, actor Actor, payload dto.ExamCreateRequest) (dto.ExamResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ExamResponse{}, err
	}

	tz := strings.TrimSpace(payload.Timezone)
	if tz == "" {
		tz = actor.Timezone
	}
	if tz == "" || !timeutil.Valid(tz) {
		tz = "UTC"
	}

	startAt, endAt, err := parseWindow(payload.StartAt, payload.EndAt, tz)
	if err != nil {
		return dto.ExamResponse{}, err
	}

	exam := models.Exam{
		Title:           strings.TrimSpace(payload.Title),
		Description:     strings.TrimSpace(payload.Description),
		StartAt:         startAt,
		EndAt:           endAt,
		DurationMinutes: payload.DurationMinutes,
		Timezone:        tz,
		QuestionLimit:   payload.QuestionLimit,
		CreatedBy:       actor.ID,
		TenantID:        actor.TenantID,
	}

	if err := s.exams.Create(ctx, &exam); err != nil {
		return dto.ExamResponse{}, err
	}

	s.logger.Info().Uint("exam_id", exam.ID).Uint("instructor_id", actor.ID).Msg("exam created")
	return dto.NewExamResponse(exam, actor.Timezone), nil
}

func (s *examService) Update(ctx context.Context, id uint, actor Actor, payload dto.ExamUpdateRequest) (dto.ExamResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ExamResponse{}, err
	}

	exam, err := s.load(ctx, id, actor)
	if err != nil {
		return dto.ExamResponse{}, err
	}

	if payload.Title != nil {
		exam.Title = strings.TrimSpace(*payload.Title)
	}
	if payload.Description != nil {
		exam.Description = strings.TrimSpace(*payload.Description)
	}
	if payload.Timezone != nil && timeutil.Valid(*payload.Timezone) {
		exam.Timezone = *payload.Timezone
	}
	if payload.DurationMinutes != nil {
		exam.DurationMinutes = *payload.DurationMinutes
	}
	if payload.QuestionLimit != nil {
		if *payload.QuestionLimit <= 0 {
			exam.QuestionLimit = nil
		} else {
			exam.QuestionLimit = payload.QuestionLimit
		}
	}

	if payload.StartAt != nil || payload.EndAt != nil {
		startStr := timeutil.Format(timeutil.ToLocal(exam.StartAt, exam.Timezone))
		endStr := timeutil.Format(timeutil.ToLocal(exam.EndAt, exam.Timezone))
		startStr = strings.Replace(startStr, " ", "T", 1)
		endStr = strings.Replace(endStr, " ", "T", 1)
		if payload.StartAt != nil {
			startStr = *payload.StartAt
		}
		if payload.EndAt != nil {
			endStr = *payload.EndAt
		}
		startAt, endAt, err := parseWindow(startStr, endStr, exam.Timezone)
		if err != nil {
			return dto.ExamResponse{}, err
		}
		exam.StartAt = startAt
		exam.EndAt = endAt
	}

	if err := s.exams.Update(ctx, &exam); err != nil {
		return dto.ExamResponse{}, err
	}

	s.logger.Info().Uint("exam_id", exam.ID).Msg("exam updated")
	return dto.NewExamResponse(exam, actor.Timezone), nil
}

// Delete soft deletes the exam and records who removed it. Attempts and
// questions stay in place so past results remain auditable.
func (s *examService) Delete(ctx context.Context, id uint, actor Actor, note string) error {
	exam, err := s.load(ctx, id, actor)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	exam.DeletedAt = &now
	if err := s.exams.Update(ctx, &exam); err != nil {
		return err
	}

	entry := models.ExamDeletionLog{
		ExamID:       exam.ID,
		ExamTitle:    exam.Title,
		InstructorID: actor.ID,
		TenantID:     exam.TenantID,
		DeletedAt:    now,
		Note:         strings.TrimSpace(note),
	}
	if err := s.audit.CreateDeletionLog(ctx, &entry); err != nil {
		s.logger.Error().Err(err).Uint("exam_id", exam.ID).Msg("failed to record exam deletion")
	}

	s.logger.Info().Uint("exam_id", exam.ID).Uint("instructor_id", actor.ID).Msg("exam deleted")
	return nil
}

func (s *examService) SetClosed(ctx context.Context, id uint, actor Actor, closed bool) (dto.ExamResponse, error) {
	exam, err := s.load(ctx, id, actor)
	if err != nil {
		return dto.ExamResponse{}, err
	}

	exam.IsClosed = closed
	if closed {
		now := s.now().UTC()
		exam.ClosedAt = &now
	} else {
		exam.ClosedAt = nil
	}

	if err := s.exams.Update(ctx, &exam); err != nil {
		return dto.ExamResponse{}, err
	}

	s.logger.Info().Uint("exam_id", exam.ID).Bool("closed", closed).Msg("exam availability changed")
	return dto.NewExamResponse(exam, actor.Timezone), nil
}

func (s *examService) Results(ctx context.Context, id uint, actor Actor) (dto.ExamResultsResponse, error) {
	ctx, span := observability.Tracer().Start(ctx, "exam.results")
	defer span.End()
	span.SetAttributes(attribute.Int("exam.id", int(id)))

	exam, err := s.load(ctx, id, actor)
	if err != nil {
		return dto.ExamResultsResponse{}, err
	}

	attempts, err := s.attempts.ListByExam(ctx, exam.ID)
	if err != nil {
		return dto.ExamResultsResponse{}, err
	}

	rows := make([]dto.ExamResultRow, 0, len(attempts))
	for _, attempt := range attempts {
		row := dto.ExamResultRow{
			AttemptID:    attempt.ID,
			StudentID:    attempt.StudentID,
			Username:     attempt.Student.Username,
			FullName:     attempt.Student.FullName,
			StartedLocal: timeutil.Format(timeutil.ToLocal(attempt.StartedAt, actor.Timezone)),
			ScorePercent: attempt.ScorePercent,
			NumCorrect:   attempt.NumCorrect,
			NumQuestions: attempt.NumQuestions,
		}
		if attempt.SubmittedAt != nil {
			row.SubmittedLocal = timeutil.Format(timeutil.ToLocal(*attempt.SubmittedAt, actor.Timezone))
		}
		rows = append(rows, row)
	}

	return dto.ExamResultsResponse{
		Exam:     dto.NewExamResponse(exam, actor.Timezone),
		Attempts: rows,
	}, nil
}

func (s *examService) load(ctx context.Context, id uint, actor Actor) (models.Exam, error) {
	exam, err := s.exams.GetByID(ctx, id)
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

func authorizeExam(exam models.Exam, actor Actor) error {
	if exam.DeletedAt != nil {
		return ErrExamNotFound
	}
	if actor.IsAdmin() {
		return nil
	}
	if exam.TenantID != actor.TenantID || exam.CreatedBy != actor.ID {
		return ErrExamForbidden
	}
	return nil
}

// parseWindow reads the wall-clock window strings in the given zone and
// returns the UTC instants.
func parseWindow(startStr, endStr, tz string) (time.Time, time.Time, error) {
	start, err := time.Parse(dto.LocalTimeLayout, strings.TrimSpace(startStr))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start time: %w", err)
	}
	end, err := time.Parse(dto.LocalTimeLayout, strings.TrimSpace(endStr))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end time: %w", err)
	}

	startAt := timeutil.LocalToUTC(start, tz)
	endAt := timeutil.LocalToUTC(end, tz)
	if !endAt.After(startAt) {
		return time.Time{}, time.Time{}, ErrExamWindowInvalid
	}
	return startAt, endAt, nil
}
