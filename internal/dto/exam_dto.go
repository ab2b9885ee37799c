package dto

import (
	"time"

	"github.com/examdesk/examdesk-api/internal/models"
	"github.com/examdesk/examdesk-api/internal/timeutil"
)

// Exam windows are entered as wall-clock values in the exam's timezone,
// matching the datetime-local form inputs the web client renders.
const LocalTimeLayout = "2006-01-02T15:04"

// ExamCreateRequest describes the payload for creating an exam.
type ExamCreateRequest struct {
	Title           string `json:"title" form:"title" validate:"required,min=1,max=200"`
	Description     string `json:"description" form:"description"`
	StartAt         string `json:"start_at" form:"start_at" validate:"required"`
	EndAt           string `json:"end_at" form:"end_at" validate:"required"`
	DurationMinutes int    `json:"duration_minutes" form:"duration_minutes" validate:"required,min=1"`
	Timezone        string `json:"timezone" form:"timezone"`
	QuestionLimit   *int   `json:"question_limit" form:"question_limit" validate:"omitempty,min=1"`
}

// ExamUpdateRequest describes a partial exam update.
type ExamUpdateRequest struct {
	Title           *string `json:"title" form:"title" validate:"omitempty,min=1,max=200"`
	Description     *string `json:"description" form:"description"`
	StartAt         *string `json:"start_at" form:"start_at"`
	EndAt           *string `json:"end_at" form:"end_at"`
	DurationMinutes *int    `json:"duration_minutes" form:"duration_minutes" validate:"omitempty,min=1"`
	Timezone        *string `json:"timezone" form:"timezone"`
	// A zero limit clears the cap so the whole pool is served.
	QuestionLimit *int `json:"question_limit" form:"question_limit"`
}

// ExamResponse is the serialized exam representation. Local fields render
// the UTC window in the viewer's timezone.
type ExamResponse struct {
	ID              uint       `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	StartAt         time.Time  `json:"start_at"`
	EndAt           time.Time  `json:"end_at"`
	StartLocal      string     `json:"start_local,omitempty"`
	EndLocal        string     `json:"end_local,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	Timezone        string     `json:"timezone"`
	QuestionLimit   *int       `json:"question_limit,omitempty"`
	IsClosed        bool       `json:"is_closed"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
	CreatedBy       uint       `json:"created_by"`
	TenantID        uint       `json:"tenant_id"`
	QuestionCount   int        `json:"question_count,omitempty"`
	HasAnswerKey    bool       `json:"has_answer_key"`
}

// NewExamResponse converts a model into a DTO, localizing the window into
// viewerTZ when provided.
func NewExamResponse(model models.Exam, viewerTZ string) ExamResponse {
	resp := ExamResponse{
		ID:              model.ID,
		Title:           model.Title,
		Description:     model.Description,
		StartAt:         model.StartAt,
		EndAt:           model.EndAt,
		DurationMinutes: model.DurationMinutes,
		Timezone:        model.Timezone,
		QuestionLimit:   model.QuestionLimit,
		IsClosed:        model.IsClosed,
		ClosedAt:        model.ClosedAt,
		CreatedBy:       model.CreatedBy,
		TenantID:        model.TenantID,
		QuestionCount:   len(model.Questions),
		HasAnswerKey:    model.HasAnswerKey(),
	}
	if viewerTZ != "" {
		resp.StartLocal = timeutil.Format(timeutil.ToLocal(model.StartAt, viewerTZ))
		resp.EndLocal = timeutil.Format(timeutil.ToLocal(model.EndAt, viewerTZ))
	}
	return resp
}

// NewExamResponseSlice converts a slice of models into DTOs.
func NewExamResponseSlice(exams []models.Exam, viewerTZ string) []ExamResponse {
	responses := make([]ExamResponse, 0, len(exams))
	for _, exam := range exams {
		responses = append(responses, NewExamResponse(exam, viewerTZ))
	}
	return responses
}

// Student dashboard exam statuses.
const (
	ExamStatusNotReady  = "not_ready"
	ExamStatusUpcoming  = "upcoming"
	ExamStatusClosed    = "closed"
	ExamStatusActive    = "active"
	ExamStatusCompleted = "completed_active"
)

// StudentExamView is one dashboard row: the exam plus the student's standing.
type StudentExamView struct {
	Exam             ExamResponse     `json:"exam"`
	Status           string           `json:"status"`
	CanStart         bool             `json:"can_start"`
	CountdownSeconds int64            `json:"countdown_seconds"`
	Attempt          *AttemptResponse `json:"attempt,omitempty"`
}

// ExamResultRow is one attempt in an instructor's results listing.
type ExamResultRow struct {
	AttemptID      uint     `json:"attempt_id"`
	StudentID      uint     `json:"student_id"`
	Username       string   `json:"username"`
	FullName       string   `json:"full_name,omitempty"`
	StartedLocal   string   `json:"started_local"`
	SubmittedLocal string   `json:"submitted_local,omitempty"`
	ScorePercent   *float64 `json:"score_percent,omitempty"`
	NumCorrect     *int     `json:"num_correct,omitempty"`
	NumQuestions   int      `json:"num_questions"`
}

// ExamResultsResponse lists attempts against one exam.
type ExamResultsResponse struct {
	Exam     ExamResponse    `json:"exam"`
	Attempts []ExamResultRow `json:"attempts"`
}
