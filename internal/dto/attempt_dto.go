package dto

import (
	"time"

	"github.com/examdesk/examdesk-api/internal/models"
)

// AttemptResponse is the serialized attempt representation.
type AttemptResponse struct {
	ID           uint       `json:"id"`
	ExamID       uint       `json:"exam_id"`
	StudentID    uint       `json:"student_id"`
	StartedAt    time.Time  `json:"started_at"`
	SubmittedAt  *time.Time `json:"submitted_at,omitempty"`
	ScorePercent *float64   `json:"score_percent,omitempty"`
	NumCorrect   *int       `json:"num_correct,omitempty"`
	NumQuestions int        `json:"num_questions"`
}

// NewAttemptResponse converts a model into a DTO.
func NewAttemptResponse(model models.Attempt) AttemptResponse {
	return AttemptResponse{
		ID:           model.ID,
		ExamID:       model.ExamID,
		StudentID:    model.StudentID,
		StartedAt:    model.StartedAt,
		SubmittedAt:  model.SubmittedAt,
		ScorePercent: model.ScorePercent,
		NumCorrect:   model.NumCorrect,
		NumQuestions: model.NumQuestions,
	}
}

// SaveAnswersRequest replaces the selected choices of one question.
type SaveAnswersRequest struct {
	ChoiceIDs []uint `json:"choice_ids"`
}

// AttemptQuestionResponse serves one question of a running attempt.
type AttemptQuestionResponse struct {
	Attempt            AttemptResponse  `json:"attempt"`
	Index              int              `json:"index"`
	Total              int              `json:"total"`
	Question           QuestionResponse `json:"question"`
	SelectedChoiceIDs  []uint           `json:"selected_choice_ids"`
	TimeLeftSeconds    int64            `json:"time_left_seconds"`
	TotalSeconds       int64            `json:"total_seconds"`
	PerQuestionSeconds int64            `json:"per_question_seconds"`
}

// ReviewQuestion pairs a question with the student's current selection.
type ReviewQuestion struct {
	Question          QuestionResponse `json:"question"`
	SelectedChoiceIDs []uint           `json:"selected_choice_ids"`
}

// ReviewResponse shows the whole attempt before submission.
type ReviewResponse struct {
	Attempt         AttemptResponse  `json:"attempt"`
	Questions       []ReviewQuestion `json:"questions"`
	TimeLeftSeconds int64            `json:"time_left_seconds"`
}

// ResultQuestion pairs a graded question with the key and the selection.
type ResultQuestion struct {
	Question          KeyedQuestionResponse `json:"question"`
	SelectedChoiceIDs []uint                `json:"selected_choice_ids"`
	Correct           bool                  `json:"correct"`
}

// ResultResponse is the post-submission report for a student.
type ResultResponse struct {
	Attempt   AttemptResponse  `json:"attempt"`
	Questions []ResultQuestion `json:"questions"`
}
