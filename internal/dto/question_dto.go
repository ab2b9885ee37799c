package dto

import "github.com/examdesk/examdesk-api/internal/models"

// ChoicePayload is one option submitted with a question.
type ChoicePayload struct {
	Text      string `json:"text" validate:"required,max=400"`
	ImagePath string `json:"image_path"`
	Correct   bool   `json:"correct"`
}

// QuestionCreateRequest describes the payload for adding a question manually.
type QuestionCreateRequest struct {
	Text            string          `json:"text" validate:"required"`
	QType           string          `json:"qtype"`
	Reason          string          `json:"reason"`
	ImagePath       string          `json:"image_path"`
	ReasonImagePath string          `json:"reason_image_path"`
	Choices         []ChoicePayload `json:"choices" validate:"required,min=2,max=6,dive"`
}

// QuestionUpdateRequest replaces a question's content and choices.
type QuestionUpdateRequest struct {
	Text            string          `json:"text" validate:"required"`
	QType           string          `json:"qtype"`
	Reason          string          `json:"reason"`
	ImagePath       *string         `json:"image_path"`
	ReasonImagePath *string         `json:"reason_image_path"`
	Choices         []ChoicePayload `json:"choices" validate:"required,min=2,max=6,dive"`
}

// DeleteQuestionsRequest selects questions to remove from an exam.
type DeleteQuestionsRequest struct {
	QuestionIDs []uint `json:"question_ids" validate:"required,min=1"`
}

// AnswerKeyEntry sets the correct choices for one question.
type AnswerKeyEntry struct {
	QuestionID uint   `json:"question_id" validate:"required"`
	ChoiceIDs  []uint `json:"choice_ids"`
}

// AnswerKeyRequest saves the answer key of an exam.
type AnswerKeyRequest struct {
	Entries []AnswerKeyEntry `json:"entries" validate:"required,dive"`
}

// ChoiceResponse is a choice as shown to students: correctness hidden.
type ChoiceResponse struct {
	ID        uint   `json:"id"`
	Text      string `json:"text"`
	ImagePath string `json:"image_path,omitempty"`
}

// QuestionResponse is a question as shown to students.
type QuestionResponse struct {
	ID        uint             `json:"id"`
	ExamID    uint             `json:"exam_id"`
	Text      string           `json:"text"`
	QType     string           `json:"qtype"`
	ImagePath string           `json:"image_path,omitempty"`
	Choices   []ChoiceResponse `json:"choices"`
}

// NewQuestionResponse converts a model into the student-facing DTO.
func NewQuestionResponse(model models.Question) QuestionResponse {
	choices := make([]ChoiceResponse, 0, len(model.Choices))
	for _, c := range model.Choices {
		choices = append(choices, ChoiceResponse{ID: c.ID, Text: c.Text, ImagePath: c.ImagePath})
	}
	return QuestionResponse{
		ID:        model.ID,
		ExamID:    model.ExamID,
		Text:      model.Text,
		QType:     model.QType,
		ImagePath: model.ImagePath,
		Choices:   choices,
	}
}

// KeyedChoiceResponse is a choice with its correctness, for instructors and
// post-submission results.
type KeyedChoiceResponse struct {
	ID        uint   `json:"id"`
	Text      string `json:"text"`
	ImagePath string `json:"image_path,omitempty"`
	IsCorrect bool   `json:"is_correct"`
}

// KeyedQuestionResponse is the instructor-facing question representation.
type KeyedQuestionResponse struct {
	ID              uint                  `json:"id"`
	ExamID          uint                  `json:"exam_id"`
	Text            string                `json:"text"`
	QType           string                `json:"qtype"`
	ImagePath       string                `json:"image_path,omitempty"`
	Reason          string                `json:"reason,omitempty"`
	ReasonImagePath string                `json:"reason_image_path,omitempty"`
	Choices         []KeyedChoiceResponse `json:"choices"`
}

// NewKeyedQuestionResponse converts a model into the instructor-facing DTO.
func NewKeyedQuestionResponse(model models.Question) KeyedQuestionResponse {
	choices := make([]KeyedChoiceResponse, 0, len(model.Choices))
	for _, c := range model.Choices {
		choices = append(choices, KeyedChoiceResponse{
			ID:        c.ID,
			Text:      c.Text,
			ImagePath: c.ImagePath,
			IsCorrect: c.IsCorrect,
		})
	}
	return KeyedQuestionResponse{
		ID:              model.ID,
		ExamID:          model.ExamID,
		Text:            model.Text,
		QType:           model.QType,
		ImagePath:       model.ImagePath,
		Reason:          model.Reason,
		ReasonImagePath: model.ReasonImagePath,
		Choices:         choices,
	}
}

// NewKeyedQuestionResponseSlice converts a slice of models into DTOs.
func NewKeyedQuestionResponseSlice(questions []models.Question) []KeyedQuestionResponse {
	responses := make([]KeyedQuestionResponse, 0, len(questions))
	for _, question := range questions {
		responses = append(responses, NewKeyedQuestionResponse(question))
	}
	return responses
}

// ImportReport summarizes a spreadsheet import.
type ImportReport struct {
	Imported int `json:"imported"`
	FromRow  int `json:"from_row"`
	ToRow    int `json:"to_row"`
}

// UploadResponse returns the stored location of an uploaded image.
type UploadResponse struct {
	Location string `json:"location"`
}
