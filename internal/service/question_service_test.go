package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/examdesk/examdesk-api/internal/dto"
	"github.com/examdesk/examdesk-api/internal/models"
)

type stubUploader struct {
	uploads int
	fail    error
}

func (s *stubUploader) Upload(_ context.Context, name string, _ io.Reader) (string, error) {
	if s.fail != nil {
		return "", s.fail
	}
	s.uploads++
	return "/static/uploads/" + name, nil
}

func newQuestionFixture(t *testing.T) (QuestionService, *memoryQuestionRepo, *stubUploader, models.Exam) {
	t.Helper()
	questions := newMemoryQuestionRepo()
	exams := newMemoryExamRepo()
	exam := models.Exam{
		Title: "Authoring", StartAt: time.Now(), EndAt: time.Now().Add(time.Hour),
		DurationMinutes: 30, Timezone: "UTC", CreatedBy: 1, TenantID: 1,
	}
	require.NoError(t, exams.Create(context.Background(), &exam))

	uploader := &stubUploader{}
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewQuestionService(questions, exams, validate, uploader, testLogger())
	return svc, questions, uploader, exam
}

func TestQuestionServiceCreateSanitizesMarkup(t *testing.T) {
	svc, _, _, exam := newQuestionFixture(t)

	created, err := svc.Create(context.Background(), exam.ID, instructorActor, dto.QuestionCreateRequest{
		Text:  `What is <b>bold</b>?<script>alert("x")</script>`,
		QType: "single",
		Choices: []dto.ChoicePayload{
			{Text: "styled text", Correct: true},
			{Text: "<img src=x onerror=alert(1)>plain"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "What is <b>bold</b>?", created.Text)
	require.Equal(t, "plain", created.Choices[1].Text)
}

func TestQuestionServiceCreateKeepsFirstCorrectForSingle(t *testing.T) {
	svc, _, _, exam := newQuestionFixture(t)

	created, err := svc.Create(context.Background(), exam.ID, instructorActor, dto.QuestionCreateRequest{
		Text:  "single with two marked",
		QType: "single",
		Choices: []dto.ChoicePayload{
			{Text: "a", Correct: true},
			{Text: "b", Correct: true},
			{Text: "c"},
		},
	})
	require.NoError(t, err)
	require.True(t, created.Choices[0].IsCorrect)
	require.False(t, created.Choices[1].IsCorrect)
}

func TestQuestionServiceCreateRequiresTwoChoices(t *testing.T) {
	svc, _, _, exam := newQuestionFixture(t)

	_, err := svc.Create(context.Background(), exam.ID, instructorActor, dto.QuestionCreateRequest{
		Text:    "lonely",
		Choices: []dto.ChoicePayload{{Text: "only"}},
	})
	require.Error(t, err)
}

func TestQuestionServiceRequiresCorrectChoice(t *testing.T) {
	svc, _, _, exam := newQuestionFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, exam.ID, instructorActor, dto.QuestionCreateRequest{
		Text:  "no key",
		QType: "single",
		Choices: []dto.ChoicePayload{
			{Text: "a"},
			{Text: "b"},
		},
	})
	require.ErrorIs(t, err, ErrCorrectChoiceRequired)

	created, err := svc.Create(ctx, exam.ID, instructorActor, dto.QuestionCreateRequest{
		Text:  "keyed",
		QType: "single",
		Choices: []dto.ChoicePayload{
			{Text: "a", Correct: true},
			{Text: "b"},
		},
	})
	require.NoError(t, err)

	// An update cannot strip the key either.
	_, err = svc.Update(ctx, exam.ID, created.ID, instructorActor, dto.QuestionUpdateRequest{
		Text:  "keyed",
		QType: "single",
		Choices: []dto.ChoicePayload{
			{Text: "a"},
			{Text: "b"},
		},
	})
	require.ErrorIs(t, err, ErrCorrectChoiceRequired)
}

func TestQuestionServiceUpdateReplacesChoices(t *testing.T) {
	svc, questions, _, exam := newQuestionFixture(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, exam.ID, instructorActor, dto.QuestionCreateRequest{
		Text:  "original",
		QType: "multiple",
		Choices: []dto.ChoicePayload{
			{Text: "a", Correct: true},
			{Text: "b"},
		},
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, exam.ID, created.ID, instructorActor, dto.QuestionUpdateRequest{
		Text:  "rewritten",
		QType: "multiple",
		Choices: []dto.ChoicePayload{
			{Text: "x", Correct: true},
			{Text: "y", Correct: true},
			{Text: "z"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "rewritten", updated.Text)
	require.Len(t, updated.Choices, 3)

	stored, err := questions.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, stored.Choices, 3)
	require.True(t, stored.Choices[0].IsCorrect)
	require.True(t, stored.Choices[1].IsCorrect)
}

func TestQuestionServiceDeleteBulk(t *testing.T) {
	svc, _, _, exam := newQuestionFixture(t)
	ctx := context.Background()

	ids := make([]uint, 0, 2)
	for i := 0; i < 2; i++ {
		created, err := svc.Create(ctx, exam.ID, instructorActor, dto.QuestionCreateRequest{
			Text: "q", Choices: []dto.ChoicePayload{{Text: "a", Correct: true}, {Text: "b"}},
		})
		require.NoError(t, err)
		ids = append(ids, created.ID)
	}

	deleted, err := svc.Delete(ctx, exam.ID, instructorActor, dto.DeleteQuestionsRequest{QuestionIDs: ids})
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)

	_, err = svc.Delete(ctx, exam.ID, instructorActor, dto.DeleteQuestionsRequest{QuestionIDs: ids})
	require.ErrorIs(t, err, ErrQuestionNotFound)
}

func TestQuestionServiceSaveAnswerKey(t *testing.T) {
	svc, questions, _, exam := newQuestionFixture(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, exam.ID, instructorActor, dto.QuestionCreateRequest{
		Text:  "re-keyed",
		QType: "single",
		Choices: []dto.ChoicePayload{
			{Text: "a", Correct: true},
			{Text: "b"},
		},
	})
	require.NoError(t, err)

	// A choice from a different question is rejected.
	err = svc.SaveAnswerKey(ctx, exam.ID, instructorActor, dto.AnswerKeyRequest{
		Entries: []dto.AnswerKeyEntry{{QuestionID: created.ID, ChoiceIDs: []uint{999}}},
	})
	require.ErrorIs(t, err, ErrChoiceInvalid)

	err = svc.SaveAnswerKey(ctx, exam.ID, instructorActor, dto.AnswerKeyRequest{
		Entries: []dto.AnswerKeyEntry{{QuestionID: created.ID, ChoiceIDs: []uint{created.Choices[1].ID}}},
	})
	require.NoError(t, err)

	stored, err := questions.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, stored.Choices[0].IsCorrect)
	require.True(t, stored.Choices[1].IsCorrect)
}

func TestQuestionServiceGetScopedToExam(t *testing.T) {
	svc, questions, _, exam := newQuestionFixture(t)
	ctx := context.Background()

	foreign := models.Question{ExamID: 999, TenantID: 1, Text: "other exam", QType: "single"}
	require.NoError(t, questions.Create(ctx, &foreign))

	_, err := svc.Get(ctx, exam.ID, foreign.ID, instructorActor)
	require.ErrorIs(t, err, ErrQuestionNotFound)
}

func TestQuestionServiceUploadImage(t *testing.T) {
	svc, _, uploader, _ := newQuestionFixture(t)

	file := uploadHeader(t, "diagram.png", []byte("fake image bytes"))
	resp, err := svc.UploadImage(context.Background(), instructorActor, file)
	require.NoError(t, err)
	require.Equal(t, "/static/uploads/diagram.png", resp.Location)
	require.Equal(t, 1, uploader.uploads)
}
