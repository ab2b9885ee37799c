package handler_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/examdesk/examdesk-api/internal/dto"
	"github.com/examdesk/examdesk-api/internal/models"
)

func attemptPath(id uint) string {
	return "/api/v1/student/attempts/" + itoa(id)
}

// bindInstructor assigns the student to an instructor so the instructor's
// exams become takeable.
func bindInstructor(t *testing.T, env *testEnv, student *models.User, instructorID uint) {
	t.Helper()
	require.NoError(t, env.db.Model(&models.User{}).Where("id = ?", student.ID).
		Update("instructor_id", instructorID).Error)
	student.InstructorID = &instructorID
}

func TestStudentExamFlow(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(t, "Acme", "acme")
	instructor := env.seedUser(t, "teach", "secret123", models.RoleInstructor, tenant.ID)
	student := env.seedUser(t, "kid", "secret123", models.RoleStudent, tenant.ID)
	bindInstructor(t, env, &student, instructor.ID)

	exam := createExam(t, env, &instructor, "Quiz", -time.Hour, 3*time.Hour)
	question := addQuestion(t, env, &instructor, exam.ID, "Pick alpha", 0)
	correctID := question.Choices[0].ID

	// Dashboard shows the exam as startable.
	status, envelope := env.request(t, "GET", "/api/v1/student/exams", nil, &student)
	require.Equal(t, http.StatusOK, status)
	var views []dto.StudentExamView
	decodeData(t, envelope, &views)
	require.Len(t, views, 1)
	require.Equal(t, dto.ExamStatusActive, views[0].Status)
	require.True(t, views[0].CanStart)

	// Start the attempt.
	status, envelope = env.request(t, "POST", "/api/v1/student/exams/"+itoa(exam.ID)+"/attempts", nil, &student)
	require.Equal(t, http.StatusCreated, status)
	var attempt dto.AttemptResponse
	decodeData(t, envelope, &attempt)
	require.NotZero(t, attempt.ID)
	require.Equal(t, 1, attempt.NumQuestions)

	// Fetch the only question (numbering starts at 1); the answer key is
	// not exposed.
	status, envelope = env.request(t, "GET", attemptPath(attempt.ID)+"/questions/1", nil, &student)
	require.Equal(t, http.StatusOK, status)
	var served dto.AttemptQuestionResponse
	decodeData(t, envelope, &served)
	require.Equal(t, question.ID, served.Question.ID)
	require.Len(t, served.Question.Choices, 3)
	require.Greater(t, served.TimeLeftSeconds, int64(0))

	status, _ = env.request(t, "GET", attemptPath(attempt.ID)+"/questions/0", nil, &student)
	require.Equal(t, http.StatusBadRequest, status)
	status, _ = env.request(t, "GET", attemptPath(attempt.ID)+"/questions/5", nil, &student)
	require.Equal(t, http.StatusBadRequest, status)

	// Answer, review, submit.
	status, _ = env.request(t, "PUT", attemptPath(attempt.ID)+"/questions/"+itoa(question.ID)+"/answers",
		dto.SaveAnswersRequest{ChoiceIDs: []uint{correctID}}, &student)
	require.Equal(t, http.StatusOK, status)

	status, envelope = env.request(t, "GET", attemptPath(attempt.ID)+"/review", nil, &student)
	require.Equal(t, http.StatusOK, status)
	var review dto.ReviewResponse
	decodeData(t, envelope, &review)
	require.Len(t, review.Questions, 1)
	require.Equal(t, []uint{correctID}, review.Questions[0].SelectedChoiceIDs)

	status, envelope = env.request(t, "POST", attemptPath(attempt.ID)+"/submit", nil, &student)
	require.Equal(t, http.StatusOK, status)
	var result dto.ResultResponse
	decodeData(t, envelope, &result)
	require.NotNil(t, result.Attempt.SubmittedAt)
	require.NotNil(t, result.Attempt.ScorePercent)
	require.InDelta(t, 100.0, *result.Attempt.ScorePercent, 0.01)
	require.True(t, result.Questions[0].Correct)

	// Submitting twice returns the same graded attempt.
	status, envelope = env.request(t, "POST", attemptPath(attempt.ID)+"/submit", nil, &student)
	require.Equal(t, http.StatusOK, status)
	var again dto.ResultResponse
	decodeData(t, envelope, &again)
	require.Equal(t, result.Attempt.SubmittedAt.Unix(), again.Attempt.SubmittedAt.Unix())

	// Answers are frozen after submission.
	status, _ = env.request(t, "PUT", attemptPath(attempt.ID)+"/questions/"+itoa(question.ID)+"/answers",
		dto.SaveAnswersRequest{ChoiceIDs: []uint{correctID}}, &student)
	require.Equal(t, http.StatusConflict, status)

	// The instructor sees the graded attempt in the results listing.
	status, envelope = env.request(t, "GET", examPath(exam.ID)+"/results", nil, &instructor)
	require.Equal(t, http.StatusOK, status)
	var results dto.ExamResultsResponse
	decodeData(t, envelope, &results)
	require.Len(t, results.Attempts, 1)
	require.Equal(t, "kid", results.Attempts[0].Username)
}

func TestStudentCannotStartClosedExam(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(t, "Acme", "acme")
	instructor := env.seedUser(t, "teach", "secret123", models.RoleInstructor, tenant.ID)
	student := env.seedUser(t, "kid", "secret123", models.RoleStudent, tenant.ID)
	bindInstructor(t, env, &student, instructor.ID)

	exam := createExam(t, env, &instructor, "Locked", -time.Hour, 3*time.Hour)
	addQuestion(t, env, &instructor, exam.ID, "Pick alpha", 0)

	status, _ := env.request(t, "POST", examPath(exam.ID)+"/close", nil, &instructor)
	require.Equal(t, http.StatusOK, status)

	status, _ = env.request(t, "POST", "/api/v1/student/exams/"+itoa(exam.ID)+"/attempts", nil, &student)
	require.Equal(t, http.StatusConflict, status)
}

func TestStudentCannotStartUnkeyedExam(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(t, "Acme", "acme")
	instructor := env.seedUser(t, "teach", "secret123", models.RoleInstructor, tenant.ID)
	student := env.seedUser(t, "kid", "secret123", models.RoleStudent, tenant.ID)
	bindInstructor(t, env, &student, instructor.ID)

	exam := createExam(t, env, &instructor, "No Key", -time.Hour, 3*time.Hour)

	status, _ := env.request(t, "POST", "/api/v1/student/exams/"+itoa(exam.ID)+"/attempts", nil, &student)
	require.Equal(t, http.StatusConflict, status)
}

func TestStudentCannotStartOtherInstructorsExam(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(t, "Acme", "acme")
	instructor := env.seedUser(t, "teach", "secret123", models.RoleInstructor, tenant.ID)
	rival := env.seedUser(t, "rival", "secret123", models.RoleInstructor, tenant.ID)
	student := env.seedUser(t, "kid", "secret123", models.RoleStudent, tenant.ID)
	bindInstructor(t, env, &student, rival.ID)

	exam := createExam(t, env, &instructor, "Quiz", -time.Hour, 3*time.Hour)
	addQuestion(t, env, &instructor, exam.ID, "Pick alpha", 0)

	status, _ := env.request(t, "POST", "/api/v1/student/exams/"+itoa(exam.ID)+"/attempts", nil, &student)
	require.Equal(t, http.StatusForbidden, status)

	// An unassigned student is rejected the same way.
	loner := env.seedUser(t, "loner", "secret123", models.RoleStudent, tenant.ID)
	status, _ = env.request(t, "POST", "/api/v1/student/exams/"+itoa(exam.ID)+"/attempts", nil, &loner)
	require.Equal(t, http.StatusForbidden, status)
}

func TestStudentAttemptsAreIsolated(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(t, "Acme", "acme")
	instructor := env.seedUser(t, "teach", "secret123", models.RoleInstructor, tenant.ID)
	student := env.seedUser(t, "kid", "secret123", models.RoleStudent, tenant.ID)
	bindInstructor(t, env, &student, instructor.ID)
	other := env.seedUser(t, "peer", "secret123", models.RoleStudent, tenant.ID)

	exam := createExam(t, env, &instructor, "Quiz", -time.Hour, 3*time.Hour)
	addQuestion(t, env, &instructor, exam.ID, "Pick alpha", 0)

	status, envelope := env.request(t, "POST", "/api/v1/student/exams/"+itoa(exam.ID)+"/attempts", nil, &student)
	require.Equal(t, http.StatusCreated, status)
	var attempt dto.AttemptResponse
	decodeData(t, envelope, &attempt)

	status, _ = env.request(t, "GET", attemptPath(attempt.ID)+"/review", nil, &other)
	require.Equal(t, http.StatusNotFound, status)
}

func TestStudentRoutesRequireStudentRole(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(t, "Acme", "acme")
	instructor := env.seedUser(t, "teach", "secret123", models.RoleInstructor, tenant.ID)

	status, _ := env.request(t, "GET", "/api/v1/student/exams", nil, &instructor)
	require.Equal(t, http.StatusForbidden, status)
}
