package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/examdesk/examdesk-api/internal/dto"
	"github.com/examdesk/examdesk-api/internal/models"
)

func newExamService(t *testing.T) (*examService, *memoryExamRepo, *memoryAttemptRepo, *memoryAuditRepo) {
	t.Helper()
	exams := newMemoryExamRepo()
	attempts := newMemoryAttemptRepo(exams)
	audit := newMemoryAuditRepo()
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewExamService(exams, attempts, audit, validate, testLogger()).(*examService)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return svc, exams, attempts, audit
}

var instructorActor = Actor{ID: 1, Role: models.RoleInstructor, TenantID: 1, Timezone: "UTC"}

func TestExamServiceCreateConvertsWindowToUTC(t *testing.T) {
	svc, _, _, _ := newExamService(t)

	created, err := svc.Create(context.Background(), instructorActor, dto.ExamCreateRequest{
		Title:           "Morning Exam",
		StartAt:         "2026-03-02T09:00",
		EndAt:           "2026-03-02T11:00",
		DurationMinutes: 60,
		Timezone:        "Asia/Jakarta",
	})
	require.NoError(t, err)

	// Jakarta is UTC+7 year round.
	require.Equal(t, time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC), created.StartAt.UTC())
	require.Equal(t, time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC), created.EndAt.UTC())
	require.Equal(t, "Asia/Jakarta", created.Timezone)
}

func TestExamServiceCreateRejectsInvertedWindow(t *testing.T) {
	svc, _, _, _ := newExamService(t)

	_, err := svc.Create(context.Background(), instructorActor, dto.ExamCreateRequest{
		Title:           "Backwards",
		StartAt:         "2026-03-02T11:00",
		EndAt:           "2026-03-02T09:00",
		DurationMinutes: 60,
	})
	require.ErrorIs(t, err, ErrExamWindowInvalid)
}

func TestExamServiceUpdateKeepsUntouchedBound(t *testing.T) {
	svc, _, _, _ := newExamService(t)

	created, err := svc.Create(context.Background(), instructorActor, dto.ExamCreateRequest{
		Title:           "Shifting",
		StartAt:         "2026-03-02T09:00",
		EndAt:           "2026-03-02T11:00",
		DurationMinutes: 60,
		Timezone:        "UTC",
	})
	require.NoError(t, err)

	newEnd := "2026-03-02T12:30"
	updated, err := svc.Update(context.Background(), created.ID, instructorActor, dto.ExamUpdateRequest{EndAt: &newEnd})
	require.NoError(t, err)
	require.Equal(t, created.StartAt.UTC(), updated.StartAt.UTC())
	require.Equal(t, time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC), updated.EndAt.UTC())
}

func TestExamServiceUpdateClearsQuestionLimit(t *testing.T) {
	svc, _, _, _ := newExamService(t)

	limit := 5
	created, err := svc.Create(context.Background(), instructorActor, dto.ExamCreateRequest{
		Title:           "Limited",
		StartAt:         "2026-03-02T09:00",
		EndAt:           "2026-03-02T11:00",
		DurationMinutes: 60,
		QuestionLimit:   &limit,
	})
	require.NoError(t, err)
	require.NotNil(t, created.QuestionLimit)

	zero := 0
	updated, err := svc.Update(context.Background(), created.ID, instructorActor, dto.ExamUpdateRequest{QuestionLimit: &zero})
	require.NoError(t, err)
	require.Nil(t, updated.QuestionLimit)
}

func TestExamServiceDeleteIsSoftAndAudited(t *testing.T) {
	svc, exams, _, audit := newExamService(t)

	created, err := svc.Create(context.Background(), instructorActor, dto.ExamCreateRequest{
		Title:           "Doomed",
		StartAt:         "2026-03-02T09:00",
		EndAt:           "2026-03-02T11:00",
		DurationMinutes: 60,
	})
	require.NoError(t, err)

	err = svc.Delete(context.Background(), created.ID, instructorActor, "created by mistake")
	require.NoError(t, err)

	stored := exams.exams[created.ID]
	require.NotNil(t, stored.DeletedAt)

	require.Len(t, audit.deletions, 1)
	require.Equal(t, created.ID, audit.deletions[0].ExamID)
	require.Equal(t, "Doomed", audit.deletions[0].ExamTitle)
	require.Equal(t, "created by mistake", audit.deletions[0].Note)

	// Deleted exams vanish from reads and listings.
	_, err = svc.Get(context.Background(), created.ID, instructorActor)
	require.ErrorIs(t, err, ErrExamNotFound)

	listed, err := svc.List(context.Background(), instructorActor)
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestExamServiceOwnershipGuards(t *testing.T) {
	svc, _, _, _ := newExamService(t)

	created, err := svc.Create(context.Background(), instructorActor, dto.ExamCreateRequest{
		Title:           "Private",
		StartAt:         "2026-03-02T09:00",
		EndAt:           "2026-03-02T11:00",
		DurationMinutes: 60,
	})
	require.NoError(t, err)

	rival := Actor{ID: 2, Role: models.RoleInstructor, TenantID: 1}
	_, err = svc.Get(context.Background(), created.ID, rival)
	require.ErrorIs(t, err, ErrExamForbidden)

	otherTenant := Actor{ID: 1, Role: models.RoleInstructor, TenantID: 2}
	_, err = svc.Get(context.Background(), created.ID, otherTenant)
	require.ErrorIs(t, err, ErrExamForbidden)

	admin := Actor{ID: 9, Role: models.RoleAdmin, TenantID: 2}
	_, err = svc.Get(context.Background(), created.ID, admin)
	require.NoError(t, err)
}

func TestExamServiceSetClosedStampsTime(t *testing.T) {
	svc, _, _, _ := newExamService(t)

	created, err := svc.Create(context.Background(), instructorActor, dto.ExamCreateRequest{
		Title:           "Toggled",
		StartAt:         "2026-03-02T09:00",
		EndAt:           "2026-03-02T11:00",
		DurationMinutes: 60,
	})
	require.NoError(t, err)

	closed, err := svc.SetClosed(context.Background(), created.ID, instructorActor, true)
	require.NoError(t, err)
	require.True(t, closed.IsClosed)
	require.NotNil(t, closed.ClosedAt)

	reopened, err := svc.SetClosed(context.Background(), created.ID, instructorActor, false)
	require.NoError(t, err)
	require.False(t, reopened.IsClosed)
	require.Nil(t, reopened.ClosedAt)
}

func TestExamServiceResultsLocalizesTimes(t *testing.T) {
	svc, exams, attempts, _ := newExamService(t)

	created, err := svc.Create(context.Background(), instructorActor, dto.ExamCreateRequest{
		Title:           "Graded",
		StartAt:         "2026-03-01T08:00",
		EndAt:           "2026-03-01T12:00",
		DurationMinutes: 60,
	})
	require.NoError(t, err)
	require.Contains(t, exams.exams, created.ID)

	submitted := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	score := 75.0
	correct := 3
	attempt := models.Attempt{
		ExamID: created.ID, StudentID: 5, TenantID: 1,
		StartedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		SubmittedAt: &submitted, ScorePercent: &score, NumCorrect: &correct, NumQuestions: 4,
	}
	require.NoError(t, attempts.Create(context.Background(), &attempt))

	viewer := Actor{ID: 1, Role: models.RoleInstructor, TenantID: 1, Timezone: "Asia/Jakarta"}
	results, err := svc.Results(context.Background(), created.ID, viewer)
	require.NoError(t, err)
	require.Len(t, results.Attempts, 1)
	require.Equal(t, "2026-03-01 16:00", results.Attempts[0].StartedLocal)
	require.Equal(t, "2026-03-01 16:30", results.Attempts[0].SubmittedLocal)
	require.Equal(t, 75.0, *results.Attempts[0].ScorePercent)
}
