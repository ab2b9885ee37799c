package service

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/examdesk/examdesk-api/internal/models"
	"github.com/examdesk/examdesk-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// In-memory repository fakes shared by the service tests.

type memoryTenantRepo struct {
	tenants map[uint]models.Tenant
	nextID  uint
}

func newMemoryTenantRepo() *memoryTenantRepo {
	return &memoryTenantRepo{tenants: make(map[uint]models.Tenant), nextID: 1}
}

func (m *memoryTenantRepo) List(ctx context.Context) ([]models.Tenant, error) {
	results := make([]models.Tenant, 0, len(m.tenants))
	for _, tenant := range m.tenants {
		results = append(results, tenant)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results, nil
}

func (m *memoryTenantRepo) GetByID(ctx context.Context, id uint) (models.Tenant, error) {
	tenant, ok := m.tenants[id]
	if !ok {
		return models.Tenant{}, gorm.ErrRecordNotFound
	}
	return tenant, nil
}

func (m *memoryTenantRepo) GetBySlug(ctx context.Context, slug string) (models.Tenant, error) {
	for _, tenant := range m.tenants {
		if tenant.Slug == slug {
			return tenant, nil
		}
	}
	return models.Tenant{}, gorm.ErrRecordNotFound
}

func (m *memoryTenantRepo) Create(ctx context.Context, tenant *models.Tenant) error {
	tenant.ID = m.nextID
	m.nextID++
	m.tenants[tenant.ID] = *tenant
	return nil
}

func (m *memoryTenantRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(m.tenants)), nil
}

type memoryUserRepo struct {
	users  map[uint]models.User
	nextID uint
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[uint]models.User), nextID: 1}
}

func (m *memoryUserRepo) List(ctx context.Context, filter repository.UserFilter) ([]models.User, error) {
	results := make([]models.User, 0, len(m.users))
	for _, user := range m.users {
		if filter.TenantID != nil && user.TenantID != *filter.TenantID {
			continue
		}
		if filter.Role != "" && user.Role != filter.Role {
			continue
		}
		results = append(results, user)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Username < results[j].Username })
	return results, nil
}

func (m *memoryUserRepo) GetByID(ctx context.Context, id uint) (models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return models.User{}, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (m *memoryUserRepo) GetByUsername(ctx context.Context, username string) (models.User, error) {
	for _, user := range m.users {
		if user.Username == username {
			return user, nil
		}
	}
	return models.User{}, gorm.ErrRecordNotFound
}

func (m *memoryUserRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = *user
	return nil
}

func (m *memoryUserRepo) Update(ctx context.Context, user *models.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.users[user.ID] = *user
	return nil
}

func (m *memoryUserRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(m.users)), nil
}

type memoryExamRepo struct {
	exams  map[uint]models.Exam
	nextID uint
}

func newMemoryExamRepo() *memoryExamRepo {
	return &memoryExamRepo{exams: make(map[uint]models.Exam), nextID: 1}
}

func (m *memoryExamRepo) List(ctx context.Context, filter repository.ExamFilter) ([]models.Exam, error) {
	results := make([]models.Exam, 0, len(m.exams))
	for _, exam := range m.exams {
		if filter.TenantID != nil && exam.TenantID != *filter.TenantID {
			continue
		}
		if filter.CreatedBy != nil && exam.CreatedBy != *filter.CreatedBy {
			continue
		}
		if !filter.IncludeDeleted && exam.DeletedAt != nil {
			continue
		}
		results = append(results, exam)
	}
	sort.Slice(results, func(i, j int) bool {
		if filter.OrderByStart == "asc" {
			return results[i].StartAt.Before(results[j].StartAt)
		}
		return results[i].StartAt.After(results[j].StartAt)
	})
	return results, nil
}

func (m *memoryExamRepo) GetByID(ctx context.Context, id uint) (models.Exam, error) {
	exam, ok := m.exams[id]
	if !ok {
		return models.Exam{}, gorm.ErrRecordNotFound
	}
	exam.Questions = nil
	return exam, nil
}

func (m *memoryExamRepo) GetWithQuestions(ctx context.Context, id uint) (models.Exam, error) {
	exam, ok := m.exams[id]
	if !ok {
		return models.Exam{}, gorm.ErrRecordNotFound
	}
	return exam, nil
}

func (m *memoryExamRepo) Create(ctx context.Context, exam *models.Exam) error {
	exam.ID = m.nextID
	m.nextID++
	exam.CreatedAt = time.Now()
	exam.UpdatedAt = time.Now()
	m.exams[exam.ID] = *exam
	return nil
}

func (m *memoryExamRepo) Update(ctx context.Context, exam *models.Exam) error {
	stored, ok := m.exams[exam.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	// Save never touches the association in the real repository.
	exam.Questions = stored.Questions
	exam.UpdatedAt = time.Now()
	m.exams[exam.ID] = *exam
	return nil
}

func (m *memoryExamRepo) CountActive(ctx context.Context) (int64, error) {
	var total int64
	for _, exam := range m.exams {
		if exam.DeletedAt == nil {
			total++
		}
	}
	return total, nil
}

type memoryQuestionRepo struct {
	questions    map[uint]models.Question
	nextID       uint
	nextChoiceID uint
}

func newMemoryQuestionRepo() *memoryQuestionRepo {
	return &memoryQuestionRepo{questions: make(map[uint]models.Question), nextID: 1, nextChoiceID: 1}
}

func (m *memoryQuestionRepo) GetByID(ctx context.Context, id uint) (models.Question, error) {
	question, ok := m.questions[id]
	if !ok {
		return models.Question{}, gorm.ErrRecordNotFound
	}
	return question, nil
}

func (m *memoryQuestionRepo) GetMany(ctx context.Context, ids []uint) ([]models.Question, error) {
	results := make([]models.Question, 0, len(ids))
	for _, id := range ids {
		if question, ok := m.questions[id]; ok {
			results = append(results, question)
		}
	}
	return results, nil
}

func (m *memoryQuestionRepo) Create(ctx context.Context, question *models.Question) error {
	question.ID = m.nextID
	m.nextID++
	for i := range question.Choices {
		question.Choices[i].ID = m.nextChoiceID
		question.Choices[i].QuestionID = question.ID
		m.nextChoiceID++
	}
	m.questions[question.ID] = *question
	return nil
}

func (m *memoryQuestionRepo) CreateBatch(ctx context.Context, questions []*models.Question) error {
	for _, question := range questions {
		if err := m.Create(ctx, question); err != nil {
			return err
		}
	}
	return nil
}

func (m *memoryQuestionRepo) Update(ctx context.Context, question *models.Question) error {
	stored, ok := m.questions[question.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	question.Choices = stored.Choices
	m.questions[question.ID] = *question
	return nil
}

func (m *memoryQuestionRepo) ReplaceChoices(ctx context.Context, question *models.Question, choices []models.Choice) error {
	if _, ok := m.questions[question.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range choices {
		choices[i].ID = m.nextChoiceID
		choices[i].QuestionID = question.ID
		choices[i].TenantID = question.TenantID
		m.nextChoiceID++
	}
	question.Choices = choices
	m.questions[question.ID] = *question
	return nil
}

func (m *memoryQuestionRepo) Delete(ctx context.Context, examID uint, ids []uint) (int64, error) {
	var deleted int64
	for _, id := range ids {
		question, ok := m.questions[id]
		if !ok || question.ExamID != examID {
			continue
		}
		delete(m.questions, id)
		deleted++
	}
	if deleted == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return deleted, nil
}

func (m *memoryQuestionRepo) SetCorrectChoices(ctx context.Context, questionID uint, correctIDs []uint) error {
	question, ok := m.questions[questionID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	wanted := make(map[uint]struct{}, len(correctIDs))
	for _, id := range correctIDs {
		wanted[id] = struct{}{}
	}
	for i := range question.Choices {
		_, correct := wanted[question.Choices[i].ID]
		question.Choices[i].IsCorrect = correct
	}
	m.questions[questionID] = question
	return nil
}

type memoryAttemptRepo struct {
	attempts map[uint]models.Attempt
	answers  []models.Answer
	exams    *memoryExamRepo
	nextID   uint
}

func newMemoryAttemptRepo(exams *memoryExamRepo) *memoryAttemptRepo {
	return &memoryAttemptRepo{attempts: make(map[uint]models.Attempt), exams: exams, nextID: 1}
}

func (m *memoryAttemptRepo) withExam(attempt models.Attempt) models.Attempt {
	if m.exams != nil {
		if exam, ok := m.exams.exams[attempt.ExamID]; ok {
			attempt.Exam = exam
		}
	}
	return attempt
}

func (m *memoryAttemptRepo) GetByID(ctx context.Context, id uint) (models.Attempt, error) {
	attempt, ok := m.attempts[id]
	if !ok {
		return models.Attempt{}, gorm.ErrRecordNotFound
	}
	return m.withExam(attempt), nil
}

func (m *memoryAttemptRepo) FindOpen(ctx context.Context, examID, studentID uint) (models.Attempt, error) {
	for _, attempt := range m.attempts {
		if attempt.ExamID == examID && attempt.StudentID == studentID && attempt.SubmittedAt == nil {
			return m.withExam(attempt), nil
		}
	}
	return models.Attempt{}, gorm.ErrRecordNotFound
}

func (m *memoryAttemptRepo) ListByStudent(ctx context.Context, studentID uint) ([]models.Attempt, error) {
	results := make([]models.Attempt, 0, len(m.attempts))
	for _, attempt := range m.attempts {
		if attempt.StudentID == studentID {
			results = append(results, attempt)
		}
	}
	return results, nil
}

func (m *memoryAttemptRepo) ListByExam(ctx context.Context, examID uint) ([]models.Attempt, error) {
	results := make([]models.Attempt, 0, len(m.attempts))
	for _, attempt := range m.attempts {
		if attempt.ExamID == examID {
			results = append(results, attempt)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].StartedAt.After(results[j].StartedAt) })
	return results, nil
}

func (m *memoryAttemptRepo) ListRecent(ctx context.Context, limit int) ([]models.Attempt, error) {
	results := make([]models.Attempt, 0, len(m.attempts))
	for _, attempt := range m.attempts {
		results = append(results, attempt)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID > results[j].ID })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *memoryAttemptRepo) Create(ctx context.Context, attempt *models.Attempt) error {
	attempt.ID = m.nextID
	m.nextID++
	m.attempts[attempt.ID] = *attempt
	return nil
}

func (m *memoryAttemptRepo) Update(ctx context.Context, attempt *models.Attempt) error {
	if _, ok := m.attempts[attempt.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *attempt
	stored.Exam = models.Exam{}
	stored.Student = models.User{}
	m.attempts[attempt.ID] = stored
	return nil
}

func (m *memoryAttemptRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(m.attempts)), nil
}

func (m *memoryAttemptRepo) ListAnswers(ctx context.Context, attemptID uint) ([]models.Answer, error) {
	results := make([]models.Answer, 0, len(m.answers))
	for _, answer := range m.answers {
		if answer.AttemptID == attemptID {
			results = append(results, answer)
		}
	}
	return results, nil
}

func (m *memoryAttemptRepo) ReplaceAnswers(ctx context.Context, attemptID, questionID uint, answers []models.Answer) error {
	kept := m.answers[:0]
	for _, answer := range m.answers {
		if answer.AttemptID == attemptID && answer.QuestionID == questionID {
			continue
		}
		kept = append(kept, answer)
	}
	m.answers = append(kept, answers...)
	return nil
}

type memoryProgressRepo struct {
	entries map[[2]uint]models.ExamProgress
	nextID  uint
}

func newMemoryProgressRepo() *memoryProgressRepo {
	return &memoryProgressRepo{entries: make(map[[2]uint]models.ExamProgress), nextID: 1}
}

func (m *memoryProgressRepo) Get(ctx context.Context, examID, studentID uint) (models.ExamProgress, error) {
	progress, ok := m.entries[[2]uint{examID, studentID}]
	if !ok {
		return models.ExamProgress{}, gorm.ErrRecordNotFound
	}
	return progress, nil
}

func (m *memoryProgressRepo) Save(ctx context.Context, progress *models.ExamProgress) error {
	if progress.ID == 0 {
		progress.ID = m.nextID
		m.nextID++
	}
	m.entries[[2]uint{progress.ExamID, progress.StudentID}] = *progress
	return nil
}

type memoryAuditRepo struct {
	deletions []models.ExamDeletionLog
	access    []models.AccessLog
}

func newMemoryAuditRepo() *memoryAuditRepo {
	return &memoryAuditRepo{}
}

func (m *memoryAuditRepo) CreateDeletionLog(ctx context.Context, entry *models.ExamDeletionLog) error {
	entry.ID = uint(len(m.deletions) + 1)
	m.deletions = append(m.deletions, *entry)
	return nil
}

func (m *memoryAuditRepo) ListDeletionLogs(ctx context.Context, limit int) ([]models.ExamDeletionLog, error) {
	results := make([]models.ExamDeletionLog, len(m.deletions))
	copy(results, m.deletions)
	sort.Slice(results, func(i, j int) bool { return results[i].DeletedAt.After(results[j].DeletedAt) })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *memoryAuditRepo) CreateAccessLog(ctx context.Context, entry *models.AccessLog) error {
	entry.ID = uint(len(m.access) + 1)
	m.access = append(m.access, *entry)
	return nil
}

func (m *memoryAuditRepo) ListAccessLogs(ctx context.Context, limit int) ([]models.AccessLog, error) {
	results := make([]models.AccessLog, len(m.access))
	copy(results, m.access)
	sort.Slice(results, func(i, j int) bool { return results[i].ID > results[j].ID })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
