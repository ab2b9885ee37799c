package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/examdesk/examdesk-api/internal/dto"
	"github.com/examdesk/examdesk-api/internal/models"
	"github.com/examdesk/examdesk-api/internal/observability"
	"github.com/examdesk/examdesk-api/internal/repository"
)

var (
	// ErrAttemptNotFound indicates the attempt does not exist or belongs to
	// another student.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptSubmitted indicates a mutation on an already submitted attempt.
	ErrAttemptSubmitted = errors.New("attempt already submitted")
	// ErrAttemptExpired indicates the attempt ran out of time and was
	// submitted automatically.
	ErrAttemptExpired = errors.New("attempt time expired")
	// ErrExamNotStartable indicates the exam cannot be taken right now.
	ErrExamNotStartable = errors.New("exam is not open for taking")
	// ErrAnswerInvalid indicates a selected choice does not belong to the
	// question being answered.
	ErrAnswerInvalid = errors.New("choice does not belong to question")
	// ErrQuestionIndexInvalid indicates an out-of-range question index.
	ErrQuestionIndexInvalid = errors.New("question index out of range")
)

// AttemptService exposes the student exam-taking use cases.
type AttemptService interface {
	Dashboard(ctx context.Context, actor Actor) ([]dto.StudentExamView, error)
	Start(ctx context.Context, examID uint, actor Actor) (dto.AttemptResponse, error)
	Question(ctx context.Context, attemptID uint, index int, actor Actor) (dto.AttemptQuestionResponse, error)
	SaveAnswers(ctx context.Context, attemptID, questionID uint, actor Actor, payload dto.SaveAnswersRequest) error
	Review(ctx context.Context, attemptID uint, actor Actor) (dto.ReviewResponse, error)
	Submit(ctx context.Context, attemptID uint, actor Actor) (dto.ResultResponse, error)
	Result(ctx context.Context, attemptID uint, actor Actor) (dto.ResultResponse, error)
}

type attemptService struct {
	attempts  repository.AttemptRepository
	exams     repository.ExamRepository
	questions repository.QuestionRepository
	progress  repository.ProgressRepository
	users     repository.UserRepository
	logger    zerolog.Logger
	now       func() time.Time
	shuffle   func([]uint)
}

// NewAttemptService builds a new attempt service.
func NewAttemptService(attempts repository.AttemptRepository, exams repository.ExamRepository, questions repository.QuestionRepository, progress repository.ProgressRepository, users repository.UserRepository, logger zerolog.Logger) AttemptService {
	return &attemptService{
		attempts:  attempts,
		exams:     exams,
		questions: questions,
		progress:  progress,
		users:     users,
		logger:    logger.With().Str("component", "attempt_service").Logger(),
		now:       time.Now,
		shuffle: func(ids []uint) {
			rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
		},
	}
}

func (s *attemptService) Dashboard(ctx context.Context, actor Actor) ([]dto.StudentExamView, error) {
	student, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	// Students only see exams authored by their assigned instructor.
	filter := repository.ExamFilter{OrderByStart: "asc"}
	if actor.IsAdmin() {
		tenantID := actor.TenantID
		filter.TenantID = &tenantID
	} else {
		if student.InstructorID == nil {
			return []dto.StudentExamView{}, nil
		}
		tenantID := actor.TenantID
		filter.TenantID = &tenantID
		filter.CreatedBy = student.InstructorID
	}

	exams, err := s.exams.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	attempts, err := s.attempts.ListByStudent(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	open := make(map[uint]models.Attempt, len(attempts))
	submitted := make(map[uint]models.Attempt, len(attempts))
	for _, attempt := range attempts {
		if attempt.SubmittedAt == nil {
			open[attempt.ExamID] = attempt
		} else {
			prev, ok := submitted[attempt.ExamID]
			if !ok || attempt.SubmittedAt.After(*prev.SubmittedAt) {
				submitted[attempt.ExamID] = attempt
			}
		}
	}

	now := s.now()
	views := make([]dto.StudentExamView, 0, len(exams))
	for _, exam := range exams {
		loaded, err := s.exams.GetWithQuestions(ctx, exam.ID)
		if err != nil {
			return nil, err
		}

		view := dto.StudentExamView{Exam: dto.NewExamResponse(loaded, actor.Timezone)}
		switch {
		case len(loaded.Questions) == 0 || !loaded.HasAnswerKey():
			view.Status = dto.ExamStatusNotReady
		case now.Before(loaded.StartAt):
			view.Status = dto.ExamStatusUpcoming
			view.CountdownSeconds = int64(loaded.StartAt.Sub(now).Seconds())
		case loaded.IsClosed || now.After(loaded.EndAt):
			view.Status = dto.ExamStatusClosed
		default:
			if done, ok := submitted[exam.ID]; ok {
				view.Status = dto.ExamStatusCompleted
				resp := dto.NewAttemptResponse(done)
				view.Attempt = &resp
			} else {
				view.Status = dto.ExamStatusActive
				view.CanStart = true
				if running, ok := open[exam.ID]; ok {
					resp := dto.NewAttemptResponse(running)
					view.Attempt = &resp
				}
			}
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *attemptService) Start(ctx context.Context, examID uint, actor Actor) (dto.AttemptResponse, error) {
	exam, err := s.exams.GetWithQuestions(ctx, examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AttemptResponse{}, ErrExamNotFound
		}
		return dto.AttemptResponse{}, err
	}
	if exam.DeletedAt != nil || exam.TenantID != actor.TenantID && !actor.IsAdmin() {
		return dto.AttemptResponse{}, ErrExamNotFound
	}

	// Students may only take exams authored by their assigned instructor.
	if !actor.IsAdmin() {
		student, err := s.users.GetByID(ctx, actor.ID)
		if err != nil {
			return dto.AttemptResponse{}, err
		}
		if student.InstructorID == nil || exam.CreatedBy != *student.InstructorID {
			return dto.AttemptResponse{}, ErrExamForbidden
		}
	}

	now := s.now()
	if !exam.IsActive(now) || len(exam.Questions) == 0 || !exam.HasAnswerKey() {
		return dto.AttemptResponse{}, ErrExamNotStartable
	}

	// An unsubmitted attempt is resumed, never duplicated.
	if existing, err := s.attempts.FindOpen(ctx, examID, actor.ID); err == nil {
		return dto.NewAttemptResponse(existing), nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.AttemptResponse{}, err
	}

	order, err := s.rotate(ctx, exam, actor.ID)
	if err != nil {
		return dto.AttemptResponse{}, err
	}

	orderJSON, err := json.Marshal(order)
	if err != nil {
		return dto.AttemptResponse{}, err
	}

	attempt := models.Attempt{
		ExamID:        exam.ID,
		StudentID:     actor.ID,
		StartedAt:     now.UTC(),
		NumQuestions:  len(order),
		QuestionOrder: orderJSON,
		TenantID:      exam.TenantID,
	}
	if err := s.attempts.Create(ctx, &attempt); err != nil {
		return dto.AttemptResponse{}, err
	}
	attempt.Exam = exam

	s.logger.Info().Uint("exam_id", exam.ID).Uint("student_id", actor.ID).
		Int("questions", len(order)).Msg("attempt started")
	return dto.NewAttemptResponse(attempt), nil
}

// rotate picks this attempt's question set. Questions a student has already
// been served are skipped; the rotation resets only once the whole pool has
// been seen, so a short remainder is served as-is rather than replayed.
func (s *attemptService) rotate(ctx context.Context, exam models.Exam, studentID uint) ([]uint, error) {
	pool := make([]uint, 0, len(exam.Questions))
	for _, q := range exam.Questions {
		pool = append(pool, q.ID)
	}

	progress, err := s.progress.Get(ctx, exam.ID, studentID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if progress.ID == 0 {
		progress = models.ExamProgress{ExamID: exam.ID, StudentID: studentID, TenantID: exam.TenantID}
	}

	asked := progress.AskedSet()
	if len(asked) >= len(pool) {
		asked = make(map[uint]struct{}, len(pool))
	}
	candidates := make([]uint, 0, len(pool))
	for _, id := range pool {
		if _, seen := asked[id]; !seen {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		asked = make(map[uint]struct{}, len(pool))
		candidates = append(candidates, pool...)
	}

	s.shuffle(candidates)
	chosen := candidates
	if exam.QuestionLimit != nil && *exam.QuestionLimit > 0 && *exam.QuestionLimit < len(candidates) {
		chosen = candidates[:*exam.QuestionLimit]
	}

	for _, id := range chosen {
		asked[id] = struct{}{}
	}
	askedList := make([]uint, 0, len(asked))
	for _, id := range pool {
		if _, ok := asked[id]; ok {
			askedList = append(askedList, id)
		}
	}
	askedJSON, err := json.Marshal(askedList)
	if err != nil {
		return nil, err
	}
	progress.AskedQuestions = askedJSON
	if err := s.progress.Save(ctx, &progress); err != nil {
		return nil, err
	}

	return chosen, nil
}

func (s *attemptService) Question(ctx context.Context, attemptID uint, index int, actor Actor) (dto.AttemptQuestionResponse, error) {
	attempt, err := s.loadOpen(ctx, attemptID, actor)
	if err != nil {
		return dto.AttemptQuestionResponse{}, err
	}

	// Indexes are 1-based, the way the exam player numbers questions.
	order := attempt.OrderList()
	if index < 1 || index > len(order) {
		return dto.AttemptQuestionResponse{}, ErrQuestionIndexInvalid
	}

	question, err := s.questions.GetByID(ctx, order[index-1])
	if err != nil {
		return dto.AttemptQuestionResponse{}, err
	}

	answers, err := s.attempts.ListAnswers(ctx, attempt.ID)
	if err != nil {
		return dto.AttemptQuestionResponse{}, err
	}
	selected := make([]uint, 0, 2)
	for _, a := range answers {
		if a.QuestionID == question.ID {
			selected = append(selected, a.ChoiceID)
		}
	}

	now := s.now()
	total := int64(time.Duration(attempt.Exam.DurationMinutes) * time.Minute / time.Second)
	left := int64(attempt.EndTime().Sub(now).Seconds())
	if left < 0 {
		left = 0
	}
	perQuestion := int64(0)
	if attempt.NumQuestions > 0 {
		perQuestion = total / int64(attempt.NumQuestions)
		if perQuestion < 1 {
			perQuestion = 1
		}
	}

	return dto.AttemptQuestionResponse{
		Attempt:            dto.NewAttemptResponse(attempt),
		Index:              index,
		Total:              len(order),
		Question:           dto.NewQuestionResponse(question),
		SelectedChoiceIDs:  selected,
		TimeLeftSeconds:    left,
		TotalSeconds:       total,
		PerQuestionSeconds: perQuestion,
	}, nil
}

func (s *attemptService) SaveAnswers(ctx context.Context, attemptID, questionID uint, actor Actor, payload dto.SaveAnswersRequest) error {
	attempt, err := s.loadOpen(ctx, attemptID, actor)
	if err != nil {
		return err
	}

	inOrder := false
	for _, id := range attempt.OrderList() {
		if id == questionID {
			inOrder = true
			break
		}
	}
	if !inOrder {
		return ErrQuestionIndexInvalid
	}

	question, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		return err
	}

	valid := make(map[uint]struct{}, len(question.Choices))
	for _, c := range question.Choices {
		valid[c.ID] = struct{}{}
	}
	choiceIDs := payload.ChoiceIDs
	if question.QType == models.QuestionTypeSingle && len(choiceIDs) > 1 {
		choiceIDs = choiceIDs[:1]
	}
	for _, id := range choiceIDs {
		if _, ok := valid[id]; !ok {
			return ErrAnswerInvalid
		}
	}

	answers := make([]models.Answer, 0, len(choiceIDs))
	for _, id := range choiceIDs {
		answers = append(answers, models.Answer{
			AttemptID:  attempt.ID,
			QuestionID: questionID,
			ChoiceID:   id,
			TenantID:   attempt.TenantID,
		})
	}
	return s.attempts.ReplaceAnswers(ctx, attempt.ID, questionID, answers)
}

func (s *attemptService) Review(ctx context.Context, attemptID uint, actor Actor) (dto.ReviewResponse, error) {
	attempt, err := s.loadOpen(ctx, attemptID, actor)
	if err != nil {
		return dto.ReviewResponse{}, err
	}

	questions, selections, err := s.collect(ctx, attempt)
	if err != nil {
		return dto.ReviewResponse{}, err
	}

	rows := make([]dto.ReviewQuestion, 0, len(questions))
	for _, q := range questions {
		rows = append(rows, dto.ReviewQuestion{
			Question:          dto.NewQuestionResponse(q),
			SelectedChoiceIDs: selections[q.ID],
		})
	}

	left := int64(attempt.EndTime().Sub(s.now()).Seconds())
	if left < 0 {
		left = 0
	}
	return dto.ReviewResponse{
		Attempt:         dto.NewAttemptResponse(attempt),
		Questions:       rows,
		TimeLeftSeconds: left,
	}, nil
}

func (s *attemptService) Submit(ctx context.Context, attemptID uint, actor Actor) (dto.ResultResponse, error) {
	attempt, err := s.load(ctx, attemptID, actor)
	if err != nil {
		return dto.ResultResponse{}, err
	}

	// Submission is idempotent.
	if attempt.SubmittedAt == nil {
		if err := s.grade(ctx, &attempt); err != nil {
			return dto.ResultResponse{}, err
		}
	}
	return s.buildResult(ctx, attempt)
}

func (s *attemptService) Result(ctx context.Context, attemptID uint, actor Actor) (dto.ResultResponse, error) {
	attempt, err := s.load(ctx, attemptID, actor)
	if err != nil {
		return dto.ResultResponse{}, err
	}
	if attempt.SubmittedAt == nil {
		return dto.ResultResponse{}, ErrAttemptNotFound
	}
	return s.buildResult(ctx, attempt)
}

// grade scores the attempt and stamps it submitted. A question counts as
// correct only when the chosen set matches the correct set exactly.
func (s *attemptService) grade(ctx context.Context, attempt *models.Attempt) error {
	ctx, span := observability.Tracer().Start(ctx, "attempt.grade")
	defer span.End()
	span.SetAttributes(attribute.Int("attempt.id", int(attempt.ID)))

	questions, selections, err := s.collect(ctx, *attempt)
	if err != nil {
		return err
	}

	correct := 0
	for _, question := range questions {
		key := question.CorrectChoiceIDs()
		chosen := selections[question.ID]
		if len(key) == 0 || len(chosen) != len(key) {
			continue
		}
		match := true
		for _, id := range chosen {
			if _, ok := key[id]; !ok {
				match = false
				break
			}
		}
		if match {
			correct++
		}
	}

	percent := 0.0
	if len(questions) > 0 {
		percent = math.Round(float64(correct)/float64(len(questions))*10000) / 100
	}

	now := s.now().UTC()
	attempt.SubmittedAt = &now
	attempt.NumCorrect = &correct
	attempt.ScorePercent = &percent
	if err := s.attempts.Update(ctx, attempt); err != nil {
		return err
	}

	observability.RecordAttemptSubmitted()
	s.logger.Info().Uint("attempt_id", attempt.ID).Int("correct", correct).
		Float64("percent", percent).Msg("attempt graded")
	return nil
}

func (s *attemptService) buildResult(ctx context.Context, attempt models.Attempt) (dto.ResultResponse, error) {
	questions, selections, err := s.collect(ctx, attempt)
	if err != nil {
		return dto.ResultResponse{}, err
	}

	rows := make([]dto.ResultQuestion, 0, len(questions))
	for _, question := range questions {
		key := question.CorrectChoiceIDs()
		chosen := selections[question.ID]
		match := len(key) > 0 && len(chosen) == len(key)
		if match {
			for _, id := range chosen {
				if _, ok := key[id]; !ok {
					match = false
					break
				}
			}
		}
		rows = append(rows, dto.ResultQuestion{
			Question:          dto.NewKeyedQuestionResponse(question),
			SelectedChoiceIDs: chosen,
			Correct:           match,
		})
	}

	return dto.ResultResponse{
		Attempt:   dto.NewAttemptResponse(attempt),
		Questions: rows,
	}, nil
}

// collect loads the attempt's questions in frozen order plus the student's
// selections per question.
func (s *attemptService) collect(ctx context.Context, attempt models.Attempt) ([]models.Question, map[uint][]uint, error) {
	order := attempt.OrderList()
	loaded, err := s.questions.GetMany(ctx, order)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[uint]models.Question, len(loaded))
	for _, q := range loaded {
		byID[q.ID] = q
	}
	questions := make([]models.Question, 0, len(order))
	for _, id := range order {
		if q, ok := byID[id]; ok {
			questions = append(questions, q)
		}
	}

	answers, err := s.attempts.ListAnswers(ctx, attempt.ID)
	if err != nil {
		return nil, nil, err
	}
	selections := make(map[uint][]uint, len(answers))
	for _, a := range answers {
		selections[a.QuestionID] = append(selections[a.QuestionID], a.ChoiceID)
	}
	return questions, selections, nil
}

// load fetches the attempt and checks ownership.
func (s *attemptService) load(ctx context.Context, attemptID uint, actor Actor) (models.Attempt, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Attempt{}, ErrAttemptNotFound
		}
		return models.Attempt{}, err
	}
	if attempt.StudentID != actor.ID && !actor.IsAdmin() {
		return models.Attempt{}, ErrAttemptNotFound
	}
	return attempt, nil
}

// loadOpen additionally rejects submitted attempts and force-submits
// expired ones.
func (s *attemptService) loadOpen(ctx context.Context, attemptID uint, actor Actor) (models.Attempt, error) {
	attempt, err := s.load(ctx, attemptID, actor)
	if err != nil {
		return models.Attempt{}, err
	}
	if attempt.SubmittedAt != nil {
		return models.Attempt{}, ErrAttemptSubmitted
	}

	now := s.now()
	if !now.Before(attempt.EndTime()) || now.After(attempt.Exam.EndAt) {
		if err := s.grade(ctx, &attempt); err != nil {
			return models.Attempt{}, err
		}
		return models.Attempt{}, ErrAttemptExpired
	}
	return attempt, nil
}
