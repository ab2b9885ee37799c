package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/examdesk/examdesk-api/internal/dto"
	"github.com/examdesk/examdesk-api/internal/models"
	"github.com/examdesk/examdesk-api/internal/observability"
	"github.com/examdesk/examdesk-api/internal/repository"
)

const maxChoicesPerQuestion = 6

var (
	// ErrSheetHeaderInvalid indicates the workbook is missing required columns.
	ErrSheetHeaderInvalid = errors.New("spreadsheet must contain question, option1 and option2 columns")
	// ErrSheetEmpty indicates no importable rows were found.
	ErrSheetEmpty = errors.New("spreadsheet contains no question rows")
	// ErrSheetRowInvalid indicates a data row that cannot be imported.
	ErrSheetRowInvalid = errors.New("invalid spreadsheet row")
)

// SpreadsheetService imports and exports exam questions as xlsx workbooks.
type SpreadsheetService interface {
	Import(ctx context.Context, examID uint, actor Actor, file *multipart.FileHeader, fromRow, toRow int) (dto.ImportReport, error)
	Template(ctx context.Context) ([]byte, error)
	Export(ctx context.Context, examID uint, actor Actor) ([]byte, string, error)
}

type spreadsheetService struct {
	questions repository.QuestionRepository
	exams     repository.ExamRepository
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewSpreadsheetService builds a new spreadsheet service.
func NewSpreadsheetService(questions repository.QuestionRepository, exams repository.ExamRepository, logger zerolog.Logger) SpreadsheetService {
	return &spreadsheetService{
		questions: questions,
		exams:     exams,
		sanitizer: newMarkupPolicy(),
		logger:    logger.With().Str("component", "spreadsheet_service").Logger(),
	}
}

// columnMap resolves canonical header names to zero-based column indexes.
type columnMap map[string]int

var (
	optionImagePattern = regexp.MustCompile(`^option(\d+).*image`)
	optionTextPattern  = regexp.MustCompile(`^option(\d+)`)
)

// canonicalHeader maps a header cell onto its canonical column name.
// Workbooks in the wild carry decorated headers like "Type (single/multiple)",
// "Correct (letters)" or "Option1Image", so matching goes by prefix rather
// than exact token.
func canonicalHeader(cell string) string {
	h := strings.ToLower(strings.TrimSpace(cell))
	h = strings.ReplaceAll(h, " ", "")
	h = strings.ReplaceAll(h, "-", "_")
	switch {
	case strings.HasPrefix(h, "question") && strings.Contains(h, "image"):
		return "question_image"
	case strings.HasPrefix(h, "question"):
		return "question"
	case strings.HasPrefix(h, "type"):
		return "type"
	case strings.HasPrefix(h, "correct"):
		return "correct"
	case strings.HasPrefix(h, "reason"):
		return "reason"
	}
	if m := optionImagePattern.FindStringSubmatch(h); m != nil {
		return "option" + m[1] + "_image"
	}
	if m := optionTextPattern.FindStringSubmatch(h); m != nil {
		return "option" + m[1]
	}
	return h
}

func (s *spreadsheetService) Import(ctx context.Context, examID uint, actor Actor, file *multipart.FileHeader, fromRow, toRow int) (dto.ImportReport, error) {
	exam, err := s.loadExam(ctx, examID, actor)
	if err != nil {
		return dto.ImportReport{}, err
	}

	src, err := file.Open()
	if err != nil {
		return dto.ImportReport{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()

	workbook, err := excelize.OpenReader(src)
	if err != nil {
		return dto.ImportReport{}, fmt.Errorf("failed to read workbook: %w", err)
	}
	defer workbook.Close()

	sheet := workbook.GetSheetName(0)
	rows, err := workbook.GetRows(sheet)
	if err != nil {
		return dto.ImportReport{}, fmt.Errorf("failed to read sheet: %w", err)
	}
	if len(rows) < 2 {
		return dto.ImportReport{}, ErrSheetEmpty
	}

	// First occurrence wins when a header repeats.
	columns := columnMap{}
	for idx, cell := range rows[0] {
		name := canonicalHeader(cell)
		if name == "" {
			continue
		}
		if _, taken := columns[name]; !taken {
			columns[name] = idx
		}
	}
	if _, ok := columns["question"]; !ok {
		return dto.ImportReport{}, ErrSheetHeaderInvalid
	}
	if _, ok := columns["option1"]; !ok {
		return dto.ImportReport{}, ErrSheetHeaderInvalid
	}
	if _, ok := columns["option2"]; !ok {
		return dto.ImportReport{}, ErrSheetHeaderInvalid
	}

	// Data rows are 1-based in the sheet; row 1 is the header.
	first, last := 2, len(rows)
	if fromRow > first {
		first = fromRow
	}
	if toRow > 0 && toRow < last {
		last = toRow
	}

	questions := make([]*models.Question, 0, last-first+1)
	for rowNum := first; rowNum <= last; rowNum++ {
		row := rows[rowNum-1]
		question, empty, err := s.parseRow(row, columns, exam)
		if err != nil {
			return dto.ImportReport{}, fmt.Errorf("%w %d: %v", ErrSheetRowInvalid, rowNum, err)
		}
		if empty {
			continue
		}
		questions = append(questions, question)
	}
	if len(questions) == 0 {
		return dto.ImportReport{}, ErrSheetEmpty
	}

	if err := s.questions.CreateBatch(ctx, questions); err != nil {
		return dto.ImportReport{}, err
	}

	observability.RecordQuestionsImported(len(questions))
	s.logger.Info().Uint("exam_id", exam.ID).Int("imported", len(questions)).Msg("questions imported")
	return dto.ImportReport{Imported: len(questions), FromRow: first, ToRow: last}, nil
}

// parseRow turns one data row into a question. Rows whose question cell is
// blank are skipped entirely.
func (s *spreadsheetService) parseRow(row []string, columns columnMap, exam models.Exam) (*models.Question, bool, error) {
	cell := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	text := cell("question")
	if text == "" {
		return nil, true, nil
	}

	qtype := normalizeQType(cell("type"))

	type rawChoice struct {
		text  string
		image string
	}
	raw := make([]rawChoice, 0, maxChoicesPerQuestion)
	for i := 1; i <= maxChoicesPerQuestion; i++ {
		raw = append(raw, rawChoice{
			text:  cell(fmt.Sprintf("option%d", i)),
			image: cell(fmt.Sprintf("option%d_image", i)),
		})
	}

	// Trim trailing empty slots, then reject gaps and orphaned images.
	lastFilled := -1
	for i, c := range raw {
		if c.text != "" {
			lastFilled = i
		}
	}
	if lastFilled < 1 {
		return nil, false, errors.New("at least two options are required")
	}
	for i := 0; i <= lastFilled; i++ {
		if raw[i].text == "" {
			return nil, false, fmt.Errorf("option%d is empty but later options are filled", i+1)
		}
	}
	for i := lastFilled + 1; i < len(raw); i++ {
		if raw[i].image != "" {
			return nil, false, fmt.Errorf("option%d has an image but no text", i+1)
		}
	}

	correct, err := parseCorrectCell(cell("correct"), lastFilled+1)
	if err != nil {
		return nil, false, err
	}
	if qtype == models.QuestionTypeSingle && len(correct) > 1 {
		return nil, false, errors.New("single-answer question marks more than one correct option")
	}

	choices := make([]models.Choice, 0, lastFilled+1)
	for i := 0; i <= lastFilled; i++ {
		choices = append(choices, models.Choice{
			Text:      s.sanitizer.Sanitize(raw[i].text),
			ImagePath: raw[i].image,
			IsCorrect: correct[i],
			TenantID:  exam.TenantID,
		})
	}

	return &models.Question{
		ExamID:    exam.ID,
		TenantID:  exam.TenantID,
		Text:      s.sanitizer.Sanitize(text),
		QType:     qtype,
		Reason:    s.sanitizer.Sanitize(cell("reason")),
		ImagePath: cell("question_image"),
		Choices:   choices,
	}, false, nil
}

// parseCorrectCell reads markers like "A,C", "a c" or "1,3" into a set of
// option indexes. Markers beyond the option count are rejected.
func parseCorrectCell(cellValue string, optionCount int) (map[int]bool, error) {
	correct := make(map[int]bool, optionCount)
	if strings.TrimSpace(cellValue) == "" {
		return correct, nil
	}

	fields := strings.FieldsFunc(cellValue, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '/'
	})
	for _, field := range fields {
		token := strings.ToUpper(strings.TrimSpace(field))
		if token == "" {
			continue
		}

		var idx int
		if n, err := strconv.Atoi(token); err == nil {
			idx = n - 1
		} else if len(token) == 1 && token[0] >= 'A' && token[0] <= 'F' {
			idx = int(token[0] - 'A')
		} else {
			return nil, fmt.Errorf("unrecognized correct marker %q", field)
		}

		if idx < 0 || idx >= optionCount {
			return nil, fmt.Errorf("correct marker %q has no matching option", field)
		}
		correct[idx] = true
	}
	return correct, nil
}

var templateHeaders = []string{
	"question", "question_image", "type",
	"option1", "option2", "option3", "option4", "option5", "option6",
	"option1_image", "option2_image", "option3_image", "option4_image", "option5_image", "option6_image",
	"correct", "reason",
}

func (s *spreadsheetService) Template(ctx context.Context) ([]byte, error) {
	workbook := excelize.NewFile()
	defer workbook.Close()

	sheet := workbook.GetSheetName(0)
	for idx, header := range templateHeaders {
		cellName, err := excelize.CoordinatesToCellName(idx+1, 1)
		if err != nil {
			return nil, err
		}
		if err := workbook.SetCellValue(sheet, cellName, header); err != nil {
			return nil, err
		}
	}

	sample := []interface{}{
		"What is the capital of France?", "", "single",
		"Paris", "London", "Berlin", "", "", "",
		"", "", "", "", "", "",
		"A", "Paris has been the capital since 508.",
	}
	if err := workbook.SetSheetRow(sheet, "A2", &sample); err != nil {
		return nil, err
	}

	buf, err := workbook.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize template: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *spreadsheetService) Export(ctx context.Context, examID uint, actor Actor) ([]byte, string, error) {
	exam, err := s.exams.GetWithQuestions(ctx, examID)
	if err != nil {
		return nil, "", ErrExamNotFound
	}
	if err := authorizeExam(exam, actor); err != nil {
		return nil, "", err
	}

	workbook := excelize.NewFile()
	defer workbook.Close()

	sheet := workbook.GetSheetName(0)
	headerRow := make([]interface{}, len(templateHeaders))
	for i, h := range templateHeaders {
		headerRow[i] = h
	}
	if err := workbook.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return nil, "", err
	}

	for rowIdx, question := range exam.Questions {
		row := make([]interface{}, len(templateHeaders))
		row[0] = question.Text
		row[1] = question.ImagePath
		row[2] = question.QType
		letters := make([]string, 0, 2)
		for i, choice := range question.Choices {
			if i >= maxChoicesPerQuestion {
				break
			}
			row[3+i] = choice.Text
			row[9+i] = choice.ImagePath
			if choice.IsCorrect {
				letters = append(letters, string(rune('A'+i)))
			}
		}
		row[15] = strings.Join(letters, ",")
		row[16] = question.Reason

		cellName, err := excelize.CoordinatesToCellName(1, rowIdx+2)
		if err != nil {
			return nil, "", err
		}
		if err := workbook.SetSheetRow(sheet, cellName, &row); err != nil {
			return nil, "", err
		}
	}

	buf, err := workbook.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to serialize export: %w", err)
	}

	name := fmt.Sprintf("exam_%d_questions.xlsx", exam.ID)
	return buf.Bytes(), name, nil
}

func (s *spreadsheetService) loadExam(ctx context.Context, examID uint, actor Actor) (models.Exam, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return models.Exam{}, ErrExamNotFound
	}
	if err := authorizeExam(exam, actor); err != nil {
		return models.Exam{}, err
	}
	return exam, nil
}
