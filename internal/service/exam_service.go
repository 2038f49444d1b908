package service

import (
	"context"
	"errors"
	"exam_portal_backend/internal/grading"
	"exam_portal_backend/internal/model"
	"exam_portal_backend/internal/repository"
	"exam_portal_backend/internal/util"
	"exam_portal_backend/pkg/logger"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
)

type ExamService struct {
	ExamRepo       *repository.ExamRepository
	SubmissionRepo *repository.SubmissionRepository
}

func NewExamService(examRepo *repository.ExamRepository, submissionRepo *repository.SubmissionRepository) *ExamService {
	return &ExamService{ExamRepo: examRepo, SubmissionRepo: submissionRepo}
}

type OptionReq struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
	Order     int    `json:"order"`
}

type QuestionReq struct {
	ID      string      `json:"id"`
	Text    string      `json:"text"`
	Type    string      `json:"type"`
	Order   int         `json:"order"`
	Points  *float64    `json:"points"`
	Options []OptionReq `json:"options"`
}

// ExamReq 字段为 nil 表示不修改
type ExamReq struct {
	Title           *string        `json:"title"`
	Header          *string        `json:"header"`
	DurationSeconds *int           `json:"durationSeconds"`
	IsPublished     *bool          `json:"isPublished"`
	Questions       *[]QuestionReq `json:"questions"`
}

// buildQuestions 校验题目并转换为模型；未指定顺序时按提交顺序排列
func buildQuestions(reqs []QuestionReq) ([]model.Question, error) {
	out := make([]model.Question, 0, len(reqs))
	for i, r := range reqs {
		if strings.TrimSpace(r.Text) == "" {
			return nil, util.ValidationErrorf("questions[%d]: text is required", i)
		}
		qt, err := grading.ParseQuestionType(r.Type)
		if err != nil {
			return nil, util.ValidationErrorf("questions[%d]: %v", i, err)
		}
		points := grading.DefaultPoints
		if r.Points != nil {
			points = *r.Points
			if math.IsNaN(points) || math.IsInf(points, 0) || points <= 0 {
				return nil, util.ValidationErrorf("questions[%d]: points must be a positive number", i)
			}
		}

		q := model.Question{
			Text:   r.Text,
			Type:   model.QuestionType(qt),
			Order:  r.Order,
			Points: points,
		}
		q.ID = r.ID
		if q.Order == 0 {
			q.Order = i + 1
		}

		if qt.Objective() {
			if len(r.Options) == 0 {
				return nil, util.ValidationErrorf("questions[%d]: at least one option is required", i)
			}
			correct := 0
			for j, o := range r.Options {
				if strings.TrimSpace(o.Text) == "" {
					return nil, util.ValidationErrorf("questions[%d].options[%d]: text is required", i, j)
				}
				if o.IsCorrect {
					correct++
				}
				opt := model.Option{Text: o.Text, IsCorrect: o.IsCorrect, Order: o.Order}
				opt.ID = o.ID
				if opt.Order == 0 {
					opt.Order = j + 1
				}
				q.Options = append(q.Options, opt)
			}
			if correct != 1 {
				return nil, util.ValidationErrorf("questions[%d]: exactly one option must be marked correct", i)
			}
		} else if len(r.Options) > 0 {
			return nil, util.ValidationErrorf("questions[%d]: short answer questions cannot have options", i)
		}
		out = append(out, q)
	}
	return out, nil
}

func (s *ExamService) loadOwnedExam(actor Actor, examID string) (*model.Exam, error) {
	exam, err := s.ExamRepo.FindByID(examID)
	if err != nil {
		return nil, translateErr(err, util.ErrExamNotFound)
	}
	if !actor.Owns(exam.TeacherID) {
		return nil, util.ErrNotExamOwner
	}
	return exam, nil
}

func (s *ExamService) CreateExam(ctx context.Context, actor Actor, req ExamReq) (*model.Exam, error) {
	if !actor.CanAuthor() {
		return nil, util.ErrPermissionDenied
	}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		return nil, util.ValidationError("title is required")
	}
	if req.DurationSeconds != nil && *req.DurationSeconds < 0 {
		return nil, util.ValidationError("durationSeconds cannot be negative")
	}

	exam := &model.Exam{
		TeacherID:       actor.UserID,
		Title:           strings.TrimSpace(*req.Title),
		DurationSeconds: req.DurationSeconds,
	}
	if req.Header != nil {
		exam.Header = *req.Header
	}
	if req.IsPublished != nil && *req.IsPublished {
		now := time.Now()
		exam.IsPublished = true
		exam.PublishedAt = &now
	}
	if req.Questions != nil {
		for _, q := range *req.Questions {
			if q.ID != "" {
				return nil, util.ValidationError("new questions cannot carry an id")
			}
		}
		questions, err := buildQuestions(*req.Questions)
		if err != nil {
			return nil, err
		}
		exam.Questions = questions
	}

	if err := s.ExamRepo.Create(exam); err != nil {
		return nil, util.StorageError(err)
	}
	logger.Log.Info("Exam created",
		zap.String("exam_id", exam.ID),
		zap.Uint("user_id", actor.UserID),
		zap.Int("questions", len(exam.Questions)))
	return exam, nil
}

func (s *ExamService) UpdateExam(ctx context.Context, actor Actor, examID string, req ExamReq) (*model.Exam, error) {
	exam, err := s.loadOwnedExam(actor, examID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			return nil, util.ValidationError("title is required")
		}
		exam.Title = strings.TrimSpace(*req.Title)
	}
	if req.Header != nil {
		exam.Header = *req.Header
	}
	if req.DurationSeconds != nil {
		if *req.DurationSeconds < 0 {
			return nil, util.ValidationError("durationSeconds cannot be negative")
		}
		exam.DurationSeconds = req.DurationSeconds
	}
	if req.IsPublished != nil {
		applyPublished(exam, *req.IsPublished)
	}

	var questions []model.Question
	if req.Questions != nil {
		if questions, err = buildQuestions(*req.Questions); err != nil {
			return nil, err
		}
		if err := s.checkLockedQuestions(exam.ID, questions); err != nil {
			return nil, err
		}
	}

	if err := s.ExamRepo.Update(exam); err != nil {
		return nil, util.StorageError(err)
	}
	if req.Questions != nil {
		if err := s.replaceQuestions(exam.ID, questions); err != nil {
			return nil, err
		}
	}
	return s.getExam(exam.ID)
}

func applyPublished(exam *model.Exam, published bool) {
	if published && !exam.IsPublished {
		now := time.Now()
		exam.PublishedAt = &now
	}
	if !published {
		exam.PublishedAt = nil
	}
	exam.IsPublished = published
}

// checkLockedQuestions 考试已有提交时题型和分值不可修改，题目不可删除
func (s *ExamService) checkLockedQuestions(examID string, incoming []model.Question) error {
	n, err := s.SubmissionRepo.CountSubmittedByExam(examID)
	if err != nil {
		return util.StorageError(err)
	}
	if n == 0 {
		return nil
	}
	current, err := s.ExamRepo.FindWithQuestions(examID)
	if err != nil {
		return util.StorageError(err)
	}
	byID := make(map[string]model.Question, len(incoming))
	for _, q := range incoming {
		if q.ID != "" {
			byID[q.ID] = q
		}
	}
	for _, q := range current.Questions {
		in, ok := byID[q.ID]
		if !ok || in.Type != q.Type || in.Points != q.Points {
			return util.ErrQuestionsLocked
		}
	}
	return nil
}

func (s *ExamService) replaceQuestions(examID string, questions []model.Question) error {
	if err := s.ExamRepo.ReplaceQuestions(examID, questions); err != nil {
		if errors.Is(err, repository.ErrForeignChild) {
			return util.ValidationError(err.Error())
		}
		return util.StorageError(err)
	}
	return nil
}

// ReplaceQuestions 以请求为准整体替换题目列表
func (s *ExamService) ReplaceQuestions(ctx context.Context, actor Actor, examID string, reqs []QuestionReq) (*model.Exam, error) {
	exam, err := s.loadOwnedExam(actor, examID)
	if err != nil {
		return nil, err
	}
	questions, err := buildQuestions(reqs)
	if err != nil {
		return nil, err
	}
	if err := s.checkLockedQuestions(exam.ID, questions); err != nil {
		return nil, err
	}
	if err := s.replaceQuestions(exam.ID, questions); err != nil {
		return nil, err
	}
	logger.Log.Info("Exam questions replaced",
		zap.String("exam_id", exam.ID),
		zap.Uint("user_id", actor.UserID),
		zap.Int("questions", len(questions)))
	return s.getExam(exam.ID)
}

func (s *ExamService) DeleteExam(ctx context.Context, actor Actor, examID string) error {
	exam, err := s.loadOwnedExam(actor, examID)
	if err != nil {
		return err
	}
	if err := s.ExamRepo.Delete(exam.ID); err != nil {
		return util.StorageError(err)
	}
	logger.Log.Info("Exam deleted", zap.String("exam_id", exam.ID), zap.Uint("user_id", actor.UserID))
	return nil
}

func (s *ExamService) getExam(examID string) (*model.Exam, error) {
	exam, err := s.ExamRepo.FindWithQuestions(examID)
	if err != nil {
		return nil, translateErr(err, util.ErrExamNotFound)
	}
	return exam, nil
}

// GetExam 出卷人视图，包含正确答案
func (s *ExamService) GetExam(ctx context.Context, actor Actor, examID string) (*model.Exam, error) {
	if _, err := s.loadOwnedExam(actor, examID); err != nil {
		return nil, err
	}
	return s.getExam(examID)
}

func (s *ExamService) ListMyExams(ctx context.Context, actor Actor) ([]repository.ExamListRow, error) {
	if !actor.CanAuthor() {
		return nil, util.ErrPermissionDenied
	}
	var (
		rows []repository.ExamListRow
		err  error
	)
	if actor.IsAdmin() {
		rows, err = s.ExamRepo.ListAll()
	} else {
		rows, err = s.ExamRepo.ListByTeacher(actor.UserID)
	}
	if err != nil {
		return nil, util.StorageError(err)
	}
	return rows, nil
}

func (s *ExamService) SetPublished(ctx context.Context, actor Actor, examID string, published bool) (*model.Exam, error) {
	exam, err := s.loadOwnedExam(actor, examID)
	if err != nil {
		return nil, err
	}
	applyPublished(exam, published)
	if err := s.ExamRepo.Update(exam); err != nil {
		return nil, util.StorageError(err)
	}
	logger.Log.Info("Exam publication changed",
		zap.String("exam_id", exam.ID),
		zap.Bool("published", published))
	return exam, nil
}

// PublishedExam 学生可见的考试目录项
type PublishedExam struct {
	ID              string                  `json:"id"`
	Title           string                  `json:"title"`
	Header          string                  `json:"header"`
	DurationSeconds *int                    `json:"durationSeconds"`
	QuestionCount   int                     `json:"questionCount"`
	PublishedAt     *time.Time              `json:"publishedAt"`
	AttemptID       *string                 `json:"attemptId"`
	AttemptStatus   *model.SubmissionStatus `json:"attemptStatus"`
}

func (s *ExamService) ListPublishedExams(ctx context.Context, actor Actor) ([]PublishedExam, error) {
	rows, err := s.ExamRepo.ListPublished()
	if err != nil {
		return nil, util.StorageError(err)
	}

	mine := map[string]repository.StudentAttemptRow{}
	if actor.IsStudent() {
		attempts, err := s.SubmissionRepo.ListByStudent(actor.UserID)
		if err != nil {
			return nil, util.StorageError(err)
		}
		for _, a := range attempts {
			mine[a.ExamID] = a
		}
	}

	list := make([]PublishedExam, 0, len(rows))
	for _, r := range rows {
		item := PublishedExam{
			ID:              r.ID,
			Title:           r.Title,
			Header:          r.Header,
			DurationSeconds: r.DurationSeconds,
			QuestionCount:   r.QuestionCount,
			PublishedAt:     r.PublishedAt,
		}
		if a, ok := mine[r.ID]; ok {
			id, status := a.ID, a.Status
			item.AttemptID = &id
			item.AttemptStatus = &status
		}
		list = append(list, item)
	}
	return list, nil
}

func (s *ExamService) ListExamSubmissions(ctx context.Context, actor Actor, examID string) ([]repository.ExamSubmissionRow, error) {
	exam, err := s.loadOwnedExam(actor, examID)
	if err != nil {
		return nil, err
	}
	rows, err := s.SubmissionRepo.ListByExam(exam.ID)
	if err != nil {
		return nil, util.StorageError(err)
	}
	return rows, nil
}
