package service

import (
	"context"
	"errors"
	"exam_portal_backend/internal/config"
	"exam_portal_backend/internal/grading"
	"exam_portal_backend/internal/model"
	"exam_portal_backend/internal/repository"
	"exam_portal_backend/internal/util"
	"exam_portal_backend/pkg/logger"
	"exam_portal_backend/pkg/monitoring"
	"exam_portal_backend/pkg/tracing"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SubmitLocker 同一作答的提交互斥，未启用 Redis 时为 nil
type SubmitLocker interface {
	Acquire(ctx context.Context, attemptID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, attemptID string) error
}

type AttemptService struct {
	ExamRepo       *repository.ExamRepository
	SubmissionRepo *repository.SubmissionRepository
	Locker         SubmitLocker

	mu     sync.RWMutex
	policy config.AttemptConfig
	now    func() time.Time
}

func NewAttemptService(examRepo *repository.ExamRepository, submissionRepo *repository.SubmissionRepository, locker SubmitLocker, policy config.AttemptConfig) *AttemptService {
	return &AttemptService{
		ExamRepo:       examRepo,
		SubmissionRepo: submissionRepo,
		Locker:         locker,
		policy:         policy.Normalized(),
		now:            time.Now,
	}
}

// SetPolicy 配置热更新时调用
func (s *AttemptService) SetPolicy(policy config.AttemptConfig) {
	s.mu.Lock()
	s.policy = policy.Normalized()
	s.mu.Unlock()
}

func (s *AttemptService) Policy() config.AttemptConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

func (s *AttemptService) rules() grading.Rules {
	return grading.Rules{MaxTextLength: s.Policy().MaxTextAnswerLength}
}

func toGradingQuestions(qs []model.Question) []grading.Question {
	out := make([]grading.Question, 0, len(qs))
	for _, q := range qs {
		gq := grading.Question{ID: q.ID, Type: grading.QuestionType(q.Type), Points: q.Points}
		for _, o := range q.Options {
			gq.Options = append(gq.Options, grading.Option{ID: o.ID, IsCorrect: o.IsCorrect})
		}
		out = append(out, gq)
	}
	return out
}

func (s *AttemptService) StartAttempt(ctx context.Context, actor Actor, examID string) (sub *model.Submission, err error) {
	_, span := tracing.StartSpan(ctx, "AttemptService.StartAttempt")
	defer func() { tracing.EndSpan(span, err) }()

	if !actor.IsStudent() {
		return nil, util.ErrPermissionDenied
	}

	exam, err := s.ExamRepo.FindByID(examID)
	if err != nil {
		return nil, translateErr(err, util.ErrExamNotAvailable)
	}
	if !exam.IsPublished {
		return nil, util.ErrExamNotAvailable
	}

	sub = &model.Submission{
		ExamID:    exam.ID,
		StudentID: actor.UserID,
		Status:    model.StatusStarted,
		StartedAt: s.now(),
	}
	if err := s.SubmissionRepo.CreateUnique(sub); err != nil {
		if errors.Is(err, repository.ErrDuplicateSubmission) {
			return nil, util.ErrDuplicateAttempt
		}
		return nil, util.StorageError(err)
	}

	monitoring.AttemptsStarted.Inc()
	logger.Log.Info("Attempt started",
		zap.String("attempt_id", sub.ID),
		zap.String("exam_id", exam.ID),
		zap.Uint("user_id", actor.UserID))
	return sub, nil
}

type PaperOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type PaperQuestion struct {
	ID      string             `json:"id"`
	Text    string             `json:"text"`
	Type    model.QuestionType `json:"type"`
	Order   int                `json:"order"`
	Points  float64            `json:"points"`
	Options []PaperOption      `json:"options"`
}

// AttemptPaper 学生作答视图，不包含正确答案
type AttemptPaper struct {
	AttemptID        string                 `json:"attemptId"`
	ExamID           string                 `json:"examId"`
	Title            string                 `json:"title"`
	Header           string                 `json:"header"`
	Status           model.SubmissionStatus `json:"status"`
	StartedAt        time.Time              `json:"startedAt"`
	DurationSeconds  *int                   `json:"durationSeconds"`
	RemainingSeconds *int                   `json:"remainingSeconds"`
	Questions        []PaperQuestion        `json:"questions"`
}

// loadOwnAttempt 学生只能访问自己的作答
func (s *AttemptService) loadOwnAttempt(actor Actor, attemptID string) (*model.Submission, error) {
	sub, err := s.SubmissionRepo.FindByID(attemptID)
	if err != nil {
		return nil, translateErr(err, util.ErrAttemptNotFound)
	}
	if sub.StudentID != actor.UserID || !actor.IsStudent() {
		return nil, util.ErrPermissionDenied
	}
	return sub, nil
}

func (s *AttemptService) GetAttemptPaper(ctx context.Context, actor Actor, attemptID string) (*AttemptPaper, error) {
	sub, err := s.loadOwnAttempt(actor, attemptID)
	if err != nil {
		return nil, err
	}
	exam, err := s.ExamRepo.FindWithQuestions(sub.ExamID)
	if err != nil {
		return nil, translateErr(err, util.ErrExamNotFound)
	}

	paper := &AttemptPaper{
		AttemptID:       sub.ID,
		ExamID:          exam.ID,
		Title:           exam.Title,
		Header:          exam.Header,
		Status:          sub.Status,
		StartedAt:       sub.StartedAt,
		DurationSeconds: exam.DurationSeconds,
		Questions:       make([]PaperQuestion, 0, len(exam.Questions)),
	}
	if exam.DurationSeconds != nil {
		remaining := int(sub.StartedAt.Add(time.Duration(*exam.DurationSeconds)*time.Second).Sub(s.now()) / time.Second)
		if remaining < 0 || sub.Status != model.StatusStarted {
			remaining = 0
		}
		paper.RemainingSeconds = &remaining
	}

	for _, q := range exam.Questions {
		pq := PaperQuestion{
			ID:      q.ID,
			Text:    q.Text,
			Type:    q.Type,
			Order:   q.Order,
			Points:  grading.Question{Points: q.Points}.MaxPoints(),
			Options: make([]PaperOption, 0, len(q.Options)),
		}
		for _, o := range q.Options {
			pq.Options = append(pq.Options, PaperOption{ID: o.ID, Text: o.Text})
		}
		paper.Questions = append(paper.Questions, pq)
	}
	return paper, nil
}

type AnswerInput struct {
	QuestionID       string  `json:"questionId"`
	SelectedOptionID *string `json:"selectedOptionId"`
	TextAnswer       *string `json:"textAnswer"`
}

type SubmitResult struct {
	AttemptID          string                 `json:"attemptId"`
	Score              float64                `json:"score"`
	TotalPossibleScore float64                `json:"totalPossibleScore"`
	Status             model.SubmissionStatus `json:"status"`
	IsFullyGraded      bool                   `json:"isFullyGraded"`
}

func (s *AttemptService) SubmitAnswers(ctx context.Context, actor Actor, attemptID string, answers []AnswerInput) (result *SubmitResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "AttemptService.SubmitAnswers")
	defer func() {
		tracing.EndSpan(span, err)
		if err != nil && util.KindOf(err) != util.KindInternal && util.KindOf(err) != util.KindStorage {
			monitoring.SubmissionsTotal.WithLabelValues("rejected").Inc()
		}
	}()

	sub, err := s.loadOwnAttempt(actor, attemptID)
	if err != nil {
		return nil, err
	}
	if sub.Status != model.StatusStarted {
		return nil, util.ErrAttemptAlreadySubmitted
	}

	exam, err := s.ExamRepo.FindWithQuestions(sub.ExamID)
	if err != nil {
		return nil, translateErr(err, util.ErrExamNotFound)
	}

	responses := make([]grading.Response, len(answers))
	for i, a := range answers {
		responses[i] = grading.Response{QuestionID: a.QuestionID, SelectedOptionID: a.SelectedOptionID, TextAnswer: a.TextAnswer}
	}
	scored, err := grading.Score(toGradingQuestions(exam.Questions), responses, s.rules())
	if err != nil {
		return nil, util.ValidationError(err.Error())
	}

	policy := s.Policy()
	if s.Locker != nil {
		ttl := time.Duration(policy.SubmitLockSeconds) * time.Second
		acquired, lockErr := s.Locker.Acquire(ctx, sub.ID, ttl)
		switch {
		case lockErr != nil:
			logger.Log.Warn("Submit lock unavailable, relying on database",
				zap.String("attempt_id", sub.ID), zap.Error(lockErr))
		case !acquired:
			return nil, util.ErrAttemptAlreadySubmitted
		default:
			defer func() {
				if err := s.Locker.Release(context.Background(), sub.ID); err != nil {
					logger.Log.Warn("Failed to release submit lock", zap.String("attempt_id", sub.ID), zap.Error(err))
				}
			}()
		}
	}

	now := s.now()
	err = s.SubmissionRepo.Transaction(func(tx *repository.SubmissionRepository) error {
		locked, err := tx.LockByID(sub.ID)
		if err != nil {
			return err
		}
		if locked.Status != model.StatusStarted {
			return util.ErrAttemptAlreadySubmitted
		}
		if policy.EnforceDeadline && exam.DurationSeconds != nil {
			deadline := locked.StartedAt.Add(time.Duration(*exam.DurationSeconds+policy.GraceSeconds) * time.Second)
			if now.After(deadline) {
				return util.ErrAttemptExpired
			}
		}

		rows := make([]model.Answer, 0, len(scored.Outcomes))
		for _, o := range scored.Outcomes {
			rows = append(rows, model.Answer{
				QuestionID:       o.QuestionID,
				SelectedOptionID: o.SelectedOptionID,
				TextAnswer:       o.TextAnswer,
				IsCorrect:        o.Grade.IsCorrect(),
				PointsAwarded:    o.Grade.PointsAwarded(),
			})
		}
		if err := tx.ReplaceAnswers(locked.ID, rows); err != nil {
			return err
		}

		score := scored.Summary.Score
		locked.Score = &score
		locked.Status = model.SubmissionStatus(scored.Summary.Status)
		locked.IsFullyGraded = scored.Summary.FullyGraded
		locked.SubmittedAt = &now
		if locked.IsFullyGraded {
			locked.GradedAt = &now
		}
		swapped, err := tx.MarkSubmitted(locked)
		if err != nil {
			return err
		}
		if !swapped {
			return util.ErrAttemptAlreadySubmitted
		}
		return nil
	})
	if err != nil {
		return nil, translateErr(err, util.ErrAttemptNotFound)
	}

	result = &SubmitResult{
		AttemptID:          sub.ID,
		Score:              scored.Summary.Score,
		TotalPossibleScore: scored.TotalPossible,
		Status:             model.SubmissionStatus(scored.Summary.Status),
		IsFullyGraded:      scored.Summary.FullyGraded,
	}
	monitoring.SubmissionsTotal.WithLabelValues(string(result.Status)).Inc()
	logger.Log.Info("Attempt submitted",
		zap.String("attempt_id", sub.ID),
		zap.String("exam_id", sub.ExamID),
		zap.Uint("user_id", actor.UserID),
		zap.Float64("score", result.Score),
		zap.String("status", string(result.Status)))
	return result, nil
}

type ResultOption struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

type AnswerDetail struct {
	AnswerID         string             `json:"answerId"`
	QuestionID       string             `json:"questionId"`
	QuestionText     string             `json:"questionText"`
	QuestionType     model.QuestionType `json:"questionType"`
	Order            int                `json:"order"`
	MaxPoints        float64            `json:"maxPoints"`
	Options          []ResultOption     `json:"options"`
	SelectedOptionID *string            `json:"selectedOptionId"`
	TextAnswer       *string            `json:"textAnswer"`
	IsCorrect        *bool              `json:"isCorrect"`
	PointsAwarded    *float64           `json:"pointsAwarded"`
	GradeState       string             `json:"gradeState"`
}

type AttemptResult struct {
	AttemptID          string                 `json:"attemptId"`
	ExamID             string                 `json:"examId"`
	ExamTitle          string                 `json:"examTitle"`
	StudentID          uint                   `json:"studentId"`
	Status             model.SubmissionStatus `json:"status"`
	Score              *float64               `json:"score"`
	TotalPossibleScore float64                `json:"totalPossibleScore"`
	IsFullyGraded      bool                   `json:"isFullyGraded"`
	StartedAt          time.Time              `json:"startedAt"`
	SubmittedAt        *time.Time             `json:"submittedAt"`
	GradedAt           *time.Time             `json:"gradedAt"`
	Answers            []AnswerDetail         `json:"answers"`
}

// GetAttemptResult 作答学生、试卷所属教师和管理员可查看
func (s *AttemptService) GetAttemptResult(ctx context.Context, actor Actor, attemptID string) (*AttemptResult, error) {
	sub, err := s.SubmissionRepo.FindByID(attemptID)
	if err != nil {
		return nil, translateErr(err, util.ErrAttemptNotFound)
	}
	exam, err := s.ExamRepo.FindByID(sub.ExamID)
	if err != nil {
		return nil, translateErr(err, util.ErrExamNotFound)
	}
	ownStudent := actor.IsStudent() && sub.StudentID == actor.UserID
	if !ownStudent && !actor.Owns(exam.TeacherID) {
		return nil, util.ErrPermissionDenied
	}
	if sub.Status == model.StatusStarted {
		return nil, util.ErrAttemptNotSubmitted
	}

	return buildAttemptResult(s.ExamRepo, s.SubmissionRepo, exam, sub)
}

func buildAttemptResult(examRepo *repository.ExamRepository, subRepo *repository.SubmissionRepository, exam *model.Exam, sub *model.Submission) (*AttemptResult, error) {
	answers, err := subRepo.ListAnswers(sub.ID)
	if err != nil {
		return nil, util.StorageError(err)
	}
	ids := make([]string, 0, len(answers))
	for _, a := range answers {
		ids = append(ids, a.QuestionID)
	}
	questions, err := examRepo.FindQuestionsByIDs(ids)
	if err != nil {
		return nil, util.StorageError(err)
	}
	byID := make(map[string]model.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	res := &AttemptResult{
		AttemptID:     sub.ID,
		ExamID:        exam.ID,
		ExamTitle:     exam.Title,
		StudentID:     sub.StudentID,
		Status:        sub.Status,
		Score:         sub.Score,
		IsFullyGraded: sub.IsFullyGraded,
		StartedAt:     sub.StartedAt,
		SubmittedAt:   sub.SubmittedAt,
		GradedAt:      sub.GradedAt,
		Answers:       make([]AnswerDetail, 0, len(answers)),
	}
	for _, a := range answers {
		q := byID[a.QuestionID]
		max := grading.Question{Points: q.Points}.MaxPoints()
		res.TotalPossibleScore += max
		d := AnswerDetail{
			AnswerID:         a.ID,
			QuestionID:       a.QuestionID,
			QuestionText:     q.Text,
			QuestionType:     q.Type,
			Order:            q.Order,
			MaxPoints:        max,
			Options:          make([]ResultOption, 0, len(q.Options)),
			SelectedOptionID: a.SelectedOptionID,
			TextAnswer:       a.TextAnswer,
			IsCorrect:        a.IsCorrect,
			PointsAwarded:    a.PointsAwarded,
			GradeState:       grading.FromColumns(a.IsCorrect, a.PointsAwarded).State.String(),
		}
		for _, o := range q.Options {
			d.Options = append(d.Options, ResultOption{ID: o.ID, Text: o.Text, IsCorrect: o.IsCorrect})
		}
		res.Answers = append(res.Answers, d)
	}
	sort.SliceStable(res.Answers, func(i, j int) bool { return res.Answers[i].Order < res.Answers[j].Order })
	return res, nil
}

func (s *AttemptService) ListMyAttempts(ctx context.Context, actor Actor) ([]repository.StudentAttemptRow, error) {
	if !actor.IsStudent() {
		return nil, util.ErrPermissionDenied
	}
	rows, err := s.SubmissionRepo.ListByStudent(actor.UserID)
	if err != nil {
		return nil, util.StorageError(err)
	}
	return rows, nil
}

// ResetAttempt 删除作答及其答案，学生可重新开始考试
func (s *AttemptService) ResetAttempt(ctx context.Context, actor Actor, attemptID string) (err error) {
	_, span := tracing.StartSpan(ctx, "AttemptService.ResetAttempt")
	defer func() { tracing.EndSpan(span, err) }()

	sub, err := s.SubmissionRepo.FindByID(attemptID)
	if err != nil {
		return translateErr(err, util.ErrAttemptNotFound)
	}
	exam, err := s.ExamRepo.FindByID(sub.ExamID)
	if err != nil {
		return translateErr(err, util.ErrExamNotFound)
	}
	if !actor.Owns(exam.TeacherID) {
		return util.ErrNotExamOwner
	}
	if err := s.SubmissionRepo.DeleteWithAnswers(sub.ID); err != nil {
		return util.StorageError(err)
	}

	logger.Log.Info("Attempt reset",
		zap.String("attempt_id", sub.ID),
		zap.String("exam_id", exam.ID),
		zap.Uint("student_id", sub.StudentID),
		zap.Uint("user_id", actor.UserID))
	return nil
}
