package service

import (
	"context"
	"exam_portal_backend/internal/grading"
	"exam_portal_backend/internal/model"
	"exam_portal_backend/internal/repository"
	"exam_portal_backend/internal/util"
	"exam_portal_backend/pkg/logger"
	"exam_portal_backend/pkg/monitoring"
	"exam_portal_backend/pkg/tracing"
	"time"

	"go.uber.org/zap"
)

type GradingService struct {
	ExamRepo       *repository.ExamRepository
	SubmissionRepo *repository.SubmissionRepository
	now            func() time.Time
}

func NewGradingService(examRepo *repository.ExamRepository, submissionRepo *repository.SubmissionRepository) *GradingService {
	return &GradingService{ExamRepo: examRepo, SubmissionRepo: submissionRepo, now: time.Now}
}

// GradeInput PointsAwarded 为 nil 表示撤销批改；HTTP 层要求显式传入 null
type GradeInput struct {
	AnswerID      string   `json:"answerId"`
	PointsAwarded *float64 `json:"pointsAwarded"`
}

type GradeSummary struct {
	AttemptID          string                 `json:"attemptId"`
	Score              float64                `json:"score"`
	TotalPossibleScore float64                `json:"totalPossibleScore"`
	IsFullyGraded      bool                   `json:"isFullyGraded"`
	Status             model.SubmissionStatus `json:"status"`
}

// SaveManualGrades 批量保存简答题人工评分。
// 所有校验在写入前完成；写入、重新读取和汇总在同一事务内进行。
func (s *GradingService) SaveManualGrades(ctx context.Context, actor Actor, attemptID string, grades []GradeInput) (summary *GradeSummary, err error) {
	_, span := tracing.StartSpan(ctx, "GradingService.SaveManualGrades")
	defer func() { tracing.EndSpan(span, err) }()

	if !actor.CanAuthor() {
		return nil, util.ErrPermissionDenied
	}
	if len(grades) == 0 {
		return nil, util.ValidationError("at least one grade is required")
	}

	sub, err := s.SubmissionRepo.FindByID(attemptID)
	if err != nil {
		return nil, translateErr(err, util.ErrAttemptNotFound)
	}
	exam, err := s.ExamRepo.FindByID(sub.ExamID)
	if err != nil {
		return nil, translateErr(err, util.ErrExamNotFound)
	}
	if !actor.Owns(exam.TeacherID) {
		return nil, util.ErrNotExamOwner
	}
	if sub.Status == model.StatusStarted {
		return nil, util.ErrAttemptNotSubmitted
	}

	answers, err := s.SubmissionRepo.ListAnswers(sub.ID)
	if err != nil {
		return nil, util.StorageError(err)
	}
	questionIDs := make([]string, 0, len(answers))
	answerByID := make(map[string]model.Answer, len(answers))
	for _, a := range answers {
		answerByID[a.ID] = a
		questionIDs = append(questionIDs, a.QuestionID)
	}
	questions, err := s.ExamRepo.FindQuestionsByIDs(questionIDs)
	if err != nil {
		return nil, util.StorageError(err)
	}
	questionByID := make(map[string]model.Question, len(questions))
	var totalPossible float64
	for _, q := range questions {
		questionByID[q.ID] = q
	}
	for _, a := range answers {
		totalPossible += grading.Question{Points: questionByID[a.QuestionID].Points}.MaxPoints()
	}

	seen := make(map[string]bool, len(grades))
	for i, g := range grades {
		if g.AnswerID == "" {
			return nil, util.ValidationErrorf("grades[%d]: answerId is required", i)
		}
		if seen[g.AnswerID] {
			return nil, util.ValidationErrorf("grades[%d]: duplicate answerId %s", i, g.AnswerID)
		}
		seen[g.AnswerID] = true

		a, ok := answerByID[g.AnswerID]
		if !ok {
			return nil, util.ErrAnswerNotFound
		}
		q, ok := questionByID[a.QuestionID]
		if !ok || q.Type != model.QuestionShortAnswer {
			return nil, util.ValidationErrorf("grades[%d]: only short answer responses can be graded manually", i)
		}
		if err := grading.ValidatePoints(g.PointsAwarded, grading.Question{Points: q.Points}.MaxPoints()); err != nil {
			return nil, util.ValidationErrorf("grades[%d]: %v", i, err)
		}
	}

	now := s.now()
	var reconciled grading.Summary
	err = s.SubmissionRepo.Transaction(func(tx *repository.SubmissionRepository) error {
		locked, err := tx.LockByID(sub.ID)
		if err != nil {
			return err
		}
		if locked.Status == model.StatusStarted {
			return util.ErrAttemptNotSubmitted
		}

		for _, g := range grades {
			mg := grading.ManualGrade(g.PointsAwarded)
			if err := tx.UpdateAnswerGrade(g.AnswerID, mg.IsCorrect(), mg.PointsAwarded()); err != nil {
				return err
			}
		}

		fresh, err := tx.ListAnswers(locked.ID)
		if err != nil {
			return err
		}
		current := make([]grading.Grade, 0, len(fresh))
		for _, a := range fresh {
			current = append(current, grading.FromColumns(a.IsCorrect, a.PointsAwarded))
		}
		reconciled = grading.Reconcile(current)

		score := reconciled.Score
		locked.Score = &score
		locked.IsFullyGraded = reconciled.FullyGraded
		locked.Status = model.SubmissionStatus(reconciled.Status)
		locked.GradedAt = nil
		if reconciled.FullyGraded {
			locked.GradedAt = &now
		}
		return tx.UpdateGradingSummary(locked)
	})
	if err != nil {
		return nil, translateErr(err, util.ErrAttemptNotFound)
	}

	summary = &GradeSummary{
		AttemptID:          sub.ID,
		Score:              reconciled.Score,
		TotalPossibleScore: totalPossible,
		IsFullyGraded:      reconciled.FullyGraded,
		Status:             model.SubmissionStatus(reconciled.Status),
	}
	monitoring.ManualGradeUpdates.WithLabelValues(string(summary.Status)).Inc()
	logger.Log.Info("Manual grades saved",
		zap.String("attempt_id", sub.ID),
		zap.String("exam_id", exam.ID),
		zap.Uint("user_id", actor.UserID),
		zap.Int("grades", len(grades)),
		zap.Float64("score", summary.Score),
		zap.String("status", string(summary.Status)))
	return summary, nil
}
