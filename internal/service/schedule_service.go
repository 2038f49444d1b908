package service

import (
	"context"
	"exam_portal_backend/internal/model"
	"exam_portal_backend/internal/repository"
	"exam_portal_backend/internal/util"
	"strings"
	"time"
)

type ScheduleService struct {
	Repo     *repository.ScheduleRepository
	ExamRepo *repository.ExamRepository
}

func NewScheduleService(repo *repository.ScheduleRepository, examRepo *repository.ExamRepository) *ScheduleService {
	return &ScheduleService{Repo: repo, ExamRepo: examRepo}
}

type ScheduleReq struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	ExamDate    *time.Time `json:"examDate"`
	ExamID      *string    `json:"examId"`
	IsPublished *bool      `json:"isPublished"`
}

// checkLinkedExam 关联的试卷必须属于同一位教师；空字符串表示解除关联
func (s *ScheduleService) checkLinkedExam(ownerID uint, examID *string) (*string, error) {
	if examID == nil || *examID == "" {
		return nil, nil
	}
	exam, err := s.ExamRepo.FindByID(*examID)
	if err != nil {
		return nil, translateErr(err, util.ErrExamNotFound)
	}
	if exam.TeacherID != ownerID {
		return nil, util.ErrNotExamOwner
	}
	id := exam.ID
	return &id, nil
}

func (s *ScheduleService) Create(ctx context.Context, actor Actor, req ScheduleReq) (*model.ScheduledExam, error) {
	if !actor.CanAuthor() {
		return nil, util.ErrPermissionDenied
	}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		return nil, util.ValidationError("title is required")
	}
	if req.ExamDate == nil || req.ExamDate.IsZero() {
		return nil, util.ValidationError("examDate is required")
	}
	examID, err := s.checkLinkedExam(actor.UserID, req.ExamID)
	if err != nil {
		return nil, err
	}

	se := &model.ScheduledExam{
		TeacherID:   actor.UserID,
		ExamID:      examID,
		Title:       strings.TrimSpace(*req.Title),
		ExamDate:    *req.ExamDate,
		IsPublished: true,
	}
	if req.Description != nil {
		se.Description = *req.Description
	}
	if req.IsPublished != nil {
		se.IsPublished = *req.IsPublished
	}
	if err := s.Repo.Create(se); err != nil {
		return nil, util.StorageError(err)
	}
	return se, nil
}

func (s *ScheduleService) loadOwned(actor Actor, id string) (*model.ScheduledExam, error) {
	se, err := s.Repo.FindByID(id)
	if err != nil {
		return nil, translateErr(err, util.ErrScheduleNotFound)
	}
	if !actor.Owns(se.TeacherID) {
		return nil, util.ErrPermissionDenied
	}
	return se, nil
}

func (s *ScheduleService) Update(ctx context.Context, actor Actor, id string, req ScheduleReq) (*model.ScheduledExam, error) {
	se, err := s.loadOwned(actor, id)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			return nil, util.ValidationError("title is required")
		}
		se.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		se.Description = *req.Description
	}
	if req.ExamDate != nil {
		if req.ExamDate.IsZero() {
			return nil, util.ValidationError("examDate is required")
		}
		se.ExamDate = *req.ExamDate
	}
	if req.ExamID != nil {
		if se.ExamID, err = s.checkLinkedExam(se.TeacherID, req.ExamID); err != nil {
			return nil, err
		}
	}
	if req.IsPublished != nil {
		se.IsPublished = *req.IsPublished
	}
	if err := s.Repo.Update(se); err != nil {
		return nil, util.StorageError(err)
	}
	return se, nil
}

func (s *ScheduleService) Delete(ctx context.Context, actor Actor, id string) error {
	se, err := s.loadOwned(actor, id)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(se.ID); err != nil {
		return util.StorageError(err)
	}
	return nil
}

func (s *ScheduleService) ListMine(ctx context.Context, actor Actor) ([]model.ScheduledExam, error) {
	if !actor.CanAuthor() {
		return nil, util.ErrPermissionDenied
	}
	list, err := s.Repo.ListByTeacher(actor.UserID)
	if err != nil {
		return nil, util.StorageError(err)
	}
	return list, nil
}

func (s *ScheduleService) ListUpcoming(ctx context.Context) ([]repository.UpcomingScheduleRow, error) {
	rows, err := s.Repo.ListUpcoming(time.Now())
	if err != nil {
		return nil, util.StorageError(err)
	}
	return rows, nil
}
